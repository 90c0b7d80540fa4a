package rate

import "errors"

var (
	// ErrRateLimited is returned when a counter has exhausted its window budget.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable is returned when the counter store cannot be reached.
	ErrRedisUnavailable = errors.New("redis unavailable")
)
