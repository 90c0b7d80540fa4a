package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	otcRecordVersionV1 = 1
	otcRecordSize      = 28
)

var (
	ErrOTCNotFound         = errors.New("otc window not found")
	ErrOTCExpired          = errors.New("otc window expired")
	ErrOTCCooldown         = errors.New("otc resend cooldown active")
	ErrOTCRedisUnavailable = errors.New("otc redis unavailable")
	ErrOTCCorrupt          = errors.New("otc window record corrupt")
)

// issueOTCLua replaces the window unless the current one is still in its resend
// cooldown. A replaced window carries the previous resend count plus one.
// KEYS[1] = window key
// ARGV[1] = now (unix ms)
// ARGV[2] = encoded new record
// ARGV[3] = key ttl (ms)
//
// Returns {1, record} when issued and {0, current record} during cooldown.
var issueOTCLua = redis.NewScript(`
local now = tonumber(ARGV[1])
local payload = ARGV[2]
local data = redis.call('GET', KEYS[1])

if data and string.len(data) == 28 and string.byte(data, 1) == 1 then
  local resendAt = 0
  for i = 21, 28 do
    resendAt = resendAt * 256 + string.byte(data, i)
  end
  if now < resendAt then
    return {0, data}
  end
  local n = string.byte(data, 3) * 256 + string.byte(data, 4) + 1
  if n > 65535 then
    n = 65535
  end
  payload = string.sub(payload, 1, 2) .. string.char(math.floor(n / 256), n % 256) .. string.sub(payload, 5)
end

redis.call('SET', KEYS[1], payload, 'PX', ARGV[3])
return {1, payload}
`)

// OTCWindow mirrors the expiry and resend windows of the last code sent to an address.
type OTCWindow struct {
	Purpose   uint8
	Resends   uint16
	IssuedAt  time.Time
	ExpiresAt time.Time
	ResendAt  time.Time
}

// OTCStore keeps one window per address and purpose.
type OTCStore struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewOTCStore returns a store whose keys outlive each window's expiry by retention so
// that a late verify can still be told the code expired.
func NewOTCStore(redisClient redis.UniversalClient, prefix string, retention time.Duration) *OTCStore {
	if prefix == "" {
		prefix = "obo"
	}
	if retention <= 0 {
		retention = time.Hour
	}
	return &OTCStore{
		redis:     redisClient,
		prefix:    prefix,
		retention: retention,
	}
}

func (s *OTCStore) key(addressHash string, purpose uint8) string {
	return fmt.Sprintf("%s:%d:%s", s.prefix, purpose, addressHash)
}

// Issue opens a fresh window at now unless the current window's cooldown is running,
// in which case it returns the current window with ErrOTCCooldown.
func (s *OTCStore) Issue(
	ctx context.Context,
	addressHash string,
	purpose uint8,
	now time.Time,
	ttl, cooldown time.Duration,
) (OTCWindow, error) {
	w := OTCWindow{
		Purpose:   purpose,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
		ResendAt:  now.Add(cooldown),
	}
	encoded := encodeOTCWindow(w)
	keyTTL := ttl + s.retention

	result, err := issueOTCLua.Run(ctx, s.redis,
		[]string{s.key(addressHash, purpose)},
		now.UnixMilli(),
		string(encoded),
		keyTTL.Milliseconds(),
	).Slice()
	if err != nil {
		return OTCWindow{}, fmt.Errorf("%w: %v", ErrOTCRedisUnavailable, err)
	}
	if len(result) != 2 {
		return OTCWindow{}, fmt.Errorf("%w: unexpected lua result", ErrOTCRedisUnavailable)
	}

	status, _ := result[0].(int64)
	data, _ := result[1].(string)
	stored, decErr := decodeOTCWindow([]byte(data))
	if decErr != nil {
		return OTCWindow{}, decErr
	}
	if status == 0 {
		return stored, ErrOTCCooldown
	}
	return stored, nil
}

// Check returns the window if a code is still verifiable at now. A window past its
// expiry returns ErrOTCExpired and stays in place until its key ages out.
func (s *OTCStore) Check(ctx context.Context, addressHash string, purpose uint8, now time.Time) (OTCWindow, error) {
	data, err := s.redis.Get(ctx, s.key(addressHash, purpose)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return OTCWindow{}, ErrOTCNotFound
		}
		return OTCWindow{}, fmt.Errorf("%w: %v", ErrOTCRedisUnavailable, err)
	}

	w, err := decodeOTCWindow(data)
	if err != nil {
		_ = s.redis.Del(ctx, s.key(addressHash, purpose)).Err()
		return OTCWindow{}, ErrOTCNotFound
	}
	if !now.Before(w.ExpiresAt) {
		return w, ErrOTCExpired
	}
	return w, nil
}

// Close removes the window after a successful verification.
func (s *OTCStore) Close(ctx context.Context, addressHash string, purpose uint8) error {
	if err := s.redis.Del(ctx, s.key(addressHash, purpose)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrOTCRedisUnavailable, err)
	}
	return nil
}

func encodeOTCWindow(w OTCWindow) []byte {
	var buf bytes.Buffer
	buf.Grow(otcRecordSize)

	buf.WriteByte(otcRecordVersionV1)
	buf.WriteByte(w.Purpose)
	_ = binary.Write(&buf, binary.BigEndian, w.Resends)
	_ = binary.Write(&buf, binary.BigEndian, w.IssuedAt.UnixMilli())
	_ = binary.Write(&buf, binary.BigEndian, w.ExpiresAt.UnixMilli())
	_ = binary.Write(&buf, binary.BigEndian, w.ResendAt.UnixMilli())

	return buf.Bytes()
}

func decodeOTCWindow(data []byte) (OTCWindow, error) {
	if len(data) != otcRecordSize || data[0] != otcRecordVersionV1 {
		return OTCWindow{}, ErrOTCCorrupt
	}
	return OTCWindow{
		Purpose:   data[1],
		Resends:   binary.BigEndian.Uint16(data[2:4]),
		IssuedAt:  time.UnixMilli(int64(binary.BigEndian.Uint64(data[4:12]))).UTC(),
		ExpiresAt: time.UnixMilli(int64(binary.BigEndian.Uint64(data[12:20]))).UTC(),
		ResendAt:  time.UnixMilli(int64(binary.BigEndian.Uint64(data[20:28]))).UTC(),
	}, nil
}
