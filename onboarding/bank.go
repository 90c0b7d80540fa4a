package onboarding

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
	"sync"
)

// ErrUnknownSubject is returned when the bank has no questions for a subject.
var ErrUnknownSubject = errors.New("no questions available for subject")

// QuestionBank supplies questions for a subject test.
type QuestionBank interface {
	Draw(ctx context.Context, subject Subject, n int) ([]Question, error)
	Subjects() []Subject
}

// StaticBank serves questions from memory. With a non-nil rand source each draw is
// shuffled; otherwise questions are returned in bank order.
type StaticBank struct {
	mu        sync.Mutex
	questions map[Subject][]Question
	rng       *rand.Rand
}

// NewStaticBank copies questions into a bank.
func NewStaticBank(questions map[Subject][]Question, rng *rand.Rand) *StaticBank {
	copied := make(map[Subject][]Question, len(questions))
	for subject, qs := range questions {
		copied[subject] = append([]Question(nil), qs...)
	}
	return &StaticBank{questions: copied, rng: rng}
}

// DefaultBank returns the built-in bank with shuffled draws.
func DefaultBank() *StaticBank {
	return NewStaticBank(builtinQuestions, rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())))
}

func (b *StaticBank) Draw(ctx context.Context, subject Subject, n int) ([]Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	pool, ok := b.questions[subject]
	if !ok || len(pool) == 0 {
		return nil, ErrUnknownSubject
	}

	out := append([]Question(nil), pool...)
	if b.rng != nil {
		b.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}
	if n > 0 && n < len(out) {
		out = out[:n]
	}
	return out, nil
}

func (b *StaticBank) Subjects() []Subject {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Subject, 0, len(b.questions))
	for s := range b.questions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
