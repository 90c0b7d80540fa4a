package onboarding

import (
	"errors"
	"time"
)

const (
	// PassThreshold is the minimum score that passes a subject test.
	PassThreshold = 80
	// OptionsPerQuestion is fixed for every question.
	OptionsPerQuestion = 4
	// Unanswered marks a question without a chosen option.
	Unanswered = -1
)

var (
	ErrQuestionIndex = errors.New("question index out of range")
	ErrOptionIndex   = errors.New("option index out of range")
	ErrIncomplete    = errors.New("every question must be answered before submitting")
)

// Subject is a tested area of expertise.
type Subject string

// Question is one multiple-choice item.
type Question struct {
	Prompt  string                     `json:"prompt"`
	Options [OptionsPerQuestion]string `json:"options"`
	Correct int                        `json:"-"`
}

// Attempt is one test run for one subject.
type Attempt struct {
	ID        string
	Subject   Subject
	Questions []Question
	Answers   []int
	StartedAt time.Time
	Deadline  time.Time
}

func newAttempt(id string, subject Subject, questions []Question, startedAt time.Time, d time.Duration) *Attempt {
	answers := make([]int, len(questions))
	for i := range answers {
		answers[i] = Unanswered
	}
	return &Attempt{
		ID:        id,
		Subject:   subject,
		Questions: questions,
		Answers:   answers,
		StartedAt: startedAt,
		Deadline:  startedAt.Add(d),
	}
}

// Answer records option for question i, replacing any earlier choice.
func (a *Attempt) Answer(i, option int) error {
	if i < 0 || i >= len(a.Questions) {
		return ErrQuestionIndex
	}
	if option < 0 || option >= OptionsPerQuestion {
		return ErrOptionIndex
	}
	a.Answers[i] = option
	return nil
}

// Complete reports whether every question has an answer.
func (a *Attempt) Complete() bool {
	for _, ans := range a.Answers {
		if ans == Unanswered {
			return false
		}
	}
	return true
}

// Answered returns the number of answered questions.
func (a *Attempt) Answered() int {
	n := 0
	for _, ans := range a.Answers {
		if ans != Unanswered {
			n++
		}
	}
	return n
}

// Correct counts answers matching the key. Unanswered questions count as wrong.
func (a *Attempt) Correct() int {
	n := 0
	for i, q := range a.Questions {
		if i < len(a.Answers) && a.Answers[i] == q.Correct {
			n++
		}
	}
	return n
}

// Result is a scored attempt.
type Result struct {
	Subject  Subject `json:"subject"`
	Score    int     `json:"score"`
	Passed   bool    `json:"passed"`
	Correct  int     `json:"correct"`
	Total    int     `json:"total"`
	TimedOut bool    `json:"timed_out"`
}

// Score returns round-half-up(100 * correct / total), clamped to [0, 100].
func Score(correct, total int) int {
	if total <= 0 || correct <= 0 {
		return 0
	}
	if correct >= total {
		return 100
	}
	return (200*correct + total) / (2 * total)
}

// Passed reports whether score meets PassThreshold.
func Passed(score int) bool {
	return score >= PassThreshold
}

// Evaluate scores an attempt. It does not modify the attempt.
func Evaluate(a *Attempt) Result {
	correct := a.Correct()
	total := len(a.Questions)
	score := Score(correct, total)
	return Result{
		Subject: a.Subject,
		Score:   score,
		Passed:  Passed(score),
		Correct: correct,
		Total:   total,
	}
}
