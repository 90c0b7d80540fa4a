package onboarding

import (
	"testing"
	"time"
)

func TestScoreRoundsHalfUpOnPercentage(t *testing.T) {
	cases := []struct {
		correct, total, want int
	}{
		{0, 10, 0},
		{7, 10, 70},
		{8, 10, 80},
		{10, 10, 100},
		{1, 8, 13},  // 12.5 rounds up
		{2, 3, 67},  // 66.67
		{1, 3, 33},  // 33.33
		{5, 8, 63},  // 62.5 rounds up
		{79, 100, 79},
		{0, 0, 0},
		{-1, 10, 0},
		{11, 10, 100},
	}
	for _, tc := range cases {
		if got := Score(tc.correct, tc.total); got != tc.want {
			t.Fatalf("Score(%d, %d) = %d, want %d", tc.correct, tc.total, got, tc.want)
		}
	}
}

func TestScoreRangeAndPassBoundary(t *testing.T) {
	for total := 1; total <= 40; total++ {
		for correct := 0; correct <= total; correct++ {
			s := Score(correct, total)
			if s < 0 || s > 100 {
				t.Fatalf("Score(%d, %d) = %d out of range", correct, total, s)
			}
			if Passed(s) != (s >= 80) {
				t.Fatalf("Passed(%d) inconsistent with threshold", s)
			}
			if again := Score(correct, total); again != s {
				t.Fatalf("Score not idempotent for %d/%d: %d vs %d", correct, total, s, again)
			}
		}
	}
}

func tenQuestions() []Question {
	qs := make([]Question, 10)
	for i := range qs {
		qs[i] = Question{Prompt: "q", Options: [4]string{"a", "b", "c", "d"}, Correct: i % 4}
	}
	return qs
}

func answerCorrectly(t *testing.T, a *Attempt, n int) {
	t.Helper()
	for i, q := range a.Questions {
		opt := q.Correct
		if i >= n {
			opt = (q.Correct + 1) % OptionsPerQuestion
		}
		if err := a.Answer(i, opt); err != nil {
			t.Fatalf("Answer(%d) failed: %v", i, err)
		}
	}
}

func TestEvaluateRoundTrips(t *testing.T) {
	cases := []struct {
		name    string
		correct int
		score   int
		passed  bool
	}{
		{"all correct", 10, 100, true},
		{"all wrong", 0, 0, false},
		{"eight correct", 8, 80, true},
		{"seven correct", 7, 70, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a := newAttempt("a1", SubjectMathematics, tenQuestions(), time.Time{}, time.Minute)
			answerCorrectly(t, a, tc.correct)

			res := Evaluate(a)
			if res.Score != tc.score || res.Passed != tc.passed || res.Correct != tc.correct || res.Total != 10 {
				t.Fatalf("unexpected result: %+v", res)
			}
			if again := Evaluate(a); again != res {
				t.Fatalf("re-scoring changed result: %+v vs %+v", res, again)
			}
		})
	}
}

func TestUnansweredCountsAsWrong(t *testing.T) {
	a := newAttempt("a1", SubjectPhysics, tenQuestions(), time.Time{}, time.Minute)
	for i := 0; i < 9; i++ {
		_ = a.Answer(i, a.Questions[i].Correct)
	}
	if a.Complete() {
		t.Fatal("attempt with an unanswered question must not be complete")
	}
	res := Evaluate(a)
	if res.Correct != 9 || res.Score != 90 {
		t.Fatalf("expected 9 correct and score 90, got %+v", res)
	}
}

func TestAnswerBounds(t *testing.T) {
	a := newAttempt("a1", SubjectPhysics, tenQuestions(), time.Time{}, time.Minute)
	if err := a.Answer(10, 0); err != ErrQuestionIndex {
		t.Fatalf("expected ErrQuestionIndex, got %v", err)
	}
	if err := a.Answer(0, 4); err != ErrOptionIndex {
		t.Fatalf("expected ErrOptionIndex, got %v", err)
	}
	if err := a.Answer(0, -1); err != ErrOptionIndex {
		t.Fatalf("expected ErrOptionIndex for -1, got %v", err)
	}
}
