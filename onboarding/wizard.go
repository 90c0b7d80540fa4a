package onboarding

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/goOnboard/scheduler"
	"github.com/google/uuid"
)

const (
	// DefaultTestDuration bounds a subject test.
	DefaultTestDuration = 15 * time.Minute
	// DefaultQuestionsPerTest is the size of a drawn test.
	DefaultQuestionsPerTest = 10

	timerDeadline = "onboarding.deadline"

	// RetryPolicyMessage is surfaced when a finished result did not pass.
	RetryPolicyMessage = "You did not reach the passing score of 80. You can retake this subject test once the retry period has passed."
)

var (
	ErrWrongStage      = errors.New("operation not allowed at the current onboarding stage")
	ErrBackNotAllowed  = errors.New("back navigation is only allowed from subject selection")
	ErrNoSubjects      = errors.New("select at least one subject")
	ErrAlreadyFinished = errors.New("onboarding results already finished")
	ErrClosed          = errors.New("onboarding wizard closed")
)

// Config tunes the test. Zero values fall back to the defaults.
type Config struct {
	TestDuration     time.Duration
	QuestionsPerTest int
	// TimerPrefix namespaces the deadline timer when several wizards share a scheduler.
	TimerPrefix string
}

// Deps connects the wizard to persistence and the question bank.
type Deps struct {
	// SaveQualification persists an accepted draft to the provider profile.
	SaveQualification func(ctx context.Context, draft Draft) error
	// CommitSubject merges subject into the provider's expertise and activates the
	// profile in a single write.
	CommitSubject func(ctx context.Context, subject Subject) error
	Bank          QuestionBank
	NewID         func() string
	// OnScored is called after an attempt is scored, outside the wizard lock.
	OnScored func(Result)
}

// Outcome is returned by Finish.
type Outcome struct {
	Result    Result `json:"result"`
	Committed bool   `json:"committed"`
	Message   string `json:"message,omitempty"`
}

// Wizard is one traversal of the onboarding flow.
type Wizard struct {
	mu     sync.Mutex
	sched  *scheduler.Scheduler
	cfg    Config
	deps   Deps
	stage  Stage
	closed bool

	accepted Draft
}

// NewWizard starts at Qualification.
func NewWizard(sched *scheduler.Scheduler, cfg Config, deps Deps) (*Wizard, error) {
	if sched == nil {
		return nil, errors.New("onboarding scheduler required")
	}
	if deps.SaveQualification == nil || deps.CommitSubject == nil || deps.Bank == nil {
		return nil, errors.New("onboarding persistence and question bank required")
	}
	if cfg.TestDuration <= 0 {
		cfg.TestDuration = DefaultTestDuration
	}
	if cfg.QuestionsPerTest <= 0 {
		cfg.QuestionsPerTest = DefaultQuestionsPerTest
	}
	if deps.NewID == nil {
		deps.NewID = uuid.NewString
	}

	return &Wizard{
		sched: sched,
		cfg:   cfg,
		deps:  deps,
		stage: Qualification{},
	}, nil
}

// Stage returns the current stage. A SubjectTest carries a copy of the attempt.
func (w *Wizard) Stage() Stage {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.stage.(SubjectTest); ok && t.Attempt != nil {
		a := *t.Attempt
		a.Answers = append([]int(nil), t.Attempt.Answers...)
		t.Attempt = &a
		return t
	}
	return w.stage
}

// SubmitQualification validates and persists draft, then advances to SubjectSelection.
// An invalid draft returns ValidationErrors and leaves the stage unchanged apart from
// recording the errors.
func (w *Wizard) SubmitQualification(ctx context.Context, draft Draft) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if _, ok := w.stage.(Qualification); !ok {
		return ErrWrongStage
	}

	clean := draft.Sanitized()
	if errs := clean.Validate(); errs != nil {
		w.stage = Qualification{Draft: draft, Errors: errs}
		return errs
	}

	if err := w.deps.SaveQualification(ctx, clean); err != nil {
		return err
	}

	w.accepted = clean
	w.stage = SubjectSelection{Draft: clean}
	return nil
}

// Back returns from SubjectSelection to Qualification with the accepted draft.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	sel, ok := w.stage.(SubjectSelection)
	if !ok {
		return ErrBackNotAllowed
	}
	w.stage = Qualification{Draft: sel.Draft}
	return nil
}

// SelectSubjects starts a test for the first subject. Order is preserved and
// duplicates are collapsed.
func (w *Wizard) SelectSubjects(ctx context.Context, subjects []Subject) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	if _, ok := w.stage.(SubjectSelection); !ok {
		return ErrWrongStage
	}

	selected := normalizeSubjects(subjects)
	if len(selected) == 0 {
		return ErrNoSubjects
	}

	questions, err := w.deps.Bank.Draw(ctx, selected[0], w.cfg.QuestionsPerTest)
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		return ErrUnknownSubject
	}

	attempt := newAttempt(w.deps.NewID(), selected[0], questions, w.sched.Now(), w.cfg.TestDuration)
	if err := w.sched.After(w.timerName(), w.cfg.TestDuration, w.deadlineFunc(attempt.ID)); err != nil {
		return err
	}

	w.stage = SubjectTest{Selected: selected, Attempt: attempt}
	return nil
}

func normalizeSubjects(subjects []Subject) []Subject {
	seen := make(map[Subject]struct{}, len(subjects))
	out := make([]Subject, 0, len(subjects))
	for _, s := range subjects {
		s = Subject(strings.TrimSpace(string(s)))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// Answer records an option for question i of the running test.
func (w *Wizard) Answer(i, option int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	test, ok := w.stage.(SubjectTest)
	if !ok {
		return ErrWrongStage
	}
	return test.Attempt.Answer(i, option)
}

// SubmitTest scores a fully answered test and advances to Results.
func (w *Wizard) SubmitTest() (Result, error) {
	w.mu.Lock()

	if w.closed {
		w.mu.Unlock()
		return Result{}, ErrClosed
	}
	test, ok := w.stage.(SubjectTest)
	if !ok {
		w.mu.Unlock()
		return Result{}, ErrWrongStage
	}
	if !test.Attempt.Complete() {
		w.mu.Unlock()
		return Result{}, ErrIncomplete
	}

	res := w.scoreLocked(test, false)
	w.mu.Unlock()

	w.scored(res)
	return res, nil
}

func (w *Wizard) deadlineFunc(attemptID string) scheduler.Func {
	return func(time.Time) {
		w.mu.Lock()
		test, ok := w.stage.(SubjectTest)
		if w.closed || !ok || test.Attempt.ID != attemptID {
			w.mu.Unlock()
			return
		}
		res := w.scoreLocked(test, true)
		w.mu.Unlock()

		w.scored(res)
	}
}

func (w *Wizard) scoreLocked(test SubjectTest, timedOut bool) Result {
	w.sched.Cancel(w.timerName())

	res := Evaluate(test.Attempt)
	res.TimedOut = timedOut
	w.stage = Results{Selected: test.Selected, Result: res}
	return res
}

func (w *Wizard) scored(res Result) {
	if w.deps.OnScored != nil {
		w.deps.OnScored(res)
	}
}

// Finish commits a passed result. A failed result is not persisted and the outcome
// carries the retry policy message.
func (w *Wizard) Finish(ctx context.Context) (Outcome, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return Outcome{}, ErrClosed
	}
	results, ok := w.stage.(Results)
	if !ok {
		return Outcome{}, ErrWrongStage
	}
	if results.Finished {
		return Outcome{}, ErrAlreadyFinished
	}

	if !results.Result.Passed {
		results.Finished = true
		w.stage = results
		return Outcome{Result: results.Result, Message: RetryPolicyMessage}, nil
	}

	if err := w.deps.CommitSubject(ctx, results.Result.Subject); err != nil {
		return Outcome{}, err
	}

	results.Finished = true
	w.stage = results
	return Outcome{Result: results.Result, Committed: true}, nil
}

// Restart abandons the current traversal and returns to Qualification, keeping the
// last accepted draft.
func (w *Wizard) Restart() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}
	w.sched.Cancel(w.timerName())

	draft := w.accepted
	if q, ok := w.stage.(Qualification); ok {
		draft = q.Draft
	}
	w.stage = Qualification{Draft: draft}
	return nil
}

// Close cancels the deadline timer. The wizard rejects further operations.
func (w *Wizard) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	w.closed = true
	w.sched.Cancel(w.timerName())
}

func (w *Wizard) timerName() string {
	return w.cfg.TimerPrefix + timerDeadline
}
