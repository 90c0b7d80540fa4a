package goOnboard

import (
	"context"
	"errors"
	"strconv"

	internalflows "github.com/MrEthical07/goOnboard/internal/flows"
	"github.com/MrEthical07/goOnboard/onboarding"
	"github.com/MrEthical07/goOnboard/session"
)

// Onboarding returns the onboarding wizard of the signed-in provider, starting one at
// Qualification on first use. The wizard persists through the profile store under the
// session identity and is closed on sign-out or invalidation.
//
// Onboarding fails with [ErrNoSession] without a session and with [ErrWrongRole] when
// the session does not resolve to a provider.
func (c *Client) Onboarding(ctx context.Context) (*onboarding.Wizard, error) {
	const op = "onboarding"
	if c.isClosed() {
		return nil, ErrClientClosed
	}
	sess, ok := c.provider.Current()
	if !ok {
		return nil, newError(op, KindAuthRejected, ErrNoSession)
	}
	if c.effectiveRole(sess) != session.RoleProvider {
		return nil, newError(op, KindInvalidInput, ErrWrongRole)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.wizard != nil {
		return c.wizard, nil
	}

	e := c.engine
	id := sess.Identity.ID
	scoped := func(ctx context.Context) context.Context {
		return withAuditRole(withClientKey(ctx, c.key), session.RoleProvider)
	}

	w, err := onboarding.NewWizard(e.sched, onboarding.Config{
		TestDuration:     e.config.Onboarding.TestDuration,
		QuestionsPerTest: e.config.Onboarding.QuestionsPerTest,
		TimerPrefix:      c.timerPrefix(),
	}, onboarding.Deps{
		SaveQualification: func(ctx context.Context, d onboarding.Draft) error {
			err := internalflows.RunSaveQualification(scoped(ctx), id, d.Bio, d.Education, d.Experience, e.flows.Profile)
			return wrapError("save_qualification", err)
		},
		CommitSubject: func(ctx context.Context, subject onboarding.Subject) error {
			c.mu.Lock()
			score := c.lastScore
			c.mu.Unlock()

			err := internalflows.RunCommitExpertise(scoped(ctx), id, string(subject), score, e.flows.Profile)
			return wrapError("commit_expertise", err)
		},
		Bank: e.bank,
		OnScored: func(res onboarding.Result) {
			c.mu.Lock()
			c.lastScore = res.Score
			c.mu.Unlock()

			if res.Passed {
				e.metricInc(MetricTestPassed)
			} else {
				e.metricInc(MetricTestFailed)
			}
			e.emitAudit(scoped(e.ctx), auditEventTestScored, res.Passed, id, nil, func() map[string]string {
				return map[string]string{
					"subject":   string(res.Subject),
					"score":     strconv.Itoa(res.Score),
					"correct":   strconv.Itoa(res.Correct),
					"total":     strconv.Itoa(res.Total),
					"timed_out": strconv.FormatBool(res.TimedOut),
				}
			})
		},
	})
	if err != nil {
		return nil, newError(op, KindInternal, err)
	}
	c.wizard = w
	return w, nil
}

// FinishOnboarding finishes the Results stage of the wizard. A passed result commits
// the subject, then the profile is resolved again before returning, so the pending
// navigation points at the provider home. A failed result changes nothing and the
// outcome carries the retry policy message.
func (c *Client) FinishOnboarding(ctx context.Context) (onboarding.Outcome, error) {
	const op = "finish_onboarding"
	w, err := c.Onboarding(ctx)
	if err != nil {
		return onboarding.Outcome{}, err
	}

	out, err := w.Finish(ctx)
	switch {
	case errors.Is(err, onboarding.ErrWrongStage), errors.Is(err, onboarding.ErrAlreadyFinished), errors.Is(err, onboarding.ErrClosed):
		return onboarding.Outcome{}, newError(op, KindInvalidInput, err)
	case err != nil:
		return onboarding.Outcome{}, wrapError(op, err)
	}
	if out.Committed {
		if sess, ok := c.provider.Current(); ok {
			c.resolve(sess.Identity, false)
		}
	}
	return out, nil
}
