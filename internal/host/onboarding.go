package host

import (
	"net/http"
	"time"

	goOnboard "github.com/MrEthical07/goOnboard"
	"github.com/MrEthical07/goOnboard/onboarding"
)

type stageBody struct {
	Stage     string                      `json:"stage"`
	Draft     *onboarding.Draft           `json:"draft,omitempty"`
	Errors    onboarding.ValidationErrors `json:"errors,omitempty"`
	Selected  []onboarding.Subject        `json:"selected,omitempty"`
	Subject   onboarding.Subject          `json:"subject,omitempty"`
	Questions []onboarding.Question       `json:"questions,omitempty"`
	Answers   []int                       `json:"answers,omitempty"`
	Deadline  *time.Time                  `json:"deadline,omitempty"`
	Result    *onboarding.Result          `json:"result,omitempty"`
	Finished  bool                        `json:"finished,omitempty"`
}

type subjectsRequest struct {
	Subjects []onboarding.Subject `json:"subjects"`
}

type answerRequest struct {
	Index  int `json:"index"`
	Option int `json:"option"`
}

func stageView(st onboarding.Stage) stageBody {
	body := stageBody{Stage: st.Kind().String()}
	switch v := st.(type) {
	case onboarding.Qualification:
		d := v.Draft
		body.Draft = &d
		body.Errors = v.Errors
	case onboarding.SubjectSelection:
		d := v.Draft
		body.Draft = &d
	case onboarding.SubjectTest:
		body.Selected = v.Selected
		body.Subject = v.Subject()
		body.Questions = v.Attempt.Questions
		body.Answers = v.Attempt.Answers
		deadline := v.Attempt.Deadline
		body.Deadline = &deadline
	case onboarding.Results:
		body.Selected = v.Selected
		res := v.Result
		body.Result = &res
		body.Finished = v.Finished
	}
	return body
}

// wizard returns the caller's onboarding wizard or writes the error.
func (s *Server) wizard(w http.ResponseWriter, r *http.Request) (*goOnboard.Client, *onboarding.Wizard, bool) {
	c := s.lookup(r)
	if c == nil {
		writeError(w, goOnboard.ErrNoSession)
		return nil, nil, false
	}
	wz, err := c.Onboarding(requestContext(r))
	if err != nil {
		writeError(w, err)
		return nil, nil, false
	}
	return c, wz, true
}

func (s *Server) handleOnboardingStage(w http.ResponseWriter, r *http.Request) {
	_, wz, ok := s.wizard(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, stageView(wz.Stage()))
}

func (s *Server) handleQualification(w http.ResponseWriter, r *http.Request) {
	var draft onboarding.Draft
	if !decodeJSON(w, r, &draft) {
		return
	}
	_, wz, ok := s.wizard(w, r)
	if !ok {
		return
	}
	if err := wz.SubmitQualification(requestContext(r), draft); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stageView(wz.Stage()))
}

func (s *Server) handleOnboardingBack(w http.ResponseWriter, r *http.Request) {
	_, wz, ok := s.wizard(w, r)
	if !ok {
		return
	}
	if err := wz.Back(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stageView(wz.Stage()))
}

func (s *Server) handleSubjects(w http.ResponseWriter, r *http.Request) {
	var req subjectsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	_, wz, ok := s.wizard(w, r)
	if !ok {
		return
	}
	if err := wz.SelectSubjects(requestContext(r), req.Subjects); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stageView(wz.Stage()))
}

func (s *Server) handleAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	_, wz, ok := s.wizard(w, r)
	if !ok {
		return
	}
	if err := wz.Answer(req.Index, req.Option); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stageView(wz.Stage()))
}

func (s *Server) handleSubmitTest(w http.ResponseWriter, r *http.Request) {
	_, wz, ok := s.wizard(w, r)
	if !ok {
		return
	}
	if _, err := wz.SubmitTest(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stageView(wz.Stage()))
}

func (s *Server) handleFinish(w http.ResponseWriter, r *http.Request) {
	c := s.lookup(r)
	if c == nil {
		writeError(w, goOnboard.ErrNoSession)
		return
	}
	ctx := requestContext(r)
	c.SetLocation(s.engine.Paths().Onboarding)
	out, err := c.FinishOnboarding(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	s.waitResolved(ctx, c)
	writeJSON(w, http.StatusOK, map[string]any{
		"outcome": out,
		"session": sessionView(c),
	})
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	_, wz, ok := s.wizard(w, r)
	if !ok {
		return
	}
	if err := wz.Restart(); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stageView(wz.Stage()))
}

// handleView serves a guarded view. A navigation pending for the caller is
// performed first, so a resolution that moved the caller elsewhere wins.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	c, ok := goOnboardClient(r)
	if !ok {
		writeError(w, goOnboard.ErrNoSession)
		return
	}
	c.SetLocation(r.URL.Path)
	if nav, ok := c.TakeNavigation(); ok && nav != r.URL.Path {
		http.Redirect(w, r, nav, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"view":    r.URL.Path,
		"session": sessionView(c),
	})
}
