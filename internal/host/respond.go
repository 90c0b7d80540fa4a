package host

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	goOnboard "github.com/MrEthical07/goOnboard"
	"github.com/MrEthical07/goOnboard/identity"
	"github.com/MrEthical07/goOnboard/onboarding"
	"github.com/MrEthical07/goOnboard/session"
)

const maxBodyBytes = 64 << 10

type errorBody struct {
	Kind    string                      `json:"kind"`
	Message string                      `json:"message"`
	Fields  onboarding.ValidationErrors `json:"fields,omitempty"`
}

type sessionBody struct {
	Bootstrapped       bool              `json:"bootstrapped"`
	Authenticated      bool              `json:"authenticated"`
	Identity           *session.Identity `json:"identity,omitempty"`
	Role               string            `json:"role,omitempty"`
	Resolved           bool              `json:"resolved"`
	OnboardingComplete bool              `json:"onboarding_complete"`
	Profile            identity.Profile  `json:"profile,omitempty"`
	Navigate           string            `json:"navigate,omitempty"`
}

type windowBody struct {
	Address   string    `json:"address"`
	Purpose   string    `json:"purpose"`
	ExpiresAt time.Time `json:"expires_at"`
	ExpiresIn int       `json:"expires_in"`
	ResendAt  time.Time `json:"resend_at"`
	ResendIn  int       `json:"resend_in"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]errorBody{
			"error": {Kind: goOnboard.KindInvalidInput.String(), Message: "The request body is not valid JSON."},
		})
		return false
	}
	return true
}

// writeError maps err onto a status code and a caller-facing message.
func writeError(w http.ResponseWriter, err error) {
	var ve onboarding.ValidationErrors
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]errorBody{
			"error": {Kind: goOnboard.KindInvalidInput.String(), Message: "Some fields need attention.", Fields: ve},
		})
		return
	}

	status, kind, msg := classify(err)
	writeJSON(w, status, map[string]errorBody{
		"error": {Kind: kind, Message: msg},
	})
}

func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, onboarding.ErrWrongStage),
		errors.Is(err, onboarding.ErrBackNotAllowed),
		errors.Is(err, onboarding.ErrAlreadyFinished),
		errors.Is(err, onboarding.ErrClosed):
		return http.StatusConflict, goOnboard.KindInvalidInput.String(), err.Error()
	case errors.Is(err, onboarding.ErrNoSubjects),
		errors.Is(err, onboarding.ErrQuestionIndex),
		errors.Is(err, onboarding.ErrOptionIndex),
		errors.Is(err, onboarding.ErrIncomplete),
		errors.Is(err, onboarding.ErrUnknownSubject):
		return http.StatusBadRequest, goOnboard.KindInvalidInput.String(), err.Error()
	case errors.Is(err, goOnboard.ErrNoSession):
		return http.StatusUnauthorized, goOnboard.KindAuthRejected.String(), goOnboard.MessageOf(err)
	case errors.Is(err, goOnboard.ErrClientClosed), errors.Is(err, goOnboard.ErrEngineNotReady):
		return http.StatusServiceUnavailable, goOnboard.KindServiceUnavailable.String(), "The service is shutting down."
	}

	kind := goOnboard.KindOf(err)
	msg := goOnboard.MessageOf(err)
	switch kind {
	case goOnboard.KindInvalidInput:
		if errors.Is(err, goOnboard.ErrWrongRole) {
			return http.StatusForbidden, kind.String(), msg
		}
		return http.StatusBadRequest, kind.String(), msg
	case goOnboard.KindAuthRejected:
		return http.StatusUnauthorized, kind.String(), msg
	case goOnboard.KindCooldown:
		return http.StatusTooManyRequests, kind.String(), msg
	case goOnboard.KindNotFound:
		return http.StatusNotFound, kind.String(), msg
	case goOnboard.KindServiceUnavailable:
		return http.StatusServiceUnavailable, kind.String(), msg
	default:
		return http.StatusInternalServerError, kind.String(), "Something went wrong. Try again."
	}
}

func seconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}

func (s *Server) window(w goOnboard.OTCWindow) windowBody {
	now := s.engine.Scheduler().Now()
	return windowBody{
		Address:   w.Address,
		Purpose:   string(w.Purpose),
		ExpiresAt: w.ExpiresAt,
		ExpiresIn: seconds(w.ExpiresIn(now)),
		ResendAt:  w.ResendAt,
		ResendIn:  seconds(w.ResendIn(now)),
	}
}

// writeWindowError answers a cooldown with the window so the caller can show
// the remaining wait.
func (s *Server) writeWindowError(w http.ResponseWriter, win goOnboard.OTCWindow, err error) {
	if errors.Is(err, goOnboard.ErrCooldown) && !errors.Is(err, goOnboard.ErrRateLimited) && !win.ResendAt.IsZero() {
		body := s.window(win)
		w.Header().Set("Retry-After", strconv.Itoa(body.ResendIn))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":  errorBody{Kind: goOnboard.KindCooldown.String(), Message: goOnboard.MessageOf(err)},
			"window": body,
		})
		return
	}
	writeError(w, err)
}

// sessionView describes the client and takes its pending navigation, which
// the response carries to the caller exactly once.
func sessionView(c *goOnboard.Client) sessionBody {
	body := sessionBody{Bootstrapped: c.Bootstrapped()}
	if sess, ok := c.Session(); ok {
		id := sess.Identity
		body.Authenticated = true
		body.Identity = &id
		body.Role = string(sess.Role())
	}
	if res, ok := c.Resolution(); ok {
		body.Resolved = true
		body.Role = string(res.Role)
		body.Profile = res.Profile
		body.OnboardingComplete = res.OnboardingComplete()
	}
	if nav, ok := c.TakeNavigation(); ok {
		body.Navigate = nav
	}
	return body
}
