package host

import (
	"net/http"

	goOnboard "github.com/MrEthical07/goOnboard"
	"github.com/MrEthical07/goOnboard/session"
)

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	// Location is the view the caller signs in from.
	Location string `json:"location"`
	// Role, when set, overrides the identity metadata for navigation.
	Role     string `json:"role"`
}

type callbackRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req goOnboard.SignUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	win, err := s.engine.SignUp(requestContext(r), req)
	if err != nil {
		s.writeWindowError(w, win, err)
		return
	}
	writeJSON(w, http.StatusAccepted, s.window(win))
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := s.client(w, r)
	if err != nil {
		writeError(w, err)
		return
	}

	ctx := requestContext(r)
	if req.Role != "" {
		role, err := session.ParseRole(req.Role)
		if err != nil {
			writeError(w, goOnboard.ErrInvalidInput)
			return
		}
		ctx = goOnboard.WithNavigationRole(ctx, role)
	}
	if req.Location != "" {
		c.SetLocation(req.Location)
	} else {
		c.SetLocation(s.engine.Paths().SignIn)
	}

	if _, err := c.SignIn(ctx, req.Email, req.Password); err != nil {
		writeError(w, err)
		return
	}
	s.waitResolved(ctx, c)
	writeJSON(w, http.StatusOK, sessionView(c))
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if c := s.lookup(r); c != nil {
		if err := c.SignOut(requestContext(r)); err != nil {
			writeError(w, err)
			return
		}
		s.engine.Release(c.Key())
	}
	s.clearClientCookie(w, r)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	c := s.lookup(r)
	if c == nil {
		writeError(w, goOnboard.ErrNoSession)
		return
	}
	if err := c.Refresh(requestContext(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionView(c))
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	c := s.lookup(r)
	if c == nil {
		writeJSON(w, http.StatusOK, sessionBody{Bootstrapped: true})
		return
	}
	writeJSON(w, http.StatusOK, sessionView(c))
}

func (s *Server) handleOAuthURL(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	u, err := s.engine.OAuthURL(q.Get("provider"), q.Get("redirect_to"), q.Get("role"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": u})
}

// handleCallback completes a round trip whose tokens arrive on the query and
// performs the resulting navigation.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	c, err := s.client(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx := requestContext(r)
	c.SetLocation(r.URL.Path)
	if _, err := c.HandleCallback(ctx, r.URL.String()); err != nil {
		s.logger.InfoContext(ctx, "callback rejected", "error", err)
		http.Redirect(w, r, s.engine.Paths().SignIn, http.StatusFound)
		return
	}
	s.waitResolved(ctx, c)
	if nav, ok := c.TakeNavigation(); ok {
		http.Redirect(w, r, nav, http.StatusFound)
		return
	}
	http.Redirect(w, r, s.engine.Paths().SignIn, http.StatusFound)
}

// handleCallbackURL completes a round trip whose tokens arrived in a URL
// fragment the browser forwarded.
func (s *Server) handleCallbackURL(w http.ResponseWriter, r *http.Request) {
	var req callbackRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := s.client(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx := requestContext(r)
	c.SetLocation("/auth/callback")
	if _, err := c.HandleCallback(ctx, req.URL); err != nil {
		writeError(w, err)
		return
	}
	s.waitResolved(ctx, c)
	writeJSON(w, http.StatusOK, sessionView(c))
}
