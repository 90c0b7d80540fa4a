package host

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	goOnboard "github.com/MrEthical07/goOnboard"
	"github.com/MrEthical07/goOnboard/otc"
)

const (
	streamBuffer       = 16
	streamWriteTimeout = 5 * time.Second
)

type otcRequest struct {
	Email    string `json:"email"`
	Purpose  string `json:"purpose"`
	Code     string `json:"code,omitempty"`
	Location string `json:"location,omitempty"`
}

func (s *Server) handleOTCRequest(w http.ResponseWriter, r *http.Request) {
	var req otcRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	win, err := s.engine.RequestOTC(requestContext(r), req.Email, otc.Purpose(req.Purpose))
	if err != nil {
		s.writeWindowError(w, win, err)
		return
	}
	writeJSON(w, http.StatusOK, s.window(win))
}

func (s *Server) handleOTCResend(w http.ResponseWriter, r *http.Request) {
	var req otcRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	win, err := s.engine.ResendOTC(requestContext(r), req.Email, otc.Purpose(req.Purpose))
	if err != nil {
		s.writeWindowError(w, win, err)
		return
	}
	writeJSON(w, http.StatusOK, s.window(win))
}

func (s *Server) handleOTCVerify(w http.ResponseWriter, r *http.Request) {
	var req otcRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := s.client(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	ctx := requestContext(r)
	if req.Location != "" {
		c.SetLocation(req.Location)
	} else {
		c.SetLocation(s.engine.Paths().SignIn)
	}
	if _, err := c.VerifyOTC(ctx, req.Email, req.Code, otc.Purpose(req.Purpose)); err != nil {
		writeError(w, err)
		return
	}
	s.waitResolved(ctx, c)
	writeJSON(w, http.StatusOK, sessionView(c))
}

// streamMessage is one frame of the countdown stream.
type streamMessage struct {
	Type      string       `json:"type"`
	State     string       `json:"state,omitempty"`
	ExpiresIn int          `json:"expires_in,omitempty"`
	ResendIn  int          `json:"resend_in,omitempty"`
	Resends   int          `json:"resends,omitempty"`
	Error     *errorBody   `json:"error,omitempty"`
	Session   *sessionBody `json:"session,omitempty"`
}

// streamCommand is sent by the browser over the countdown stream.
type streamCommand struct {
	Action string `json:"action"`
	Code   string `json:"code,omitempty"`
}

// handleOTCStream starts a live challenge for ?email=&purpose= and streams a
// snapshot on every tick. The browser sends verify and resend commands on the
// same connection. Closing the connection closes the challenge.
func (s *Server) handleOTCStream(w http.ResponseWriter, r *http.Request) {
	c, err := s.client(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	purpose, err := otc.ParsePurpose(r.URL.Query().Get("purpose"))
	if err != nil {
		writeError(w, goOnboard.ErrInvalidInput)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.InfoContext(r.Context(), "websocket accept failed", slog.Any("error", err))
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(requestContext(r))
	defer cancel()

	snaps := make(chan otc.Snapshot, streamBuffer)
	ch, err := c.StartChallenge(ctx, r.URL.Query().Get("email"), purpose, func(snap otc.Snapshot) {
		select {
		case snaps <- snap:
		default:
		}
	})
	if err != nil {
		_, kind, msg := classify(err)
		s.send(ctx, conn, streamMessage{Type: "error", Error: &errorBody{Kind: kind, Message: msg}})
		conn.Close(websocket.StatusPolicyViolation, "challenge not started")
		return
	}
	defer ch.Close()

	s.send(ctx, conn, snapshotMessage(ch.Snapshot()))
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snaps:
				if err := s.send(ctx, conn, snapshotMessage(snap)); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	for {
		var cmd streamCommand
		if err := wsjson.Read(ctx, conn, &cmd); err != nil {
			return
		}
		switch cmd.Action {
		case "verify":
			if err := ch.Verify(ctx, cmd.Code); err != nil {
				s.send(ctx, conn, challengeErrorMessage(err))
				continue
			}
			s.waitResolved(ctx, c)
			view := sessionView(c)
			s.send(ctx, conn, streamMessage{Type: "verified", Session: &view})
			conn.Close(websocket.StatusNormalClosure, "verified")
			return
		case "resend":
			if err := ch.Resend(ctx); err != nil {
				s.send(ctx, conn, challengeErrorMessage(err))
			}
		default:
			s.send(ctx, conn, streamMessage{Type: "error", Error: &errorBody{
				Kind:    goOnboard.KindInvalidInput.String(),
				Message: "Unknown action.",
			}})
		}
	}
}

func (s *Server) send(ctx context.Context, conn *websocket.Conn, msg streamMessage) error {
	ctx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, msg)
}

func snapshotMessage(snap otc.Snapshot) streamMessage {
	return streamMessage{
		Type:      "tick",
		State:     snap.State.String(),
		ExpiresIn: seconds(snap.ExpiresIn),
		ResendIn:  seconds(snap.ResendIn),
		Resends:   snap.Resends,
	}
}

func challengeErrorMessage(err error) streamMessage {
	kind := goOnboard.KindInternal
	msg := "Something went wrong."
	switch {
	case errors.Is(err, otc.ErrInvalidFormat):
		kind, msg = goOnboard.KindInvalidInput, "Enter the 6-digit code."
	case errors.Is(err, otc.ErrCodeExpired):
		kind, msg = goOnboard.KindAuthRejected, goOnboard.MessageOf(goOnboard.ErrCodeExpired)
	case errors.Is(err, otc.ErrCodeMismatch):
		kind, msg = goOnboard.KindAuthRejected, "The code is not correct."
	case errors.Is(err, otc.ErrCooldown):
		kind, msg = goOnboard.KindCooldown, "Please wait before requesting another code."
	case errors.Is(err, otc.ErrNotActive):
		kind, msg = goOnboard.KindInvalidInput, "This code is no longer active."
	default:
		if k := goOnboard.KindOf(err); k != goOnboard.KindInternal {
			kind, msg = k, goOnboard.MessageOf(err)
		}
	}
	return streamMessage{Type: "error", Error: &errorBody{Kind: kind.String(), Message: msg}}
}
