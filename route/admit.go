package route

import "github.com/MrEthical07/goOnboard/session"

// Outcome is the kind of an admission decision.
type Outcome uint8

const (
	// Pending means session bootstrap has not finished; nothing conclusive may be shown.
	Pending Outcome = iota
	Allow
	Redirect
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Allow:
		return "allow"
	case Redirect:
		return "redirect"
	default:
		return "unknown"
	}
}

// Reason explains a redirect.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonNoSession
	ReasonWrongRole
)

func (r Reason) String() string {
	switch r {
	case ReasonNoSession:
		return "no_session"
	case ReasonWrongRole:
		return "wrong_role"
	default:
		return "none"
	}
}

// State is the caller-side input of [Admit].
type State struct {
	Bootstrapped bool
	HasSession   bool
	Role         session.Role
}

// View describes a guarded view. An empty RequiredRole admits any signed-in caller.
type View struct {
	Path         string
	RequiredRole session.Role
}

// Decision is the result of [Admit]. Location is set only for Redirect.
type Decision struct {
	Outcome  Outcome
	Reason   Reason
	Location string
}

// Admit decides whether state may reach view.
//
// A caller without a session is sent to the sign-in view of the view's required role.
// A caller holding the wrong role is sent to its own home rather than to sign-in, so a
// signed-in caller never bounces between sign-in and a guarded view.
func Admit(state State, view View, paths Paths) Decision {
	if !state.Bootstrapped {
		return Decision{Outcome: Pending}
	}
	if !state.HasSession {
		return Decision{
			Outcome:  Redirect,
			Reason:   ReasonNoSession,
			Location: paths.SignInFor(view.RequiredRole),
		}
	}
	if view.RequiredRole != "" && state.Role != view.RequiredRole {
		return Decision{
			Outcome:  Redirect,
			Reason:   ReasonWrongRole,
			Location: paths.HomeFor(state.Role),
		}
	}
	return Decision{Outcome: Allow}
}
