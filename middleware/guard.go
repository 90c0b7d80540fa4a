package middleware

import (
	"context"
	"net/http"

	goOnboard "github.com/MrEthical07/goOnboard"
	"github.com/MrEthical07/goOnboard/route"
	"github.com/MrEthical07/goOnboard/session"
)

// ReasonHeader carries the [route.Reason] of a guard redirect.
const ReasonHeader = "X-Onboard-Reason"

// ClientLookup finds the engine client of a request, typically from a cookie. It
// returns nil when the request carries no client.
type ClientLookup func(r *http.Request) *goOnboard.Client

type clientContextKey struct{}

// ClientFromContext returns the client admitted by [Guard].
func ClientFromContext(ctx context.Context) (*goOnboard.Client, bool) {
	c, ok := ctx.Value(clientContextKey{}).(*goOnboard.Client)
	return c, ok && c != nil
}

// Guard admits requests to view through [goOnboard.Client.Admit].
//
// A client still bootstrapping gets 503 with Retry-After so nothing conclusive is
// rendered. A redirect decision becomes 302 to its location with [ReasonHeader] set. An
// admitted request reaches next with the client in its context.
func Guard(engine *goOnboard.Engine, lookup ClientLookup, view route.View) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil || lookup == nil {
				http.Error(w, "service unavailable", http.StatusServiceUnavailable)
				return
			}

			c := lookup(r)
			var d route.Decision
			if c == nil {
				d = route.Admit(route.State{Bootstrapped: true}, view, engine.Paths())
			} else {
				d = c.Admit(view)
			}

			switch d.Outcome {
			case route.Allow:
				ctx := context.WithValue(r.Context(), clientContextKey{}, c)
				next.ServeHTTP(w, r.WithContext(ctx))
			case route.Redirect:
				w.Header().Set(ReasonHeader, d.Reason.String())
				http.Redirect(w, r, d.Location, http.StatusFound)
			default:
				w.Header().Set("Retry-After", "1")
				http.Error(w, "session loading", http.StatusServiceUnavailable)
			}
		})
	}
}

// RequireSeeker guards a seeker-only view at path.
func RequireSeeker(engine *goOnboard.Engine, lookup ClientLookup, path string) func(http.Handler) http.Handler {
	return Guard(engine, lookup, route.View{Path: path, RequiredRole: session.RoleSeeker})
}

// RequireProvider guards a provider-only view at path.
func RequireProvider(engine *goOnboard.Engine, lookup ClientLookup, path string) func(http.Handler) http.Handler {
	return Guard(engine, lookup, route.View{Path: path, RequiredRole: session.RoleProvider})
}

// RequireSession guards a view any signed-in caller may reach.
func RequireSession(engine *goOnboard.Engine, lookup ClientLookup, path string) func(http.Handler) http.Handler {
	return Guard(engine, lookup, route.View{Path: path})
}
