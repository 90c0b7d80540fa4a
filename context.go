package goOnboard

import (
	"context"

	"github.com/MrEthical07/goOnboard/session"
)

type clientIPContextKey struct{}
type navigationRoleContextKey struct{}
type clientKeyContextKey struct{}
type auditRoleContextKey struct{}

// WithClientIP attaches the caller's IP address to ctx. The Engine uses it for per-IP
// throttles and audit records.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

// WithNavigationRole attaches the role the caller arrived under, for example the role
// of the sign-in view they used. A session established with this context resolves
// against that role instead of the identity metadata role. Invalid roles are ignored.
func WithNavigationRole(ctx context.Context, role session.Role) context.Context {
	return context.WithValue(ctx, navigationRoleContextKey{}, role)
}

func clientIPFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

func navigationRoleFromContext(ctx context.Context) (session.Role, bool) {
	if ctx == nil {
		return "", false
	}

	role, _ := ctx.Value(navigationRoleContextKey{}).(session.Role)
	return role, role.Valid()
}

func withClientKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, clientKeyContextKey{}, key)
}

func clientKeyFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	key, _ := ctx.Value(clientKeyContextKey{}).(string)
	return key
}

func withAuditRole(ctx context.Context, role session.Role) context.Context {
	return context.WithValue(ctx, auditRoleContextKey{}, role)
}

func auditRoleFromContext(ctx context.Context) session.Role {
	if ctx == nil {
		return ""
	}

	role, _ := ctx.Value(auditRoleContextKey{}).(session.Role)
	return role
}
