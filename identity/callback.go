package identity

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/MrEthical07/goOnboard/session"
)

// Callback is the parsed redirect the identity service sends a caller back with after
// an OAuth round trip or an email link.
type Callback struct {
	AccessToken  string
	RefreshToken string
	// Type is the link type, e.g. "signup", "recovery", or empty for OAuth.
	Type      string
	ExpiresIn int
	// Role is the navigation role override carried on the query string. Empty when
	// absent or invalid.
	Role session.Role
}

// ParseCallback extracts tokens from rawURL. Tokens are read from the fragment when
// present there and from the query string otherwise. The role override is read from
// the query string first.
func ParseCallback(rawURL string) (Callback, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Callback{}, fmt.Errorf("%w: %v", ErrCallbackMissingTokens, err)
	}

	query := u.Query()
	fragment, err := url.ParseQuery(u.Fragment)
	if err != nil {
		fragment = url.Values{}
	}

	for _, vals := range []url.Values{fragment, query} {
		if msg := vals.Get("error_description"); msg != "" {
			return Callback{}, fmt.Errorf("%w: %s", ErrCallbackRejected, msg)
		}
		if code := vals.Get("error"); code != "" {
			return Callback{}, fmt.Errorf("%w: %s", ErrCallbackRejected, code)
		}
	}

	src := query
	if fragment.Get("access_token") != "" {
		src = fragment
	}

	cb := Callback{
		AccessToken:  src.Get("access_token"),
		RefreshToken: src.Get("refresh_token"),
		Type:         src.Get("type"),
	}
	if v := src.Get("expires_in"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cb.ExpiresIn = n
		}
	}

	roleRaw := query.Get("role")
	if roleRaw == "" {
		roleRaw = fragment.Get("role")
	}
	if role, err := session.ParseRole(roleRaw); err == nil {
		cb.Role = role
	}

	if cb.AccessToken == "" {
		return cb, ErrCallbackMissingTokens
	}
	return cb, nil
}
