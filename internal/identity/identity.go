// Package identity carries the authenticated caller through the request
// and decides who may act as an admin.  Workflow operations receive the
// Principal as an explicit argument; nothing here reads global state.
package identity

import (
	"context"
	"errors"
	"strconv"
)

// Roles persisted in users.role.
const (
	RolePlayer = "PLAYER"
	RoleAdmin  = "ADMIN"
)

// ErrUnknownUser is returned by a RoleLookup when the user no longer exists.
var ErrUnknownUser = errors.New("unknown user")

// Principal is the authenticated caller of one request.  The zero value
// is an anonymous caller.
type Principal struct {
	UserID uint64 `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role"`
}

// Authenticated reports whether p identifies a signed-in user.
func (p Principal) Authenticated() bool { return p.UserID != 0 }

// Subject renders the user id the way it appears in the JWT "sub" claim.
func (p Principal) Subject() string {
	if p.UserID == 0 {
		return "guest"
	}
	return strconv.FormatUint(p.UserID, 10)
}

type principalKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the principal stored by WithPrincipal, or the
// anonymous principal.
func FromContext(ctx context.Context) Principal {
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}
