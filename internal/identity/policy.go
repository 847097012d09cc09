package identity

import (
	"context"
	"errors"
	"fmt"
)

// RoleLookup resolves the persisted role of a user.
type RoleLookup interface {
	RoleOf(ctx context.Context, userID uint64) (string, error)
}

// Policy answers authorization questions against the persisted role, so a
// demoted admin loses access as soon as the row changes even while their
// access token is still valid.
type Policy struct {
	roles RoleLookup
}

// NewPolicy builds a Policy over roles.
func NewPolicy(roles RoleLookup) *Policy { return &Policy{roles: roles} }

// IsAdmin reports whether p is allowed to review payment claims and
// manage matches.  Anonymous callers and unknown users are never admins.
func (pol *Policy) IsAdmin(ctx context.Context, p Principal) (bool, error) {
	if !p.Authenticated() {
		return false, nil
	}
	role, err := pol.roles.RoleOf(ctx, p.UserID)
	if errors.Is(err, ErrUnknownUser) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup role of user %d: %w", p.UserID, err)
	}
	return role == RoleAdmin, nil
}

// StaticRoles is a RoleLookup backed by a map, used by tests and tooling.
type StaticRoles map[uint64]string

func (s StaticRoles) RoleOf(_ context.Context, userID uint64) (string, error) {
	r, ok := s[userID]
	if !ok {
		return "", ErrUnknownUser
	}
	return r, nil
}
