// Package auth holds the role model and the single authorization check used at
// every mutation boundary.
package auth

import (
	"fmt"

	"laundry-pickup/internal/models"
)

// Role is the one role granted to a user.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleDriver   Role = "driver"
	RoleAdmin    Role = "admin"
)

// ParseRole converts a stored or submitted role name.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleCustomer, RoleDriver, RoleAdmin:
		return r, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", models.ErrValidation, s)
}

func (r Role) String() string {
	return string(r)
}

// Session is the authenticated caller. It is built per request and passed
// explicitly to every service call.
type Session struct {
	UserID string
	Email  string
	Role   Role
}

// Is reports whether the session holds one of roles.
func (s Session) Is(roles ...Role) bool {
	for _, r := range roles {
		if s.Role == r {
			return true
		}
	}
	return false
}

// Require is the central authorization check. It fails with models.ErrForbidden
// for anonymous sessions and for roles outside the allowed set.
func Require(s Session, roles ...Role) error {
	if s.UserID == "" || !s.Is(roles...) {
		return models.ErrForbidden
	}
	return nil
}

// RequireSelfOr allows the owner of a resource or any of the given roles.
func RequireSelfOr(s Session, ownerID string, roles ...Role) error {
	if s.UserID != "" && s.UserID == ownerID {
		return nil
	}
	return Require(s, roles...)
}
