package auth

import (
	"societyledger/internal/model"

	"github.com/google/uuid"
)

// Principal is the resolved identity of one request. It is built once per
// request from the user row and never mutated afterwards.
type Principal struct {
	ID                 uuid.UUID
	Name               string
	Email              string
	Role               model.UserRole
	AssignedSocietyIDs []uuid.UUID // Agent only
	HomeSocietyID      *uuid.UUID  // officer roles only
}

func (p Principal) IsAdmin() bool {
	return p.Role == model.RoleAdmin
}

// HasRole reports whether the principal holds one of roles
func (p Principal) HasRole(roles ...model.UserRole) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// CanReview covers every role that may move a bill or advance payment between statuses
func (p Principal) CanReview() bool {
	return p.IsAdmin() || p.Role == model.RoleAgent || p.Role.IsOfficer()
}

// CanSubmit covers the roles that may create bills and advance payment requests
func (p Principal) CanSubmit() bool {
	return p.IsAdmin() || p.Role.IsOfficer()
}
