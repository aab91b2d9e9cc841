package services

import "spendwise/internal/core"

// Actor is the authenticated user performing an operation.
type Actor struct {
	UserID string
	Role   core.Role
}

func ActorFor(p core.UserProfile) Actor {
	return Actor{UserID: p.ID, Role: p.Role}
}

func (a Actor) IsAdmin() bool {
	return a.Role == core.RoleAdmin
}

// CanAccess reports whether the actor may read or write userID's data.
func (a Actor) CanAccess(userID string) bool {
	if a.UserID == "" || userID == "" {
		return false
	}
	return a.UserID == userID || a.IsAdmin()
}
