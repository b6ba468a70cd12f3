// Package models defines server-side data models persisted in the database.
package models

import "time"

// Role classifies an account. It is an explicit attribute checked by pure
// functions rather than behavior hung off the user type.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	// RoleGuest marks accounts auto-provisioned when a share recipient
	// without an existing account claims a grant.
	RoleGuest Role = "guest"
)

type User struct {
	ID           string
	UserName     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// IsAdmin reports whether u holds the admin role. Nil-safe so callers can
// pass an unauthenticated (nil) actor.
func IsAdmin(u *User) bool {
	return u != nil && u.Role == RoleAdmin
}
