package domain

import "time"

// Role gates ticket visibility and status-mutation rights. It is fixed at
// account creation and immutable thereafter.
type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

// Valid reports whether the role is one of the two known values.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleAdmin
}

// User is the domain model for accounts that submit and manage tickets.
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	FullName     string
	Role         Role
	CreatedAt    time.Time
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
