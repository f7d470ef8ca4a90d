// Package models defines server-side data models persisted in the database.
package models

import "time"

// Role is fixed when the account is created.
type Role string

const (
	RoleUser  Role = "User"
	RoleAdmin Role = "Admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type User struct {
	ID           int64
	UserName     string
	Email        string
	PasswordHash []byte
	Role         Role
	CreatedAt    time.Time
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}
