package domain

import "context"

type UserStatus string

const (
	UserStatusActive UserStatus = "active"
	UserStatusBanned UserStatus = "banned"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// ParseRole maps unknown roles to RoleUser.
func ParseRole(s string) Role {
	if Role(s) == RoleAdmin {
		return RoleAdmin
	}
	return RoleUser
}

type User struct {
	ID     string
	Email  string
	Role   Role
	Status UserStatus
}

// UserReader loads the stored role and moderation status of a registered user.
// Returns ErrUserNotFound for unknown ids.
type UserReader interface {
	GetByID(ctx context.Context, userID string) (*User, error)
}
