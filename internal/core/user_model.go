package core

import (
	"context"
	"time"
)

// Role is a user's permission group.
type Role string

const (
	RoleAdmin            Role = "ADMIN"
	RoleWarehouseManager Role = "WAREHOUSE_MANAGER"
	RoleCustomer         Role = "CUSTOMER"
	RoleDispatcher       Role = "DISPATCHER"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RoleWarehouseManager, RoleCustomer, RoleDispatcher:
		return r, nil
	}
	return "", invalid("role", "unknown role %q", s)
}

// IsStaff reports whether the role may move stock and manage containers.
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleWarehouseManager
}

// User represents an authenticated system user.
type User struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserInput is the input for creating a user.
type UserInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Role      Role
}

// UserService provides user lookup and credential checks.
type UserService interface {
	CreateUser(ctx context.Context, input UserInput) (*User, error)

	// GetByEmail finds an active user by email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// GetByID returns a user by primary key.
	GetByID(ctx context.Context, userID int) (*User, error)

	// Authenticate returns the active user matching email and password.
	Authenticate(ctx context.Context, email, password string) (*User, error)
}
