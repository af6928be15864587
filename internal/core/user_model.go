package core

import (
	"context"
	"time"
)

// User represents an authenticated system user scoped to a company.
type User struct {
	ID           int       `json:"id"`
	CompanyID    int       `json:"companyId"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Phone        *string   `json:"phone,omitempty"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Permissions  []string  `json:"permissions"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Principal returns the identity used for permission checks.
func (u *User) Principal() Principal {
	return Principal{
		UserID:      u.ID,
		CompanyID:   u.CompanyID,
		Role:        u.Role,
		Permissions: EffectivePermissions(u.Role, u.Permissions),
	}
}

// UserInput holds the fields required to create a user.
type UserInput struct {
	Username    string   `json:"username" validate:"required,min=3,max=60"`
	Email       string   `json:"email" validate:"required,email"`
	Phone       string   `json:"phone" validate:"omitempty,phone"`
	Password    string   `json:"password" validate:"required,min=8,max=72"`
	Role        Role     `json:"role" validate:"required,oneof=superadmin admin manager operator viewer"`
	Permissions []string `json:"permissions" validate:"omitempty,dive,required"`
}

// UserUpdate holds the mutable profile fields of a user.
type UserUpdate struct {
	Email       string   `json:"email" validate:"required,email"`
	Phone       string   `json:"phone" validate:"omitempty,phone"`
	Role        Role     `json:"role" validate:"required,oneof=superadmin admin manager operator viewer"`
	Permissions []string `json:"permissions" validate:"omitempty,dive,required"`
}

// UserService provides user management and credential checks.
type UserService interface {
	// CreateUser hashes the password and inserts the user into companyID.
	CreateUser(ctx context.Context, companyID int, input UserInput) (*User, error)

	// GetUsers returns the users of a company, active first.
	GetUsers(ctx context.Context, companyID int) ([]User, error)

	// GetByID returns a user by primary key.
	GetByID(ctx context.Context, userID int) (*User, error)

	// GetByUsername finds an active user by username (usernames are globally unique).
	GetByUsername(ctx context.Context, username string) (*User, error)

	UpdateUser(ctx context.Context, companyID, userID int, input UserUpdate) (*User, error)
	DeactivateUser(ctx context.Context, companyID, userID int) error
	ChangePassword(ctx context.Context, userID int, currentPassword, newPassword string) error

	// Authenticate returns the active user whose bcrypt hash matches password.
	Authenticate(ctx context.Context, username, password string) (*User, error)
}
