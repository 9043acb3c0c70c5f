package models

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// UserRole represents a user's role in the system
type UserRole string

const (
	RoleCustomer  UserRole = "customer"
	RoleOrganizer UserRole = "organizer"
	RoleAdmin     UserRole = "admin"
)

// User represents a registered user
type User struct {
	ID           int       `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	Name         string    `json:"name" db:"name"`
	Role         UserRole  `json:"role" db:"role"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// UserCreateRequest represents the data needed to register a user
type UserCreateRequest struct {
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	Password string   `json:"password"`
	Role     UserRole `json:"role"`
}

var userEmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// Validate validates user registration data
func (req *UserCreateRequest) Validate() error {
	if req.Email == "" {
		return errors.New("email is required")
	}

	if !userEmailRegex.MatchString(req.Email) {
		return errors.New("email format is invalid")
	}

	if strings.TrimSpace(req.Name) == "" {
		return errors.New("name is required")
	}

	if len(req.Password) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	switch req.Role {
	case "", RoleCustomer, RoleOrganizer, RoleAdmin:
	default:
		return errors.New("invalid role")
	}

	return nil
}

// CanManageEvents returns true for roles allowed to create and edit events
func (u *User) CanManageEvents() bool {
	return u.Role == RoleOrganizer || u.Role == RoleAdmin
}
