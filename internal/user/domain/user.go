package domain

import (
	"errors"
	"strings"
	"time"
)

// User is the core user entity. Email is stored normalized and doubles as the login identity.
type User struct {
	ID            string
	Email         string
	Name          string
	Roles         []string
	EmailVerified bool
	Status        UserStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// RoleUser is granted to every account on creation.
const RoleUser = "user"

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate normalizes the user for persistence and returns the first validation failure.
func (u *User) Validate() error {
	u.Email = NormalizeEmail(u.Email)
	if u.Email == "" {
		return errors.New("email is required")
	}
	if !strings.Contains(u.Email, "@") {
		return errors.New("email is invalid")
	}
	if u.Status == "" {
		u.Status = UserStatusActive
	}
	if len(u.Roles) == 0 {
		u.Roles = []string{RoleUser}
	}
	return nil
}

// HasRole reports whether the user holds role.
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
