package user

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Role represents user role in the system (matches user_role enum)
type Role string

const (
	RoleUser         Role = "user"
	RoleProfessional Role = "professional"
	RoleInfluencer   Role = "influencer"
	RoleAdmin        Role = "admin"
)

// User represents a user account
type User struct {
	ID           uuid.UUID `db:"id"`
	Email        string    `db:"email"`
	Name         string    `db:"name"`
	PasswordHash string    `db:"password_hash"`
	Role         Role      `db:"role"`
	IsBanned     bool      `db:"is_banned"`

	// Referral program
	ReferralCode string        `db:"referral_code"`
	ReferredBy   uuid.NullUUID `db:"referred_by"`

	LastLoginAt sql.NullTime `db:"last_login_at"`

	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// IsAdmin returns true if user is an admin
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// IsActive returns true if user is not banned
func (u *User) IsActive() bool {
	return !u.IsBanned
}

// ValidRoles returns list of valid roles for registration
func ValidRoles() []Role {
	return []Role{RoleUser, RoleProfessional, RoleInfluencer}
}

// IsValidRole checks if role is valid for registration
func IsValidRole(role string) bool {
	for _, r := range ValidRoles() {
		if string(r) == role {
			return true
		}
	}
	return false
}
