package models

import (
	"time"
)

// Onboarding stages a new identity walks through, in order.
const (
	StagePending       = "pending"
	StageEmailVerified = "email_verified"
	StageProfileSetup  = "profile_setup"
	StageCompleted     = "completed"
)

// Auth providers.
const (
	ProviderEmail  = "email"
	ProviderGoogle = "google"
)

// Roles. The stored role is display-only; admin capability is decided by the
// configured email allow-list, never by this field.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Account statuses.
const (
	StatusActive    = "active"
	StatusInactive  = "inactive"
	StatusSuspended = "suspended"
)

// User represents one login identity.
type User struct {
	BaseModel
	Email           string           `gorm:"uniqueIndex" json:"email"`
	PasswordHash    string           `json:"-"`
	AuthProvider    string           `json:"auth_provider"`
	GoogleID        string           `gorm:"index" json:"-"`
	OnboardingStage string           `json:"onboarding_stage"`
	EmailVerified   bool             `json:"email_verified"`
	Role            string           `json:"role"`
	Status          string           `json:"status"`
	FailedLogins    int              `json:"-"`
	LockedUntil     *time.Time       `json:"-"`
	RefreshToken    string           `json:"-"`
	Profile         *CustomerProfile `json:"profile,omitempty"`
	Orders          []Order          `json:"orders,omitempty"`
}

// Locked reports whether password logins are currently rejected.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && u.LockedUntil.After(now)
}
