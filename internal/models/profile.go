package models

import (
	"time"

	"github.com/google/uuid"
)

// CustomerProfile is the delivery/contact identity attached to a completed
// onboarding. One per user.
type CustomerProfile struct {
	BaseModel
	UserID      uuid.UUID  `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	Mobile      string     `gorm:"uniqueIndex" json:"mobile"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Gender      string     `json:"gender"`
	Addresses   []Address  `gorm:"foreignKey:ProfileID" json:"addresses,omitempty"`
}

type Address struct {
	BaseModel
	ProfileID   uuid.UUID `gorm:"type:uuid;index" json:"profile_id"`
	Label       string    `json:"label"`
	AddressLine string    `json:"address_line"`
	Apartment   string    `json:"apartment"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	PostalCode  string    `json:"postal_code"`
	IsDefault   bool      `json:"is_default"`
	IsCurrent   bool      `json:"is_current"`
}
