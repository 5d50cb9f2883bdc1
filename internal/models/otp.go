package models

import "time"

// OTP purposes.
const (
	OTPPurposeEmailVerification = "email_verification"
	OTPPurposePasswordReset     = "password_reset"
)

// EmailOTP keeps track of one-time codes sent to an email address.
type EmailOTP struct {
	BaseModel
	Email     string    `gorm:"index" json:"email"`
	Code      string    `json:"-"`
	Purpose   string    `gorm:"index" json:"purpose"`
	ExpiresAt time.Time `json:"expires_at"`
	Used      bool      `json:"used"`
	Attempts  int       `json:"attempts"`
}
