package models

import (
	"time"

	"github.com/google/uuid"
)

// OTPPurpose defines what an OTP code proves.
type OTPPurpose string

const (
	OTPPurposeRegistration   OTPPurpose = "registration"
	OTPPurposeForgotPassword OTPPurpose = "forgot_password"
)

// PendingBrand holds brand registration data attached to an OTP entry until
// the email is verified; the brand row is only created on verification.
type PendingBrand struct {
	Name         string `json:"name"`
	Category     string `json:"category"`
	Phone        string `json:"phone,omitempty"`
	PasswordHash string `json:"password_hash"`
}

// OTPCode is a one-time 6-digit code bound to an email and purpose.
// Multiple outstanding codes per email are legal; the most recent unused
// entry wins on lookup.
type OTPCode struct {
	ID        uuid.UUID     `json:"id"`
	Email     string        `json:"email"`
	Code      string        `json:"-"`
	Purpose   OTPPurpose    `json:"purpose"`
	Payload   *PendingBrand `json:"-"`
	ExpiresAt time.Time     `json:"expires_at"`
	IsUsed    bool          `json:"is_used"`
	CreatedAt time.Time     `json:"created_at"`
}

// IsExpired reports whether the code is past its expiry window.
func (o *OTPCode) IsExpired() bool {
	return time.Now().After(o.ExpiresAt)
}
