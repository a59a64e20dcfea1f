package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailType for outbound notifications.
const (
	EmailTypeRegistrationOTP = "registration_otp"
	EmailTypePasswordReset   = "password_reset_otp"
	EmailTypeBrandApproved   = "brand_approved"
	EmailTypeBrandRejected   = "brand_rejected"
	EmailTypeOfferApproved   = "offer_approved"
	EmailTypeOfferRejected   = "offer_rejected"
)

// EmailLogStatus for delivery.
const (
	EmailLogStatusPending = "pending"
	EmailLogStatusSent    = "sent"
	EmailLogStatusFailed  = "failed"
)

// EmailLog records outbound emails and their delivery outcome.
type EmailLog struct {
	ID             uuid.UUID  `json:"id"`
	EmailType      string     `json:"email_type"`
	RecipientEmail string     `json:"recipient_email"`
	Subject        string     `json:"subject,omitempty"`
	Status         string     `json:"status"`
	SentAt         *time.Time `json:"sent_at,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}
