package models

import (
	"time"

	"github.com/google/uuid"
)

// Brand approval status values derived from the audit columns.
const (
	BrandStatusPending  = "pending"
	BrandStatusApproved = "approved"
	BrandStatusRejected = "rejected"
)

// Brand represents a partner account. A brand row only exists once its email
// is verified; approval is a separate admin-gated step.
type Brand struct {
	ID              uuid.UUID  `json:"id"`
	Email           string     `json:"email"`
	Password        string     `json:"-"`
	Name            string     `json:"name"`
	Category        string     `json:"category"`
	Phone           string     `json:"phone,omitempty"`
	LogoURL         string     `json:"logo_url,omitempty"`
	EmailVerified   bool       `json:"email_verified"`
	IsApproved      bool       `json:"is_approved"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	ApprovedBy      *uuid.UUID `json:"approved_by,omitempty"`
	ApprovalReason  string     `json:"approval_reason,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectedBy      *uuid.UUID `json:"rejected_by,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ApprovalStatus returns pending, approved or rejected. Approval and
// rejection are mutually exclusive terminal states.
func (b *Brand) ApprovalStatus() string {
	switch {
	case b.RejectedAt != nil:
		return BrandStatusRejected
	case b.IsApproved:
		return BrandStatusApproved
	default:
		return BrandStatusPending
	}
}

// BrandPublic is Brand without credentials, for API responses.
type BrandPublic struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Name     string    `json:"name"`
	Category string    `json:"category"`
	Phone    string    `json:"phone,omitempty"`
	LogoURL  string    `json:"logo_url,omitempty"`
	Status   string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// ToPublic converts Brand to BrandPublic.
func (b *Brand) ToPublic() BrandPublic {
	return BrandPublic{
		ID:        b.ID,
		Email:     b.Email,
		Name:      b.Name,
		Category:  b.Category,
		Phone:     b.Phone,
		LogoURL:   b.LogoURL,
		Status:    b.ApprovalStatus(),
		CreatedAt: b.CreatedAt,
	}
}
