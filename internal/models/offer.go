package models

import (
	"time"

	"github.com/google/uuid"
)

// Offer status values. Rejected is distinct from inactive so an admin
// rejection can be told apart from a brand deactivation.
const (
	OfferStatusActive   = "active"
	OfferStatusInactive = "inactive"
	OfferStatusExpired  = "expired"
	OfferStatusRejected = "rejected"
)

// Offer is a discount published by a brand. It starts unapproved and only
// becomes publicly visible once an admin approves it.
type Offer struct {
	ID              uuid.UUID  `json:"id"`
	BrandID         uuid.UUID  `json:"brand_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	DiscountPercent float64    `json:"discount_percent"`
	ImageURL        string     `json:"image_url,omitempty"`
	Category        string     `json:"category"`
	Status          string     `json:"status"`
	IsApproved      bool       `json:"is_approved"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	ApprovedBy      *uuid.UUID `json:"approved_by,omitempty"`
	ValidFrom       time.Time  `json:"valid_from"`
	ValidUntil      *time.Time `json:"valid_until,omitempty"`
	UsageLimit      *int       `json:"usage_limit,omitempty"`
	UsedCount       int        `json:"used_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// IsVisible reports whether the offer appears in public listings:
// active, approved and not past its validity window.
func (o *Offer) IsVisible(now time.Time) bool {
	if o.Status != OfferStatusActive || !o.IsApproved {
		return false
	}
	return o.ValidUntil == nil || o.ValidUntil.After(now)
}

// UsageExhausted reports whether the usage ceiling has been reached.
func (o *Offer) UsageExhausted() bool {
	return o.UsageLimit != nil && o.UsedCount >= *o.UsageLimit
}
