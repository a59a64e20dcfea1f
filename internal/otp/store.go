package otp

import (
	"context"

	"github.com/google/uuid"

	"github.com/campusperks/backend/internal/models"
)

// Store persists one-time codes. Implementations return (nil, nil) when no
// matching entry exists so the service can map absence to its own error kinds.
type Store interface {
	Create(ctx context.Context, code *models.OTPCode) error
	// FindLatestUnused returns the most recent unused entry matching
	// email, code and purpose, regardless of expiry.
	FindLatestUnused(ctx context.Context, email, code string, purpose models.OTPPurpose) (*models.OTPCode, error)
	// LatestForEmail returns the most recent unused entry for email and
	// purpose (any code), used for cooldown checks and payload carry-over.
	LatestForEmail(ctx context.Context, email string, purpose models.OTPPurpose) (*models.OTPCode, error)
	// MarkUsed flips used to true; idempotent.
	MarkUsed(ctx context.Context, id uuid.UUID) error
	DeleteForEmail(ctx context.Context, email string, purpose models.OTPPurpose) error
	DeleteExpired(ctx context.Context) error
}
