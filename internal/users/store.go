package users

import (
	"context"

	"github.com/google/uuid"

	"github.com/campusperks/backend/internal/models"
)

// Store persists user accounts. Lookups return (nil, nil) when no row matches.
type Store interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// MarkEmailVerified flips email_verified and returns the updated row,
	// or (nil, nil) if no such user.
	MarkEmailVerified(ctx context.Context, email string) (*models.User, error)
	// UpdatePassword replaces the credential hash; returns false if no such user.
	UpdatePassword(ctx context.Context, email, passwordHash string) (bool, error)
}
