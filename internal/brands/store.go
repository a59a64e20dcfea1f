package brands

import (
	"context"

	"github.com/google/uuid"

	"github.com/campusperks/backend/internal/models"
)

// Store persists brand accounts. Lookups return (nil, nil) when no row
// matches; the guarded Approve/Reject writes return (nil, nil) when the
// guard filtered the row out, which the service maps to a lost race.
type Store interface {
	Create(ctx context.Context, brand *models.Brand) error
	GetByEmail(ctx context.Context, email string) (*models.Brand, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Brand, error)
	// Approve sets the approval flag plus audit fields, conditioned on the
	// brand never having been rejected. Zero affected rows means the brand
	// is absent or already rejected.
	Approve(ctx context.Context, id, actor uuid.UUID, reason string) (*models.Brand, error)
	// Reject sets the rejection audit fields, conditioned on the brand not
	// being approved.
	Reject(ctx context.Context, id, actor uuid.UUID, reason string) (*models.Brand, error)
	// UpdateProfile applies partial name/category/phone changes; empty
	// strings leave the column untouched.
	UpdateProfile(ctx context.Context, id uuid.UUID, name, category, phone string) (*models.Brand, error)
	UpdateLogo(ctx context.Context, id uuid.UUID, logoURL string) (bool, error)
	ListByStatus(ctx context.Context, status string) ([]models.Brand, error)
}
