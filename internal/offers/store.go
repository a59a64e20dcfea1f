package offers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/campusperks/backend/internal/models"
)

// Store persists offers. Lookups return (nil, nil) when no row matches.
// Redeem and SetStatus are guarded writes: the predicate and the mutation
// land in one statement, so zero affected rows is the authoritative signal
// that the guard filtered the row out.
type Store interface {
	Create(ctx context.Context, offer *models.Offer) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error)
	// Update rewrites the mutable columns and clears the approval flag, so
	// edited offers go back through review.
	Update(ctx context.Context, offer *models.Offer) (*models.Offer, error)
	// SetStatus changes the lifecycle status, conditioned on ownership and
	// on the offer not being in the admin-imposed rejected state.
	SetStatus(ctx context.Context, id, brandID uuid.UUID, status string) (bool, error)
	SetImage(ctx context.Context, id, brandID uuid.UUID, imageURL string) (bool, error)
	// Approve flips the approval flag with audit fields and restores the
	// status to active when the offer sat in rejected.
	Approve(ctx context.Context, id, actor uuid.UUID) (*models.Offer, error)
	// Reject clears approval and forces the rejected status.
	Reject(ctx context.Context, id, actor uuid.UUID) (*models.Offer, error)
	// Redeem is the single conditional increment of used_count. It returns
	// (nil, nil) when the offer is absent or any redeemability condition
	// fails; the service re-reads to classify.
	Redeem(ctx context.Context, id uuid.UUID, now time.Time) (*models.Offer, error)
	// ListVisible returns offers passing the public visibility predicate,
	// optionally narrowed to a category.
	ListVisible(ctx context.Context, category string, now time.Time) ([]models.Offer, error)
	ListByBrand(ctx context.Context, brandID uuid.UUID) ([]models.Offer, error)
	ListPendingApproval(ctx context.Context) ([]models.Offer, error)
}
