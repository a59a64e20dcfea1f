package offers

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusperks/backend/internal/models"
)

const offerColumns = `id, brand_id, title, COALESCE(description,''), discount_percent,
	COALESCE(image_url,''), category, status, is_approved, approved_at, approved_by,
	valid_from, valid_until, usage_limit, used_count, created_at, updated_at`

// Repository handles offer persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an offers repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func scanOffer(row pgx.Row) (*models.Offer, error) {
	var o models.Offer
	err := row.Scan(&o.ID, &o.BrandID, &o.Title, &o.Description, &o.DiscountPercent,
		&o.ImageURL, &o.Category, &o.Status, &o.IsApproved, &o.ApprovedAt, &o.ApprovedBy,
		&o.ValidFrom, &o.ValidUntil, &o.UsageLimit, &o.UsedCount, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// Create inserts a new offer, unapproved and active.
func (r *Repository) Create(ctx context.Context, offer *models.Offer) error {
	const q = `INSERT INTO offers (id, brand_id, title, description, discount_percent, category, status, valid_from, valid_until, usage_limit)
		VALUES (gen_random_uuid(), $1, $2, NULLIF($3,''), $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q,
		offer.BrandID, offer.Title, offer.Description, offer.DiscountPercent, offer.Category,
		offer.Status, offer.ValidFrom, offer.ValidUntil, offer.UsageLimit).
		Scan(&offer.ID, &offer.CreatedAt, &offer.UpdatedAt)
}

// GetByID returns an offer by ID, or (nil, nil).
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	const q = `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`
	return scanOffer(r.pool.QueryRow(ctx, q, id))
}

// Update rewrites the mutable columns and sends the offer back through review.
func (r *Repository) Update(ctx context.Context, offer *models.Offer) (*models.Offer, error) {
	const q = `UPDATE offers SET
		title = $2, description = NULLIF($3,''), discount_percent = $4, category = $5,
		valid_from = $6, valid_until = $7, usage_limit = $8,
		is_approved = FALSE, approved_at = NULL, approved_by = NULL,
		updated_at = NOW()
		WHERE id = $1
		RETURNING ` + offerColumns
	return scanOffer(r.pool.QueryRow(ctx, q,
		offer.ID, offer.Title, offer.Description, offer.DiscountPercent, offer.Category,
		offer.ValidFrom, offer.ValidUntil, offer.UsageLimit))
}

// SetStatus changes the lifecycle status. The brand_id guard enforces
// ownership and the status guard keeps an admin rejection sticky.
func (r *Repository) SetStatus(ctx context.Context, id, brandID uuid.UUID, status string) (bool, error) {
	const q = `UPDATE offers SET status = $3, updated_at = NOW()
		WHERE id = $1 AND brand_id = $2 AND status <> 'rejected'`
	tag, err := r.pool.Exec(ctx, q, id, brandID, status)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// SetImage stores the uploaded image URL, owner-guarded.
func (r *Repository) SetImage(ctx context.Context, id, brandID uuid.UUID, imageURL string) (bool, error) {
	const q = `UPDATE offers SET image_url = $3, updated_at = NOW()
		WHERE id = $1 AND brand_id = $2`
	tag, err := r.pool.Exec(ctx, q, id, brandID, imageURL)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Approve flips approval with audit fields; a rejected offer returns to active.
func (r *Repository) Approve(ctx context.Context, id, actor uuid.UUID) (*models.Offer, error) {
	const q = `UPDATE offers SET
		is_approved = TRUE, approved_at = NOW(), approved_by = $2,
		status = CASE WHEN status = 'rejected' THEN 'active' ELSE status END,
		updated_at = NOW()
		WHERE id = $1
		RETURNING ` + offerColumns
	return scanOffer(r.pool.QueryRow(ctx, q, id, actor))
}

// Reject clears approval and forces the rejected status.
func (r *Repository) Reject(ctx context.Context, id, actor uuid.UUID) (*models.Offer, error) {
	const q = `UPDATE offers SET
		is_approved = FALSE, approved_at = NOW(), approved_by = $2,
		status = 'rejected', updated_at = NOW()
		WHERE id = $1
		RETURNING ` + offerColumns
	return scanOffer(r.pool.QueryRow(ctx, q, id, actor))
}

// Redeem increments used_count iff every redeemability condition holds in the
// same statement. Concurrent redeemers serialize on the row lock, so the
// usage ceiling can never be overshot.
func (r *Repository) Redeem(ctx context.Context, id uuid.UUID, now time.Time) (*models.Offer, error) {
	const q = `UPDATE offers SET used_count = used_count + 1, updated_at = NOW()
		WHERE id = $1
		  AND status = 'active'
		  AND is_approved = TRUE
		  AND (valid_until IS NULL OR valid_until > $2)
		  AND (usage_limit IS NULL OR used_count < usage_limit)
		RETURNING ` + offerColumns
	return scanOffer(r.pool.QueryRow(ctx, q, id, now))
}

// ListVisible returns publicly listable offers, newest first.
func (r *Repository) ListVisible(ctx context.Context, category string, now time.Time) ([]models.Offer, error) {
	q := `SELECT ` + offerColumns + ` FROM offers
		WHERE status = 'active' AND is_approved = TRUE
		  AND (valid_until IS NULL OR valid_until > $1)`
	args := []any{now}
	if category != "" {
		q += ` AND category = $2`
		args = append(args, category)
	}
	q += ` ORDER BY created_at DESC`
	return r.list(ctx, q, args...)
}

// ListByBrand returns all of a brand's offers regardless of visibility.
func (r *Repository) ListByBrand(ctx context.Context, brandID uuid.UUID) ([]models.Offer, error) {
	const q = `SELECT ` + offerColumns + ` FROM offers WHERE brand_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, q, brandID)
}

// ListPendingApproval returns offers awaiting an admin decision.
func (r *Repository) ListPendingApproval(ctx context.Context) ([]models.Offer, error) {
	const q = `SELECT ` + offerColumns + ` FROM offers
		WHERE is_approved = FALSE AND status <> 'rejected'
		ORDER BY created_at ASC`
	return r.list(ctx, q)
}

func (r *Repository) list(ctx context.Context, q string, args ...any) ([]models.Offer, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *o)
	}
	return list, rows.Err()
}
