package brands

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusperks/backend/internal/models"
)

const brandColumns = `id, email, password_hash, name, category,
	COALESCE(phone,''), COALESCE(logo_url,''), email_verified, is_approved,
	approved_at, approved_by, COALESCE(approval_reason,''),
	rejected_at, rejected_by, COALESCE(rejection_reason,''),
	created_at, updated_at`

// Repository handles brand persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a brands repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func scanBrand(row pgx.Row) (*models.Brand, error) {
	var b models.Brand
	err := row.Scan(&b.ID, &b.Email, &b.Password, &b.Name, &b.Category,
		&b.Phone, &b.LogoURL, &b.EmailVerified, &b.IsApproved,
		&b.ApprovedAt, &b.ApprovedBy, &b.ApprovalReason,
		&b.RejectedAt, &b.RejectedBy, &b.RejectionReason,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

// Create inserts a new brand (already email-verified; approval pending).
func (r *Repository) Create(ctx context.Context, brand *models.Brand) error {
	const q = `INSERT INTO brands (id, email, password_hash, name, category, phone, email_verified)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, NULLIF($5,''), $6)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, brand.Email, brand.Password, brand.Name, brand.Category, brand.Phone, brand.EmailVerified).
		Scan(&brand.ID, &brand.CreatedAt, &brand.UpdatedAt)
}

// GetByEmail returns a brand by email (case-insensitive), or (nil, nil).
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.Brand, error) {
	const q = `SELECT ` + brandColumns + ` FROM brands WHERE email = LOWER($1)`
	return scanBrand(r.pool.QueryRow(ctx, q, email))
}

// GetByID returns a brand by ID, or (nil, nil).
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Brand, error) {
	const q = `SELECT ` + brandColumns + ` FROM brands WHERE id = $1`
	return scanBrand(r.pool.QueryRow(ctx, q, id))
}

// Approve flips the approval flag with audit fields. The rejected_at guard
// resolves a concurrent approve/reject race: whichever lands first wins and
// the loser sees zero rows.
func (r *Repository) Approve(ctx context.Context, id, actor uuid.UUID, reason string) (*models.Brand, error) {
	const q = `UPDATE brands
		SET is_approved = TRUE, approved_at = NOW(), approved_by = $2, approval_reason = NULLIF($3,''), updated_at = NOW()
		WHERE id = $1 AND rejected_at IS NULL
		RETURNING ` + brandColumns
	return scanBrand(r.pool.QueryRow(ctx, q, id, actor, reason))
}

// Reject records the rejection with audit fields, symmetric guard on approval.
func (r *Repository) Reject(ctx context.Context, id, actor uuid.UUID, reason string) (*models.Brand, error) {
	const q = `UPDATE brands
		SET rejected_at = NOW(), rejected_by = $2, rejection_reason = NULLIF($3,''), updated_at = NOW()
		WHERE id = $1 AND is_approved = FALSE
		RETURNING ` + brandColumns
	return scanBrand(r.pool.QueryRow(ctx, q, id, actor, reason))
}

// UpdateProfile applies partial profile changes.
func (r *Repository) UpdateProfile(ctx context.Context, id uuid.UUID, name, category, phone string) (*models.Brand, error) {
	const q = `UPDATE brands SET
		name = COALESCE(NULLIF($2,''), name),
		category = COALESCE(NULLIF($3,''), category),
		phone = COALESCE(NULLIF($4,''), phone),
		updated_at = NOW()
		WHERE id = $1
		RETURNING ` + brandColumns
	return scanBrand(r.pool.QueryRow(ctx, q, id, name, category, phone))
}

// UpdateLogo stores the uploaded logo URL.
func (r *Repository) UpdateLogo(ctx context.Context, id uuid.UUID, logoURL string) (bool, error) {
	const q = `UPDATE brands SET logo_url = $2, updated_at = NOW() WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, id, logoURL)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListByStatus returns brands filtered by approval status (pending, approved, rejected).
func (r *Repository) ListByStatus(ctx context.Context, status string) ([]models.Brand, error) {
	q := `SELECT ` + brandColumns + ` FROM brands `
	switch status {
	case models.BrandStatusApproved:
		q += `WHERE is_approved = TRUE`
	case models.BrandStatusRejected:
		q += `WHERE rejected_at IS NOT NULL`
	case models.BrandStatusPending:
		q += `WHERE is_approved = FALSE AND rejected_at IS NULL`
	}
	q += ` ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Brand
	for rows.Next() {
		b, err := scanBrand(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *b)
	}
	return list, rows.Err()
}
