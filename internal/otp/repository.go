package otp

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusperks/backend/internal/models"
)

// Repository handles otp_codes persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an OTP repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

// Create inserts a new OTP entry. Prior unused codes for the same email are
// left in place; the most recent wins on lookup.
func (r *Repository) Create(ctx context.Context, code *models.OTPCode) error {
	var payload []byte
	if code.Payload != nil {
		b, err := json.Marshal(code.Payload)
		if err != nil {
			return err
		}
		payload = b
	}
	const q = `INSERT INTO otp_codes (id, email, otp_code, purpose, payload, expires_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		RETURNING id, is_used, created_at`
	return r.pool.QueryRow(ctx, q, code.Email, code.Code, string(code.Purpose), payload, code.ExpiresAt).
		Scan(&code.ID, &code.IsUsed, &code.CreatedAt)
}

// FindLatestUnused returns the most recent unused entry for email+code+purpose.
func (r *Repository) FindLatestUnused(ctx context.Context, email, code string, purpose models.OTPPurpose) (*models.OTPCode, error) {
	const q = `SELECT id, email, otp_code, purpose, payload, expires_at, is_used, created_at
		FROM otp_codes
		WHERE email = $1 AND otp_code = $2 AND purpose = $3 AND is_used = FALSE
		ORDER BY created_at DESC
		LIMIT 1`
	return r.scanOne(r.pool.QueryRow(ctx, q, email, code, string(purpose)))
}

// LatestForEmail returns the most recent unused entry for email+purpose.
func (r *Repository) LatestForEmail(ctx context.Context, email string, purpose models.OTPPurpose) (*models.OTPCode, error) {
	const q = `SELECT id, email, otp_code, purpose, payload, expires_at, is_used, created_at
		FROM otp_codes
		WHERE email = $1 AND purpose = $2 AND is_used = FALSE
		ORDER BY created_at DESC
		LIMIT 1`
	return r.scanOne(r.pool.QueryRow(ctx, q, email, string(purpose)))
}

func (r *Repository) scanOne(row pgx.Row) (*models.OTPCode, error) {
	var o models.OTPCode
	var purpose string
	var payload []byte
	err := row.Scan(&o.ID, &o.Email, &o.Code, &purpose, &payload, &o.ExpiresAt, &o.IsUsed, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	o.Purpose = models.OTPPurpose(purpose)
	if len(payload) > 0 {
		var pb models.PendingBrand
		if err := json.Unmarshal(payload, &pb); err != nil {
			return nil, err
		}
		o.Payload = &pb
	}
	return &o, nil
}

// MarkUsed flips is_used to true. Idempotent: marking an already-used entry
// is a no-op, not an error.
func (r *Repository) MarkUsed(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE otp_codes SET is_used = TRUE WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

// DeleteForEmail removes all entries for email+purpose.
func (r *Repository) DeleteForEmail(ctx context.Context, email string, purpose models.OTPPurpose) error {
	const q = `DELETE FROM otp_codes WHERE email = $1 AND purpose = $2`
	_, err := r.pool.Exec(ctx, q, email, string(purpose))
	return err
}

// DeleteExpired removes entries past their expiry window.
func (r *Repository) DeleteExpired(ctx context.Context) error {
	const q = `DELETE FROM otp_codes WHERE expires_at < NOW()`
	_, err := r.pool.Exec(ctx, q)
	return err
}
