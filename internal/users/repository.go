package users

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusperks/backend/internal/models"
)

const userColumns = `id, email, password_hash, full_name, role, email_verified, created_at, updated_at`

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a users repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.Password, &u.FullName, &role, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

// Create inserts a new user.
func (r *Repository) Create(ctx context.Context, user *models.User) error {
	const q = `INSERT INTO users (id, email, password_hash, full_name, role, email_verified)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, user.Email, user.Password, user.FullName, string(user.Role), user.EmailVerified).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

// GetByEmail returns a user by email (case-insensitive), or (nil, nil).
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email = LOWER($1)`
	return scanUser(r.pool.QueryRow(ctx, q, email))
}

// GetByID returns a user by ID, or (nil, nil).
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, q, id))
}

// MarkEmailVerified flips email_verified to true and returns the updated row.
func (r *Repository) MarkEmailVerified(ctx context.Context, email string) (*models.User, error) {
	const q = `UPDATE users SET email_verified = TRUE, updated_at = NOW()
		WHERE email = LOWER($1)
		RETURNING ` + userColumns
	return scanUser(r.pool.QueryRow(ctx, q, email))
}

// UpdatePassword replaces the credential hash.
func (r *Repository) UpdatePassword(ctx context.Context, email, passwordHash string) (bool, error) {
	const q = `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE email = LOWER($1)`
	tag, err := r.pool.Exec(ctx, q, email, passwordHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
