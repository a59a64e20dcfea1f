package emaillogs

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusperks/backend/internal/models"
)

const logColumns = `id, email_type, recipient_email, COALESCE(subject,''), status,
	sent_at, COALESCE(error_message,''), created_at`

// Repository records outbound emails and their delivery outcome.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an email log repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a pending log row before delivery is attempted.
func (r *Repository) Create(ctx context.Context, log *models.EmailLog) error {
	const q = `INSERT INTO email_logs (id, email_type, recipient_email, subject, status)
		VALUES (gen_random_uuid(), $1, $2, NULLIF($3,''), 'pending')
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, log.EmailType, log.RecipientEmail, log.Subject).
		Scan(&log.ID, &log.CreatedAt)
}

// MarkSent records a successful delivery.
func (r *Repository) MarkSent(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE email_logs SET status = 'sent', sent_at = NOW(), error_message = NULL WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

// MarkFailed records a delivery failure with the error message.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	const q = `UPDATE email_logs SET status = 'failed', error_message = $2 WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id, errMsg)
	return err
}

// List returns the most recent log rows, optionally filtered by status.
func (r *Repository) List(ctx context.Context, status string, limit int) ([]models.EmailLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := `SELECT ` + logColumns + ` FROM email_logs`
	args := []any{}
	if status != "" {
		q += ` WHERE status = $1`
		args = append(args, status)
	}
	args = append(args, limit)
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.EmailLog
	for rows.Next() {
		var l models.EmailLog
		if err := rows.Scan(&l.ID, &l.EmailType, &l.RecipientEmail, &l.Subject, &l.Status,
			&l.SentAt, &l.ErrorMessage, &l.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, l)
	}
	return list, rows.Err()
}
