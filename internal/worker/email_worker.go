package worker

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusperks/backend/internal/mailer"
	"github.com/campusperks/backend/internal/models"
	"github.com/campusperks/backend/pkg/queue"
)

// LogStore records delivery outcomes.
type LogStore interface {
	Create(ctx context.Context, log *models.EmailLog) error
	MarkSent(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
}

// JobQueue is the slice of queue.Queue the processor consumes.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// EmailProcessor drains the email queue: every job gets a log row, a
// delivery attempt and a recorded outcome. Failed deliveries are retried by
// the queue until they land in the DLQ.
type EmailProcessor struct {
	queue  JobQueue
	sender mailer.Sender
	logs   LogStore
	logger *zap.Logger
}

// NewEmailProcessor creates an email worker.
func NewEmailProcessor(q JobQueue, sender mailer.Sender, logs LogStore, logger *zap.Logger) *EmailProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailProcessor{queue: q, sender: sender, logs: logs, logger: logger}
}

// Run consumes jobs until ctx is cancelled.
func (p *EmailProcessor) Run(ctx context.Context) error {
	p.logger.Info("email worker started")
	for {
		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				p.logger.Info("email worker stopping")
				return nil
			}
			p.logger.Error("dequeue failed", zap.Error(err))
			continue
		}
		if job == nil {
			continue
		}
		p.process(ctx, job)
	}
}

func (p *EmailProcessor) process(ctx context.Context, job *queue.Job) {
	if job.Type != queue.JobTypeEmail {
		p.logger.Warn("unknown job type", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		return
	}
	var payload queue.EmailPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		// Malformed payloads never become deliverable; drop, don't retry.
		p.logger.Error("invalid email payload", zap.String("job_id", job.ID), zap.Error(err))
		return
	}

	entry := &models.EmailLog{
		EmailType:      payload.EmailType,
		RecipientEmail: payload.RecipientEmail,
		Subject:        payload.Subject,
	}
	if err := p.logs.Create(ctx, entry); err != nil {
		p.logger.Error("create email log", zap.Error(err), zap.String("job_id", job.ID))
	}

	if err := p.sender.Send(ctx, payload.RecipientEmail, payload.Subject, payload.BodyHTML); err != nil {
		p.logger.Error("email delivery failed",
			zap.Error(err),
			zap.String("job_id", job.ID),
			zap.String("recipient", payload.RecipientEmail),
			zap.Int("attempt", job.Attempt))
		if entry.ID != uuid.Nil {
			if lerr := p.logs.MarkFailed(ctx, entry.ID, err.Error()); lerr != nil {
				p.logger.Error("mark email failed", zap.Error(lerr))
			}
		}
		if rerr := p.queue.Retry(ctx, job); rerr != nil && !errors.Is(rerr, context.Canceled) {
			p.logger.Error("retry enqueue failed", zap.Error(rerr), zap.String("job_id", job.ID))
		}
		return
	}

	if entry.ID != uuid.Nil {
		if err := p.logs.MarkSent(ctx, entry.ID); err != nil {
			p.logger.Error("mark email sent", zap.Error(err))
		}
	}
	p.logger.Info("email delivered",
		zap.String("job_id", job.ID),
		zap.String("type", payload.EmailType),
		zap.String("recipient", payload.RecipientEmail))
}
