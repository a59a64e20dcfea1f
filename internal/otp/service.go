package otp

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusperks/backend/internal/models"
)

var (
	// ErrInvalidOrExpired covers both "wrong code" and "no code" so callers
	// cannot enumerate outstanding codes.
	ErrInvalidOrExpired = errors.New("invalid or expired code")
	// ErrExpired is distinct so flows with a resend affordance can surface it.
	ErrExpired = errors.New("code expired")
	// ErrCooldown signals a resend inside the throttle window.
	ErrCooldown = errors.New("please wait before requesting another code")
)

// Service is the one-time code ledger: issuance with expiry, single-use
// consumption and resend throttling.
type Service struct {
	store    Store
	expiry   time.Duration
	cooldown time.Duration
	logger   *zap.Logger
}

// NewService creates an OTP service.
func NewService(store Store, expireMinutes, cooldownSeconds int, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:    store,
		expiry:   time.Duration(expireMinutes) * time.Minute,
		cooldown: time.Duration(cooldownSeconds) * time.Second,
		logger:   logger,
	}
}

// Issue generates a fresh 6-digit code for email+purpose with the configured
// expiry. Prior unused codes stay outstanding; the most recent wins.
func (s *Service) Issue(ctx context.Context, email string, purpose models.OTPPurpose, payload *models.PendingBrand) (*models.OTPCode, error) {
	// Passive cleanup on the write path; failure here never blocks issuance.
	if err := s.store.DeleteExpired(ctx); err != nil {
		s.logger.Warn("otp cleanup failed", zap.Error(err))
	}

	code, err := generateCode()
	if err != nil {
		return nil, fmt.Errorf("generate code: %w", err)
	}
	entry := &models.OTPCode{
		Email:     email,
		Code:      code,
		Purpose:   purpose,
		Payload:   payload,
		ExpiresAt: time.Now().Add(s.expiry),
	}
	if err := s.store.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("create otp: %w", err)
	}
	return entry, nil
}

// Resend issues a new code for email+purpose, rejecting with ErrCooldown if
// the most recent unused entry is younger than the cooldown window. Any
// pending payload is carried over onto the new entry.
func (s *Service) Resend(ctx context.Context, email string, purpose models.OTPPurpose) (*models.OTPCode, error) {
	latest, err := s.store.LatestForEmail(ctx, email, purpose)
	if err != nil {
		return nil, fmt.Errorf("lookup latest otp: %w", err)
	}
	var payload *models.PendingBrand
	if latest != nil {
		if time.Since(latest.CreatedAt) < s.cooldown {
			return nil, ErrCooldown
		}
		payload = latest.Payload
	}
	return s.Issue(ctx, email, purpose, payload)
}

// Reissue is Resend plus delete-before-issue, the idiom used by the
// forgot-password flow so stale reset codes do not accumulate.
func (s *Service) Reissue(ctx context.Context, email string, purpose models.OTPPurpose) (*models.OTPCode, error) {
	latest, err := s.store.LatestForEmail(ctx, email, purpose)
	if err != nil {
		return nil, fmt.Errorf("lookup latest otp: %w", err)
	}
	if latest != nil && time.Since(latest.CreatedAt) < s.cooldown {
		return nil, ErrCooldown
	}
	if err := s.store.DeleteForEmail(ctx, email, purpose); err != nil {
		return nil, fmt.Errorf("delete prior otp: %w", err)
	}
	return s.Issue(ctx, email, purpose, nil)
}

// Consume finds the most recent unused entry matching email+code+purpose.
// Absence returns ErrInvalidOrExpired; a matching but expired entry returns
// the entry alongside ErrExpired so callers can offer a resend path.
// The entry is NOT marked used here; callers decide between MarkUsed
// (registration) and DeleteForEmail (forgot-password).
func (s *Service) Consume(ctx context.Context, email, code string, purpose models.OTPPurpose) (*models.OTPCode, error) {
	entry, err := s.store.FindLatestUnused(ctx, email, code, purpose)
	if err != nil {
		return nil, fmt.Errorf("find otp: %w", err)
	}
	if entry == nil {
		return nil, ErrInvalidOrExpired
	}
	if entry.IsExpired() {
		return entry, ErrExpired
	}
	return entry, nil
}

// MarkUsed flips the entry to used; idempotent.
func (s *Service) MarkUsed(ctx context.Context, id uuid.UUID) error {
	return s.store.MarkUsed(ctx, id)
}

// DeleteForEmail bulk-removes entries for email+purpose.
func (s *Service) DeleteForEmail(ctx context.Context, email string, purpose models.OTPPurpose) error {
	return s.store.DeleteForEmail(ctx, email, purpose)
}

// generateCode returns a uniformly distributed 6-digit code in [100000, 999999].
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
