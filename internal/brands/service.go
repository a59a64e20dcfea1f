package brands

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusperks/backend/internal/auth"
	"github.com/campusperks/backend/internal/models"
	"github.com/campusperks/backend/internal/otp"
	"github.com/campusperks/backend/internal/users"
	"github.com/campusperks/backend/pkg/queue"
	"github.com/campusperks/backend/pkg/utils"
)

var (
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrNotFound           = errors.New("brand not found")
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrNotApproved and ErrRejected are surfaced verbatim on brand login:
	// onboarding is a supervised business process, so the operator gets
	// actionable state instead of an opaque failure.
	ErrNotApproved = errors.New("brand approval pending")
	ErrRejected    = errors.New("brand application rejected")
	// ErrAlreadyProcessed signals a lost approve/reject race or a repeated
	// decision on a brand that already reached a terminal state.
	ErrAlreadyProcessed = errors.New("brand already processed")
)

// EmailEnqueuer hands outbound mail to the background worker.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Service implements brand onboarding and the admin approval state machine.
// Brand registration data lives in the OTP entry's payload until the email
// is verified; only then does the brand row exist.
type Service struct {
	store  Store
	otp    *otp.Service
	tokens *auth.JWTService
	emails EmailEnqueuer
	logger *zap.Logger
}

// NewService creates a brands service.
func NewService(store Store, otpSvc *otp.Service, tokens *auth.JWTService, emails EmailEnqueuer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, otp: otpSvc, tokens: tokens, emails: emails, logger: logger}
}

// Register stores the pending brand in an OTP payload and emails the code.
// The brand row is created on verification.
func (s *Service) Register(ctx context.Context, email, password, name, category, phone string) error {
	email = users.NormalizeEmail(email)

	existing, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("lookup brand: %w", err)
	}
	if existing != nil {
		return ErrDuplicateEmail
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	payload := &models.PendingBrand{
		Name:         name,
		Category:     category,
		Phone:        phone,
		PasswordHash: hash,
	}
	entry, err := s.otp.Issue(ctx, email, models.OTPPurposeRegistration, payload)
	if err != nil {
		return err
	}
	s.sendEmail(ctx, models.EmailTypeRegistrationOTP, email, "Verify your CampusPerks partner email",
		fmt.Sprintf("<p>Your verification code is <strong>%s</strong>.</p>", entry.Code))
	return nil
}

// VerifyEmail consumes the registration OTP and materializes the brand row
// from the pending payload, verified and awaiting admin approval.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) (*models.Brand, error) {
	email = users.NormalizeEmail(email)

	entry, err := s.otp.Consume(ctx, email, code, models.OTPPurposeRegistration)
	if err != nil {
		return nil, err
	}
	if entry.Payload == nil {
		// A registration code without brand data belongs to the user flow.
		return nil, otp.ErrInvalidOrExpired
	}
	if existing, err := s.store.GetByEmail(ctx, email); err != nil {
		return nil, fmt.Errorf("lookup brand: %w", err)
	} else if existing != nil {
		return nil, ErrDuplicateEmail
	}

	brand := &models.Brand{
		Email:         email,
		Password:      entry.Payload.PasswordHash,
		Name:          entry.Payload.Name,
		Category:      entry.Payload.Category,
		Phone:         entry.Payload.Phone,
		EmailVerified: true,
	}
	if err := s.store.Create(ctx, brand); err != nil {
		return nil, fmt.Errorf("create brand: %w", err)
	}
	if err := s.otp.MarkUsed(ctx, entry.ID); err != nil {
		s.logger.Error("mark otp used failed", zap.Error(err), zap.String("email", email))
	}
	return brand, nil
}

// ResendOTP re-issues the registration code, carrying the pending payload
// forward, subject to the cooldown window.
func (s *Service) ResendOTP(ctx context.Context, email string) error {
	email = users.NormalizeEmail(email)

	if existing, err := s.store.GetByEmail(ctx, email); err != nil {
		return fmt.Errorf("lookup brand: %w", err)
	} else if existing != nil {
		return ErrDuplicateEmail
	}
	entry, err := s.otp.Resend(ctx, email, models.OTPPurposeRegistration)
	if err != nil {
		return err
	}
	if entry.Payload == nil {
		return ErrNotFound
	}
	s.sendEmail(ctx, models.EmailTypeRegistrationOTP, email, "Verify your CampusPerks partner email",
		fmt.Sprintf("<p>Your verification code is <strong>%s</strong>.</p>", entry.Code))
	return nil
}

// Login checks credentials and approval state. Wrong password and unknown
// email stay opaque; pending and rejected are distinct, actionable states.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.Brand, error) {
	email = users.NormalizeEmail(email)

	brand, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, fmt.Errorf("lookup brand: %w", err)
	}
	if brand == nil || !utils.CheckPassword(password, brand.Password) {
		return "", nil, ErrInvalidCredentials
	}
	if brand.RejectedAt != nil {
		return "", nil, ErrRejected
	}
	if !brand.IsApproved {
		return "", nil, ErrNotApproved
	}
	token, err := s.tokens.GenerateSession(brand.ID, brand.Email, string(models.RoleBrand))
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}
	return token, brand, nil
}

// Approve moves a pending brand to the approved terminal state. The data
// layer's rejected_at guard decides concurrent approve/reject races; the
// loser surfaces ErrAlreadyProcessed.
func (s *Service) Approve(ctx context.Context, id, actor uuid.UUID, reason string) (*models.Brand, error) {
	brand, err := s.store.Approve(ctx, id, actor, reason)
	if err != nil {
		return nil, fmt.Errorf("approve brand: %w", err)
	}
	if brand == nil {
		return nil, s.classifyGuardMiss(ctx, id)
	}
	s.sendEmail(ctx, models.EmailTypeBrandApproved, brand.Email, "Your CampusPerks partner account is approved",
		fmt.Sprintf("<p>Welcome aboard, %s! You can now sign in and publish offers.</p>", brand.Name))
	return brand, nil
}

// Reject moves a non-approved brand to the rejected terminal state.
func (s *Service) Reject(ctx context.Context, id, actor uuid.UUID, reason string) (*models.Brand, error) {
	brand, err := s.store.Reject(ctx, id, actor, reason)
	if err != nil {
		return nil, fmt.Errorf("reject brand: %w", err)
	}
	if brand == nil {
		return nil, s.classifyGuardMiss(ctx, id)
	}
	s.sendEmail(ctx, models.EmailTypeBrandRejected, brand.Email, "Your CampusPerks partner application",
		fmt.Sprintf("<p>Unfortunately your application was not approved. Reason: %s</p>", reason))
	return brand, nil
}

// classifyGuardMiss distinguishes a missing brand from a lost race after a
// guarded update affected zero rows.
func (s *Service) classifyGuardMiss(ctx context.Context, id uuid.UUID) error {
	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("lookup brand: %w", err)
	}
	if existing == nil {
		return ErrNotFound
	}
	return ErrAlreadyProcessed
}

// GetByID returns a brand or ErrNotFound.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Brand, error) {
	brand, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup brand: %w", err)
	}
	if brand == nil {
		return nil, ErrNotFound
	}
	return brand, nil
}

// UpdateProfile applies partial name/category/phone changes.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, name, category, phone string) (*models.Brand, error) {
	brand, err := s.store.UpdateProfile(ctx, id, name, category, phone)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if brand == nil {
		return nil, ErrNotFound
	}
	return brand, nil
}

// UpdateLogo stores the uploaded logo URL.
func (s *Service) UpdateLogo(ctx context.Context, id uuid.UUID, logoURL string) error {
	found, err := s.store.UpdateLogo(ctx, id, logoURL)
	if err != nil {
		return fmt.Errorf("update logo: %w", err)
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

// ListByStatus returns brands filtered by approval status.
func (s *Service) ListByStatus(ctx context.Context, status string) ([]models.Brand, error) {
	return s.store.ListByStatus(ctx, status)
}

func (s *Service) sendEmail(ctx context.Context, emailType, to, subject, body string) {
	if err := s.emails.EnqueueEmail(ctx, queue.EmailPayload{
		EmailType:      emailType,
		RecipientEmail: to,
		Subject:        subject,
		BodyHTML:       body,
	}); err != nil {
		// Notification delivery never rolls back the state change it follows.
		s.logger.Error("enqueue email failed", zap.Error(err), zap.String("recipient", to), zap.String("type", emailType))
	}
}
