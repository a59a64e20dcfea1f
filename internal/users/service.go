package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/campusperks/backend/internal/auth"
	"github.com/campusperks/backend/internal/models"
	"github.com/campusperks/backend/internal/otp"
	"github.com/campusperks/backend/pkg/queue"
	"github.com/campusperks/backend/pkg/utils"
)

var (
	ErrDuplicateEmail = errors.New("email already registered")
	ErrNotFound       = errors.New("user not found")
	// ErrInvalidCredentials deliberately collapses absent, unverified and
	// wrong-password so the login surface leaks nothing.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// EmailEnqueuer hands outbound mail to the background worker.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Service implements the student-side identity workflows: registration with
// email OTP proof, login, and password reset.
type Service struct {
	store  Store
	otp    *otp.Service
	tokens *auth.JWTService
	emails EmailEnqueuer
	logger *zap.Logger
}

// NewService creates a users service.
func NewService(store Store, otpSvc *otp.Service, tokens *auth.JWTService, emails EmailEnqueuer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, otp: otpSvc, tokens: tokens, emails: emails, logger: logger}
}

// NormalizeEmail lower-cases and trims an email; email uniqueness is
// case-insensitive across the platform.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates an unverified user and issues a registration OTP. If an
// unverified user already owns the email, a fresh code is issued against the
// existing record instead of creating a second row.
func (s *Service) Register(ctx context.Context, email, password, fullName string) (*models.User, error) {
	email = NormalizeEmail(email)

	existing, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		if existing.EmailVerified {
			return nil, ErrDuplicateEmail
		}
		if err := s.issueRegistrationOTP(ctx, email); err != nil {
			return nil, err
		}
		return existing, nil
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &models.User{
		Email:    email,
		Password: hash,
		FullName: fullName,
		Role:     models.RoleStudent,
	}
	if err := s.store.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if err := s.issueRegistrationOTP(ctx, email); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) issueRegistrationOTP(ctx context.Context, email string) error {
	entry, err := s.otp.Issue(ctx, email, models.OTPPurposeRegistration, nil)
	if err != nil {
		return err
	}
	s.sendOTPEmail(ctx, models.EmailTypeRegistrationOTP, email, "Verify your CampusPerks email", entry.Code)
	return nil
}

// VerifyEmail consumes a registration OTP and flips the user to verified.
func (s *Service) VerifyEmail(ctx context.Context, email, code string) (*models.User, error) {
	email = NormalizeEmail(email)

	entry, err := s.otp.Consume(ctx, email, code, models.OTPPurposeRegistration)
	if err != nil {
		return nil, err
	}
	user, err := s.store.MarkEmailVerified(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("mark verified: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}
	if err := s.otp.MarkUsed(ctx, entry.ID); err != nil {
		// The identity flip already committed; a failed mark-used is logged,
		// never rolled back.
		s.logger.Error("mark otp used failed", zap.Error(err), zap.String("email", email))
	}
	return user, nil
}

// ResendOTP issues a fresh registration code subject to the cooldown window.
func (s *Service) ResendOTP(ctx context.Context, email string) error {
	email = NormalizeEmail(email)

	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return ErrNotFound
	}
	if user.EmailVerified {
		return ErrDuplicateEmail
	}
	entry, err := s.otp.Resend(ctx, email, models.OTPPurposeRegistration)
	if err != nil {
		return err
	}
	s.sendOTPEmail(ctx, models.EmailTypeRegistrationOTP, email, "Verify your CampusPerks email", entry.Code)
	return nil
}

// Login checks credentials and mints a session token. All failure modes
// collapse into ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = NormalizeEmail(email)

	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return "", nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil || !user.EmailVerified || !utils.CheckPassword(password, user.Password) {
		return "", nil, ErrInvalidCredentials
	}
	token, err := s.tokens.GenerateSession(user.ID, user.Email, string(user.Role))
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}
	return token, user, nil
}

// ForgotPassword issues a password-reset OTP. An unknown email is not
// revealed to the caller.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	email = NormalizeEmail(email)

	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		s.logger.Info("password reset requested for unknown email", zap.String("email", email))
		return nil
	}
	entry, err := s.otp.Reissue(ctx, email, models.OTPPurposeForgotPassword)
	if err != nil {
		return err
	}
	s.sendOTPEmail(ctx, models.EmailTypePasswordReset, email, "Your CampusPerks password reset code", entry.Code)
	return nil
}

// VerifyResetOTP consumes a forgot-password OTP and mints a short-lived
// reset proof. Reset codes are deleted on success rather than marked used.
func (s *Service) VerifyResetOTP(ctx context.Context, email, code string) (string, error) {
	email = NormalizeEmail(email)

	if _, err := s.otp.Consume(ctx, email, code, models.OTPPurposeForgotPassword); err != nil {
		return "", err
	}
	if err := s.otp.DeleteForEmail(ctx, email, models.OTPPurposeForgotPassword); err != nil {
		s.logger.Error("delete reset codes failed", zap.Error(err), zap.String("email", email))
	}
	token, err := s.tokens.GenerateReset(email)
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}
	return token, nil
}

// ResetPassword replaces the credential using a valid reset proof.
func (s *Service) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	email, err := s.tokens.ValidateReset(resetToken)
	if err != nil {
		return err
	}
	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	found, err := s.store.UpdatePassword(ctx, email, hash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if !found {
		return ErrNotFound
	}
	return nil
}

// EnsureAdmin creates the administrator account if it does not exist yet.
func (s *Service) EnsureAdmin(ctx context.Context, email, password, fullName string) error {
	email = NormalizeEmail(email)

	existing, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("lookup admin: %w", err)
	}
	if existing != nil {
		return nil
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	admin := &models.User{
		Email:         email,
		Password:      hash,
		FullName:      fullName,
		Role:          models.RoleAdmin,
		EmailVerified: true,
	}
	if err := s.store.Create(ctx, admin); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	s.logger.Info("admin account created", zap.String("email", email))
	return nil
}

// sendOTPEmail enqueues the code for delivery. Delivery problems never fail
// the flow that triggered them.
func (s *Service) sendOTPEmail(ctx context.Context, emailType, to, subject, code string) {
	body := fmt.Sprintf("<p>Your verification code is <strong>%s</strong>. It expires in a few minutes.</p>", code)
	if err := s.emails.EnqueueEmail(ctx, queue.EmailPayload{
		EmailType:      emailType,
		RecipientEmail: to,
		Subject:        subject,
		BodyHTML:       body,
	}); err != nil {
		s.logger.Error("enqueue email failed", zap.Error(err), zap.String("recipient", to), zap.String("type", emailType))
	}
}
