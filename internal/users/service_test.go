package users

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusperks/backend/internal/auth"
	"github.com/campusperks/backend/internal/models"
	"github.com/campusperks/backend/internal/otp"
	"github.com/campusperks/backend/pkg/queue"
)

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]*models.User{}}
}

func (f *fakeUserStore) Create(_ context.Context, u *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	cp := *u
	f.users[u.Email] = &cp
	return nil
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUserStore) MarkEmailVerified(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return nil, nil
	}
	u.EmailVerified = true
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) UpdatePassword(_ context.Context, email, hash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return false, nil
	}
	u.Password = hash
	return true, nil
}

// fakeOTPStore mirrors the SQL repository's most-recent-wins semantics.
type fakeOTPStore struct {
	mu      sync.Mutex
	entries []*models.OTPCode
}

func (f *fakeOTPStore) Create(_ context.Context, code *models.OTPCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	code.ID = uuid.New()
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now()
	}
	cp := *code
	f.entries = append(f.entries, &cp)
	return nil
}

func (f *fakeOTPStore) FindLatestUnused(_ context.Context, email, code string, purpose models.OTPPurpose) (*models.OTPCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.OTPCode
	for _, e := range f.entries {
		if e.Email == email && e.Code == code && e.Purpose == purpose && !e.IsUsed {
			if latest == nil || e.CreatedAt.After(latest.CreatedAt) {
				latest = e
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeOTPStore) LatestForEmail(_ context.Context, email string, purpose models.OTPPurpose) (*models.OTPCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.OTPCode
	for _, e := range f.entries {
		if e.Email == email && e.Purpose == purpose && !e.IsUsed {
			if latest == nil || e.CreatedAt.After(latest.CreatedAt) {
				latest = e
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeOTPStore) MarkUsed(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.ID == id {
			e.IsUsed = true
		}
	}
	return nil
}

func (f *fakeOTPStore) DeleteForEmail(_ context.Context, email string, purpose models.OTPPurpose) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.entries[:0]
	for _, e := range f.entries {
		if !(e.Email == email && e.Purpose == purpose) {
			kept = append(kept, e)
		}
	}
	f.entries = kept
	return nil
}

func (f *fakeOTPStore) DeleteExpired(_ context.Context) error { return nil }

// latestCode returns the newest unused code for email+purpose, as the email
// recipient would see it.
func (f *fakeOTPStore) latestCode(email string, purpose models.OTPPurpose) string {
	e, _ := f.LatestForEmail(context.Background(), email, purpose)
	if e == nil {
		return ""
	}
	return e.Code
}

func (f *fakeOTPStore) age(email string, purpose models.OTPPurpose, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.Email == email && e.Purpose == purpose {
			e.CreatedAt = e.CreatedAt.Add(-d)
		}
	}
}

func (f *fakeOTPStore) expire(email string, purpose models.OTPPurpose) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.entries {
		if e.Email == email && e.Purpose == purpose {
			e.ExpiresAt = time.Now().Add(-time.Minute)
		}
	}
}

type fakeEnqueuer struct {
	mu   sync.Mutex
	sent []queue.EmailPayload
}

func (f *fakeEnqueuer) EnqueueEmail(_ context.Context, p queue.EmailPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, p)
	return nil
}

type fixture struct {
	svc      *Service
	store    *fakeUserStore
	otpStore *fakeOTPStore
	emails   *fakeEnqueuer
	tokens   *auth.JWTService
}

func newFixture() *fixture {
	store := newFakeUserStore()
	otpStore := &fakeOTPStore{}
	emails := &fakeEnqueuer{}
	tokens := auth.NewJWTService("test-secret", 168, 15)
	otpSvc := otp.NewService(otpStore, 10, 60, nil)
	return &fixture{
		svc:      NewService(store, otpSvc, tokens, emails, nil),
		store:    store,
		otpStore: otpStore,
		emails:   emails,
		tokens:   tokens,
	}
}

func TestRegisterVerifyLogin(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	user, err := fx.svc.Register(ctx, "A@uni.edu", "secret123", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "a@uni.edu", user.Email, "email is normalized")
	assert.False(t, user.EmailVerified)
	require.NotEmpty(t, fx.emails.sent, "registration enqueues an OTP email")

	code := fx.otpStore.latestCode("a@uni.edu", models.OTPPurposeRegistration)
	require.Len(t, code, 6)

	verified, err := fx.svc.VerifyEmail(ctx, "a@uni.edu", code)
	require.NoError(t, err)
	assert.True(t, verified.EmailVerified)

	token, _, err := fx.svc.Login(ctx, "a@uni.edu", "secret123")
	require.NoError(t, err)
	claims, err := fx.tokens.ValidateSession(token)
	require.NoError(t, err)
	assert.Equal(t, string(models.RoleStudent), claims.Role)

	_, _, err = fx.svc.Login(ctx, "a@uni.edu", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginFailsClosedBeforeVerification(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	_, err := fx.svc.Register(ctx, "a@uni.edu", "secret123", "Alice")
	require.NoError(t, err)

	// Correct password but unverified email: same opaque error as a wrong
	// password, so the surface leaks nothing.
	_, _, err = fx.svc.Login(ctx, "a@uni.edu", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterDuplicate(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	first, err := fx.svc.Register(ctx, "a@uni.edu", "secret123", "Alice")
	require.NoError(t, err)

	// Unverified duplicate: the existing row is reused and a fresh code issued.
	fx.otpStore.age("a@uni.edu", models.OTPPurposeRegistration, 2*time.Minute)
	again, err := fx.svc.Register(ctx, "a@uni.edu", "other-pass", "Alice B")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	code := fx.otpStore.latestCode("a@uni.edu", models.OTPPurposeRegistration)
	_, err = fx.svc.VerifyEmail(ctx, "a@uni.edu", code)
	require.NoError(t, err)

	// Verified duplicate: hard conflict.
	_, err = fx.svc.Register(ctx, "a@uni.edu", "secret123", "Alice")
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestVerifyEmailSingleUse(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	_, err := fx.svc.Register(ctx, "a@uni.edu", "secret123", "Alice")
	require.NoError(t, err)
	code := fx.otpStore.latestCode("a@uni.edu", models.OTPPurposeRegistration)

	_, err = fx.svc.VerifyEmail(ctx, "a@uni.edu", code)
	require.NoError(t, err)

	_, err = fx.svc.VerifyEmail(ctx, "a@uni.edu", code)
	assert.ErrorIs(t, err, otp.ErrInvalidOrExpired)
}

func TestForgotPasswordFlow(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	_, err := fx.svc.Register(ctx, "a@uni.edu", "secret123", "Alice")
	require.NoError(t, err)
	code := fx.otpStore.latestCode("a@uni.edu", models.OTPPurposeRegistration)
	_, err = fx.svc.VerifyEmail(ctx, "a@uni.edu", code)
	require.NoError(t, err)

	require.NoError(t, fx.svc.ForgotPassword(ctx, "a@uni.edu"))
	resetCode := fx.otpStore.latestCode("a@uni.edu", models.OTPPurposeForgotPassword)
	require.Len(t, resetCode, 6)

	resetToken, err := fx.svc.VerifyResetOTP(ctx, "a@uni.edu", resetCode)
	require.NoError(t, err)

	require.NoError(t, fx.svc.ResetPassword(ctx, resetToken, "brand-new-pass"))

	_, _, err = fx.svc.Login(ctx, "a@uni.edu", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = fx.svc.Login(ctx, "a@uni.edu", "brand-new-pass")
	assert.NoError(t, err)
}

func TestForgotPasswordExpiredAndCooldown(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	_, err := fx.svc.Register(ctx, "a@uni.edu", "secret123", "Alice")
	require.NoError(t, err)
	code := fx.otpStore.latestCode("a@uni.edu", models.OTPPurposeRegistration)
	_, err = fx.svc.VerifyEmail(ctx, "a@uni.edu", code)
	require.NoError(t, err)

	require.NoError(t, fx.svc.ForgotPassword(ctx, "a@uni.edu"))
	resetCode := fx.otpStore.latestCode("a@uni.edu", models.OTPPurposeForgotPassword)

	// Past expiry the code is found but signals Expired, not InvalidOrExpired.
	fx.otpStore.expire("a@uni.edu", models.OTPPurposeForgotPassword)
	_, err = fx.svc.VerifyResetOTP(ctx, "a@uni.edu", resetCode)
	assert.ErrorIs(t, err, otp.ErrExpired)

	// Within the 60s cooldown a re-request is throttled.
	err = fx.svc.ForgotPassword(ctx, "a@uni.edu")
	assert.ErrorIs(t, err, otp.ErrCooldown)

	// After the window it succeeds.
	fx.otpStore.age("a@uni.edu", models.OTPPurposeForgotPassword, 61*time.Second)
	assert.NoError(t, fx.svc.ForgotPassword(ctx, "a@uni.edu"))
}

func TestForgotPasswordUnknownEmailNotRevealed(t *testing.T) {
	fx := newFixture()
	assert.NoError(t, fx.svc.ForgotPassword(context.Background(), "ghost@uni.edu"))
	assert.Empty(t, fx.emails.sent)
}

func TestResetPasswordRejectsSessionToken(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	_, err := fx.svc.Register(ctx, "a@uni.edu", "secret123", "Alice")
	require.NoError(t, err)
	code := fx.otpStore.latestCode("a@uni.edu", models.OTPPurposeRegistration)
	_, err = fx.svc.VerifyEmail(ctx, "a@uni.edu", code)
	require.NoError(t, err)

	session, _, err := fx.svc.Login(ctx, "a@uni.edu", "secret123")
	require.NoError(t, err)

	err = fx.svc.ResetPassword(ctx, session, "sneaky-pass")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestEnsureAdminIdempotent(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	require.NoError(t, fx.svc.EnsureAdmin(ctx, "admin@campusperks.io", "admin12345", "Admin"))
	require.NoError(t, fx.svc.EnsureAdmin(ctx, "admin@campusperks.io", "admin12345", "Admin"))

	admin, err := fx.store.GetByEmail(ctx, "admin@campusperks.io")
	require.NoError(t, err)
	require.NotNil(t, admin)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.True(t, admin.EmailVerified)
}
