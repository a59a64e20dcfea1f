package brands

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

// fakeBrandStore mirrors the SQL repository's guarded approve/reject
// semantics: the guard and the write happen under one lock, so a lost race
// surfaces as (nil, nil) exactly like a zero-row UPDATE.
type fakeBrandStore struct {
	mu     sync.Mutex
	brands map[uuid.UUID]*models.Brand
}

func newFakeBrandStore() *fakeBrandStore {
	return &fakeBrandStore{brands: map[uuid.UUID]*models.Brand{}}
}

func (f *fakeBrandStore) Create(_ context.Context, b *models.Brand) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b.ID = uuid.New()
	b.CreatedAt = time.Now()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	f.brands[b.ID] = &cp
	return nil
}

func (f *fakeBrandStore) GetByEmail(_ context.Context, email string) (*models.Brand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.brands {
		if b.Email == email {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeBrandStore) GetByID(_ context.Context, id uuid.UUID) (*models.Brand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.brands[id]
	if !ok {
		return nil, nil
	}
	cp := *b
	return &cp, nil
}

func (f *fakeBrandStore) Approve(_ context.Context, id, actor uuid.UUID, reason string) (*models.Brand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.brands[id]
	if !ok || b.RejectedAt != nil {
		return nil, nil
	}
	now := time.Now()
	b.IsApproved = true
	b.ApprovedAt = &now
	b.ApprovedBy = &actor
	b.ApprovalReason = reason
	b.UpdatedAt = now
	cp := *b
	return &cp, nil
}

func (f *fakeBrandStore) Reject(_ context.Context, id, actor uuid.UUID, reason string) (*models.Brand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.brands[id]
	if !ok || b.IsApproved {
		return nil, nil
	}
	now := time.Now()
	b.RejectedAt = &now
	b.RejectedBy = &actor
	b.RejectionReason = reason
	b.UpdatedAt = now
	cp := *b
	return &cp, nil
}

func (f *fakeBrandStore) UpdateProfile(_ context.Context, id uuid.UUID, name, category, phone string) (*models.Brand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.brands[id]
	if !ok {
		return nil, nil
	}
	if name != "" {
		b.Name = name
	}
	if category != "" {
		b.Category = category
	}
	if phone != "" {
		b.Phone = phone
	}
	b.UpdatedAt = time.Now()
	cp := *b
	return &cp, nil
}

func (f *fakeBrandStore) UpdateLogo(_ context.Context, id uuid.UUID, logoURL string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.brands[id]
	if !ok {
		return false, nil
	}
	b.LogoURL = logoURL
	return true, nil
}

func (f *fakeBrandStore) ListByStatus(_ context.Context, status string) ([]models.Brand, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var list []models.Brand
	for _, b := range f.brands {
		if status == "" || b.ApprovalStatus() == status {
			list = append(list, *b)
		}
	}
	return list, nil
}

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

func (f *fakeEnqueuer) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, p := range f.sent {
		out = append(out, p.EmailType)
	}
	return out
}

type fixture struct {
	svc    *Service
	store  *fakeBrandStore
	otps   *fakeOTPStore
	emails *fakeEnqueuer
	tokens *auth.JWTService
}

func newFixture() *fixture {
	store := newFakeBrandStore()
	otps := &fakeOTPStore{}
	emails := &fakeEnqueuer{}
	tokens := auth.NewJWTService("test-secret", 168, 15)
	return &fixture{
		svc:    NewService(store, otp.NewService(otps, 10, 60, nil), tokens, emails, nil),
		store:  store,
		otps:   otps,
		emails: emails,
		tokens: tokens,
	}
}

// registerAndVerify runs the onboarding flow up to the pending-approval brand row.
func (fx *fixture) registerAndVerify(t *testing.T, email, password, name string) *models.Brand {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, fx.svc.Register(ctx, email, password, name, "food", "+911234567890"))
	code := fx.otps.latestCode(email, models.OTPPurposeRegistration)
	require.Len(t, code, 6)
	brand, err := fx.svc.VerifyEmail(ctx, email, code)
	require.NoError(t, err)
	return brand
}

func TestBrandRowOnlyExistsAfterVerification(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	require.NoError(t, fx.svc.Register(ctx, "cafe@corp.com", "secret123", "Campus Cafe", "food", ""))
	existing, err := fx.store.GetByEmail(ctx, "cafe@corp.com")
	require.NoError(t, err)
	assert.Nil(t, existing, "registration alone must not create the brand row")

	code := fx.otps.latestCode("cafe@corp.com", models.OTPPurposeRegistration)
	brand, err := fx.svc.VerifyEmail(ctx, "cafe@corp.com", code)
	require.NoError(t, err)
	assert.True(t, brand.EmailVerified)
	assert.Equal(t, models.BrandStatusPending, brand.ApprovalStatus())
	assert.Equal(t, "Campus Cafe", brand.Name)
}

func TestBrandLoginGatedOnApproval(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	brand := fx.registerAndVerify(t, "cafe@corp.com", "secret123", "Campus Cafe")

	// Wrong password stays opaque regardless of approval state.
	_, _, err := fx.svc.Login(ctx, "cafe@corp.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = fx.svc.Login(ctx, "cafe@corp.com", "secret123")
	assert.ErrorIs(t, err, ErrNotApproved)

	admin := uuid.New()
	approved, err := fx.svc.Approve(ctx, brand.ID, admin, "looks good")
	require.NoError(t, err)
	assert.Equal(t, models.BrandStatusApproved, approved.ApprovalStatus())
	assert.Equal(t, &admin, approved.ApprovedBy)

	token, _, err := fx.svc.Login(ctx, "cafe@corp.com", "secret123")
	require.NoError(t, err)
	claims, err := fx.tokens.ValidateSession(token)
	require.NoError(t, err)
	assert.Equal(t, string(models.RoleBrand), claims.Role)

	assert.Contains(t, fx.emails.types(), models.EmailTypeBrandApproved)
}

func TestBrandLoginRejected(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	brand := fx.registerAndVerify(t, "cafe@corp.com", "secret123", "Campus Cafe")

	rejected, err := fx.svc.Reject(ctx, brand.ID, uuid.New(), "incomplete documents")
	require.NoError(t, err)
	assert.Equal(t, models.BrandStatusRejected, rejected.ApprovalStatus())

	_, _, err = fx.svc.Login(ctx, "cafe@corp.com", "secret123")
	assert.ErrorIs(t, err, ErrRejected)

	// Credentials are still checked first so rejection is not enumerable.
	_, _, err = fx.svc.Login(ctx, "cafe@corp.com", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestApproveRejectTerminalStates(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	admin := uuid.New()

	brand := fx.registerAndVerify(t, "cafe@corp.com", "secret123", "Campus Cafe")
	_, err := fx.svc.Approve(ctx, brand.ID, admin, "")
	require.NoError(t, err)

	// Rejecting an approved brand loses to the is_approved guard.
	_, err = fx.svc.Reject(ctx, brand.ID, admin, "changed my mind")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	other := fx.registerAndVerify(t, "pizza@corp.com", "secret123", "Pizza Hub")
	_, err = fx.svc.Reject(ctx, other.ID, admin, "spam")
	require.NoError(t, err)

	// Approving a rejected brand loses to the rejected_at guard.
	_, err = fx.svc.Approve(ctx, other.ID, admin, "")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	_, err = fx.svc.Approve(ctx, uuid.New(), admin, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConcurrentApproveRejectOneWins(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	brand := fx.registerAndVerify(t, "cafe@corp.com", "secret123", "Campus Cafe")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = fx.svc.Approve(ctx, brand.ID, uuid.New(), "")
	}()
	go func() {
		defer wg.Done()
		_, errs[1] = fx.svc.Reject(ctx, brand.ID, uuid.New(), "duplicate application")
	}()
	wg.Wait()

	var wins, losses int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case assert.ErrorIs(t, err, ErrAlreadyProcessed):
			losses++
		}
	}
	assert.Equal(t, 1, wins, "exactly one decision lands")
	assert.Equal(t, 1, losses, "the loser sees the race, not a silent overwrite")

	final, err := fx.store.GetByID(ctx, brand.ID)
	require.NoError(t, err)
	assert.NotEqual(t, models.BrandStatusPending, final.ApprovalStatus())
	// Terminal state is exactly one of the two, never both.
	assert.False(t, final.IsApproved && final.RejectedAt != nil)
}

func TestBrandRegisterDuplicate(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	fx.registerAndVerify(t, "cafe@corp.com", "secret123", "Campus Cafe")

	err := fx.svc.Register(ctx, "cafe@corp.com", "other-pass", "Copy Cafe", "food", "")
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	err = fx.svc.ResendOTP(ctx, "cafe@corp.com")
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestResendCarriesPendingBrandPayload(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	require.NoError(t, fx.svc.Register(ctx, "cafe@corp.com", "secret123", "Campus Cafe", "food", "+911234567890"))
	fx.otps.age("cafe@corp.com", models.OTPPurposeRegistration, 61*time.Second)
	require.NoError(t, fx.svc.ResendOTP(ctx, "cafe@corp.com"))

	code := fx.otps.latestCode("cafe@corp.com", models.OTPPurposeRegistration)
	brand, err := fx.svc.VerifyEmail(ctx, "cafe@corp.com", code)
	require.NoError(t, err)
	assert.Equal(t, "Campus Cafe", brand.Name, "payload survives the resend")

	_, err = fx.svc.Approve(ctx, brand.ID, uuid.New(), "")
	require.NoError(t, err)
	_, _, err = fx.svc.Login(ctx, "cafe@corp.com", "secret123")
	assert.NoError(t, err, "original password hash survives the resend")
}

func TestResendOTPThrottled(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	require.NoError(t, fx.svc.Register(ctx, "cafe@corp.com", "secret123", "Campus Cafe", "food", ""))
	err := fx.svc.ResendOTP(ctx, "cafe@corp.com")
	assert.ErrorIs(t, err, otp.ErrCooldown)
}

func TestVerifyRejectsCodeWithoutPendingBrand(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()

	// A registration code issued without a brand payload (the student flow)
	// must not materialize a brand.
	entry := &models.OTPCode{
		Email:     "student@uni.edu",
		Code:      "123456",
		Purpose:   models.OTPPurposeRegistration,
		ExpiresAt: time.Now().Add(10 * time.Minute),
	}
	require.NoError(t, fx.otps.Create(ctx, entry))

	_, err := fx.svc.VerifyEmail(ctx, "student@uni.edu", "123456")
	assert.ErrorIs(t, err, otp.ErrInvalidOrExpired)
}

func TestUpdateProfilePartial(t *testing.T) {
	fx := newFixture()
	ctx := context.Background()
	brand := fx.registerAndVerify(t, "cafe@corp.com", "secret123", "Campus Cafe")

	updated, err := fx.svc.UpdateProfile(ctx, brand.ID, "Campus Cafe & Bakery", "", "")
	require.NoError(t, err)
	assert.Equal(t, "Campus Cafe & Bakery", updated.Name)
	assert.Equal(t, "food", updated.Category, "empty fields leave columns untouched")

	_, err = fx.svc.UpdateProfile(ctx, uuid.New(), "Ghost", "", "")
	assert.ErrorIs(t, err, ErrNotFound)
}
