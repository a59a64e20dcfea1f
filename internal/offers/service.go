package offers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusperks/backend/internal/models"
	"github.com/campusperks/backend/pkg/queue"
)

var (
	ErrNotFound        = errors.New("offer not found")
	ErrInvalidDiscount = errors.New("discount must be between 0 and 100")
	// Redemption failure kinds, in guard order.
	ErrNotActive         = errors.New("offer is not active")
	ErrExpired           = errors.New("offer has expired")
	ErrUsageLimitReached = errors.New("offer usage limit reached")
	// ErrForbidden signals a write by someone other than the owning brand.
	ErrForbidden        = errors.New("not the offer owner")
	ErrInvalidStatus    = errors.New("invalid offer status")
	ErrAlreadyApproved  = errors.New("offer already approved")
	ErrBrandNotApproved = errors.New("brand is not approved")
)

// BrandDirectory resolves brand accounts for ownership and notification
// lookups. Returns (nil, nil) when the brand does not exist.
type BrandDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Brand, error)
}

// EmailEnqueuer hands outbound mail to the background worker.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload queue.EmailPayload) error
}

// Service implements the offer lifecycle: creation, review, redemption and
// listing. All hot-path mutation goes through single conditional updates in
// the store; the service only classifies the zero-row outcomes.
type Service struct {
	store  Store
	brands BrandDirectory
	emails EmailEnqueuer
	logger *zap.Logger
}

// NewService creates an offers service.
func NewService(store Store, brands BrandDirectory, emails EmailEnqueuer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, brands: brands, emails: emails, logger: logger}
}

// CreateParams are the brand-supplied offer fields.
type CreateParams struct {
	Title           string
	Description     string
	DiscountPercent float64
	Category        string
	ValidFrom       time.Time
	ValidUntil      *time.Time
	UsageLimit      *int
}

// Create publishes a new offer for review. It always starts unapproved and
// active; approval is what makes it publicly visible.
func (s *Service) Create(ctx context.Context, brandID uuid.UUID, p CreateParams) (*models.Offer, error) {
	if p.DiscountPercent < 0 || p.DiscountPercent > 100 {
		return nil, ErrInvalidDiscount
	}
	brand, err := s.brands.GetByID(ctx, brandID)
	if err != nil {
		return nil, fmt.Errorf("lookup brand: %w", err)
	}
	if brand == nil || !brand.IsApproved {
		return nil, ErrBrandNotApproved
	}
	if p.ValidFrom.IsZero() {
		p.ValidFrom = time.Now()
	}
	offer := &models.Offer{
		BrandID:         brandID,
		Title:           p.Title,
		Description:     p.Description,
		DiscountPercent: p.DiscountPercent,
		Category:        p.Category,
		Status:          models.OfferStatusActive,
		ValidFrom:       p.ValidFrom,
		ValidUntil:      p.ValidUntil,
		UsageLimit:      p.UsageLimit,
	}
	if err := s.store.Create(ctx, offer); err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	return offer, nil
}

// Update rewrites the offer's fields and sends it back through review. Only
// the owning brand may update; an edit never carries the old approval over.
func (s *Service) Update(ctx context.Context, id, brandID uuid.UUID, p CreateParams) (*models.Offer, error) {
	if p.DiscountPercent < 0 || p.DiscountPercent > 100 {
		return nil, ErrInvalidDiscount
	}
	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup offer: %w", err)
	}
	if existing == nil {
		return nil, ErrNotFound
	}
	if existing.BrandID != brandID {
		return nil, ErrForbidden
	}
	existing.Title = p.Title
	existing.Description = p.Description
	existing.DiscountPercent = p.DiscountPercent
	existing.Category = p.Category
	if !p.ValidFrom.IsZero() {
		existing.ValidFrom = p.ValidFrom
	}
	existing.ValidUntil = p.ValidUntil
	existing.UsageLimit = p.UsageLimit
	updated, err := s.store.Update(ctx, existing)
	if err != nil {
		return nil, fmt.Errorf("update offer: %w", err)
	}
	if updated == nil {
		return nil, ErrNotFound
	}
	return updated, nil
}

// SetStatus lets the owning brand move an offer between active, inactive and
// expired. A rejected offer stays rejected until an admin approves it again.
func (s *Service) SetStatus(ctx context.Context, id, brandID uuid.UUID, status string) (*models.Offer, error) {
	switch status {
	case models.OfferStatusActive, models.OfferStatusInactive, models.OfferStatusExpired:
	default:
		return nil, ErrInvalidStatus
	}
	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup offer: %w", err)
	}
	if existing == nil {
		return nil, ErrNotFound
	}
	if existing.BrandID != brandID {
		return nil, ErrForbidden
	}
	changed, err := s.store.SetStatus(ctx, id, brandID, status)
	if err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	if !changed {
		// Owner and existence already checked; the remaining guard is the
		// sticky rejected state.
		return nil, ErrForbidden
	}
	return s.store.GetByID(ctx, id)
}

// Redeem consumes one use of the offer. The increment is a single
// conditional update; when it affects zero rows the offer is re-read once to
// name the reason.
func (s *Service) Redeem(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	now := time.Now()
	offer, err := s.store.Redeem(ctx, id, now)
	if err != nil {
		return nil, fmt.Errorf("redeem offer: %w", err)
	}
	if offer != nil {
		return offer, nil
	}
	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup offer: %w", err)
	}
	switch {
	case existing == nil || !existing.IsApproved:
		// Unapproved offers are not publicly visible, so they read as absent.
		return nil, ErrNotFound
	case existing.Status != models.OfferStatusActive:
		return nil, ErrNotActive
	case existing.ValidUntil != nil && !existing.ValidUntil.After(now):
		return nil, ErrExpired
	case existing.UsageExhausted():
		return nil, ErrUsageLimitReached
	default:
		return nil, fmt.Errorf("redeem conflict on offer %s", id)
	}
}

// Approve marks the offer reviewed and publicly listable. Approving a
// rejected offer restores it to active.
func (s *Service) Approve(ctx context.Context, id, actor uuid.UUID) (*models.Offer, error) {
	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup offer: %w", err)
	}
	if existing == nil {
		return nil, ErrNotFound
	}
	if existing.IsApproved {
		return nil, ErrAlreadyApproved
	}
	offer, err := s.store.Approve(ctx, id, actor)
	if err != nil {
		return nil, fmt.Errorf("approve offer: %w", err)
	}
	if offer == nil {
		return nil, ErrNotFound
	}
	s.notifyBrand(ctx, offer, models.EmailTypeOfferApproved, "Your offer was approved",
		fmt.Sprintf("<p>Your offer <strong>%s</strong> is now live.</p>", offer.Title))
	return offer, nil
}

// Reject pulls the offer from circulation. The rejected status is sticky
// against the owning brand's SetStatus.
func (s *Service) Reject(ctx context.Context, id, actor uuid.UUID, reason string) (*models.Offer, error) {
	offer, err := s.store.Reject(ctx, id, actor)
	if err != nil {
		return nil, fmt.Errorf("reject offer: %w", err)
	}
	if offer == nil {
		return nil, ErrNotFound
	}
	body := fmt.Sprintf("<p>Your offer <strong>%s</strong> was not approved.</p>", offer.Title)
	if reason != "" {
		body = fmt.Sprintf("<p>Your offer <strong>%s</strong> was not approved. Reason: %s</p>", offer.Title, reason)
	}
	s.notifyBrand(ctx, offer, models.EmailTypeOfferRejected, "Your offer was rejected", body)
	return offer, nil
}

// GetVisible returns the offer only if it passes the public visibility
// predicate; anything else reads as absent.
func (s *Service) GetVisible(ctx context.Context, id uuid.UUID) (*models.Offer, error) {
	offer, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup offer: %w", err)
	}
	if offer == nil || !offer.IsVisible(time.Now()) {
		return nil, ErrNotFound
	}
	return offer, nil
}

// GetOwned returns the offer for its owning brand regardless of visibility.
func (s *Service) GetOwned(ctx context.Context, id, brandID uuid.UUID) (*models.Offer, error) {
	offer, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup offer: %w", err)
	}
	if offer == nil {
		return nil, ErrNotFound
	}
	if offer.BrandID != brandID {
		return nil, ErrForbidden
	}
	return offer, nil
}

// ListPublic returns offers passing the visibility predicate, optionally
// filtered by category.
func (s *Service) ListPublic(ctx context.Context, category string) ([]models.Offer, error) {
	return s.store.ListVisible(ctx, category, time.Now())
}

// ListByBrand returns the brand's own offers, all states included.
func (s *Service) ListByBrand(ctx context.Context, brandID uuid.UUID) ([]models.Offer, error) {
	return s.store.ListByBrand(ctx, brandID)
}

// ListPendingApproval returns offers awaiting an admin decision.
func (s *Service) ListPendingApproval(ctx context.Context) ([]models.Offer, error) {
	return s.store.ListPendingApproval(ctx)
}

// SetImage stores the uploaded image URL, owner-guarded.
func (s *Service) SetImage(ctx context.Context, id, brandID uuid.UUID, imageURL string) error {
	existing, err := s.store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("lookup offer: %w", err)
	}
	if existing == nil {
		return ErrNotFound
	}
	if existing.BrandID != brandID {
		return ErrForbidden
	}
	ok, err := s.store.SetImage(ctx, id, brandID, imageURL)
	if err != nil {
		return fmt.Errorf("set image: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *Service) notifyBrand(ctx context.Context, offer *models.Offer, emailType, subject, body string) {
	brand, err := s.brands.GetByID(ctx, offer.BrandID)
	if err != nil || brand == nil {
		s.logger.Warn("brand lookup for notification failed", zap.Error(err), zap.String("brand_id", offer.BrandID.String()))
		return
	}
	if err := s.emails.EnqueueEmail(ctx, queue.EmailPayload{
		EmailType:      emailType,
		RecipientEmail: brand.Email,
		Subject:        subject,
		BodyHTML:       body,
	}); err != nil {
		// Notification delivery never rolls back the decision it follows.
		s.logger.Error("enqueue email failed", zap.Error(err), zap.String("recipient", brand.Email), zap.String("type", emailType))
	}
}
