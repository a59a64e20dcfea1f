package offers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusperks/backend/internal/middleware"
	"github.com/campusperks/backend/pkg/response"
	"github.com/campusperks/backend/pkg/storage"
)

// OfferRequest is the body for POST /offers and PATCH /offers/:id.
type OfferRequest struct {
	Title           string     `json:"title" binding:"required"`
	Description     string     `json:"description"`
	DiscountPercent *float64   `json:"discount_percent" binding:"required"`
	Category        string     `json:"category" binding:"required"`
	ValidFrom       *time.Time `json:"valid_from"`
	ValidUntil      *time.Time `json:"valid_until"`
	UsageLimit      *int       `json:"usage_limit"`
}

// StatusRequest is the body for PATCH /offers/:id/status.
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// Handler handles offer HTTP endpoints.
type Handler struct {
	svc    *Service
	media  *storage.S3
	logger *zap.Logger
}

// NewHandler creates an offers handler. media may be nil when S3 is not configured.
func NewHandler(svc *Service, media *storage.S3, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, media: media, logger: logger}
}

func (r OfferRequest) params() CreateParams {
	p := CreateParams{
		Title:           r.Title,
		Description:     r.Description,
		DiscountPercent: *r.DiscountPercent,
		Category:        r.Category,
		ValidUntil:      r.ValidUntil,
		UsageLimit:      r.UsageLimit,
	}
	if r.ValidFrom != nil {
		p.ValidFrom = *r.ValidFrom
	}
	return p
}

func offerID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid offer id")
		return uuid.Nil, false
	}
	return id, true
}

// List handles GET /offers.
func (h *Handler) List(c *gin.Context) {
	offers, err := h.svc.ListPublic(c.Request.Context(), c.Query("category"))
	if err != nil {
		h.logger.Error("list offers", zap.Error(err))
		response.Internal(c, "failed to list offers")
		return
	}
	response.OK(c, gin.H{"offers": offers})
}

// Get handles GET /offers/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := offerID(c)
	if !ok {
		return
	}
	offer, err := h.svc.GetVisible(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "offer not found")
			return
		}
		h.logger.Error("get offer", zap.Error(err))
		response.Internal(c, "failed to load offer")
		return
	}
	response.OK(c, gin.H{"offer": offer})
}

// Create handles POST /offers.
func (h *Handler) Create(c *gin.Context) {
	brandID := c.MustGet(middleware.ContextAccountID).(uuid.UUID)
	var req OfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	offer, err := h.svc.Create(c.Request.Context(), brandID, req.params())
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidDiscount):
			response.BadRequest(c, "discount must be between 0 and 100")
		case errors.Is(err, ErrBrandNotApproved):
			response.Forbidden(c, "brand is not approved")
		default:
			h.logger.Error("create offer", zap.Error(err))
			response.Internal(c, "failed to create offer")
		}
		return
	}
	response.Created(c, gin.H{"offer": offer})
}

// Update handles PATCH /offers/:id.
func (h *Handler) Update(c *gin.Context) {
	brandID := c.MustGet(middleware.ContextAccountID).(uuid.UUID)
	id, ok := offerID(c)
	if !ok {
		return
	}
	var req OfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	offer, err := h.svc.Update(c.Request.Context(), id, brandID, req.params())
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidDiscount):
			response.BadRequest(c, "discount must be between 0 and 100")
		case errors.Is(err, ErrNotFound):
			response.NotFound(c, "offer not found")
		case errors.Is(err, ErrForbidden):
			response.Forbidden(c, "not your offer")
		default:
			h.logger.Error("update offer", zap.Error(err))
			response.Internal(c, "failed to update offer")
		}
		return
	}
	response.OK(c, gin.H{"offer": offer, "message": "offer updated and resubmitted for review"})
}

// SetStatus handles PATCH /offers/:id/status.
func (h *Handler) SetStatus(c *gin.Context) {
	brandID := c.MustGet(middleware.ContextAccountID).(uuid.UUID)
	id, ok := offerID(c)
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	offer, err := h.svc.SetStatus(c.Request.Context(), id, brandID, req.Status)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidStatus):
			response.BadRequest(c, "status must be active, inactive or expired")
		case errors.Is(err, ErrNotFound):
			response.NotFound(c, "offer not found")
		case errors.Is(err, ErrForbidden):
			response.Forbidden(c, "status change not allowed")
		default:
			h.logger.Error("set offer status", zap.Error(err))
			response.Internal(c, "failed to change status")
		}
		return
	}
	response.OK(c, gin.H{"offer": offer})
}

// Redeem handles POST /offers/:id/redeem.
func (h *Handler) Redeem(c *gin.Context) {
	id, ok := offerID(c)
	if !ok {
		return
	}
	offer, err := h.svc.Redeem(c.Request.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(c, "offer not found")
		case errors.Is(err, ErrNotActive):
			response.Conflict(c, "offer is not active")
		case errors.Is(err, ErrExpired):
			response.Gone(c, "offer has expired")
		case errors.Is(err, ErrUsageLimitReached):
			response.Conflict(c, "offer usage limit reached")
		default:
			h.logger.Error("redeem offer", zap.Error(err))
			response.Internal(c, "failed to redeem offer")
		}
		return
	}
	response.OK(c, gin.H{"offer": offer, "message": "offer redeemed"})
}

// ListMine handles GET /brands/me/offers.
func (h *Handler) ListMine(c *gin.Context) {
	brandID := c.MustGet(middleware.ContextAccountID).(uuid.UUID)
	offers, err := h.svc.ListByBrand(c.Request.Context(), brandID)
	if err != nil {
		h.logger.Error("list brand offers", zap.Error(err))
		response.Internal(c, "failed to list offers")
		return
	}
	response.OK(c, gin.H{"offers": offers})
}

// UploadImage handles POST /offers/:id/image (multipart form, field "image").
func (h *Handler) UploadImage(c *gin.Context) {
	if h.media == nil {
		response.Internal(c, "media storage not configured")
		return
	}
	brandID := c.MustGet(middleware.ContextAccountID).(uuid.UUID)
	id, ok := offerID(c)
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("image")
	if err != nil {
		response.BadRequest(c, "image file is required")
		return
	}
	if fileHeader.Size > storage.MaxImageFileSize {
		response.BadRequest(c, "file exceeds 5MB limit")
		return
	}
	contentType := fileHeader.Header.Get("Content-Type")
	if !storage.ValidateImageFileType(contentType, fileHeader.Filename) {
		response.BadRequest(c, "only jpeg, png and webp images are allowed")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("open upload", zap.Error(err))
		response.Internal(c, "failed to read upload")
		return
	}
	defer file.Close()

	if contentType == "" {
		contentType = storage.ContentTypeForFilename(fileHeader.Filename)
	}
	key := storage.OfferImageKey(id.String(), fileHeader.Filename)
	url, err := h.media.Upload(c.Request.Context(), key, contentType, file, true)
	if err != nil {
		h.logger.Error("upload offer image", zap.Error(err))
		response.Internal(c, "failed to upload image")
		return
	}
	if err := h.svc.SetImage(c.Request.Context(), id, brandID, url); err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			response.NotFound(c, "offer not found")
		case errors.Is(err, ErrForbidden):
			response.Forbidden(c, "not your offer")
		default:
			h.logger.Error("save offer image", zap.Error(err))
			response.Internal(c, "failed to save image")
		}
		return
	}
	response.OK(c, gin.H{"image_url": url})
}
