package admin

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusperks/backend/internal/brands"
	"github.com/campusperks/backend/internal/emaillogs"
	"github.com/campusperks/backend/internal/middleware"
	"github.com/campusperks/backend/internal/models"
	"github.com/campusperks/backend/internal/offers"
	"github.com/campusperks/backend/pkg/response"
)

// DecisionRequest is the optional body for approve/reject endpoints.
type DecisionRequest struct {
	Reason string `json:"reason"`
}

// Handler exposes the admin review surface: brand and offer decisions plus
// the email delivery log.
type Handler struct {
	brands *brands.Service
	offers *offers.Service
	emails *emaillogs.Repository
	logger *zap.Logger
}

// NewHandler creates an admin handler.
func NewHandler(brandSvc *brands.Service, offerSvc *offers.Service, emails *emaillogs.Repository, logger *zap.Logger) *Handler {
	return &Handler{brands: brandSvc, offers: offerSvc, emails: emails, logger: logger}
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func decisionReason(c *gin.Context) string {
	var req DecisionRequest
	// The body is optional; a missing or empty one means no reason given.
	_ = c.ShouldBindJSON(&req)
	return req.Reason
}

// ListBrands handles GET /admin/brands. Defaults to the pending queue.
func (h *Handler) ListBrands(c *gin.Context) {
	status := c.DefaultQuery("status", models.BrandStatusPending)
	list, err := h.brands.ListByStatus(c.Request.Context(), status)
	if err != nil {
		h.logger.Error("list brands", zap.Error(err))
		response.Internal(c, "failed to list brands")
		return
	}
	out := make([]models.BrandPublic, 0, len(list))
	for i := range list {
		out = append(out, list[i].ToPublic())
	}
	response.OK(c, gin.H{"brands": out})
}

// GetBrand handles GET /admin/brands/:id.
func (h *Handler) GetBrand(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	brand, err := h.brands.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, brands.ErrNotFound) {
			response.NotFound(c, "brand not found")
			return
		}
		h.logger.Error("get brand", zap.Error(err))
		response.Internal(c, "failed to load brand")
		return
	}
	response.OK(c, gin.H{"brand": brand})
}

// ApproveBrand handles POST /admin/brands/:id/approve.
func (h *Handler) ApproveBrand(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	actor := c.MustGet(middleware.ContextAccountID).(uuid.UUID)
	brand, err := h.brands.Approve(c.Request.Context(), id, actor, decisionReason(c))
	if err != nil {
		switch {
		case errors.Is(err, brands.ErrNotFound):
			response.NotFound(c, "brand not found")
		case errors.Is(err, brands.ErrAlreadyProcessed):
			response.Conflict(c, "brand already processed")
		default:
			h.logger.Error("approve brand", zap.Error(err))
			response.Internal(c, "failed to approve brand")
		}
		return
	}
	response.OK(c, gin.H{"brand": brand.ToPublic()})
}

// RejectBrand handles POST /admin/brands/:id/reject.
func (h *Handler) RejectBrand(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	actor := c.MustGet(middleware.ContextAccountID).(uuid.UUID)
	brand, err := h.brands.Reject(c.Request.Context(), id, actor, decisionReason(c))
	if err != nil {
		switch {
		case errors.Is(err, brands.ErrNotFound):
			response.NotFound(c, "brand not found")
		case errors.Is(err, brands.ErrAlreadyProcessed):
			response.Conflict(c, "brand already processed")
		default:
			h.logger.Error("reject brand", zap.Error(err))
			response.Internal(c, "failed to reject brand")
		}
		return
	}
	response.OK(c, gin.H{"brand": brand.ToPublic()})
}

// ListPendingOffers handles GET /admin/offers.
func (h *Handler) ListPendingOffers(c *gin.Context) {
	list, err := h.offers.ListPendingApproval(c.Request.Context())
	if err != nil {
		h.logger.Error("list pending offers", zap.Error(err))
		response.Internal(c, "failed to list offers")
		return
	}
	response.OK(c, gin.H{"offers": list})
}

// ApproveOffer handles POST /admin/offers/:id/approve.
func (h *Handler) ApproveOffer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	actor := c.MustGet(middleware.ContextAccountID).(uuid.UUID)
	offer, err := h.offers.Approve(c.Request.Context(), id, actor)
	if err != nil {
		switch {
		case errors.Is(err, offers.ErrNotFound):
			response.NotFound(c, "offer not found")
		case errors.Is(err, offers.ErrAlreadyApproved):
			response.Conflict(c, "offer already approved")
		default:
			h.logger.Error("approve offer", zap.Error(err))
			response.Internal(c, "failed to approve offer")
		}
		return
	}
	response.OK(c, gin.H{"offer": offer})
}

// RejectOffer handles POST /admin/offers/:id/reject.
func (h *Handler) RejectOffer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	actor := c.MustGet(middleware.ContextAccountID).(uuid.UUID)
	offer, err := h.offers.Reject(c.Request.Context(), id, actor, decisionReason(c))
	if err != nil {
		if errors.Is(err, offers.ErrNotFound) {
			response.NotFound(c, "offer not found")
			return
		}
		h.logger.Error("reject offer", zap.Error(err))
		response.Internal(c, "failed to reject offer")
		return
	}
	response.OK(c, gin.H{"offer": offer})
}

// ListEmails handles GET /admin/emails.
func (h *Handler) ListEmails(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	list, err := h.emails.List(c.Request.Context(), c.Query("status"), limit)
	if err != nil {
		h.logger.Error("list email logs", zap.Error(err))
		response.Internal(c, "failed to list email logs")
		return
	}
	response.OK(c, gin.H{"emails": list})
}
