package brands

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusperks/backend/internal/middleware"
	"github.com/campusperks/backend/internal/otp"
	"github.com/campusperks/backend/pkg/response"
	"github.com/campusperks/backend/pkg/storage"
)

// RegisterRequest is the body for POST /brands/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	Name     string `json:"name" binding:"required"`
	Category string `json:"category" binding:"required"`
	Phone    string `json:"phone"`
}

// VerifyOTPRequest is the body for POST /brands/verify-otp.
type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,len=6"`
}

// EmailRequest is the body for POST /brands/resend-otp.
type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// LoginRequest is the body for POST /brands/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// UpdateProfileRequest is the body for PATCH /brands/me. Empty fields are left unchanged.
type UpdateProfileRequest struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Phone    string `json:"phone"`
}

// Handler handles brand HTTP endpoints.
type Handler struct {
	svc    *Service
	media  *storage.S3
	logger *zap.Logger
}

// NewHandler creates a brands handler. media may be nil when S3 is not configured.
func NewHandler(svc *Service, media *storage.S3, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, media: media, logger: logger}
}

// Register handles POST /brands/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	err := h.svc.Register(c.Request.Context(), req.Email, req.Password, req.Name, req.Category, req.Phone)
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			response.Conflict(c, "email already registered")
			return
		}
		h.logger.Error("register brand", zap.Error(err))
		response.Internal(c, "failed to register")
		return
	}
	response.Created(c, gin.H{"message": "verification code sent"})
}

// VerifyOTP handles POST /brands/verify-otp.
func (h *Handler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	brand, err := h.svc.VerifyEmail(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, otp.ErrExpired):
			response.Gone(c, "code expired, request a new one")
		case errors.Is(err, otp.ErrInvalidOrExpired):
			response.BadRequest(c, "invalid or expired code")
		case errors.Is(err, ErrDuplicateEmail):
			response.Conflict(c, "email already registered")
		default:
			h.logger.Error("verify brand otp", zap.Error(err))
			response.Internal(c, "failed to verify")
		}
		return
	}
	response.OK(c, gin.H{"brand": brand.ToPublic(), "message": "email verified, awaiting approval"})
}

// ResendOTP handles POST /brands/resend-otp.
func (h *Handler) ResendOTP(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.svc.ResendOTP(c.Request.Context(), req.Email); err != nil {
		switch {
		case errors.Is(err, otp.ErrCooldown):
			response.TooManyRequests(c, "please wait before requesting another code")
		case errors.Is(err, ErrNotFound):
			response.NotFound(c, "no pending registration for this email")
		case errors.Is(err, ErrDuplicateEmail):
			response.Conflict(c, "email already registered")
		default:
			h.logger.Error("resend brand otp", zap.Error(err))
			response.Internal(c, "failed to resend code")
		}
		return
	}
	response.OK(c, gin.H{"message": "verification code sent"})
}

// Login handles POST /brands/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	token, brand, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			response.Unauthorized(c, "invalid email or password")
		case errors.Is(err, ErrNotApproved):
			response.Forbidden(c, "account pending approval")
		case errors.Is(err, ErrRejected):
			response.Forbidden(c, "account application was rejected")
		default:
			h.logger.Error("brand login", zap.Error(err))
			response.Internal(c, "failed to login")
		}
		return
	}
	response.OK(c, gin.H{"token": token, "brand": brand.ToPublic()})
}

// Me handles GET /brands/me.
func (h *Handler) Me(c *gin.Context) {
	id := c.MustGet(middleware.ContextAccountID).(uuid.UUID)
	brand, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "brand not found")
			return
		}
		h.logger.Error("get brand", zap.Error(err))
		response.Internal(c, "failed to load profile")
		return
	}
	response.OK(c, gin.H{"brand": brand.ToPublic()})
}

// UpdateProfile handles PATCH /brands/me.
func (h *Handler) UpdateProfile(c *gin.Context) {
	id := c.MustGet(middleware.ContextAccountID).(uuid.UUID)
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	brand, err := h.svc.UpdateProfile(c.Request.Context(), id, req.Name, req.Category, req.Phone)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "brand not found")
			return
		}
		h.logger.Error("update brand profile", zap.Error(err))
		response.Internal(c, "failed to update profile")
		return
	}
	response.OK(c, gin.H{"brand": brand.ToPublic()})
}

// UploadLogo handles POST /brands/me/logo (multipart form, field "logo").
func (h *Handler) UploadLogo(c *gin.Context) {
	if h.media == nil {
		response.Internal(c, "media storage not configured")
		return
	}
	id := c.MustGet(middleware.ContextAccountID).(uuid.UUID)

	fileHeader, err := c.FormFile("logo")
	if err != nil {
		response.BadRequest(c, "logo file is required")
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
	key := storage.LogoKey(id.String(), fileHeader.Filename)
	url, err := h.media.Upload(c.Request.Context(), key, contentType, file, true)
	if err != nil {
		h.logger.Error("upload logo", zap.Error(err))
		response.Internal(c, "failed to upload logo")
		return
	}
	if err := h.svc.UpdateLogo(c.Request.Context(), id, url); err != nil {
		if errors.Is(err, ErrNotFound) {
			response.NotFound(c, "brand not found")
			return
		}
		h.logger.Error("save logo url", zap.Error(err))
		response.Internal(c, "failed to save logo")
		return
	}
	response.OK(c, gin.H{"logo_url": url})
}
