package users

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/campusperks/backend/internal/auth"
	"github.com/campusperks/backend/internal/otp"
	"github.com/campusperks/backend/pkg/response"
)

// RegisterRequest is the body for POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
	FullName string `json:"full_name" binding:"required"`
}

// VerifyOTPRequest is the body for POST /auth/verify-otp and /auth/verify-reset-otp.
type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,len=6"`
}

// EmailRequest is the body for POST /auth/resend-otp and /auth/forgot-password.
type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ResetPasswordRequest is the body for POST /auth/reset-password.
type ResetPasswordRequest struct {
	ResetToken  string `json:"reset_token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

// TokenResponse is the auth response with session JWT.
type TokenResponse struct {
	Token string      `json:"token"`
	User  interface{} `json:"user"`
}

// Handler handles user auth HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a users handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register handles POST /auth/register.
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	user, err := h.svc.Register(c.Request.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateEmail):
			response.Conflict(c, "email already registered")
		default:
			h.logger.Error("register user", zap.Error(err))
			response.Internal(c, "failed to register")
		}
		return
	}
	response.Created(c, gin.H{"user": user.ToPublic(), "message": "verification code sent"})
}

// VerifyOTP handles POST /auth/verify-otp.
func (h *Handler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	user, err := h.svc.VerifyEmail(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, otp.ErrExpired):
			response.Gone(c, "code expired, request a new one")
		case errors.Is(err, otp.ErrInvalidOrExpired):
			response.BadRequest(c, "invalid or expired code")
		case errors.Is(err, ErrNotFound):
			response.NotFound(c, "user not found")
		default:
			h.logger.Error("verify otp", zap.Error(err))
			response.Internal(c, "failed to verify")
		}
		return
	}
	response.OK(c, gin.H{"user": user.ToPublic()})
}

// ResendOTP handles POST /auth/resend-otp.
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
			response.NotFound(c, "user not found")
		case errors.Is(err, ErrDuplicateEmail):
			response.Conflict(c, "email already verified")
		default:
			h.logger.Error("resend otp", zap.Error(err))
			response.Internal(c, "failed to resend code")
		}
		return
	}
	response.OK(c, gin.H{"message": "verification code sent"})
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	token, user, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			response.Unauthorized(c, "invalid email or password")
			return
		}
		h.logger.Error("login", zap.Error(err))
		response.Internal(c, "failed to login")
		return
	}
	response.OK(c, TokenResponse{Token: token, User: user.ToPublic()})
}

// ForgotPassword handles POST /auth/forgot-password.
func (h *Handler) ForgotPassword(c *gin.Context) {
	var req EmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.svc.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		if errors.Is(err, otp.ErrCooldown) {
			response.TooManyRequests(c, "please wait before requesting another code")
			return
		}
		h.logger.Error("forgot password", zap.Error(err))
		response.Internal(c, "failed to process request")
		return
	}
	// Same response whether or not the email exists.
	response.OK(c, gin.H{"message": "if the email is registered, a reset code has been sent"})
}

// VerifyResetOTP handles POST /auth/verify-reset-otp.
func (h *Handler) VerifyResetOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	token, err := h.svc.VerifyResetOTP(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, otp.ErrExpired):
			response.Gone(c, "code expired, request a new one")
		case errors.Is(err, otp.ErrInvalidOrExpired):
			response.BadRequest(c, "invalid or expired code")
		default:
			h.logger.Error("verify reset otp", zap.Error(err))
			response.Internal(c, "failed to verify")
		}
		return
	}
	response.OK(c, gin.H{"reset_token": token})
}

// ResetPassword handles POST /auth/reset-password.
func (h *Handler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.svc.ResetPassword(c.Request.Context(), req.ResetToken, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidToken):
			response.Unauthorized(c, "invalid or expired reset token")
		case errors.Is(err, ErrNotFound):
			response.NotFound(c, "user not found")
		default:
			h.logger.Error("reset password", zap.Error(err))
			response.Internal(c, "failed to reset password")
		}
		return
	}
	response.OK(c, gin.H{"message": "password updated"})
}
