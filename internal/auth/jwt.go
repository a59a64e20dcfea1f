package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// purposeReset marks short-lived password-reset proofs so they cannot be
// replayed as session tokens.
const purposeReset = "password_reset"

// Claims holds JWT claims including account ID and role.
type Claims struct {
	AccountID uuid.UUID `json:"account_id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Purpose   string    `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// JWTService mints and validates bearer tokens. Session tokens authenticate
// users, brands and admins; reset tokens prove a completed forgot-password
// OTP check for a bounded window.
type JWTService struct {
	secret     []byte
	sessionTTL time.Duration
	resetTTL   time.Duration
}

// NewJWTService creates a JWT service.
func NewJWTService(secret string, sessionExpireHours, resetExpireMinutes int) *JWTService {
	return &JWTService{
		secret:     []byte(secret),
		sessionTTL: time.Duration(sessionExpireHours) * time.Hour,
		resetTTL:   time.Duration(resetExpireMinutes) * time.Minute,
	}
}

// GenerateSession creates a session JWT for a user, brand or admin.
func (s *JWTService) GenerateSession(accountID uuid.UUID, email, role string) (string, error) {
	return s.generate(Claims{
		AccountID: accountID,
		Email:     email,
		Role:      role,
	}, s.sessionTTL)
}

// GenerateReset creates a short-lived password-reset proof for the email.
func (s *JWTService) GenerateReset(email string) (string, error) {
	return s.generate(Claims{
		Email:   email,
		Purpose: purposeReset,
	}, s.resetTTL)
}

func (s *JWTService) generate(claims Claims, ttl time.Duration) (string, error) {
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ID:        uuid.New().String(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateSession parses and validates a session JWT, returning claims or error.
// Reset tokens are rejected here.
func (s *JWTService) ValidateSession(tokenString string) (*Claims, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Purpose != "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateReset validates a password-reset proof and returns the email it covers.
func (s *JWTService) ValidateReset(tokenString string) (string, error) {
	claims, err := s.parse(tokenString)
	if err != nil {
		return "", err
	}
	if claims.Purpose != purposeReset {
		return "", ErrInvalidToken
	}
	return claims.Email, nil
}

func (s *JWTService) parse(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
