// Package auth issues and verifies the session tokens of customers and the
// seller.
package auth

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/vinitamart/storefront/internal/domain/apperr"
)

// Role distinguishes customer tokens from seller tokens.
type Role string

const (
	RoleUser   Role = "user"
	RoleSeller Role = "seller"
)

var (
	ErrInvalidToken       = apperr.Unauthorized("Not authorized")
	ErrInvalidCredentials = apperr.Unauthorized("Invalid credentials")
	ErrNotSeller          = apperr.Forbidden("Seller access required")
)

// Claims are the token claims for both roles. Subject carries the user id
// for customers; Email is set for the seller.
type Claims struct {
	Role  Role   `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Config holds token and seller credential settings.
type Config struct {
	Secret             []byte
	TokenTTL           time.Duration
	SellerEmail        string
	SellerPasswordHash string
}

// Service signs and verifies HS256 tokens.
type Service struct {
	cfg Config
	now func() time.Time
}

// NewService creates an auth Service.
func NewService(cfg Config) (*Service, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt secret is empty")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 7 * 24 * time.Hour
	}
	return &Service{cfg: cfg, now: time.Now}, nil
}

// TTL returns the lifetime of issued tokens.
func (s *Service) TTL() time.Duration { return s.cfg.TokenTTL }

// IssueUser returns a customer token for the user id.
func (s *Service) IssueUser(userID string) (string, error) {
	return s.sign(Claims{
		Role:             RoleUser,
		RegisteredClaims: s.registered(userID),
	})
}

// IssueSeller returns a seller token.
func (s *Service) IssueSeller(email string) (string, error) {
	return s.sign(Claims{
		Role:             RoleSeller,
		Email:            email,
		RegisteredClaims: s.registered(email),
	})
}

// SellerLogin checks the seller credentials and returns a fresh token.
func (s *Service) SellerLogin(email, password string) (string, error) {
	if s.cfg.SellerEmail == "" || s.cfg.SellerPasswordHash == "" {
		return "", ErrInvalidCredentials
	}
	if !strings.EqualFold(strings.TrimSpace(email), s.cfg.SellerEmail) {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.cfg.SellerPasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return s.IssueSeller(s.cfg.SellerEmail)
}

// Verify parses and validates a token of any role.
func (s *Service) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyUser returns the user id of a customer token.
func (s *Service) VerifyUser(token string) (string, error) {
	c, err := s.Verify(token)
	if err != nil {
		return "", err
	}
	if c.Role != RoleUser || c.Subject == "" {
		return "", ErrInvalidToken
	}
	return c.Subject, nil
}

// VerifySeller checks that the token belongs to the seller.
func (s *Service) VerifySeller(token string) (*Claims, error) {
	c, err := s.Verify(token)
	if err != nil {
		return nil, err
	}
	if c.Role != RoleSeller {
		return nil, ErrNotSeller
	}
	return c, nil
}

// HashPassword returns a bcrypt hash for seeding the seller credential.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "bcrypt")
	}
	return string(h), nil
}

func (s *Service) registered(subject string) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
	}
}

func (s *Service) sign(c Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.cfg.Secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}
