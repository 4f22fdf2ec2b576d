package otp

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/vinitamart/storefront/internal/domain/apperr"
)

// Config holds OTP policy.
type Config struct {
	TTL         time.Duration
	VerifiedTTL time.Duration
	MaxAttempts int
	Pepper      []byte
}

// DefaultConfig returns the storefront OTP policy: five minute codes, five
// attempts, verification valid for thirty minutes.
func DefaultConfig() Config {
	return Config{
		TTL:         5 * time.Minute,
		VerifiedTTL: 30 * time.Minute,
		MaxAttempts: 5,
	}
}

// Service issues and verifies codes.
type Service struct {
	store  Store
	sender CodeSender
	cfg    Config
	now    func() time.Time
	code   func() (string, error)
}

// NewService creates an OTP Service.
func NewService(store Store, sender CodeSender, cfg Config) *Service {
	return &Service{
		store:  store,
		sender: sender,
		cfg:    cfg,
		now:    time.Now,
		code:   generateCode,
	}
}

// Send issues a fresh code for the email, replacing any pending one, and
// mails it synchronously.
func (s *Service) Send(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return apperr.Validation("Email required")
	}

	code, err := s.code()
	if err != nil {
		return errors.Wrap(err, "generate code")
	}
	if err := s.store.Put(ctx, Entry{
		Email:     email,
		CodeHash:  s.hash(email, code),
		ExpiresAt: s.now().Add(s.cfg.TTL),
	}); err != nil {
		return errors.Wrap(err, "store code")
	}

	if err := s.sender.SendCode(ctx, email, code, s.cfg.TTL); err != nil {
		return apperr.Upstream("Failed to send email", errors.Wrap(err, "send code"))
	}
	return nil
}

// Verify checks a submitted code. A match consumes the entry and records the
// email as verified.
func (s *Service) Verify(ctx context.Context, email, code string) error {
	email = normalizeEmail(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return apperr.Validation("Email and OTP required")
	}

	e, err := s.store.Get(ctx, email)
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrNotSent
	case err != nil:
		return errors.Wrap(err, "get code")
	}

	now := s.now()
	if now.After(e.ExpiresAt) {
		return ErrExpired
	}
	ok, err := s.store.ReserveAttempt(ctx, email, s.cfg.MaxAttempts)
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrNotSent
	case err != nil:
		return errors.Wrap(err, "reserve attempt")
	case !ok:
		return ErrTooManyAttempts
	}
	if !hmac.Equal([]byte(e.CodeHash), []byte(s.hash(email, code))) {
		return ErrInvalidCode
	}

	if err := s.store.Delete(ctx, email); err != nil {
		return errors.Wrap(err, "delete code")
	}
	if err := s.store.MarkVerified(ctx, email, now.Add(s.cfg.VerifiedTTL)); err != nil {
		return errors.Wrap(err, "mark verified")
	}
	return nil
}

// IsVerified reports whether the email completed verification within the
// verified window.
func (s *Service) IsVerified(ctx context.Context, email string) (bool, error) {
	ok, err := s.store.IsVerified(ctx, normalizeEmail(email), s.now())
	if err != nil {
		return false, errors.Wrap(err, "check verified")
	}
	return ok, nil
}

func (s *Service) hash(email, code string) string {
	mac := hmac.New(sha256.New, s.cfg.Pepper)
	mac.Write([]byte(email))
	mac.Write([]byte{0})
	mac.Write([]byte(code))
	return hex.EncodeToString(mac.Sum(nil))
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
