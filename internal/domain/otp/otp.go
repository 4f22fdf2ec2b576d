// Package otp issues and verifies one-time email codes that gate address
// submission.
package otp

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/vinitamart/storefront/internal/domain/apperr"
)

// ErrNotFound is returned by a Store when no code is pending for an email.
var ErrNotFound = errors.New("otp not found")

// Verification failures, with the messages shown to the customer.
var (
	ErrNotSent         = apperr.Validation("No OTP sent")
	ErrExpired         = apperr.Validation("OTP expired")
	ErrTooManyAttempts = apperr.Validation("Too many attempts")
	ErrInvalidCode     = apperr.Validation("Invalid OTP")
)

// Entry is a pending code. Only the keyed hash of the code is stored.
type Entry struct {
	Email     string
	CodeHash  string
	ExpiresAt time.Time
	Attempts  int
}

// Store is the externally owned keyed store for pending codes and completed
// verifications.
type Store interface {
	// Put replaces any pending entry for the email and resets attempts.
	Put(ctx context.Context, e Entry) error
	Get(ctx context.Context, email string) (*Entry, error)
	// ReserveAttempt counts one guess against the pending entry unless limit
	// guesses were already made, in which case it reports false. It fails
	// with ErrNotFound when no entry is pending.
	ReserveAttempt(ctx context.Context, email string, limit int) (bool, error)
	Delete(ctx context.Context, email string) error
	MarkVerified(ctx context.Context, email string, until time.Time) error
	IsVerified(ctx context.Context, email string, at time.Time) (bool, error)
}

// CodeSender delivers a code to the customer.
type CodeSender interface {
	SendCode(ctx context.Context, email, code string, ttl time.Duration) error
}
