package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vinitamart/storefront/internal/domain/otp"
)

const (
	putOTPSQL = `INSERT INTO email_otps (email, code_hash, expires_at, attempts, created_at)
		VALUES ($1, $2, $3, 0, now())
		ON CONFLICT (email) DO UPDATE SET
			code_hash = EXCLUDED.code_hash,
			expires_at = EXCLUDED.expires_at,
			attempts = 0,
			created_at = now()`

	getOTPSQL = `SELECT email, code_hash, expires_at, attempts FROM email_otps WHERE email = $1`

	reserveOTPAttemptSQL = `UPDATE email_otps SET attempts = attempts + 1
		WHERE email = $1 AND attempts < $2
		RETURNING attempts`

	deleteOTPSQL = `DELETE FROM email_otps WHERE email = $1`

	markVerifiedSQL = `INSERT INTO email_verifications (email, verified_until) VALUES ($1, $2)
		ON CONFLICT (email) DO UPDATE SET verified_until = EXCLUDED.verified_until`

	isVerifiedSQL = `SELECT EXISTS (
		SELECT 1 FROM email_verifications WHERE email = $1 AND verified_until > $2)`
)

var _ otp.Store = (*OTPRepository)(nil)

// OTPRepository implements otp.Store backed by PostgreSQL.
type OTPRepository struct {
	pool *pgxpool.Pool
}

// NewOTPRepository returns an OTPRepository that uses the given pool.
func NewOTPRepository(pool *pgxpool.Pool) *OTPRepository {
	return &OTPRepository{pool: pool}
}

func (r *OTPRepository) Put(ctx context.Context, e otp.Entry) error {
	if _, err := r.pool.Exec(ctx, putOTPSQL, e.Email, e.CodeHash, e.ExpiresAt); err != nil {
		return errors.Wrap(err, "put otp")
	}
	return nil
}

func (r *OTPRepository) Get(ctx context.Context, email string) (*otp.Entry, error) {
	var e otp.Entry
	err := r.pool.QueryRow(ctx, getOTPSQL, email).Scan(&e.Email, &e.CodeHash, &e.ExpiresAt, &e.Attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, otp.ErrNotFound
		}
		return nil, errors.Wrap(err, "get otp")
	}
	return &e, nil
}

// ReserveAttempt increments the attempt counter only while it is below limit,
// so concurrent guesses never exceed it.
func (r *OTPRepository) ReserveAttempt(ctx context.Context, email string, limit int) (bool, error) {
	var attempts int
	err := r.pool.QueryRow(ctx, reserveOTPAttemptSQL, email, limit).Scan(&attempts)
	switch {
	case err == nil:
		return true, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return false, errors.Wrap(err, "reserve otp attempt")
	}
	if _, err := r.Get(ctx, email); err != nil {
		return false, err
	}
	return false, nil
}

func (r *OTPRepository) Delete(ctx context.Context, email string) error {
	if _, err := r.pool.Exec(ctx, deleteOTPSQL, email); err != nil {
		return errors.Wrap(err, "delete otp")
	}
	return nil
}

func (r *OTPRepository) MarkVerified(ctx context.Context, email string, until time.Time) error {
	if _, err := r.pool.Exec(ctx, markVerifiedSQL, email, until); err != nil {
		return errors.Wrap(err, "mark email verified")
	}
	return nil
}

func (r *OTPRepository) IsVerified(ctx context.Context, email string, at time.Time) (bool, error) {
	var ok bool
	if err := r.pool.QueryRow(ctx, isVerifiedSQL, email, at).Scan(&ok); err != nil {
		return false, errors.Wrap(err, "check email verification")
	}
	return ok, nil
}
