package address

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/vinitamart/storefront/internal/domain/apperr"
	"github.com/vinitamart/storefront/internal/domain/identity"
)

// ErrEmailNotVerified is returned when an address is submitted for an email
// that has no live OTP verification.
var ErrEmailNotVerified = apperr.Validation("Email not verified")

// VerificationChecker reports whether an email completed OTP verification
// recently enough to submit an address.
type VerificationChecker interface {
	IsVerified(ctx context.Context, email string) (bool, error)
}

// Input is an address submission as received from the client.
type Input struct {
	FirstName string
	LastName  string
	Email     string
	Street    string
	City      string
	State     string
	ZipCode   string
	Country   string
	Phone     string
}

// Service implements the address book flows.
type Service struct {
	book          Book
	verifications VerificationChecker
	requireOTP    bool
	now           func() time.Time
}

// NewService creates an address Service. When requireOTP is set, Add rejects
// emails that the checker does not report as verified.
func NewService(book Book, verifications VerificationChecker, requireOTP bool) *Service {
	return &Service{
		book:          book,
		verifications: verifications,
		requireOTP:    requireOTP,
		now:           time.Now,
	}
}

// Add validates and stores an address. The owner is the authenticated user
// when userID is set, otherwise the guest identity of the address email.
func (s *Service) Add(ctx context.Context, userID string, in Input) (*Address, error) {
	a, err := in.normalize()
	if err != nil {
		return nil, err
	}

	if s.requireOTP {
		ok, err := s.verifications.IsVerified(ctx, a.Email)
		if err != nil {
			return nil, errors.Wrap(err, "check email verification")
		}
		if !ok {
			return nil, ErrEmailNotVerified
		}
	}

	owner := identity.Guest(a.Email)
	if userID != "" {
		owner = identity.Registered(userID)
	}
	a.OwnerID = owner.String()
	a.CreatedAt = s.now().UTC()

	if err := s.book.Create(ctx, a); err != nil {
		return nil, errors.Wrap(err, "create address")
	}
	return a, nil
}

// List returns the addresses owned by the given user.
func (s *Service) List(ctx context.Context, userID string) ([]Address, error) {
	if userID == "" {
		return nil, apperr.Validation("Missing user ID")
	}
	addrs, err := s.book.ListByOwner(ctx, identity.Registered(userID).String())
	if err != nil {
		return nil, errors.Wrap(err, "list addresses")
	}
	return addrs, nil
}

func (in Input) normalize() (*Address, error) {
	a := &Address{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Street:    strings.TrimSpace(in.Street),
		City:      strings.TrimSpace(in.City),
		State:     strings.TrimSpace(in.State),
		Country:   strings.TrimSpace(in.Country),
		Phone:     strings.TrimSpace(in.Phone),
	}

	required := []struct {
		name  string
		value string
	}{
		{"firstName", a.FirstName},
		{"lastName", a.LastName},
		{"email", a.Email},
		{"street", a.Street},
		{"city", a.City},
		{"state", a.State},
		{"zipCode", strings.TrimSpace(in.ZipCode)},
		{"country", a.Country},
		{"phone", a.Phone},
	}
	for _, f := range required {
		if f.value == "" {
			return nil, apperr.Validation("Missing required field: " + f.name)
		}
	}

	if !strings.Contains(a.Email, "@") {
		return nil, apperr.Validation("Invalid email")
	}
	zip, err := strconv.Atoi(strings.TrimSpace(in.ZipCode))
	if err != nil || zip < 0 {
		return nil, apperr.Validation("Invalid zip code")
	}
	a.ZipCode = zip
	return a, nil
}
