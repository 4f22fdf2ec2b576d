package address

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when an address id does not resolve.
var ErrNotFound = errors.New("address not found")

// Address is a delivery address. OwnerID is empty for addresses submitted
// before the owner was known; guest submissions carry "guest:<email>".
type Address struct {
	ID        string
	OwnerID   string
	FirstName string
	LastName  string
	Email     string
	Street    string
	City      string
	State     string
	ZipCode   int
	Country   string
	Phone     string
	CreatedAt time.Time
}

// FullName joins first and last name, trimming surrounding blanks.
func (a Address) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// Book provides address persistence. FindByIDs resolves many ids in one
// round trip and omits ids that do not exist.
type Book interface {
	FindByID(ctx context.Context, id string) (*Address, error)
	FindByIDs(ctx context.Context, ids []string) ([]Address, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Address, error)
	Create(ctx context.Context, a *Address) error
}
