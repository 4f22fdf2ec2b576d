package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vinitamart/storefront/internal/domain/address"
)

const (
	addressColumns = `id, owner_id, first_name, last_name, email, street, city, state, zip_code, country, phone, created_at`

	getAddressByIDSQL = `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1`

	getAddressesByIDsSQL = `SELECT ` + addressColumns + ` FROM addresses WHERE id = ANY($1)`

	listAddressesByOwnerSQL = `SELECT ` + addressColumns + ` FROM addresses
		WHERE owner_id = $1 ORDER BY created_at DESC`

	insertAddressSQL = `INSERT INTO addresses (` + addressColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
)

var _ address.Book = (*AddressRepository)(nil)

// AddressRepository implements address.Book backed by PostgreSQL.
type AddressRepository struct {
	pool *pgxpool.Pool
}

// NewAddressRepository returns an AddressRepository that uses the given pool.
func NewAddressRepository(pool *pgxpool.Pool) *AddressRepository {
	return &AddressRepository{pool: pool}
}

func (r *AddressRepository) FindByID(ctx context.Context, id string) (*address.Address, error) {
	rows, err := r.pool.Query(ctx, getAddressByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get address %q", id)
	}
	a, err := pgx.CollectExactlyOneRow(rows, scanAddress)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, address.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get address %q", id)
	}
	return &a, nil
}

func (r *AddressRepository) FindByIDs(ctx context.Context, ids []string) ([]address.Address, error) {
	rows, err := r.pool.Query(ctx, getAddressesByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get addresses by ids")
	}
	return pgx.CollectRows(rows, scanAddress)
}

func (r *AddressRepository) ListByOwner(ctx context.Context, ownerID string) ([]address.Address, error) {
	rows, err := r.pool.Query(ctx, listAddressesByOwnerSQL, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "list addresses")
	}
	return pgx.CollectRows(rows, scanAddress)
}

// Create inserts the address, assigning a fresh id when none is set.
func (r *AddressRepository) Create(ctx context.Context, a *address.Address) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	_, err := r.pool.Exec(ctx, insertAddressSQL,
		a.ID, a.OwnerID, a.FirstName, a.LastName, a.Email, a.Street,
		a.City, a.State, a.ZipCode, a.Country, a.Phone, a.CreatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "insert address %q", a.ID)
	}
	return nil
}

func scanAddress(row pgx.CollectableRow) (address.Address, error) {
	var a address.Address
	err := row.Scan(
		&a.ID, &a.OwnerID, &a.FirstName, &a.LastName, &a.Email, &a.Street,
		&a.City, &a.State, &a.ZipCode, &a.Country, &a.Phone, &a.CreatedAt,
	)
	if err != nil {
		return address.Address{}, errors.Wrap(err, "scan address")
	}
	return a, nil
}
