package postgres

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vinitamart/storefront/internal/domain/order"
)

const (
	orderColumns = `id, owner_id, items, address_id, customer_name, customer_email, amount,
		payment_type, is_paid, paid_at, status, checkout_session_id, checkout_url,
		COALESCE(idempotency_key, ''), created_at, updated_at`

	idempotencyIndex = "orders_owner_idempotency_key_idx"

	insertOrderSQL = `INSERT INTO orders (id, owner_id, items, address_id, customer_name, customer_email,
		amount, payment_type, is_paid, paid_at, status, checkout_session_id, checkout_url,
		idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NULLIF($14, ''), $15, $16)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	getOrderByKeySQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE owner_id = $1 AND idempotency_key = $2`

	updateStatusSQL = `UPDATE orders SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING ` + orderColumns

	orderExistsSQL = `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`

	// The CTE locks the row and exposes the flag as it was before the update.
	setPaidSQL = `WITH prev AS (
			SELECT id, is_paid FROM orders WHERE id = $1 FOR UPDATE
		)
		UPDATE orders o SET
			is_paid = $2::boolean,
			paid_at = CASE WHEN $2::boolean THEN COALESCE(o.paid_at, $3) ELSE NULL END,
			updated_at = $3
		FROM prev
		WHERE o.id = prev.id
		RETURNING o.id, o.owner_id, o.items, o.address_id, o.customer_name, o.customer_email,
			o.amount, o.payment_type, o.is_paid, o.paid_at, o.status, o.checkout_session_id,
			o.checkout_url, COALESCE(o.idempotency_key, ''), o.created_at, o.updated_at,
			prev.is_paid`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. The order items are serialized to JSON for
// storage in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return errors.Wrap(err, "marshal order items")
	}

	_, err = r.pool.Exec(ctx, insertOrderSQL,
		o.ID, o.OwnerID, itemsJSON, o.AddressID, o.CustomerName, o.CustomerEmail,
		o.Amount, string(o.PaymentType), o.IsPaid, o.PaidAt, string(o.Status),
		o.CheckoutSessionID, o.CheckoutURL, o.IdempotencyKey, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, idempotencyIndex) {
			return order.ErrDuplicateKey
		}
		return errors.Wrapf(err, "create order %q", o.ID)
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return r.one(ctx, "get order", getOrderSQL, id)
}

func (r *OrderRepository) FindByIdempotencyKey(ctx context.Context, ownerID, key string) (*order.Order, error) {
	return r.one(ctx, "get order by idempotency key", getOrderByKeySQL, ownerID, key)
}

// UpdateStatus is a compare-and-set on the status column.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, from, to order.Status) (*order.Order, error) {
	o, err := r.one(ctx, "update order status", updateStatusSQL, id, string(from), string(to))
	if !errors.Is(err, order.ErrNotFound) {
		return o, err
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, orderExistsSQL, id).Scan(&exists); err != nil {
		return nil, errors.Wrapf(err, "check order %q", id)
	}
	if exists {
		return nil, order.ErrStaleStatus
	}
	return nil, order.ErrNotFound
}

func (r *OrderRepository) SetPaid(ctx context.Context, id string, isPaid bool, at time.Time) (*order.Order, bool, error) {
	rows, err := r.pool.Query(ctx, setPaidSQL, id, isPaid, at)
	if err != nil {
		return nil, false, errors.Wrapf(err, "set paid on %q", id)
	}

	type result struct {
		order   order.Order
		wasPaid bool
	}
	res, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (result, error) {
		var res result
		o, err := scanOrderInto(row, &res.wasPaid)
		res.order = o
		return res, err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, order.ErrNotFound
		}
		return nil, false, errors.Wrapf(err, "set paid on %q", id)
	}
	return &res.order, res.wasPaid != isPaid, nil
}

// List returns one page of visible orders, newest first.
func (r *OrderRepository) List(ctx context.Context, f order.Filter) (*order.Page, error) {
	f = f.Normalize()
	where, args := listConditions(f)

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM orders WHERE `+where, args...).Scan(&total); err != nil {
		return nil, errors.Wrap(err, "count orders")
	}

	args = append(args, f.PageSize, f.Offset())
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + where +
		` ORDER BY created_at DESC, id LIMIT $` + strconv.Itoa(len(args)-1) +
		` OFFSET $` + strconv.Itoa(len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return order.NewPage(orders, total, f), nil
}

func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteOrderSQL, id)
	if err != nil {
		return errors.Wrapf(err, "delete order %q", id)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) one(ctx context.Context, op, query string, args ...any) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, op)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, errors.Wrap(err, op)
	}
	return &o, nil
}

// listConditions builds the WHERE clause of a listing. Online orders are
// only visible once paid.
func listConditions(f order.Filter) (string, []any) {
	conds := []string{`(payment_type = 'COD' OR is_paid)`}
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if f.OwnerID != "" {
		conds = append(conds, `owner_id = `+next(f.OwnerID))
	}
	if f.Status != "" {
		conds = append(conds, `status = `+next(string(f.Status)))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		p := next("%" + escapeLike(s) + "%")
		conds = append(conds, `(customer_name ILIKE `+p+` OR customer_email ILIKE `+p+
			` OR id ILIKE `+p+
			` OR EXISTS (SELECT 1 FROM jsonb_array_elements(items) it WHERE it->>'name' ILIKE `+p+`))`)
	}
	return strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	return scanOrderInto(row)
}

func scanOrderInto(row pgx.CollectableRow, extra ...any) (order.Order, error) {
	var (
		o           order.Order
		items       []byte
		paymentType string
		status      string
	)
	dest := []any{
		&o.ID, &o.OwnerID, &items, &o.AddressID, &o.CustomerName, &o.CustomerEmail, &o.Amount,
		&paymentType, &o.IsPaid, &o.PaidAt, &status, &o.CheckoutSessionID, &o.CheckoutURL,
		&o.IdempotencyKey, &o.CreatedAt, &o.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return order.Order{}, errors.Wrap(err, "scan order")
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return order.Order{}, errors.Wrapf(err, "unmarshal items of order %q", o.ID)
	}
	o.PaymentType = order.PaymentType(paymentType)
	o.Status = order.Status(status)
	return o, nil
}
