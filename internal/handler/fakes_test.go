package handler

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/vinitamart/storefront/internal/domain/address"
	"github.com/vinitamart/storefront/internal/domain/order"
	"github.com/vinitamart/storefront/internal/domain/otp"
	"github.com/vinitamart/storefront/internal/domain/product"
	"github.com/vinitamart/storefront/internal/payment/stripe"
)

type fakeCatalog struct {
	mu   sync.Mutex
	byID map[string]product.Product
}

func (f *fakeCatalog) List(_ context.Context) ([]product.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]product.Product, 0, len(f.byID))
	for _, p := range f.byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCatalog) FindByID(_ context.Context, id string) (*product.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (f *fakeCatalog) FindByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []product.Product
	for _, id := range ids {
		if p, ok := f.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeCatalog) SetInStock(_ context.Context, id string, inStock bool) (*product.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	p.InStock = inStock
	f.byID[id] = p
	return &p, nil
}

type fakeBook struct {
	mu   sync.Mutex
	byID map[string]address.Address
	seq  int
}

func (f *fakeBook) FindByID(_ context.Context, id string) (*address.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.byID[id]
	if !ok {
		return nil, address.ErrNotFound
	}
	return &a, nil
}

func (f *fakeBook) FindByIDs(_ context.Context, ids []string) ([]address.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []address.Address
	for _, id := range ids {
		if a, ok := f.byID[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeBook) ListByOwner(_ context.Context, ownerID string) ([]address.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []address.Address
	for _, a := range f.byID {
		if a.OwnerID == ownerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeBook) Create(_ context.Context, a *address.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	a.ID = "addr-new-" + strconv.Itoa(f.seq)
	f.byID[a.ID] = *a
	return nil
}

type fakeOrders struct {
	mu     sync.Mutex
	orders map[string]*order.Order
}

func (f *fakeOrders) Create(_ context.Context, o *order.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *o
	f.orders[o.ID] = &cp
	return nil
}

func (f *fakeOrders) Get(_ context.Context, id string) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) FindByIdempotencyKey(_ context.Context, ownerID, key string) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.orders {
		if o.OwnerID == ownerID && o.IdempotencyKey == key {
			cp := *o
			return &cp, nil
		}
	}
	return nil, order.ErrNotFound
}

func (f *fakeOrders) UpdateStatus(_ context.Context, id string, from, to order.Status) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	if o.Status != from {
		return nil, order.ErrStaleStatus
	}
	o.Status = to
	cp := *o
	return &cp, nil
}

func (f *fakeOrders) SetPaid(_ context.Context, id string, isPaid bool, at time.Time) (*order.Order, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, false, order.ErrNotFound
	}
	changed := o.IsPaid != isPaid
	o.IsPaid = isPaid
	switch {
	case !isPaid:
		o.PaidAt = nil
	case o.PaidAt == nil:
		o.PaidAt = &at
	}
	cp := *o
	return &cp, changed, nil
}

func (f *fakeOrders) List(_ context.Context, flt order.Filter) (*order.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []order.Order
	for _, o := range f.orders {
		if !o.Visible() {
			continue
		}
		if flt.OwnerID != "" && o.OwnerID != flt.OwnerID {
			continue
		}
		if flt.Status != "" && o.Status != flt.Status {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := int64(len(out))
	start := min(flt.Offset(), len(out))
	end := min(start+flt.PageSize, len(out))
	return order.NewPage(out[start:end], total, flt), nil
}

func (f *fakeOrders) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.orders[id]; !ok {
		return order.ErrNotFound
	}
	delete(f.orders, id)
	return nil
}

type fakeGateway struct{}

func (fakeGateway) CreateCheckout(_ context.Context, req order.CheckoutRequest) (*order.CheckoutSession, error) {
	return &order.CheckoutSession{ID: "cs_" + req.OrderID, URL: "https://checkout.example/" + req.OrderID}, nil
}

func (fakeGateway) ExpireCheckout(context.Context, string) error { return nil }

type nopNotifier struct{}

func (nopNotifier) OrderPlaced(context.Context, *order.Order)   {}
func (nopNotifier) StatusChanged(context.Context, *order.Order) {}

type memOTPStore struct {
	mu       sync.Mutex
	entries  map[string]otp.Entry
	verified map[string]time.Time
}

func (m *memOTPStore) Put(_ context.Context, e otp.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[e.Email] = e
	return nil
}

func (m *memOTPStore) Get(_ context.Context, email string) (*otp.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[email]
	if !ok {
		return nil, otp.ErrNotFound
	}
	return &e, nil
}

func (m *memOTPStore) ReserveAttempt(_ context.Context, email string, limit int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[email]
	if !ok {
		return false, otp.ErrNotFound
	}
	if e.Attempts >= limit {
		return false, nil
	}
	e.Attempts++
	m.entries[email] = e
	return true, nil
}

func (m *memOTPStore) Delete(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, email)
	return nil
}

func (m *memOTPStore) MarkVerified(_ context.Context, email string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verified[email] = until
	return nil
}

func (m *memOTPStore) IsVerified(_ context.Context, email string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	until, ok := m.verified[email]
	return ok && at.Before(until), nil
}

type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
}

func (c *captureSender) SendCode(_ context.Context, email, code string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[email] = code
	return nil
}

func (c *captureSender) code(email string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.codes[email]
}

type mockWebhooks struct {
	mock.Mock
}

func (m *mockWebhooks) ParseWebhook(payload []byte, signature string) (*stripe.Completion, error) {
	args := m.Called(payload, signature)
	c, _ := args.Get(0).(*stripe.Completion)
	return c, args.Error(1)
}
