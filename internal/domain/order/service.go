package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/vinitamart/storefront/internal/domain/address"
	"github.com/vinitamart/storefront/internal/domain/apperr"
	"github.com/vinitamart/storefront/internal/domain/identity"
	"github.com/vinitamart/storefront/internal/domain/product"
)

// Notifier receives order events after they are committed. Implementations
// must not block; delivery failures are theirs to log.
type Notifier interface {
	OrderPlaced(ctx context.Context, o *Order)
	StatusChanged(ctx context.Context, o *Order)
}

// CheckoutLine is one entry of the manifest sent to the payment provider.
// UnitPrice is the catalog offer price; the provider integration applies its
// own unit price transform.
type CheckoutLine struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
}

// CheckoutRequest asks the payment provider for a hosted checkout session.
type CheckoutRequest struct {
	OrderID        string
	UserID         string
	Lines          []CheckoutLine
	SuccessURL     string
	CancelURL      string
	IdempotencyKey string
}

// CheckoutSession is a created hosted checkout session.
type CheckoutSession struct {
	ID  string
	URL string
}

// PaymentGateway creates and expires hosted checkout sessions.
type PaymentGateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	ExpireCheckout(ctx context.Context, sessionID string) error
}

// Config holds the tunables of order placement.
type Config struct {
	SurchargeRate decimal.Decimal
	// ConfirmViaWebhook keeps online orders unpaid until the provider
	// confirms settlement. When false, online orders are marked paid at
	// placement.
	ConfirmViaWebhook bool
}

// PlaceRequest is a cart submitted for placement.
type PlaceRequest struct {
	UserID         string
	Items          []Item
	AddressID      string
	IdempotencyKey string
	// Origin is the storefront base URL used for checkout redirects.
	Origin string
}

// PlaceResult holds the output of a successful placement.
type PlaceResult struct {
	Order       *Order
	Quote       Quote
	RedirectURL string
	// Replayed is set when the idempotency key matched an existing order.
	Replayed bool
}

// Option configures a Service.
type Option func(*Service)

// WithMeterProvider sets the meter provider for order metrics.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Service) { s.meterProvider = mp }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service encapsulates order placement and lifecycle business logic.
type Service struct {
	cfg       Config
	pricer    *Pricer
	catalog   product.Catalog
	addresses address.Book
	orders    Repository
	payments  PaymentGateway
	notifier  Notifier

	now           func() time.Time
	meterProvider metric.MeterProvider
	placed        metric.Int64Counter
	transitions   metric.Int64Counter
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	cfg Config,
	catalog product.Catalog,
	addresses address.Book,
	orders Repository,
	payments PaymentGateway,
	notifier Notifier,
	opts ...Option,
) (*Service, error) {
	pricer, err := NewPricer(cfg.SurchargeRate)
	if err != nil {
		return nil, errors.Wrap(err, "pricer")
	}
	s := &Service{
		cfg:           cfg,
		pricer:        pricer,
		catalog:       catalog,
		addresses:     addresses,
		orders:        orders,
		payments:      payments,
		notifier:      notifier,
		now:           time.Now,
		meterProvider: noop.NewMeterProvider(),
	}
	for _, o := range opts {
		o(s)
	}

	meter := s.meterProvider.Meter("storefront/order")
	if s.placed, err = meter.Int64Counter("orders.placed",
		metric.WithDescription("Orders written to the ledger"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.placed counter")
	}
	if s.transitions, err = meter.Int64Counter("orders.status_changes",
		metric.WithDescription("Order status transitions"),
	); err != nil {
		return nil, errors.Wrap(err, "orders.status_changes counter")
	}
	return s, nil
}

// PlaceCOD places a cash-on-delivery order. It is persisted unpaid and the
// customer and seller are notified.
func (s *Service) PlaceCOD(ctx context.Context, req PlaceRequest) (*PlaceResult, error) {
	addr, owner, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if prev, err := s.replay(ctx, owner, req.IdempotencyKey); err != nil || prev != nil {
		return prev, err
	}

	items, lines, err := s.lookup(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	quote, err := s.pricer.Price(lines)
	if err != nil {
		return nil, errors.Wrap(err, "price order")
	}

	o := s.newOrder(uuid.NewString(), owner, addr, items, quote, req.IdempotencyKey)
	o.PaymentType = PaymentCOD
	if err := s.create(ctx, o); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return s.replayDuplicate(ctx, owner, req.IdempotencyKey)
		}
		return nil, err
	}
	s.notifier.OrderPlaced(ctx, o)

	return &PlaceResult{Order: o, Quote: quote}, nil
}

// PlaceOnline places an order paid through a hosted checkout session. The
// session is created before the order is written, so a provider failure
// leaves no ledger entry.
func (s *Service) PlaceOnline(ctx context.Context, req PlaceRequest) (*PlaceResult, error) {
	if req.UserID == "" {
		return nil, ErrLoginRequired
	}
	addr, owner, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	if prev, err := s.replay(ctx, owner, req.IdempotencyKey); err != nil || prev != nil {
		return prev, err
	}

	items, lines, err := s.lookup(ctx, req.Items)
	if err != nil {
		return nil, err
	}
	quote, err := s.pricer.Price(lines)
	if err != nil {
		return nil, errors.Wrap(err, "price order")
	}

	orderID := uuid.NewString()
	checkout := CheckoutRequest{
		OrderID:        orderID,
		UserID:         req.UserID,
		Lines:          make([]CheckoutLine, len(items)),
		SuccessURL:     req.Origin + "/loader?next=/my-orders",
		CancelURL:      req.Origin + "/cart",
		IdempotencyKey: req.IdempotencyKey,
	}
	for i, it := range items {
		checkout.Lines[i] = CheckoutLine{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: lines[i].UnitPrice,
		}
	}
	session, err := s.payments.CreateCheckout(ctx, checkout)
	if err != nil {
		return nil, apperr.Upstream("Payment provider unavailable", errors.Wrap(err, "create checkout session"))
	}

	o := s.newOrder(orderID, owner, addr, items, quote, req.IdempotencyKey)
	o.PaymentType = PaymentOnline
	o.CheckoutSessionID = session.ID
	o.CheckoutURL = session.URL
	if !s.cfg.ConfirmViaWebhook {
		paidAt := o.CreatedAt
		o.IsPaid = true
		o.PaidAt = &paidAt
	}
	if err := s.create(ctx, o); err != nil {
		if expErr := s.payments.ExpireCheckout(context.WithoutCancel(ctx), session.ID); expErr != nil {
			zctx.From(ctx).Warn("Expire orphaned checkout session",
				zap.String("session_id", session.ID),
				zap.Error(expErr),
			)
		}
		if errors.Is(err, ErrDuplicateKey) {
			return s.replayDuplicate(ctx, owner, req.IdempotencyKey)
		}
		return nil, err
	}
	if o.IsPaid {
		s.notifier.OrderPlaced(ctx, o)
	}

	return &PlaceResult{Order: o, Quote: quote, RedirectURL: session.URL}, nil
}

// ConfirmPayment marks an online order paid after the provider reports a
// completed checkout. Repeated confirmations are no-ops; notifications go out
// on the first one only.
func (s *Service) ConfirmPayment(ctx context.Context, orderID, sessionID string) (*Order, error) {
	o, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.PaymentType != PaymentOnline {
		return nil, ErrNotOnlineOrder
	}
	if sessionID != "" && o.CheckoutSessionID != "" && o.CheckoutSessionID != sessionID {
		return nil, apperr.Validation("Checkout session does not match order")
	}

	updated, changed, err := s.orders.SetPaid(ctx, orderID, true, s.now().UTC())
	if err != nil {
		return nil, s.mapNotFound(err, "mark order paid")
	}
	if changed {
		s.notifier.OrderPlaced(ctx, updated)
	}
	return updated, nil
}

// Cancel cancels an order on behalf of its owner. Orders that have shipped,
// been delivered or already been cancelled are rejected.
func (s *Service) Cancel(ctx context.Context, orderID, userID string) (*Order, error) {
	if userID == "" {
		return nil, apperr.Unauthorized("Not authorized")
	}
	o, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.OwnerID != identity.Registered(userID).String() {
		return nil, ErrNotOwner
	}
	if !o.Status.Cancellable() {
		return nil, &NotCancellableError{Status: o.Status}
	}
	return s.transition(ctx, o, StatusCancelled)
}

// UpdateStatus applies a seller status change. Regressions and changes out of
// a terminal status are rejected; setting the current status is a no-op.
func (s *Service) UpdateStatus(ctx context.Context, orderID string, status Status) (*Order, error) {
	if !status.Valid() {
		return nil, &InvalidStatusError{Status: string(status)}
	}
	o, err := s.get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == status {
		return o, nil
	}
	if err := CheckTransition(o.Status, status); err != nil {
		return nil, err
	}
	return s.transition(ctx, o, status)
}

// UpdatePaid is the seller toggle of the paid flag.
func (s *Service) UpdatePaid(ctx context.Context, orderID string, isPaid bool) (*Order, error) {
	o, _, err := s.orders.SetPaid(ctx, orderID, isPaid, s.now().UTC())
	if err != nil {
		return nil, s.mapNotFound(err, "set paid")
	}
	return o, nil
}

// List returns the visible orders matching the filter, newest first.
func (s *Service) List(ctx context.Context, f Filter) (*Page, error) {
	f = f.Normalize()
	if f.Status != "" && !f.Status.Valid() {
		return nil, &InvalidStatusError{Status: string(f.Status)}
	}
	page, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return page, nil
}

// ListMine returns the visible orders owned by the authenticated user.
func (s *Service) ListMine(ctx context.Context, userID string, f Filter) (*Page, error) {
	if userID == "" {
		return nil, apperr.Unauthorized("Not authorized")
	}
	f.OwnerID = identity.Registered(userID).String()
	return s.List(ctx, f)
}

// Delete removes an order. It is an administrative operation.
func (s *Service) Delete(ctx context.Context, orderID string) error {
	if err := s.orders.Delete(ctx, orderID); err != nil {
		return s.mapNotFound(err, "delete order")
	}
	return nil
}

// prepare validates the request shape and resolves the address and owner.
func (s *Service) prepare(ctx context.Context, req PlaceRequest) (*address.Address, identity.Owner, error) {
	if req.AddressID == "" || len(req.Items) == 0 {
		return nil, identity.Owner{}, ErrInvalidOrder
	}
	for _, it := range req.Items {
		if it.ProductID == "" || it.Quantity <= 0 {
			return nil, identity.Owner{}, &InvalidLineItemError{ProductID: it.ProductID, Quantity: it.Quantity}
		}
	}

	addr, err := s.addresses.FindByID(ctx, req.AddressID)
	if err != nil {
		if errors.Is(err, address.ErrNotFound) {
			return nil, identity.Owner{}, ErrAddressNotFound
		}
		return nil, identity.Owner{}, errors.Wrap(err, "find address")
	}
	return addr, ResolveOwner(req.UserID, addr), nil
}

// replay returns the existing order for a repeated idempotency key.
func (s *Service) replay(ctx context.Context, owner identity.Owner, key string) (*PlaceResult, error) {
	if key == "" {
		return nil, nil
	}
	o, err := s.orders.FindByIdempotencyKey(ctx, owner.String(), key)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, errors.Wrap(err, "find by idempotency key")
	}
	return &PlaceResult{
		Order:       o,
		Quote:       Quote{Amount: o.Amount},
		RedirectURL: o.CheckoutURL,
		Replayed:    true,
	}, nil
}

// replayDuplicate resolves a placement that lost the race for its
// idempotency key to a concurrent request.
func (s *Service) replayDuplicate(ctx context.Context, owner identity.Owner, key string) (*PlaceResult, error) {
	prev, err := s.replay(ctx, owner, key)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, ErrConcurrentUpdate
	}
	return prev, nil
}

// lookup resolves every distinct product of the cart in one batch and
// returns the snapshotted items and their priced lines.
func (s *Service) lookup(ctx context.Context, reqItems []Item) ([]Item, []Line, error) {
	ids := make([]string, 0, len(reqItems))
	seen := make(map[string]struct{}, len(reqItems))
	for _, it := range reqItems {
		if _, ok := seen[it.ProductID]; ok {
			continue
		}
		seen[it.ProductID] = struct{}{}
		ids = append(ids, it.ProductID)
	}

	fetched, err := s.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, nil, errors.Wrap(err, "get products")
	}
	productMap := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		productMap[p.ID] = p
	}

	items := make([]Item, len(reqItems))
	lines := make([]Line, len(reqItems))
	for i, it := range reqItems {
		p, ok := productMap[it.ProductID]
		if !ok {
			return nil, nil, &ProductNotFoundError{ProductID: it.ProductID}
		}
		items[i] = Item{ProductID: p.ID, Name: p.Name, Quantity: it.Quantity}
		lines[i] = Line{ProductID: p.ID, Quantity: it.Quantity, UnitPrice: p.OfferPrice}
	}
	return items, lines, nil
}

func (s *Service) newOrder(id string, owner identity.Owner, addr *address.Address, items []Item, q Quote, key string) *Order {
	now := s.now().UTC()
	return &Order{
		ID:             id,
		OwnerID:        owner.String(),
		Items:          items,
		AddressID:      addr.ID,
		CustomerName:   addr.FullName(),
		CustomerEmail:  addr.Email,
		Amount:         q.Amount,
		Status:         StatusPlaced,
		IdempotencyKey: key,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func (s *Service) create(ctx context.Context, o *Order) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if err := s.orders.Create(ctx, o); err != nil {
		return errors.Wrap(err, "create order")
	}
	s.placed.Add(ctx, 1, metric.WithAttributes(
		attribute.String("payment_type", string(o.PaymentType)),
	))
	return nil
}

func (s *Service) transition(ctx context.Context, o *Order, to Status) (*Order, error) {
	updated, err := s.orders.UpdateStatus(ctx, o.ID, o.Status, to)
	if err != nil {
		if errors.Is(err, ErrStaleStatus) {
			return nil, ErrConcurrentUpdate
		}
		return nil, s.mapNotFound(err, "update status")
	}
	s.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", string(o.Status)),
		attribute.String("to", string(to)),
	))
	s.notifier.StatusChanged(ctx, updated)
	return updated, nil
}

func (s *Service) get(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, s.mapNotFound(err, "get order")
	}
	return o, nil
}

func (s *Service) mapNotFound(err error, op string) error {
	if errors.Is(err, ErrNotFound) {
		return ErrOrderNotFound
	}
	return errors.Wrap(err, op)
}
