// Package stripe implements the hosted checkout gateway on Stripe.
package stripe

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/vinitamart/storefront/internal/domain/apperr"
	"github.com/vinitamart/storefront/internal/domain/order"
	"github.com/vinitamart/storefront/internal/payment"
)

// Metadata keys attached to every checkout session.
const (
	MetadataOrderID = "orderId"
	MetadataUserID  = "userId"
)

const eventCheckoutCompleted stripego.EventType = "checkout.session.completed"

// ErrInvalidSignature is returned for webhook payloads that fail signature
// verification.
var ErrInvalidSignature = apperr.Validation("Invalid webhook signature")

// Config holds Stripe credentials.
type Config struct {
	SecretKey     string
	WebhookSecret string
	Currency      string
}

// Provider creates checkout sessions and parses webhook events.
type Provider struct {
	api    *client.API
	cfg    Config
	pricer *payment.UnitPricer
}

var _ order.PaymentGateway = (*Provider)(nil)

// New creates a Provider.
func New(cfg Config, pricer *payment.UnitPricer) *Provider {
	if cfg.Currency == "" {
		cfg.Currency = string(stripego.CurrencyUSD)
	}
	return &Provider{
		api:    client.New(cfg.SecretKey, nil),
		cfg:    cfg,
		pricer: pricer,
	}
}

// CreateCheckout creates a hosted payment session for the order manifest.
func (p *Provider) CreateCheckout(ctx context.Context, req order.CheckoutRequest) (*order.CheckoutSession, error) {
	params := p.sessionParams(req)
	params.Context = ctx

	s, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, errors.Wrap(err, "stripe: create session")
	}
	return &order.CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// ExpireCheckout expires an open session so it can no longer be paid.
func (p *Provider) ExpireCheckout(ctx context.Context, sessionID string) error {
	params := &stripego.CheckoutSessionExpireParams{}
	params.Context = ctx
	if _, err := p.api.CheckoutSessions.Expire(sessionID, params); err != nil {
		return errors.Wrap(err, "stripe: expire session")
	}
	return nil
}

func (p *Provider) sessionParams(req order.CheckoutRequest) *stripego.CheckoutSessionParams {
	params := &stripego.CheckoutSessionParams{
		Mode:       stripego.String(string(stripego.CheckoutSessionModePayment)),
		SuccessURL: stripego.String(req.SuccessURL),
		CancelURL:  stripego.String(req.CancelURL),
		LineItems:  make([]*stripego.CheckoutSessionLineItemParams, 0, len(req.Lines)),
	}
	for _, l := range req.Lines {
		params.LineItems = append(params.LineItems, &stripego.CheckoutSessionLineItemParams{
			PriceData: &stripego.CheckoutSessionLineItemPriceDataParams{
				Currency: stripego.String(p.cfg.Currency),
				ProductData: &stripego.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripego.String(l.Name),
				},
				UnitAmount: stripego.Int64(p.pricer.UnitAmount(l.UnitPrice)),
			},
			Quantity: stripego.Int64(int64(l.Quantity)),
		})
	}
	params.AddMetadata(MetadataOrderID, req.OrderID)
	params.AddMetadata(MetadataUserID, req.UserID)
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.OrderID + ":" + req.IdempotencyKey)
	}
	return params
}

// Completion is a settled checkout reported by the webhook.
type Completion struct {
	OrderID   string
	UserID    string
	SessionID string
}

// ParseWebhook verifies the payload signature and extracts a completed
// checkout. Events other than a paid checkout.session.completed return nil.
func (p *Provider) ParseWebhook(payload []byte, signature string) (*Completion, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, p.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, ErrInvalidSignature
	}
	if event.Type != eventCheckoutCompleted {
		return nil, nil
	}

	var s stripego.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return nil, errors.Wrap(err, "decode checkout session")
	}
	if s.PaymentStatus != stripego.CheckoutSessionPaymentStatusPaid {
		return nil, nil
	}
	orderID := s.Metadata[MetadataOrderID]
	if orderID == "" {
		return nil, apperr.Validation("Checkout session has no order id")
	}
	return &Completion{
		OrderID:   orderID,
		UserID:    s.Metadata[MetadataUserID],
		SessionID: s.ID,
	}, nil
}
