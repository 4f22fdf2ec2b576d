package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinitamart/storefront/internal/domain/order"
	"github.com/vinitamart/storefront/internal/payment"
)

const testWebhookSecret = "whsec_test"

// --- Helpers ---

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	pricer, err := payment.NewUnitPricer(payment.DefaultUnitPriceConfig())
	require.NoError(t, err)
	return New(Config{SecretKey: "sk_test", WebhookSecret: testWebhookSecret}, pricer)
}

func sign(payload []byte, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(testWebhookSecret))
	unix := strconv.FormatInt(ts.Unix(), 10)
	mac.Write([]byte(unix + "."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", unix, hex.EncodeToString(mac.Sum(nil)))
}

func eventPayload(eventType, paymentStatus string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_1",
		"object": "event",
		"api_version": "2023-10-16",
		"type": %q,
		"data": {"object": {
			"id": "cs_test_1",
			"object": "checkout.session",
			"payment_status": %q,
			"metadata": {"orderId": "order-1", "userId": "user-1"}
		}}
	}`, eventType, paymentStatus))
}

// --- Tests ---

func TestSessionParams(t *testing.T) {
	p := newTestProvider(t)

	params := p.sessionParams(order.CheckoutRequest{
		OrderID: "order-1",
		UserID:  "user-1",
		Lines: []order.CheckoutLine{
			{ProductID: "P1", Name: "Apples", Quantity: 2, UnitPrice: decimal.NewFromInt(100)},
		},
		SuccessURL: "https://shop.example/loader?next=/my-orders",
		CancelURL:  "https://shop.example/cart",
	})

	assert.Equal(t, "payment", *params.Mode)
	assert.Equal(t, "https://shop.example/cart", *params.CancelURL)
	require.Len(t, params.LineItems, 1)
	li := params.LineItems[0]
	assert.Equal(t, int64(2), *li.Quantity)
	assert.Equal(t, "usd", *li.PriceData.Currency)
	assert.Equal(t, "Apples", *li.PriceData.ProductData.Name)
	assert.Equal(t, int64(20000), *li.PriceData.UnitAmount)
	assert.Equal(t, "order-1", params.Metadata[MetadataOrderID])
	assert.Equal(t, "user-1", params.Metadata[MetadataUserID])
	assert.Nil(t, params.IdempotencyKey)
}

func TestParseWebhook_Completed(t *testing.T) {
	p := newTestProvider(t)
	payload := eventPayload("checkout.session.completed", "paid")

	c, err := p.ParseWebhook(payload, sign(payload, time.Now()))
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "order-1", c.OrderID)
	assert.Equal(t, "user-1", c.UserID)
	assert.Equal(t, "cs_test_1", c.SessionID)
}

func TestParseWebhook_Ignored(t *testing.T) {
	p := newTestProvider(t)

	for _, payload := range [][]byte{
		eventPayload("checkout.session.expired", "unpaid"),
		eventPayload("checkout.session.completed", "unpaid"),
	} {
		c, err := p.ParseWebhook(payload, sign(payload, time.Now()))
		require.NoError(t, err)
		assert.Nil(t, c)
	}
}

func TestParseWebhook_BadSignature(t *testing.T) {
	p := newTestProvider(t)
	payload := eventPayload("checkout.session.completed", "paid")

	_, err := p.ParseWebhook(payload, "t=1,v1=deadbeef")
	require.ErrorIs(t, err, ErrInvalidSignature)

	_, err = p.ParseWebhook(payload, sign(payload, time.Now().Add(-time.Hour)))
	require.ErrorIs(t, err, ErrInvalidSignature)
}
