package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, err := NewRenderer(Branding{Brand: "Vinitamart", SupportEmail: "support@vinitamart.com"})
	require.NoError(t, err)
	return r
}

func TestRender_Confirmation(t *testing.T) {
	r := newTestRenderer(t)

	m, err := r.Render(Message{
		Kind:         KindConfirmation,
		To:           "a@b.com",
		OrderID:      "o-1",
		CustomerName: "Asha Rao",
		Amount:       20400,
		PaymentType:  "COD",
	})
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", m.To)
	assert.Equal(t, "Your order o-1 has been placed", m.Subject)
	assert.Contains(t, m.Text, "Hello Asha Rao")
	assert.Contains(t, m.Text, "Amount: 20400")
	assert.Contains(t, m.HTML, "Order Confirmation")
	assert.Contains(t, m.HTML, "support@vinitamart.com")
}

func TestRender_StatusUpdateDefaultsName(t *testing.T) {
	r := newTestRenderer(t)

	m, err := r.Render(Message{Kind: KindStatusUpdate, To: "a@b.com", OrderID: "o-1", Status: "Shipped"})
	require.NoError(t, err)
	assert.Equal(t, "Your order o-1 is now Shipped", m.Subject)
	assert.Contains(t, m.Text, "Hello Customer")
	assert.Contains(t, m.HTML, "<strong>Shipped</strong>")
}

func TestRender_SellerAlertEscapesHTML(t *testing.T) {
	r := newTestRenderer(t)

	m, err := r.Render(Message{
		Kind:          KindSellerAlert,
		To:            "seller@shop.example",
		OrderID:       "o-1",
		CustomerName:  "<script>x</script>",
		CustomerEmail: "a@b.com",
		ItemCount:     2,
		CreatedAt:     time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "New order received: o-1", m.Subject)
	assert.Contains(t, m.Text, "Items: 2")
	assert.NotContains(t, m.HTML, "<script>")
	assert.Contains(t, m.HTML, "2025-03-01 10:00 UTC")
}

func TestRenderOTP(t *testing.T) {
	r := newTestRenderer(t)

	m, err := r.RenderOTP("a@b.com", "123456", 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "Vinitamart OTP: 123456", m.Subject)
	assert.Contains(t, m.Text, "expire in 5 minutes")
	assert.Contains(t, m.HTML, "123456")
}

func TestRender_Invalid(t *testing.T) {
	r := newTestRenderer(t)

	_, err := r.Render(Message{Kind: "bogus", To: "a@b.com", OrderID: "o-1"})
	require.Error(t, err)
	_, err = r.Render(Message{Kind: KindConfirmation, OrderID: "o-1"})
	require.Error(t, err)
}
