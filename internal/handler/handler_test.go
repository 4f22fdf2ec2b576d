package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinitamart/storefront/internal/domain/address"
	"github.com/vinitamart/storefront/internal/domain/auth"
	"github.com/vinitamart/storefront/internal/domain/order"
	"github.com/vinitamart/storefront/internal/domain/otp"
	"github.com/vinitamart/storefront/internal/domain/product"
	"github.com/vinitamart/storefront/internal/payment/stripe"
	"github.com/vinitamart/storefront/pkg/httpmiddleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const sellerPassword = "s3cret-pass"

type testEnv struct {
	t        *testing.T
	router   http.Handler
	auth     *auth.Service
	orders   *fakeOrders
	catalog  *fakeCatalog
	book     *fakeBook
	sender   *captureSender
	webhooks *mockWebhooks
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	hash, err := auth.HashPassword(sellerPassword)
	require.NoError(t, err)
	authSvc, err := auth.NewService(auth.Config{
		Secret:             []byte("test-secret"),
		TokenTTL:           time.Hour,
		SellerEmail:        "seller@shop.example",
		SellerPasswordHash: hash,
	})
	require.NoError(t, err)

	e := &testEnv{
		t:        t,
		auth:     authSvc,
		orders:   &fakeOrders{orders: map[string]*order.Order{}},
		sender:   &captureSender{codes: map[string]string{}},
		webhooks: &mockWebhooks{},
	}
	e.catalog = &fakeCatalog{byID: map[string]product.Product{
		"P1": {ID: "P1", Name: "Apples", OfferPrice: decimal.NewFromInt(10000), InStock: true},
	}}
	e.book = &fakeBook{byID: map[string]address.Address{
		"addr-1": {ID: "addr-1", FirstName: "Asha", LastName: "Rao", Email: "a@b.com"},
	}}

	orders, err := order.NewService(
		order.Config{SurchargeRate: order.DefaultSurchargeRate, ConfirmViaWebhook: true},
		e.catalog, e.book, e.orders, fakeGateway{}, nopNotifier{},
	)
	require.NoError(t, err)
	otps := otp.NewService(
		&memOTPStore{entries: map[string]otp.Entry{}, verified: map[string]time.Time{}},
		e.sender, otp.DefaultConfig(),
	)
	addresses := address.NewService(e.book, otps, true)

	e.router = New(cfg, orders, addresses, otps, authSvc, e.catalog, e.webhooks).Router()
	return e
}

type request struct {
	method  string
	path    string
	body    any
	raw     []byte
	headers map[string]string
	cookies []*http.Cookie
}

func (e *testEnv) do(r request) *httptest.ResponseRecorder {
	e.t.Helper()
	body := r.raw
	if r.body != nil {
		var err error
		body, err = json.Marshal(r.body)
		require.NoError(e.t, err)
	}
	req := httptest.NewRequest(r.method, r.path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	for _, c := range r.cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) userCookie(userID string) *http.Cookie {
	e.t.Helper()
	tok, err := e.auth.IssueUser(userID)
	require.NoError(e.t, err)
	return &http.Cookie{Name: userCookie, Value: tok}
}

func (e *testEnv) sellerCookie() *http.Cookie {
	e.t.Helper()
	tok, err := e.auth.IssueSeller("seller@shop.example")
	require.NoError(e.t, err)
	return &http.Cookie{Name: sellerCookie, Value: tok}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func cart(addressID string) map[string]any {
	return map[string]any{
		"items":   []map[string]any{{"product": "P1", "quantity": 2}},
		"address": addressID,
	}
}

func TestPlaceCOD(t *testing.T) {
	e := newTestEnv(t, Config{})

	rec := e.do(request{method: http.MethodPost, path: "/api/orders/cod", body: cart("addr-1")})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Order placed successfully", out["message"])
	assert.EqualValues(t, 20400, out["amount"])
}

func TestPlaceCOD_IdempotentReplay(t *testing.T) {
	e := newTestEnv(t, Config{})
	req := request{
		method:  http.MethodPost,
		path:    "/api/orders/cod",
		body:    cart("addr-1"),
		headers: map[string]string{idempotencyHeader: "cart-42"},
	}

	first := e.do(req)
	require.Equal(t, http.StatusCreated, first.Code)
	second := e.do(req)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, decode(t, first)["orderId"], decode(t, second)["orderId"])
	assert.Len(t, e.orders.orders, 1)
}

func TestPlaceCOD_Errors(t *testing.T) {
	tests := []struct {
		name   string
		req    request
		status int
		msg    string
	}{
		{
			name:   "malformed body",
			req:    request{method: http.MethodPost, path: "/api/orders/cod", raw: []byte("{")},
			status: http.StatusBadRequest,
			msg:    "Invalid order details",
		},
		{
			name:   "unknown address",
			req:    request{method: http.MethodPost, path: "/api/orders/cod", body: cart("nope")},
			status: http.StatusNotFound,
			msg:    "Address not found",
		},
		{
			name: "unknown product",
			req: request{method: http.MethodPost, path: "/api/orders/cod", body: map[string]any{
				"items":   []map[string]any{{"productId": "P9", "quantity": 1}},
				"address": "addr-1",
			}},
			status: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t, Config{})
			rec := e.do(tt.req)
			require.Equal(t, tt.status, rec.Code, rec.Body.String())
			out := decode(t, rec)
			assert.Equal(t, false, out["success"])
			if tt.msg != "" {
				assert.Equal(t, tt.msg, out["message"])
			}
			assert.Empty(t, e.orders.orders)
		})
	}
}

func TestPlaceOnline(t *testing.T) {
	e := newTestEnv(t, Config{FrontendURL: "https://fallback.example/"})

	rec := e.do(request{method: http.MethodPost, path: "/api/orders/online", body: cart("addr-1")})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(request{
		method:  http.MethodPost,
		path:    "/api/orders/online",
		body:    cart("addr-1"),
		cookies: []*http.Cookie{e.userCookie("user-1")},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	out := decode(t, rec)
	id, _ := out["orderId"].(string)
	assert.Equal(t, "https://checkout.example/"+id, out["url"])

	stored := e.orders.orders[id]
	require.NotNil(t, stored)
	assert.False(t, stored.IsPaid)
}

func TestStripeWebhook(t *testing.T) {
	e := newTestEnv(t, Config{})
	rec := e.do(request{
		method:  http.MethodPost,
		path:    "/api/orders/online",
		body:    cart("addr-1"),
		cookies: []*http.Cookie{e.userCookie("user-1")},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	id, _ := decode(t, rec)["orderId"].(string)

	payload := []byte(`{"type":"checkout.session.completed"}`)
	e.webhooks.On("ParseWebhook", payload, "sig-ok").
		Return(&stripe.Completion{OrderID: id, UserID: "user-1", SessionID: "cs_" + id}, nil)
	e.webhooks.On("ParseWebhook", payload, "sig-bad").
		Return(nil, stripe.ErrInvalidSignature)
	e.webhooks.On("ParseWebhook", payload, "sig-unknown").
		Return(&stripe.Completion{OrderID: "missing"}, nil)
	e.webhooks.On("ParseWebhook", payload, "sig-ignored").
		Return(nil, nil)

	hook := func(sig string) *httptest.ResponseRecorder {
		return e.do(request{
			method:  http.MethodPost,
			path:    "/api/orders/webhook/stripe",
			raw:     payload,
			headers: map[string]string{signatureHeader: sig},
		})
	}

	assert.Equal(t, http.StatusBadRequest, hook("sig-bad").Code)
	assert.Equal(t, http.StatusNotFound, hook("sig-unknown").Code)
	assert.Equal(t, http.StatusOK, hook("sig-ignored").Code)
	assert.False(t, e.orders.orders[id].IsPaid)

	rec = hook("sig-ok")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decode(t, rec)["received"])
	assert.True(t, e.orders.orders[id].IsPaid)
	assert.NotNil(t, e.orders.orders[id].PaidAt)

	e.webhooks.AssertNumberOfCalls(t, "ParseWebhook", 4)
	e.webhooks.AssertExpectations(t)
}

func TestMyOrdersAndCancel(t *testing.T) {
	e := newTestEnv(t, Config{})
	user := e.userCookie("user-1")

	rec := e.do(request{method: http.MethodPost, path: "/api/orders/cod", body: cart("addr-1"), cookies: []*http.Cookie{user}})
	require.Equal(t, http.StatusCreated, rec.Code)
	id, _ := decode(t, rec)["orderId"].(string)

	rec = e.do(request{method: http.MethodGet, path: "/api/orders/mine", cookies: []*http.Cookie{user}})
	require.Equal(t, http.StatusOK, rec.Code)
	orders, _ := decode(t, rec)["orders"].([]any)
	require.Len(t, orders, 1)
	first, _ := orders[0].(map[string]any)
	assert.Equal(t, "Asha Rao", first["customerName"])
	assert.Equal(t, string(order.StatusPlaced), first["status"])

	rec = e.do(request{method: http.MethodPut, path: "/api/orders/" + id + "/cancel", cookies: []*http.Cookie{e.userCookie("user-2")}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.do(request{method: http.MethodPut, path: "/api/orders/" + id + "/cancel", cookies: []*http.Cookie{user}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, string(order.StatusCancelled), decode(t, rec)["status"])

	rec = e.do(request{method: http.MethodPut, path: "/api/orders/" + id + "/cancel", cookies: []*http.Cookie{user}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMyOrdersPaging(t *testing.T) {
	e := newTestEnv(t, Config{})
	user := []*http.Cookie{e.userCookie("user-1")}
	for range 3 {
		rec := e.do(request{method: http.MethodPost, path: "/api/orders/cod", body: cart("addr-1"), cookies: user})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := e.do(request{method: http.MethodGet, path: "/api/orders/mine", cookies: user})
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Len(t, out["orders"], 3)
	assert.EqualValues(t, 3, out["total"])
	assert.EqualValues(t, 1, out["pages"])

	rec = e.do(request{method: http.MethodGet, path: "/api/orders/mine?page=2&limit=2", cookies: user})
	require.Equal(t, http.StatusOK, rec.Code)
	out = decode(t, rec)
	assert.Len(t, out["orders"], 1)
	assert.EqualValues(t, 3, out["total"])
	assert.EqualValues(t, 2, out["page"])
	assert.EqualValues(t, 2, out["pages"])

	rec = e.do(request{method: http.MethodGet, path: "/api/orders/mine?page=x", cookies: user})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSellerOrders(t *testing.T) {
	e := newTestEnv(t, Config{})
	rec := e.do(request{method: http.MethodPost, path: "/api/orders/cod", body: cart("addr-1")})
	require.Equal(t, http.StatusCreated, rec.Code)
	id, _ := decode(t, rec)["orderId"].(string)
	seller := []*http.Cookie{e.sellerCookie()}

	assert.Equal(t, http.StatusUnauthorized, e.do(request{method: http.MethodGet, path: "/api/orders"}).Code)
	assert.Equal(t, http.StatusForbidden, e.do(request{
		method:  http.MethodGet,
		path:    "/api/orders",
		cookies: []*http.Cookie{{Name: sellerCookie, Value: e.userCookie("user-1").Value}},
	}).Code)

	rec = e.do(request{method: http.MethodGet, path: "/api/orders?page=1&limit=5", cookies: seller})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.EqualValues(t, 1, out["total"])
	assert.EqualValues(t, 1, out["pages"])

	rec = e.do(request{method: http.MethodGet, path: "/api/orders?page=x", cookies: seller})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(request{
		method:  http.MethodPut,
		path:    "/api/orders/" + id + "/status",
		body:    map[string]any{"status": "Shipped"},
		cookies: seller,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Shipped", decode(t, rec)["status"])

	rec = e.do(request{
		method:  http.MethodPut,
		path:    "/api/orders/" + id + "/status",
		body:    map[string]any{"status": "Processing"},
		cookies: seller,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(request{
		method:  http.MethodPut,
		path:    "/api/orders/" + id + "/paid",
		body:    map[string]any{"isPaid": true},
		cookies: seller,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode(t, rec)["isPaid"])

	rec = e.do(request{method: http.MethodDelete, path: "/api/orders/" + id, cookies: seller})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(request{method: http.MethodDelete, path: "/api/orders/" + id, cookies: seller})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddressWithOTP(t *testing.T) {
	e := newTestEnv(t, Config{})
	addr := map[string]any{"address": map[string]any{
		"firstname": "Ravi",
		"lastname":  "Kumar",
		"email":     "Ravi@Example.com",
		"street":    "2 Hill Rd",
		"city":      "Pune",
		"state":     "MH",
		"zipcode":   411002,
		"country":   "IN",
		"phone":     "8888888888",
	}}

	rec := e.do(request{method: http.MethodPost, path: "/api/address/add", body: addr})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email not verified", decode(t, rec)["message"])

	rec = e.do(request{method: http.MethodPost, path: "/api/otp/send", body: map[string]any{"email": "ravi@example.com"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	code := e.sender.code("ravi@example.com")
	require.Len(t, code, 6)

	rec = e.do(request{method: http.MethodPost, path: "/api/verify-email-otp", body: map[string]any{"email": "ravi@example.com", "otp": "000000"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid OTP", decode(t, rec)["message"])
	rec = e.do(request{method: http.MethodPost, path: "/api/otp/verify", body: map[string]any{"email": "ravi@example.com", "otp": code}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = e.do(request{method: http.MethodPost, path: "/api/address/add", body: addr})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	out := decode(t, rec)
	assert.Equal(t, "Address added successfully", out["message"])
	saved, _ := out["address"].(map[string]any)
	assert.Equal(t, "guest:ravi@example.com", saved["userId"])
	assert.EqualValues(t, 411002, saved["zipCode"])
}

func TestListAddresses(t *testing.T) {
	e := newTestEnv(t, Config{})
	e.book.byID["addr-2"] = address.Address{ID: "addr-2", OwnerID: "user-1", FirstName: "A"}

	assert.Equal(t, http.StatusUnauthorized, e.do(request{method: http.MethodGet, path: "/api/address/get"}).Code)

	rec := e.do(request{method: http.MethodGet, path: "/api/address/get", cookies: []*http.Cookie{e.userCookie("user-1")}})
	require.Equal(t, http.StatusOK, rec.Code)
	addrs, _ := decode(t, rec)["addresses"].([]any)
	assert.Len(t, addrs, 1)
}

func TestOTPRateLimit(t *testing.T) {
	limiter := httpmiddleware.NewLimiter(httpmiddleware.RateLimitConfig{
		Max:    1,
		Window: time.Minute,
	})
	e := newTestEnv(t, Config{OTPLimiter: limiter})
	send := request{method: http.MethodPost, path: "/api/send-email-otp", body: map[string]any{"email": "x@y.com"}}

	assert.Equal(t, http.StatusOK, e.do(send).Code)
	assert.Equal(t, http.StatusTooManyRequests, e.do(send).Code)
}

func TestProducts(t *testing.T) {
	e := newTestEnv(t, Config{})

	rec := e.do(request{method: http.MethodGet, path: "/api/products"})
	require.Equal(t, http.StatusOK, rec.Code)
	products, _ := decode(t, rec)["products"].([]any)
	require.Len(t, products, 1)

	assert.Equal(t, http.StatusNotFound, e.do(request{method: http.MethodGet, path: "/api/products/P9"}).Code)

	stock := request{method: http.MethodPost, path: "/api/products/stock", body: map[string]any{"id": "P1", "inStock": false}}
	assert.Equal(t, http.StatusUnauthorized, e.do(stock).Code)

	stock.cookies = []*http.Cookie{e.sellerCookie()}
	rec = e.do(stock)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.False(t, e.catalog.byID["P1"].InStock)
}

func TestSellerSession(t *testing.T) {
	e := newTestEnv(t, Config{SecureCookies: true})

	rec := e.do(request{method: http.MethodPost, path: "/api/seller/login", body: map[string]any{"email": "seller@shop.example", "password": "wrong"}})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid credentials", decode(t, rec)["message"])

	rec = e.do(request{method: http.MethodPost, path: "/api/seller/login", body: map[string]any{"email": "Seller@Shop.example", "password": sellerPassword}})
	require.Equal(t, http.StatusOK, rec.Code)
	var session *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sellerCookie {
			session = c
		}
	}
	require.NotNil(t, session)
	assert.True(t, session.HttpOnly)
	assert.True(t, session.Secure)
	assert.Equal(t, http.SameSiteNoneMode, session.SameSite)

	rec = e.do(request{method: http.MethodGet, path: "/api/seller/is-auth", cookies: []*http.Cookie{session}})
	assert.Equal(t, true, decode(t, rec)["success"])
	rec = e.do(request{method: http.MethodGet, path: "/api/seller/is-auth"})
	assert.Equal(t, false, decode(t, rec)["success"])

	rec = e.do(request{method: http.MethodGet, path: "/api/seller/logout"})
	assert.Equal(t, "Logged out successfully", decode(t, rec)["message"])
}

func TestNoRoute(t *testing.T) {
	e := newTestEnv(t, Config{})
	rec := e.do(request{method: http.MethodGet, path: "/api/nothing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, false, decode(t, rec)["success"])
}
