// Package handler exposes the storefront API over gin.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vinitamart/storefront/internal/domain/address"
	"github.com/vinitamart/storefront/internal/domain/auth"
	"github.com/vinitamart/storefront/internal/domain/order"
	"github.com/vinitamart/storefront/internal/domain/otp"
	"github.com/vinitamart/storefront/internal/domain/product"
	"github.com/vinitamart/storefront/internal/payment/stripe"
	"github.com/vinitamart/storefront/pkg/httpmiddleware"
)

// WebhookParser authenticates and decodes payment provider callbacks.
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (*stripe.Completion, error)
}

// Config holds non-dependency settings of the Handler.
type Config struct {
	// FrontendURL is the checkout redirect base used when the request does
	// not carry an Origin header.
	FrontendURL string
	// SecureCookies marks auth cookies Secure and SameSite=None.
	SecureCookies bool
	// OTPLimiter throttles the OTP routes per client. Nil disables it.
	OTPLimiter *httpmiddleware.Limiter
}

// Handler serves the storefront API.
type Handler struct {
	cfg       Config
	orders    *order.Service
	addresses *address.Service
	otps      *otp.Service
	auth      *auth.Service
	catalog   product.Catalog
	webhooks  WebhookParser
}

// New constructs a Handler. webhooks may be nil when online payments are not
// configured.
func New(
	cfg Config,
	orders *order.Service,
	addresses *address.Service,
	otps *otp.Service,
	authSvc *auth.Service,
	catalog product.Catalog,
	webhooks WebhookParser,
) *Handler {
	return &Handler{
		cfg:       cfg,
		orders:    orders,
		addresses: addresses,
		otps:      otps,
		auth:      authSvc,
		catalog:   catalog,
		webhooks:  webhooks,
	}
}

// Router builds the gin engine serving /api.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(routeLabel())
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody{Message: "Not Found"})
	})

	api := r.Group("/api")

	orders := api.Group("/orders")
	orders.POST("/cod", h.optionalUser(), h.placeCOD)
	orders.POST("/online", h.requireUser(), h.placeOnline)
	orders.POST("/webhook/stripe", h.stripeWebhook)
	orders.GET("/mine", h.requireUser(), h.myOrders)
	orders.PUT("/:id/cancel", h.requireUser(), h.cancelOrder)
	orders.GET("", h.requireSeller(), h.listOrders)
	orders.PUT("/:id/status", h.requireSeller(), h.updateStatus)
	orders.PUT("/:id/paid", h.requireSeller(), h.updatePaid)
	orders.DELETE("/:id", h.requireSeller(), h.deleteOrder)

	addresses := api.Group("/address")
	addresses.POST("/add", h.optionalUser(), h.addAddress)
	addresses.GET("/get", h.requireUser(), h.listAddresses)

	otps := api.Group("", h.limitOTP())
	otps.POST("/otp/send", h.sendOTP)
	otps.POST("/otp/verify", h.verifyOTP)
	otps.POST("/send-email-otp", h.sendOTP)
	otps.POST("/verify-email-otp", h.verifyOTP)

	products := api.Group("/products")
	products.GET("", h.listProducts)
	products.GET("/:id", h.getProduct)
	products.POST("/stock", h.requireSeller(), h.setStock)

	seller := api.Group("/seller")
	seller.POST("/login", h.sellerLogin)
	seller.GET("/is-auth", h.sellerIsAuth)
	seller.GET("/logout", h.sellerLogout)

	return r
}

// routeLabel reports the matched gin route to the net/http instrumentation.
func routeLabel() gin.HandlerFunc {
	return func(c *gin.Context) {
		httpmiddleware.SetRoute(c.Request.Context(), c.Request.Method, c.FullPath())
		c.Next()
	}
}

func (h *Handler) limitOTP() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.cfg.OTPLimiter != nil && !h.cfg.OTPLimiter.Check(c.Writer, c.Request) {
			c.Abort()
			return
		}
		c.Next()
	}
}
