package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/vinitamart/storefront/internal/domain/apperr"
	"github.com/vinitamart/storefront/internal/domain/order"
	"github.com/vinitamart/storefront/pkg/httpmiddleware"
)

const (
	idempotencyHeader = "Idempotency-Key"
	signatureHeader   = "Stripe-Signature"

	maxWebhookBytes = 64 << 10
)

type lineItemRequest struct {
	Product   string `json:"product"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type placeOrderRequest struct {
	Items   []lineItemRequest `json:"items"`
	Address string            `json:"address"`
}

func (h *Handler) placeRequest(c *gin.Context) (order.PlaceRequest, bool) {
	var body placeOrderRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, order.ErrInvalidOrder)
		return order.PlaceRequest{}, false
	}
	items := make([]order.Item, len(body.Items))
	for i, it := range body.Items {
		id := it.ProductID
		if id == "" {
			id = it.Product
		}
		items[i] = order.Item{ProductID: id, Quantity: it.Quantity}
	}

	origin := httpmiddleware.Origin(c.Request)
	if c.GetHeader("Origin") == "" && h.cfg.FrontendURL != "" {
		origin = strings.TrimRight(h.cfg.FrontendURL, "/")
	}
	return order.PlaceRequest{
		UserID:         userID(c),
		Items:          items,
		AddressID:      body.Address,
		IdempotencyKey: strings.TrimSpace(c.GetHeader(idempotencyHeader)),
		Origin:         origin,
	}, true
}

func placedStatus(res *order.PlaceResult) int {
	if res.Replayed {
		return http.StatusOK
	}
	return http.StatusCreated
}

func (h *Handler) placeCOD(c *gin.Context) {
	req, ok := h.placeRequest(c)
	if !ok {
		return
	}
	res, err := h.orders.PlaceCOD(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(placedStatus(res), gin.H{
		"success": true,
		"message": "Order placed successfully",
		"orderId": res.Order.ID,
		"amount":  res.Order.Amount,
	})
}

func (h *Handler) placeOnline(c *gin.Context) {
	req, ok := h.placeRequest(c)
	if !ok {
		return
	}
	res, err := h.orders.PlaceOnline(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(placedStatus(res), gin.H{
		"success": true,
		"message": "Order placed successfully",
		"orderId": res.Order.ID,
		"amount":  res.Order.Amount,
		"url":     res.RedirectURL,
	})
}

// stripeWebhook confirms online payments. Unknown orders answer 404 so the
// provider retries a callback that raced the order write.
func (h *Handler) stripeWebhook(c *gin.Context) {
	if h.webhooks == nil {
		c.JSON(http.StatusNotFound, errorBody{Message: "Online payments are not configured"})
		return
	}
	payload, err := readLimited(c, maxWebhookBytes)
	if err != nil {
		badRequest(c, "Invalid payload")
		return
	}
	completion, err := h.webhooks.ParseWebhook(payload, c.GetHeader(signatureHeader))
	if err != nil {
		fail(c, err)
		return
	}
	if completion == nil {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	ctx := c.Request.Context()
	o, err := h.orders.ConfirmPayment(ctx, completion.OrderID, completion.SessionID)
	if err != nil {
		fail(c, err)
		return
	}
	zctx.From(ctx).Info("Payment confirmed",
		zap.String("order_id", o.ID),
		zap.String("session_id", completion.SessionID),
	)
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func readLimited(c *gin.Context, limit int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	b, err := c.GetRawData()
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}
	return b, nil
}

// myOrders returns the caller's orders, newest first. Without a limit the
// largest page is returned.
func (h *Handler) myOrders(c *gin.Context) {
	f, err := pageFilter(c, order.MaxPageSize)
	if err != nil {
		fail(c, err)
		return
	}

	ctx := c.Request.Context()
	page, err := h.orders.ListMine(ctx, userID(c), f)
	if err != nil {
		fail(c, err)
		return
	}
	h.writePage(c, page)
}

func (h *Handler) cancelOrder(c *gin.Context) {
	o, err := h.orders.Cancel(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Order cancelled successfully",
		"status":  o.Status,
	})
}

func (h *Handler) listOrders(c *gin.Context) {
	f, err := pageFilter(c, order.DefaultPageSize)
	if err != nil {
		fail(c, err)
		return
	}
	f.Status = order.Status(c.Query("status"))
	f.Search = c.Query("search")

	page, err := h.orders.List(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	h.writePage(c, page)
}

func (h *Handler) writePage(c *gin.Context, page *order.Page) {
	views, err := h.orders.Populate(c.Request.Context(), page.Orders)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"orders":  toOrdersJSON(views),
		"total":   page.Total,
		"page":    page.Page,
		"pages":   page.Pages,
	})
}

// pageFilter reads the page and limit query parameters.
func pageFilter(c *gin.Context, defaultLimit int) (order.Filter, error) {
	var (
		f   order.Filter
		err error
	)
	if f.Page, err = queryInt(c, "page", 1); err != nil {
		return order.Filter{}, err
	}
	if f.PageSize, err = queryInt(c, "limit", defaultLimit); err != nil {
		return order.Filter{}, err
	}
	return f, nil
}

func queryInt(c *gin.Context, name string, def int) (int, error) {
	v := c.Query(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, apperr.Validation("Invalid " + name)
	}
	return n, nil
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) updateStatus(c *gin.Context) {
	var body statusRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Status is required")
		return
	}
	o, err := h.orders.UpdateStatus(c.Request.Context(), c.Param("id"), order.Status(body.Status))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Order status updated",
		"status":  o.Status,
	})
}

type paidRequest struct {
	IsPaid *bool `json:"isPaid" binding:"required"`
}

func (h *Handler) updatePaid(c *gin.Context) {
	var body paidRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "isPaid is required")
		return
	}
	o, err := h.orders.UpdatePaid(c.Request.Context(), c.Param("id"), *body.IsPaid)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Payment status updated",
		"isPaid":  o.IsPaid,
	})
}

func (h *Handler) deleteOrder(c *gin.Context) {
	if err := h.orders.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Order deleted"})
}
