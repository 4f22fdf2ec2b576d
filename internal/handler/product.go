package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-faster/errors"

	"github.com/vinitamart/storefront/internal/domain/apperr"
	"github.com/vinitamart/storefront/internal/domain/product"
)

var errProductNotFound = apperr.NotFound("Product not found")

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.catalog.List(c.Request.Context())
	if err != nil {
		fail(c, errors.Wrap(err, "list products"))
		return
	}
	out := make([]productJSON, len(products))
	for i, p := range products {
		out[i] = toProductJSON(p)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "products": out})
}

func (h *Handler) getProduct(c *gin.Context) {
	p, err := h.catalog.FindByID(c.Request.Context(), c.Param("id"))
	if errors.Is(err, product.ErrNotFound) {
		fail(c, errProductNotFound)
		return
	}
	if err != nil {
		fail(c, errors.Wrap(err, "get product"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "product": toProductJSON(*p)})
}

type stockRequest struct {
	ID      string `json:"id" binding:"required"`
	InStock *bool  `json:"inStock" binding:"required"`
}

func (h *Handler) setStock(c *gin.Context) {
	var body stockRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "Product id and inStock are required")
		return
	}
	p, err := h.catalog.SetInStock(c.Request.Context(), body.ID, *body.InStock)
	if errors.Is(err, product.ErrNotFound) {
		fail(c, errProductNotFound)
		return
	}
	if err != nil {
		fail(c, errors.Wrap(err, "set stock"))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Stock Updated",
		"product": toProductJSON(*p),
	})
}
