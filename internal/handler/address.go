package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vinitamart/storefront/internal/domain/address"
)

// addressFields accepts the camel-case and lower-case spellings clients
// send; JSON field matching is case-insensitive.
type addressFields struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   any    `json:"zipCode"`
	Country   string `json:"country"`
	Phone     string `json:"phone"`
}

type addAddressRequest struct {
	Address *addressFields `json:"address"`
}

func (h *Handler) addAddress(c *gin.Context) {
	var body addAddressRequest
	if err := c.ShouldBindJSON(&body); err != nil || body.Address == nil {
		badRequest(c, "Address is required")
		return
	}
	f := body.Address
	a, err := h.addresses.Add(c.Request.Context(), userID(c), address.Input{
		FirstName: f.FirstName,
		LastName:  f.LastName,
		Email:     f.Email,
		Street:    f.Street,
		City:      f.City,
		State:     f.State,
		ZipCode:   zipString(f.ZipCode),
		Country:   f.Country,
		Phone:     f.Phone,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Address added successfully",
		"address": toAddressJSON(*a),
	})
}

// zipString renders a zip code sent either as a JSON number or a string.
func zipString(v any) string {
	switch z := v.(type) {
	case string:
		return z
	case float64:
		return strconv.FormatFloat(z, 'f', -1, 64)
	default:
		return ""
	}
}

func (h *Handler) listAddresses(c *gin.Context) {
	addrs, err := h.addresses.List(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, err)
		return
	}
	out := make([]addressJSON, len(addrs))
	for i, a := range addrs {
		out[i] = toAddressJSON(a)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "addresses": out})
}
