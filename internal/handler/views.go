package handler

import (
	"time"

	"github.com/vinitamart/storefront/internal/domain/address"
	"github.com/vinitamart/storefront/internal/domain/order"
	"github.com/vinitamart/storefront/internal/domain/product"
)

type productJSON struct {
	ID          string   `json:"_id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Price       float64  `json:"price"`
	OfferPrice  float64  `json:"offerPrice"`
	Image       []string `json:"image"`
	InStock     bool     `json:"inStock"`
}

func toProductJSON(p product.Product) productJSON {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return productJSON{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price.InexactFloat64(),
		OfferPrice:  p.OfferPrice.InexactFloat64(),
		Image:       images,
		InStock:     p.InStock,
	}
}

type addressJSON struct {
	ID        string    `json:"_id,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Street    string    `json:"street"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	ZipCode   any       `json:"zipCode"`
	Country   string    `json:"country"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// unknownAddress stands in for an address that no longer resolves.
var unknownAddress = addressJSON{
	FirstName: "Unknown",
	LastName:  "Customer",
	Email:     "unknown@email.com",
	Street:    "N/A",
	City:      "N/A",
	State:     "N/A",
	ZipCode:   "N/A",
	Country:   "N/A",
	Phone:     "N/A",
}

func toAddressJSON(a address.Address) addressJSON {
	return addressJSON{
		ID:        a.ID,
		UserID:    a.OwnerID,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Email:     a.Email,
		Street:    a.Street,
		City:      a.City,
		State:     a.State,
		ZipCode:   a.ZipCode,
		Country:   a.Country,
		Phone:     a.Phone,
		CreatedAt: a.CreatedAt,
	}
}

type itemJSON struct {
	Product  productJSON `json:"product"`
	Quantity int         `json:"quantity"`
}

type orderJSON struct {
	ID           string      `json:"_id"`
	UserID       string      `json:"userId"`
	Items        []itemJSON  `json:"items"`
	Address      addressJSON `json:"address"`
	CustomerName string      `json:"customerName"`
	Amount       int64       `json:"amount"`
	PaymentType  string      `json:"paymentType"`
	IsPaid       bool        `json:"isPaid"`
	PaidAt       *time.Time  `json:"paidAt,omitempty"`
	Status       string      `json:"status"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
}

func toOrderJSON(v order.View) orderJSON {
	out := orderJSON{
		ID:           v.ID,
		UserID:       v.OwnerID,
		Items:        make([]itemJSON, len(v.Items)),
		Address:      unknownAddress,
		CustomerName: v.CustomerName,
		Amount:       v.Amount,
		PaymentType:  string(v.PaymentType),
		IsPaid:       v.IsPaid,
		PaidAt:       v.PaidAt,
		Status:       string(v.Status),
		CreatedAt:    v.CreatedAt,
		UpdatedAt:    v.UpdatedAt,
	}
	if v.Address != nil {
		out.Address = toAddressJSON(*v.Address)
	}
	for i, it := range v.Items {
		p := productJSON{ID: it.ProductID, Name: it.Name, Image: []string{}}
		if it.Product != nil {
			p = toProductJSON(*it.Product)
		}
		out.Items[i] = itemJSON{Product: p, Quantity: it.Quantity}
	}
	return out
}

func toOrdersJSON(views []order.View) []orderJSON {
	out := make([]orderJSON, len(views))
	for i, v := range views {
		out[i] = toOrderJSON(v)
	}
	return out
}
