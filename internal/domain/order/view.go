package order

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/vinitamart/storefront/internal/domain/address"
	"github.com/vinitamart/storefront/internal/domain/product"
)

// Placeholders for references that no longer resolve.
const (
	UnknownCustomer = "Unknown Customer"
	UnknownProduct  = "Unknown Product"
)

// ItemView is a line item joined with its current catalog entry.
type ItemView struct {
	Item
	Product *product.Product
}

// View is an order joined with its address and products for display.
type View struct {
	Order
	Address      *address.Address
	CustomerName string
	Items        []ItemView
}

// Populate joins the orders with their addresses and products, resolving each
// collection in a single batch.
func (s *Service) Populate(ctx context.Context, orders []Order) ([]View, error) {
	addrIDs := make([]string, 0, len(orders))
	productIDs := make([]string, 0, len(orders))
	seenAddr := make(map[string]struct{})
	seenProduct := make(map[string]struct{})
	for _, o := range orders {
		if _, ok := seenAddr[o.AddressID]; !ok && o.AddressID != "" {
			seenAddr[o.AddressID] = struct{}{}
			addrIDs = append(addrIDs, o.AddressID)
		}
		for _, it := range o.Items {
			if _, ok := seenProduct[it.ProductID]; !ok {
				seenProduct[it.ProductID] = struct{}{}
				productIDs = append(productIDs, it.ProductID)
			}
		}
	}

	addrMap := make(map[string]address.Address)
	if len(addrIDs) > 0 {
		addrs, err := s.addresses.FindByIDs(ctx, addrIDs)
		if err != nil {
			return nil, errors.Wrap(err, "get addresses")
		}
		for _, a := range addrs {
			addrMap[a.ID] = a
		}
	}
	productMap := make(map[string]product.Product)
	if len(productIDs) > 0 {
		products, err := s.catalog.FindByIDs(ctx, productIDs)
		if err != nil {
			return nil, errors.Wrap(err, "get products")
		}
		for _, p := range products {
			productMap[p.ID] = p
		}
	}

	views := make([]View, len(orders))
	for i, o := range orders {
		v := View{Order: o, CustomerName: o.CustomerName}
		if a, ok := addrMap[o.AddressID]; ok {
			v.Address = &a
			v.CustomerName = a.FullName()
		}
		if v.CustomerName == "" {
			v.CustomerName = UnknownCustomer
		}
		v.Items = make([]ItemView, len(o.Items))
		for j, it := range o.Items {
			iv := ItemView{Item: it}
			if p, ok := productMap[it.ProductID]; ok {
				iv.Product = &p
				iv.Name = p.Name
			}
			if iv.Name == "" {
				iv.Name = UnknownProduct
			}
			v.Items[j] = iv
		}
		views[i] = v
	}
	return views, nil
}
