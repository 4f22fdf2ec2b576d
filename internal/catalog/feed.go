// Package catalog decodes product feeds: the JSON array used for seeding and
// the JSON-lines dumps consumed by catalog-import.
package catalog

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/vinitamart/storefront/internal/domain/product"
)

// DecodeList parses a JSON array of products.
func DecodeList(data []byte) ([]product.Product, error) {
	var out []product.Product
	d := jx.DecodeBytes(data)
	if err := d.Arr(func(d *jx.Decoder) error {
		p, err := decodeProduct(d)
		if err != nil {
			return errors.Wrapf(err, "product %d", len(out))
		}
		out = append(out, p)
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeLine parses one product object of a JSON-lines dump.
func DecodeLine(line []byte) (product.Product, error) {
	return decodeProduct(jx.DecodeBytes(line))
}

func decodeProduct(d *jx.Decoder) (product.Product, error) {
	p := product.Product{InStock: true}
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id", "_id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "description":
			p.Description, err = decodeText(d)
		case "category":
			p.Category, err = d.Str()
		case "price":
			p.Price, err = decodeDecimal(d)
		case "offerPrice":
			p.OfferPrice, err = decodeDecimal(d)
		case "image", "images":
			p.Images, err = decodeStrings(d)
		case "inStock":
			p.InStock, err = d.Bool()
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	}); err != nil {
		return product.Product{}, err
	}
	if err := Validate(p); err != nil {
		return product.Product{}, err
	}
	return p, nil
}

// Validate checks the fields every stored product needs.
func Validate(p product.Product) error {
	switch {
	case strings.TrimSpace(p.ID) == "":
		return errors.New("product id is empty")
	case strings.TrimSpace(p.Name) == "":
		return errors.Errorf("product %s: name is empty", p.ID)
	case p.Price.IsNegative(), p.OfferPrice.IsNegative():
		return errors.Errorf("product %s: negative price", p.ID)
	case !p.OfferPrice.Equal(p.OfferPrice.Truncate(0)):
		return errors.Errorf("product %s: offer price %s is not a whole number of minor units", p.ID, p.OfferPrice)
	}
	return nil
}

// decodeDecimal accepts a number or a numeric string.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	}
}

// decodeText accepts a string or an array of lines.
func decodeText(d *jx.Decoder) (string, error) {
	if d.Next() == jx.String {
		return d.Str()
	}
	lines, err := decodeStrings(d)
	if err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

// decodeStrings accepts a string array or a single string.
func decodeStrings(d *jx.Decoder) ([]string, error) {
	if d.Next() == jx.String {
		s, err := d.Str()
		if err != nil {
			return nil, err
		}
		return []string{s}, nil
	}
	out := []string{}
	if err := d.Arr(func(d *jx.Decoder) error {
		s, err := d.Str()
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}
