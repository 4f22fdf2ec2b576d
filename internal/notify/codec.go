package notify

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Encode writes the message as a JSON object.
func Encode(m Message) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("id")
	e.Str(m.ID)
	e.FieldStart("kind")
	e.Str(string(m.Kind))
	e.FieldStart("to")
	e.Str(m.To)
	e.FieldStart("orderId")
	e.Str(m.OrderID)
	if m.CustomerName != "" {
		e.FieldStart("customerName")
		e.Str(m.CustomerName)
	}
	if m.CustomerEmail != "" {
		e.FieldStart("customerEmail")
		e.Str(m.CustomerEmail)
	}
	e.FieldStart("amount")
	e.Int64(m.Amount)
	if m.PaymentType != "" {
		e.FieldStart("paymentType")
		e.Str(m.PaymentType)
	}
	if m.Status != "" {
		e.FieldStart("status")
		e.Str(m.Status)
	}
	e.FieldStart("itemCount")
	e.Int(m.ItemCount)
	e.FieldStart("createdAt")
	e.Str(m.CreatedAt.UTC().Format(time.RFC3339Nano))
	e.ObjEnd()
	return e.Bytes()
}

// Decode parses a message written by Encode. Unknown fields are skipped.
func Decode(data []byte) (Message, error) {
	var m Message
	d := jx.DecodeBytes(data)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			m.ID, err = d.Str()
		case "kind":
			var s string
			s, err = d.Str()
			m.Kind = Kind(s)
		case "to":
			m.To, err = d.Str()
		case "orderId":
			m.OrderID, err = d.Str()
		case "customerName":
			m.CustomerName, err = d.Str()
		case "customerEmail":
			m.CustomerEmail, err = d.Str()
		case "amount":
			m.Amount, err = d.Int64()
		case "paymentType":
			m.PaymentType, err = d.Str()
		case "status":
			m.Status, err = d.Str()
		case "itemCount":
			m.ItemCount, err = d.Int()
		case "createdAt":
			var s string
			if s, err = d.Str(); err == nil {
				m.CreatedAt, err = time.Parse(time.RFC3339Nano, s)
			}
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	}); err != nil {
		return Message{}, errors.Wrap(err, "decode message")
	}
	return m, nil
}
