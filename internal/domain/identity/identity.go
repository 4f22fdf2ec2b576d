// Package identity models who owns an order or an address: a registered
// account, or a guest keyed by the delivery email.
package identity

import "strings"

const guestPrefix = "guest:"

type kind uint8

const (
	kindNone kind = iota
	kindRegistered
	kindGuest
)

// Owner is either Registered(id) or Guest(email). The zero value is an
// anonymous caller with no identity.
type Owner struct {
	kind  kind
	value string
}

// Registered returns the owner for an authenticated account.
func Registered(userID string) Owner {
	return Owner{kind: kindRegistered, value: userID}
}

// Guest returns the deterministic owner for an unauthenticated customer.
func Guest(email string) Owner {
	return Owner{kind: kindGuest, value: email}
}

// Parse restores an Owner from its persisted form.
func Parse(s string) Owner {
	if s == "" {
		return Owner{}
	}
	if email, ok := strings.CutPrefix(s, guestPrefix); ok {
		return Guest(email)
	}
	return Registered(s)
}

// String returns the persisted form: the account id verbatim, or
// "guest:<email>".
func (o Owner) String() string {
	switch o.kind {
	case kindRegistered:
		return o.value
	case kindGuest:
		return guestPrefix + o.value
	default:
		return ""
	}
}

func (o Owner) IsZero() bool       { return o.kind == kindNone }
func (o Owner) IsGuest() bool      { return o.kind == kindGuest }
func (o Owner) IsRegistered() bool { return o.kind == kindRegistered }

// UserID returns the account id of a registered owner.
func (o Owner) UserID() (string, bool) {
	return o.value, o.kind == kindRegistered
}

// Email returns the email of a guest owner.
func (o Owner) Email() (string, bool) {
	return o.value, o.kind == kindGuest
}
