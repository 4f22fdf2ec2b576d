package order

import (
	"github.com/vinitamart/storefront/internal/domain/address"
	"github.com/vinitamart/storefront/internal/domain/identity"
)

// ResolveOwner fixes the owner of a new order. An authenticated user id wins;
// otherwise the guest identity derived from the delivery email is used so
// repeat guest orders group together.
func ResolveOwner(userID string, addr *address.Address) identity.Owner {
	if userID != "" {
		return identity.Registered(userID)
	}
	return identity.Guest(addr.Email)
}
