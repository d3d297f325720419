package checkout

import (
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/money"
)

const DefaultShippingFee money.VND = 30000

type ShippingPolicy interface {
	Fee(cart domain.Cart, subtotal money.VND) money.VND
}

// FlatRate charges the same fee for every order.
type FlatRate money.VND

func (f FlatRate) Fee(domain.Cart, money.VND) money.VND {
	return money.VND(f)
}

func ComputeFinal(subtotal, fee money.VND) money.VND {
	return subtotal + fee
}
