package cart

import (
	"encoding/json"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/money"
)

// EncodeHandoff serializes the checkout hand-off: cart and user as JSON text,
// the total as a plain decimal integer.
func EncodeHandoff(cart domain.Cart, user domain.UserProfile, total money.VND) (*domain.Handoff, error) {
	cartData, err := json.Marshal(cart.Clone())
	if err != nil {
		return nil, fmt.Errorf("marshal cart: %w", err)
	}
	userData, err := json.Marshal(user)
	if err != nil {
		return nil, fmt.Errorf("marshal user: %w", err)
	}
	return &domain.Handoff{
		CartData:    string(cartData),
		UserData:    string(userData),
		TotalAmount: total.Text(),
	}, nil
}

func DecodeHandoff(h *domain.Handoff) (domain.Cart, domain.UserProfile, money.VND, error) {
	var (
		cart domain.Cart
		user domain.UserProfile
	)
	if h.Empty() {
		return nil, user, 0, fmt.Errorf("empty handoff")
	}
	if err := json.Unmarshal([]byte(h.CartData), &cart); err != nil {
		return nil, user, 0, fmt.Errorf("decode cartData: %w", err)
	}
	if err := json.Unmarshal([]byte(h.UserData), &user); err != nil {
		return nil, user, 0, fmt.Errorf("decode userData: %w", err)
	}
	total, err := money.ParseText(h.TotalAmount)
	if err != nil {
		return nil, user, 0, fmt.Errorf("decode totalAmount: %w", err)
	}
	return cart.Clone(), user, total, nil
}
