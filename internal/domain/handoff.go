package domain

// Handoff is the bundle the cart screen passes to the checkout screen. Every
// field is text: cart and user as JSON, the total as a decimal integer.
type Handoff struct {
	CartData    string `json:"cartData"`
	UserData    string `json:"userData"`
	TotalAmount string `json:"totalAmount"`
}

func (h *Handoff) Empty() bool {
	return h == nil || (h.CartData == "" && h.UserData == "" && h.TotalAmount == "")
}
