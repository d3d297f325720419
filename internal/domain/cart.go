package domain

type Category string

const (
	CategoryPlant     Category = "plant"
	CategoryPot       Category = "pot"
	CategoryAccessory Category = "accessory"
)

func (c Category) Valid() bool {
	return c == CategoryPlant || c == CategoryPot || c == CategoryAccessory
}

// CartLine is one product entry in a user's cart. Price keeps the store's
// formatted currency text ("10.000đ").
type CartLine struct {
	ID        string   `json:"id"`
	ProductID string   `json:"productId"`
	Name      string   `json:"name"`
	Price     string   `json:"price"`
	Image     string   `json:"image"`
	Quantity  int      `json:"quantity"`
	Category  Category `json:"category,omitempty"`
}

// Cart is the ordered line sequence embedded in the user resource.
type Cart []CartLine

func (c Cart) Find(lineID string) (CartLine, bool) {
	for _, line := range c {
		if line.ID == lineID {
			return line, true
		}
	}
	return CartLine{}, false
}

// Clone returns a copy that never aliases c. A nil cart clones to an empty one
// so it encodes as [] instead of null.
func (c Cart) Clone() Cart {
	out := make(Cart, len(c))
	copy(out, c)
	return out
}

func (c Cart) ItemCount() int {
	n := 0
	for _, line := range c {
		n += line.Quantity
	}
	return n
}
