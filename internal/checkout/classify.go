package checkout

import (
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// Classifier decides the order item type of a cart line.
type Classifier interface {
	Classify(line domain.CartLine) domain.ItemType
}

// Classify is the product-id heuristic the order backend expects: an id
// containing "a" is a pot, else one containing "b" is an accessory, anything
// else is a plant. Matching is case-sensitive.
func Classify(productID string) domain.ItemType {
	switch {
	case strings.Contains(productID, "a"):
		return domain.ItemTypePot
	case strings.Contains(productID, "b"):
		return domain.ItemTypeAccessory
	default:
		return domain.ItemTypePlant
	}
}

type ProductIDClassifier struct{}

func (ProductIDClassifier) Classify(line domain.CartLine) domain.ItemType {
	return Classify(line.ProductID)
}

// CategoryClassifier trusts the line's catalog category and falls back to
// the product-id rule when the line has none.
type CategoryClassifier struct{}

func (CategoryClassifier) Classify(line domain.CartLine) domain.ItemType {
	switch line.Category {
	case domain.CategoryPot:
		return domain.ItemTypePot
	case domain.CategoryAccessory:
		return domain.ItemTypeAccessory
	case domain.CategoryPlant:
		return domain.ItemTypePlant
	}
	return Classify(line.ProductID)
}

func NewClassifier(byCategory bool) Classifier {
	if byCategory {
		return CategoryClassifier{}
	}
	return ProductIDClassifier{}
}
