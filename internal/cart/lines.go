package cart

import (
	"errors"
	"fmt"
	"math"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/money"
)

// The edits below are pure: the input cart is never modified and the
// result never aliases it.

// SetQuantity sets the quantity of lineID. A quantity of zero or less removes
// the line; an unknown lineID leaves the cart unchanged.
func SetQuantity(cart domain.Cart, lineID string, quantity int) domain.Cart {
	if quantity <= 0 {
		return RemoveLine(cart, lineID)
	}
	out := cart.Clone()
	for i := range out {
		if out[i].ID == lineID {
			out[i].Quantity = quantity
		}
	}
	return out
}

func RemoveLine(cart domain.Cart, lineID string) domain.Cart {
	out := make(domain.Cart, 0, len(cart))
	for _, line := range cart {
		if line.ID != lineID {
			out = append(out, line)
		}
	}
	return out
}

// RemoveLines drops every line whose id is in lineIDs.
func RemoveLines(cart domain.Cart, lineIDs []string) domain.Cart {
	drop := make(map[string]struct{}, len(lineIDs))
	for _, id := range lineIDs {
		drop[id] = struct{}{}
	}
	out := make(domain.Cart, 0, len(cart))
	for _, line := range cart {
		if _, ok := drop[line.ID]; !ok {
			out = append(out, line)
		}
	}
	return out
}

// Clear returns the empty cart. It encodes as [] rather than null.
func Clear() domain.Cart {
	return domain.Cart{}
}

var errTotalOverflow = errors.New("amount out of range")

// ComputeTotal sums price*quantity over every line. A line amount or total
// that does not fit in money.VND is a validation error.
func ComputeTotal(cart domain.Cart) (money.VND, error) {
	const op = "compute total"

	var total money.VND
	for _, line := range cart {
		price, err := money.Parse(line.Price)
		if err != nil {
			return 0, apperr.Validation(op, fmt.Errorf("line %s: %w", line.ID, err))
		}
		if line.Quantity > 0 && price > math.MaxInt64/money.VND(line.Quantity) {
			return 0, apperr.Validation(op, fmt.Errorf("line %s: %w", line.ID, errTotalOverflow))
		}
		amount := price * money.VND(line.Quantity)
		if total > math.MaxInt64-amount {
			return 0, apperr.Validation(op, fmt.Errorf("line %s: %w", line.ID, errTotalOverflow))
		}
		total += amount
	}
	return total, nil
}

// Validate checks the line invariants at ingestion: a quantity of at least
// one, a parseable price, a unique line id and a total that fits in VND.
func Validate(cart domain.Cart) error {
	seen := make(map[string]struct{}, len(cart))
	for _, line := range cart {
		if line.ID == "" {
			return apperr.Validationf("validate cart", "line without id")
		}
		if _, dup := seen[line.ID]; dup {
			return apperr.Validationf("validate cart", "duplicate line %s", line.ID)
		}
		seen[line.ID] = struct{}{}

		if line.Quantity < 1 {
			return apperr.Validationf("validate cart", "line %s: quantity %d", line.ID, line.Quantity)
		}
		if _, err := money.Parse(line.Price); err != nil {
			return apperr.Validation("validate cart", fmt.Errorf("line %s: %w", line.ID, err))
		}
	}
	_, err := ComputeTotal(cart)
	return err
}
