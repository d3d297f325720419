package orders

import (
	"context"
	"errors"
	"time"
)

var ErrNotJournaled = errors.New("not journaled")

// PendingClear records an order whose cart still has to be emptied. It is
// written before the order is created and rewritten with OrderCreated once
// the store has accepted it.
type PendingClear struct {
	OrderID      string    `json:"orderId"`
	UserID       string    `json:"userId"`
	OrderCreated bool      `json:"orderCreated"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Journal is the device-side record that keeps placement recoverable. A user
// has at most one pending clear.
type Journal interface {
	// ClaimIdempotency binds key to orderID unless it is already bound, and
	// returns the order id the key is bound to.
	ClaimIdempotency(ctx context.Context, userID, key, orderID string) (string, error)
	MarkPending(ctx context.Context, p PendingClear) error
	// Pending returns ErrNotJournaled when userID has nothing pending.
	Pending(ctx context.Context, userID string) (*PendingClear, error)
	ListPending(ctx context.Context) ([]PendingClear, error)
	Resolve(ctx context.Context, userID string) error
}
