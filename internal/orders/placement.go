package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/store"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"go.uber.org/zap"
)

// ErrCartClearPending means the order exists but the cart could not be
// emptied yet. The clear is journaled and retried in the background.
var ErrCartClearPending = errors.New("order placed, cart clear pending")

// ErrCartChanged means the cart no longer holds what the order was built
// from, for instance because an earlier order's lines were just removed.
// The screen reloads the cart before placing again.
var ErrCartChanged = errors.New("cart changed since the order was built")

var errClearRefused = errors.New("previous order's cart clear still pending")

const publishTimeout = 5 * time.Second

type OrderStore interface {
	CreateOrder(ctx context.Context, order *domain.OrderRecord) (*domain.OrderRecord, error)
	GetOrder(ctx context.Context, orderID string) (*domain.OrderRecord, error)
}

// Carts is the cart side of a placement. Reserve shares the guard cart
// edits take, so no edit lands between the cart check and the clear.
type Carts interface {
	Reserve(userID string) (release func(), ok bool)
	LoadFresh(ctx context.Context, userID string) (domain.Cart, domain.UserProfile, error)
	RemoveLinesLocked(ctx context.Context, userID string, lineIDs []string) (domain.Cart, error)
}

// Receipt is the outcome of a placement.
type Receipt struct {
	Order *domain.OrderRecord
	// CartCleared is set when this call removed the order's lines. A replay
	// that found the order already placed leaves it unset.
	CartCleared bool
	// Replayed is set when the order already existed and was not created again.
	Replayed bool
}

type Placer struct {
	orders        OrderStore
	carts         Carts
	journal       Journal
	publisher     Publisher
	clearAttempts int
	clearBackoff  time.Duration
	log           *zap.Logger
}

type PlacerOption func(*Placer)

func WithClearRetry(attempts int, backoff time.Duration) PlacerOption {
	return func(p *Placer) {
		if attempts > 0 {
			p.clearAttempts = attempts
		}
		p.clearBackoff = backoff
	}
}

func WithPublisher(pub Publisher) PlacerOption {
	return func(p *Placer) { p.publisher = pub }
}

func WithLogger(log *zap.Logger) PlacerOption {
	return func(p *Placer) { p.log = log }
}

func NewPlacer(orders OrderStore, carts Carts, journal Journal, opts ...PlacerOption) *Placer {
	p := &Placer{
		orders:        orders,
		carts:         carts,
		journal:       journal,
		publisher:     NopPublisher{},
		clearAttempts: 3,
		clearBackoff:  300 * time.Millisecond,
		log:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PlaceOrder creates the order and then removes its lines from the user's
// cart.
//
// The order id is the dedupe key: an order that already exists in the store
// is never created twice, and idempotencyKey (optional) pins a re-submitted
// form to the order id of its first submission. The order must match the
// cart as it is when the placement starts, otherwise ErrCartChanged is
// returned and nothing is created. A create failure leaves the cart
// untouched. A clear failure after a successful create returns the receipt
// together with ErrCartClearPending.
func (p *Placer) PlaceOrder(ctx context.Context, order *domain.OrderRecord, idempotencyKey string) (*Receipt, error) {
	const op = "place order"

	userID, err := session.Require(order.UserID, op)
	if err != nil {
		return nil, err
	}
	if len(order.Items) == 0 {
		return nil, apperr.Validationf(op, "order has no items")
	}
	release, ok := p.carts.Reserve(userID)
	if !ok {
		return nil, apperr.Busy(op)
	}
	defer release()

	log := logger.For(ctx, p.log).With(zap.String("user_id", userID))

	if idempotencyKey != "" {
		bound, err := p.journal.ClaimIdempotency(ctx, userID, idempotencyKey, order.ID)
		if err != nil {
			return nil, apperr.Placement(op, fmt.Errorf("claim idempotency key: %w", err))
		}
		if bound != order.ID {
			log.Info("re-used order id for idempotency key",
				zap.String("order_id", bound), zap.String("discarded_order_id", order.ID))
			clone := *order
			clone.ID = bound
			order = &clone
		}
	}

	settled, err := p.settlePending(ctx, userID)
	if err != nil {
		return nil, apperr.Placement(op, err)
	}
	if settled != nil {
		if settled.ID == order.ID {
			return &Receipt{Order: settled, CartCleared: true, Replayed: true}, nil
		}
		log.Info("earlier order settled, refusing order built before it",
			zap.String("settled_order_id", settled.ID), zap.String("order_id", order.ID))
		return nil, apperr.Stale(op, fmt.Errorf("%w: order %s was settled first", ErrCartChanged, settled.ID))
	}

	existing, err := p.orders.GetOrder(ctx, order.ID)
	switch {
	case err == nil:
		log.Info("order already placed", zap.String("order_id", order.ID))
		return &Receipt{Order: existing, Replayed: true}, nil
	case !errors.Is(err, store.ErrNotFound):
		return nil, apperr.Placement(op, fmt.Errorf("check existing order: %w", err))
	}

	current, _, err := p.carts.LoadFresh(ctx, userID)
	if err != nil {
		return nil, apperr.Placement(op, fmt.Errorf("read cart: %w", err))
	}
	if !matchesCart(order, current) {
		return nil, apperr.Stale(op, ErrCartChanged)
	}

	pending := PendingClear{OrderID: order.ID, UserID: userID, CreatedAt: time.Now()}
	if err := p.journal.MarkPending(ctx, pending); err != nil {
		return nil, apperr.Placement(op, fmt.Errorf("journal order: %w", err))
	}

	created, err := p.orders.CreateOrder(ctx, order)
	if err != nil {
		if rerr := p.journal.Resolve(context.WithoutCancel(ctx), userID); rerr != nil {
			log.Warn("drop journal entry failed", zap.String("order_id", order.ID), zap.Error(rerr))
		}
		log.Error("create order failed", zap.String("order_id", order.ID), zap.Error(err))
		return nil, apperr.Placement(op, err)
	}
	if created.ID == "" {
		created.ID = order.ID
	}

	pending.OrderCreated = true
	if err := p.journal.MarkPending(ctx, pending); err != nil {
		log.Warn("journal created order failed", zap.String("order_id", created.ID), zap.Error(err))
	}

	receipt := &Receipt{Order: created}
	if err := p.clearWithRetry(ctx, userID, lineIDs(order)); err != nil {
		log.Error("cart clear failed, left pending",
			zap.String("order_id", created.ID), zap.Error(err))
		return receipt, apperr.Placement(op, fmt.Errorf("%w: %w", ErrCartClearPending, err))
	}
	receipt.CartCleared = true

	p.complete(ctx, userID, created)
	log.Info("order placed", zap.String("order_id", created.ID), zap.String("final_amount", created.FinalAmount))
	return receipt, nil
}

// settlePending finishes a previous placement of userID before a new one
// starts and returns the order it settled. A pending clear whose order never
// reached the store is dropped and nil is returned. The caller holds the
// user's reservation.
func (p *Placer) settlePending(ctx context.Context, userID string) (*domain.OrderRecord, error) {
	pending, err := p.journal.Pending(ctx, userID)
	if errors.Is(err, ErrNotJournaled) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}

	order, err := p.orders.GetOrder(ctx, pending.OrderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, p.journal.Resolve(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errClearRefused, err)
	}

	if err := p.clearWithRetry(ctx, userID, lineIDs(order)); err != nil {
		return nil, fmt.Errorf("%w: %w", errClearRefused, err)
	}
	p.complete(ctx, userID, order)
	return order, nil
}

// clearWithRetry removes the order's lines and keeps anything added since.
func (p *Placer) clearWithRetry(ctx context.Context, userID string, ids []string) error {
	var err error
	for attempt := 0; attempt < p.clearAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(p.clearBackoff << (attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return errors.Join(err, ctx.Err())
			case <-timer.C:
			}
		}
		if _, err = p.carts.RemoveLinesLocked(ctx, userID, ids); err == nil {
			return nil
		}
	}
	return err
}

// complete resolves the journal entry and announces the order.
func (p *Placer) complete(ctx context.Context, userID string, order *domain.OrderRecord) {
	log := logger.For(ctx, p.log)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := p.journal.Resolve(ctx, userID); err != nil {
		log.Warn("resolve journal failed", zap.String("order_id", order.ID), zap.Error(err))
	}
	if err := p.publisher.PublishOrderPlaced(ctx, order); err != nil {
		log.Warn("publish order event failed", zap.String("order_id", order.ID), zap.Error(err))
	}
}

func lineIDs(order *domain.OrderRecord) []string {
	ids := make([]string, 0, len(order.Items))
	for _, item := range order.Items {
		ids = append(ids, item.ID)
	}
	return ids
}

// matchesCart reports whether the order's items are exactly the cart's
// lines, with the same prices and quantities.
func matchesCart(order *domain.OrderRecord, c domain.Cart) bool {
	if len(order.Items) != len(c) {
		return false
	}
	byID := make(map[string]domain.CartLine, len(c))
	for _, line := range c {
		byID[line.ID] = line
	}
	for _, item := range order.Items {
		line, ok := byID[item.ID]
		if !ok || line.Price != item.Price || line.Quantity != item.Quantity {
			return false
		}
		delete(byID, item.ID)
	}
	return true
}
