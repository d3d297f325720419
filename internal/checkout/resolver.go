package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/money"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"go.uber.org/zap"
)

type Source string

const (
	SourceRequest Source = "request"
	SourceCache   Source = "cache"
	SourceStore   Source = "store"
)

// Snapshot is the cart the checkout screen works from, whichever way it
// was obtained.
type Snapshot struct {
	Cart     domain.Cart
	User     domain.UserProfile
	Subtotal money.VND
	Source   Source
}

type CartLoader interface {
	LoadCart(ctx context.Context, userID string) (domain.Cart, domain.UserProfile, error)
	LoadFresh(ctx context.Context, userID string) (domain.Cart, domain.UserProfile, error)
}

var errBundleStale = errors.New("cart changed since checkout started")

type Resolver struct {
	carts    CartLoader
	handoffs cache.HandoffCache
	log      *zap.Logger
}

func NewResolver(carts CartLoader, handoffs cache.HandoffCache, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{carts: carts, handoffs: handoffs, log: log}
}

// Resolve picks the snapshot the checkout screen quotes from: the bundle
// sent with the request, then the cached bundle, then a load from the store. A bundle that
// does not decode, belongs to someone else or whose total disagrees with
// its own cart is skipped.
func (r *Resolver) Resolve(ctx context.Context, userID string, bundle *domain.Handoff) (*Snapshot, error) {
	const op = "resolve checkout"

	userID, err := session.Require(userID, op)
	if err != nil {
		return nil, err
	}
	log := logger.For(ctx, r.log)

	if !bundle.Empty() {
		snap, err := accept(bundle, userID)
		if err == nil {
			snap.Source = SourceRequest
			return snap, nil
		}
		log.Info("discarding request handoff", zap.Error(err))
	}

	cached, err := r.handoffs.Get(ctx, userID)
	switch {
	case err == nil:
		snap, err := accept(cached, userID)
		if err == nil {
			snap.Source = SourceCache
			return snap, nil
		}
		log.Info("discarding cached handoff", zap.Error(err))
	case !errors.Is(err, cache.ErrCacheMiss):
		log.Warn("handoff cache unavailable", zap.Error(err))
	}

	c, profile, err := r.carts.LoadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(c) == 0 {
		return nil, apperr.Validationf(op, "empty cart")
	}
	subtotal, err := cart.ComputeTotal(c)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Cart: c, User: profile, Subtotal: subtotal, Source: SourceStore}, nil
}

// ResolveForOrder is the snapshot an order is built from. It is always a
// fresh read of the store's cart. A bundle sent with the request must show
// the same lines, otherwise the screen is stale and has to reload.
func (r *Resolver) ResolveForOrder(ctx context.Context, userID string, bundle *domain.Handoff) (*Snapshot, error) {
	const op = "resolve order"

	userID, err := session.Require(userID, op)
	if err != nil {
		return nil, err
	}

	c, profile, err := r.carts.LoadFresh(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(c) == 0 {
		return nil, apperr.Validationf(op, "empty cart")
	}
	subtotal, err := cart.ComputeTotal(c)
	if err != nil {
		return nil, err
	}

	if !bundle.Empty() {
		shown, err := accept(bundle, userID)
		if err != nil {
			logger.For(ctx, r.log).Info("ignoring request handoff", zap.Error(err))
		} else if !sameLines(shown.Cart, c) {
			return nil, apperr.Stale(op, errBundleStale)
		}
	}
	return &Snapshot{Cart: c, User: profile, Subtotal: subtotal, Source: SourceStore}, nil
}

// sameLines compares carts by line id, price and quantity, in any order.
func sameLines(a, b domain.Cart) bool {
	if len(a) != len(b) {
		return false
	}
	byID := make(map[string]domain.CartLine, len(b))
	for _, line := range b {
		byID[line.ID] = line
	}
	for _, line := range a {
		other, ok := byID[line.ID]
		if !ok || other.Price != line.Price || other.Quantity != line.Quantity {
			return false
		}
		delete(byID, line.ID)
	}
	return true
}

func accept(bundle *domain.Handoff, userID string) (*Snapshot, error) {
	c, user, total, err := cart.DecodeHandoff(bundle)
	if err != nil {
		return nil, err
	}
	if user.ID != userID {
		return nil, fmt.Errorf("handoff belongs to user %q", user.ID)
	}
	if len(c) == 0 {
		return nil, fmt.Errorf("handoff cart is empty")
	}
	if err := cart.Validate(c); err != nil {
		return nil, err
	}
	recomputed, err := cart.ComputeTotal(c)
	if err != nil {
		return nil, err
	}
	if recomputed != total {
		return nil, fmt.Errorf("handoff total %d does not match cart total %d", total, recomputed)
	}
	return &Snapshot{Cart: c, User: user, Subtotal: total}, nil
}
