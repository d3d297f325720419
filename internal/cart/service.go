package cart

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Store is the part of the remote resource store the cart needs.
type Store interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	PatchCart(ctx context.Context, userID string, cart domain.Cart) (*domain.User, error)
}

type Service struct {
	store    Store
	handoffs cache.HandoffCache
	guard    *inflight
	sfg      singleflight.Group // one GET per user at a time
	log      *zap.Logger
}

func NewService(store Store, handoffs cache.HandoffCache, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:    store,
		handoffs: handoffs,
		guard:    newInflight(),
		log:      log,
	}
}

type loaded struct {
	cart    domain.Cart
	profile domain.UserProfile
}

// sharedLoadTimeout bounds a store read that several callers wait on. The
// read does not follow any one caller's cancellation.
const sharedLoadTimeout = 10 * time.Second

// LoadCart fetches the user's cart and profile from the store. Concurrent
// loads for one user share a single request, so the result may predate a
// write that lands while the request is in flight. Mutations use LoadFresh.
func (s *Service) LoadCart(ctx context.Context, userID string) (domain.Cart, domain.UserProfile, error) {
	const op = "load cart"

	userID, err := session.Require(userID, op)
	if err != nil {
		return nil, domain.UserProfile{}, err
	}

	shared := context.WithoutCancel(ctx)
	ch := s.sfg.DoChan(userID, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(shared, sharedLoadTimeout)
		defer cancel()
		return s.read(ctx, userID, op)
	})

	select {
	case <-ctx.Done():
		return nil, domain.UserProfile{}, apperr.Fetch(op, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			logger.For(ctx, s.log).Warn("cart load failed", zap.String("user_id", userID), zap.Error(res.Err))
			return nil, domain.UserProfile{}, res.Err
		}
		l := res.Val.(loaded)
		return l.cart.Clone(), l.profile, nil
	}
}

// LoadFresh reads the cart with a request of its own, never joining one
// already in flight.
func (s *Service) LoadFresh(ctx context.Context, userID string) (domain.Cart, domain.UserProfile, error) {
	const op = "load cart"

	userID, err := session.Require(userID, op)
	if err != nil {
		return nil, domain.UserProfile{}, err
	}
	l, err := s.read(ctx, userID, op)
	if err != nil {
		return nil, domain.UserProfile{}, err
	}
	return l.cart, l.profile, nil
}

func (s *Service) read(ctx context.Context, userID, op string) (loaded, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return loaded{}, apperr.Fetch(op, err)
	}
	if err := Validate(user.Cart); err != nil {
		return loaded{}, err
	}
	return loaded{cart: user.Cart.Clone(), profile: user.UserProfile}, nil
}

// Persist replaces the whole cart and returns the cart as re-read from the
// store afterwards.
func (s *Service) Persist(ctx context.Context, userID string, cart domain.Cart) (domain.Cart, error) {
	const op = "persist cart"

	userID, err := session.Require(userID, op)
	if err != nil {
		return nil, err
	}
	if err := Validate(cart); err != nil {
		return nil, err
	}

	if _, err := s.store.PatchCart(ctx, userID, cart); err != nil {
		return nil, apperr.Persist(op, err)
	}
	s.sfg.Forget(userID)
	s.invalidateHandoff(ctx, userID)

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, apperr.Persist(op, err)
	}
	return user.Cart.Clone(), nil
}

// Mutate applies fn to the freshly loaded cart and persists the result. A
// second mutation for the same user while one is running, or while the user
// is reserved by Reserve, fails with Busy.
func (s *Service) Mutate(ctx context.Context, userID string, fn func(domain.Cart) domain.Cart) (domain.Cart, error) {
	const op = "mutate cart"

	userID, err := session.Require(userID, op)
	if err != nil {
		return nil, err
	}
	release, ok := s.guard.acquire(userID)
	if !ok {
		return nil, apperr.Busy(op)
	}
	defer release()

	current, _, err := s.LoadFresh(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.Persist(ctx, userID, fn(current))
}

func (s *Service) UpdateQuantity(ctx context.Context, userID, lineID string, quantity int) (domain.Cart, error) {
	return s.Mutate(ctx, userID, func(c domain.Cart) domain.Cart {
		return SetQuantity(c, lineID, quantity)
	})
}

func (s *Service) RemoveItem(ctx context.Context, userID, lineID string) (domain.Cart, error) {
	return s.Mutate(ctx, userID, func(c domain.Cart) domain.Cart {
		return RemoveLine(c, lineID)
	})
}

// ClearCart empties the cart without reading it first.
func (s *Service) ClearCart(ctx context.Context, userID string) (domain.Cart, error) {
	const op = "clear cart"

	userID, err := session.Require(userID, op)
	if err != nil {
		return nil, err
	}
	release, ok := s.guard.acquire(userID)
	if !ok {
		return nil, apperr.Busy(op)
	}
	defer release()

	return s.Persist(ctx, userID, Clear())
}

// Reserve holds the user's mutation guard until release is called. Cart
// edits fail with Busy meanwhile.
func (s *Service) Reserve(userID string) (release func(), ok bool) {
	return s.guard.acquire(userID)
}

// RemoveLinesLocked removes lineIDs from a freshly read cart and leaves every
// other line as it is. It does not take the mutation guard: the caller holds
// it through Reserve.
func (s *Service) RemoveLinesLocked(ctx context.Context, userID string, lineIDs []string) (domain.Cart, error) {
	current, _, err := s.LoadFresh(ctx, userID)
	if err != nil {
		return nil, err
	}
	kept := RemoveLines(current, lineIDs)
	if len(kept) == len(current) {
		return current, nil
	}
	return s.Persist(ctx, userID, kept)
}

// StartCheckout builds the hand-off bundle for the checkout screen and keeps
// a copy in the cache.
func (s *Service) StartCheckout(ctx context.Context, userID string) (*domain.Handoff, error) {
	const op = "start checkout"

	cart, profile, err := s.LoadCart(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(cart) == 0 {
		return nil, apperr.Validationf(op, "empty cart")
	}

	total, err := ComputeTotal(cart)
	if err != nil {
		return nil, err
	}
	bundle, err := EncodeHandoff(cart, profile, total)
	if err != nil {
		return nil, apperr.New(apperr.KindInternal, op, err)
	}

	if err := s.handoffs.Set(ctx, userID, bundle); err != nil {
		logger.For(ctx, s.log).Warn("cache handoff failed", zap.String("user_id", userID), zap.Error(err))
	}
	return bundle, nil
}

func (s *Service) invalidateHandoff(ctx context.Context, userID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.handoffs.Delete(ctx, userID); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		logger.For(ctx, s.log).Warn("cache invalidate failed", zap.String("user_id", userID), zap.Error(err))
	}
}
