package cart

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	m        sync.Mutex
	user     domain.User
	getErr   error
	patchErr error
	gets     atomic.Int32
	patches  atomic.Int32
	getDelay time.Duration
	block    chan struct{}
	// hold makes the next GetUser read the cart, then wait on it before
	// answering
	hold chan struct{}
}

func newMockStore(cart domain.Cart) *mockStore {
	return &mockStore{user: domain.User{
		UserProfile: domain.UserProfile{ID: "u1", FullName: "Lan", Email: "lan@example.com"},
		Cart:        cart,
	}}
}

func (m *mockStore) GetUser(ctx context.Context, _ string) (*domain.User, error) {
	m.gets.Add(1)
	if m.getDelay > 0 {
		time.Sleep(m.getDelay)
	}
	m.m.Lock()
	if m.getErr != nil {
		m.m.Unlock()
		return nil, m.getErr
	}
	u := m.user
	u.Cart = m.user.Cart.Clone()
	hold := m.hold
	m.hold = nil
	m.m.Unlock()

	if hold != nil {
		<-hold
	}
	return &u, nil
}

func (m *mockStore) PatchCart(_ context.Context, _ string, cart domain.Cart) (*domain.User, error) {
	m.patches.Add(1)
	if m.block != nil {
		<-m.block
	}
	m.m.Lock()
	defer m.m.Unlock()
	if m.patchErr != nil {
		return nil, m.patchErr
	}
	m.user.Cart = cart.Clone()
	u := m.user
	return &u, nil
}

func (m *mockStore) cart() domain.Cart {
	m.m.Lock()
	defer m.m.Unlock()
	return m.user.Cart.Clone()
}

func TestLoadCart_Success(t *testing.T) {
	store := newMockStore(sampleCart())
	svc := NewService(store, cache.NewMemoryCache(time.Minute), nil)

	c, profile, err := svc.LoadCart(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, sampleCart(), c)
	assert.Equal(t, "Lan", profile.FullName)
}

func TestLoadCart_NotAuthenticated(t *testing.T) {
	svc := NewService(newMockStore(nil), cache.NewMemoryCache(time.Minute), nil)

	_, _, err := svc.LoadCart(context.Background(), "  ")
	assert.ErrorIs(t, err, apperr.ErrNotAuthenticated)
}

func TestLoadCart_FetchError(t *testing.T) {
	store := newMockStore(nil)
	store.getErr = errors.New("connection refused")
	svc := NewService(store, cache.NewMemoryCache(time.Minute), nil)

	_, _, err := svc.LoadCart(context.Background(), "u1")
	assert.ErrorIs(t, err, apperr.ErrFetch)
}

func TestLoadCart_InvalidLine(t *testing.T) {
	c := sampleCart()
	c[0].Quantity = 0
	svc := NewService(newMockStore(c), cache.NewMemoryCache(time.Minute), nil)

	_, _, err := svc.LoadCart(context.Background(), "u1")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestLoadCart_ConcurrentLoadsShareRequest(t *testing.T) {
	store := newMockStore(sampleCart())
	store.getDelay = 50 * time.Millisecond
	svc := NewService(store, cache.NewMemoryCache(time.Minute), nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.LoadCart(context.Background(), "u1")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Less(t, store.gets.Load(), int32(10))
}

func TestLoadCart_CancelledCallerDoesNotFailOthers(t *testing.T) {
	store := newMockStore(sampleCart())
	hold := make(chan struct{})
	store.hold = hold
	svc := NewService(store, cache.NewMemoryCache(time.Minute), nil)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, _, err := svc.LoadCart(ctx, "u1")
		first <- err
	}()
	require.Eventually(t, func() bool { return store.gets.Load() == 1 }, time.Second, 5*time.Millisecond)

	second := make(chan error, 1)
	go func() {
		c, _, err := svc.LoadCart(context.Background(), "u1")
		if err == nil && len(c) != 2 {
			err = errors.New("unexpected cart")
		}
		second <- err
	}()

	cancel()
	assert.ErrorIs(t, <-first, apperr.ErrFetch)

	close(hold)
	assert.NoError(t, <-second)
}

func TestMutate_DoesNotJoinInflightLoad(t *testing.T) {
	store := newMockStore(sampleCart())
	hold := make(chan struct{})
	store.hold = hold
	svc := NewService(store, cache.NewMemoryCache(time.Minute), nil)
	ctx := context.Background()

	// a screen read that started before the edits below
	stale := make(chan domain.Cart, 1)
	go func() {
		c, _, _ := svc.LoadCart(ctx, "u1")
		stale <- c
	}()
	require.Eventually(t, func() bool { return store.gets.Load() == 1 }, time.Second, 5*time.Millisecond)

	edits := make(chan error, 1)
	go func() {
		if _, err := svc.UpdateQuantity(ctx, "u1", "l1", 5); err != nil {
			edits <- err
			return
		}
		_, err := svc.RemoveItem(ctx, "u1", "l2")
		edits <- err
	}()
	select {
	case err := <-edits:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("edit waited on the earlier read")
	}

	want := domain.Cart{{ID: "l1", ProductID: "p1", Name: "Fern", Price: "10.000đ", Quantity: 5, Category: domain.CategoryPlant}}
	assert.Equal(t, want, store.cart())

	// reads after a write do not join the one still in flight
	c, _, err := svc.LoadCart(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, want, c)

	close(hold)
	assert.Len(t, <-stale, 2)
}

func TestUpdateQuantity_PersistsAndReloads(t *testing.T) {
	store := newMockStore(sampleCart())
	svc := NewService(store, cache.NewMemoryCache(time.Minute), nil)

	out, err := svc.UpdateQuantity(context.Background(), "u1", "l2", 3)
	require.NoError(t, err)

	line, ok := out.Find("l2")
	require.True(t, ok)
	assert.Equal(t, 3, line.Quantity)
	assert.Equal(t, out, store.cart())
	// load before the edit, reload after the write
	assert.Equal(t, int32(2), store.gets.Load())
}

func TestUpdateQuantity_ZeroRemoves(t *testing.T) {
	store := newMockStore(sampleCart())
	svc := NewService(store, cache.NewMemoryCache(time.Minute), nil)

	out, err := svc.UpdateQuantity(context.Background(), "u1", "l1", 0)
	require.NoError(t, err)
	_, found := out.Find("l1")
	assert.False(t, found)
}

func TestRemoveItem(t *testing.T) {
	store := newMockStore(sampleCart())
	svc := NewService(store, cache.NewMemoryCache(time.Minute), nil)

	out, err := svc.RemoveItem(context.Background(), "u1", "l1")
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Len(t, store.cart(), 1)
}

func TestClearCart(t *testing.T) {
	store := newMockStore(sampleCart())
	svc := NewService(store, cache.NewMemoryCache(time.Minute), nil)

	out, err := svc.ClearCart(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Equal(t, int32(1), store.gets.Load(), "clear reads only to confirm")
}

func TestPersist_Failure(t *testing.T) {
	store := newMockStore(sampleCart())
	store.patchErr = errors.New("status 500")
	svc := NewService(store, cache.NewMemoryCache(time.Minute), nil)

	_, err := svc.UpdateQuantity(context.Background(), "u1", "l1", 9)
	assert.ErrorIs(t, err, apperr.ErrPersist)
	assert.Equal(t, sampleCart(), store.cart())
}

func TestMutate_SecondConcurrentMutationIsBusy(t *testing.T) {
	store := newMockStore(sampleCart())
	store.block = make(chan struct{})
	svc := NewService(store, cache.NewMemoryCache(time.Minute), nil)

	done := make(chan error, 1)
	go func() {
		_, err := svc.UpdateQuantity(context.Background(), "u1", "l1", 3)
		done <- err
	}()

	require.Eventually(t, func() bool { return store.patches.Load() == 1 }, time.Second, 5*time.Millisecond)

	_, err := svc.RemoveItem(context.Background(), "u1", "l2")
	assert.ErrorIs(t, err, apperr.ErrBusy)

	close(store.block)
	require.NoError(t, <-done)

	// guard released
	_, err = svc.RemoveItem(context.Background(), "u1", "l2")
	assert.NoError(t, err)
}

func TestReserve_BlocksEditsUntilReleased(t *testing.T) {
	store := newMockStore(sampleCart())
	svc := NewService(store, cache.NewMemoryCache(time.Minute), nil)
	ctx := context.Background()

	release, ok := svc.Reserve("u1")
	require.True(t, ok)

	_, ok = svc.Reserve("u1")
	assert.False(t, ok)
	_, err := svc.UpdateQuantity(ctx, "u1", "l1", 4)
	assert.ErrorIs(t, err, apperr.ErrBusy)
	_, err = svc.ClearCart(ctx, "u1")
	assert.ErrorIs(t, err, apperr.ErrBusy)

	release()
	_, err = svc.UpdateQuantity(ctx, "u1", "l1", 4)
	assert.NoError(t, err)
}

func TestRemoveLinesLocked(t *testing.T) {
	c := append(sampleCart(), domain.CartLine{ID: "l3", ProductID: "p3", Name: "Moss", Price: "2.000đ", Quantity: 1})
	store := newMockStore(c)
	svc := NewService(store, cache.NewMemoryCache(time.Minute), nil)
	ctx := context.Background()

	release, ok := svc.Reserve("u1")
	require.True(t, ok)
	defer release()

	out, err := svc.RemoveLinesLocked(ctx, "u1", []string{"l1", "l2"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "l3", out[0].ID)
	assert.Equal(t, out, store.cart())
	assert.Equal(t, int32(1), store.patches.Load())

	// nothing left to remove
	out, err = svc.RemoveLinesLocked(ctx, "u1", []string{"l1", "l2"})
	require.NoError(t, err)
	assert.Len(t, out, 1)
	assert.Equal(t, int32(1), store.patches.Load())
}

func TestMutate_InvalidatesHandoff(t *testing.T) {
	store := newMockStore(sampleCart())
	handoffs := cache.NewMemoryCache(time.Minute)
	svc := NewService(store, handoffs, nil)
	ctx := context.Background()

	_, err := svc.StartCheckout(ctx, "u1")
	require.NoError(t, err)
	_, err = handoffs.Get(ctx, "u1")
	require.NoError(t, err)

	_, err = svc.UpdateQuantity(ctx, "u1", "l1", 7)
	require.NoError(t, err)

	_, err = handoffs.Get(ctx, "u1")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestStartCheckout(t *testing.T) {
	store := newMockStore(sampleCart())
	handoffs := cache.NewMemoryCache(time.Minute)
	svc := NewService(store, handoffs, nil)

	bundle, err := svc.StartCheckout(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "35000", bundle.TotalAmount)

	cached, err := handoffs.Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, bundle, cached)
}

func TestStartCheckout_EmptyCart(t *testing.T) {
	svc := NewService(newMockStore(domain.Cart{}), cache.NewMemoryCache(time.Minute), nil)

	bundle, err := svc.StartCheckout(context.Background(), "u1")
	assert.Nil(t, bundle)
	assert.ErrorIs(t, err, apperr.ErrValidation)
}
