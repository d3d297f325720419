package poller

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/cache"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/history"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	msgs   chan kafka.Message
	err    error
	closed bool
}

func (f *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if f.err != nil {
		return kafka.Message{}, f.err
	}
	select {
	case m := <-f.msgs:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

func (f *fakeReader) Close() error {
	f.closed = true
	return nil
}

type fakeViews struct {
	mu        sync.Mutex
	refreshed []string
	err       error
}

func (f *fakeViews) Refresh(userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshed = append(f.refreshed, userID)
	return f.err
}

func (f *fakeViews) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.refreshed...)
}

func orderPlaced(t *testing.T, userID string) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(orders.OrderPlacedEvent{OrderID: "o1", UserID: userID, Items: 2})
	require.NoError(t, err)
	return kafka.Message{
		Key:     []byte("o1"),
		Value:   payload,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(orders.EventOrderPlaced)}},
	}
}

func cachedHandoff(t *testing.T, userID string) *cache.MemoryCache {
	t.Helper()
	c := cache.NewMemoryCache(time.Hour)
	require.NoError(t, c.Set(context.Background(), userID, &domain.Handoff{CartData: "[]", UserData: "{}", TotalAmount: "0"}))
	return c
}

func TestPoller_OrderPlacedDropsHandoffAndRefreshes(t *testing.T) {
	ctx := context.Background()
	handoffs := cachedHandoff(t, "u1")
	views := &fakeViews{}
	reader := &fakeReader{msgs: make(chan kafka.Message, 1)}
	p := newPoller(reader, handoffs, views, nil)

	reader.msgs <- orderPlaced(t, "u1")
	require.NoError(t, p.next(ctx))

	_, err := handoffs.Get(ctx, "u1")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)
	assert.Equal(t, []string{"u1"}, views.calls())
}

func TestPoller_SkipsOtherMessages(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		msg  kafka.Message
	}{
		{"other event type", kafka.Message{
			Value:   []byte(`{"user_id":"u1"}`),
			Headers: []kafka.Header{{Key: "event_type", Value: []byte("order.cancelled")}},
		}},
		{"no header", kafka.Message{Value: []byte(`{"user_id":"u1"}`)}},
		{"malformed", kafka.Message{
			Value:   []byte("{"),
			Headers: []kafka.Header{{Key: "event_type", Value: []byte(orders.EventOrderPlaced)}},
		}},
		{"missing user", kafka.Message{
			Value:   []byte(`{"order_id":"o1"}`),
			Headers: []kafka.Header{{Key: "event_type", Value: []byte(orders.EventOrderPlaced)}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handoffs := cachedHandoff(t, "u1")
			views := &fakeViews{}
			reader := &fakeReader{msgs: make(chan kafka.Message, 1)}
			p := newPoller(reader, handoffs, views, nil)

			reader.msgs <- tt.msg
			require.NoError(t, p.next(ctx))

			_, err := handoffs.Get(ctx, "u1")
			assert.NoError(t, err)
			assert.Empty(t, views.calls())
		})
	}
}

func TestPoller_IgnoresClosedViews(t *testing.T) {
	reader := &fakeReader{msgs: make(chan kafka.Message, 1)}
	p := newPoller(reader, cache.NewMemoryCache(time.Hour), &fakeViews{err: history.ErrNoView}, nil)

	reader.msgs <- orderPlaced(t, "u1")
	assert.NoError(t, p.next(context.Background()))
}

func TestPoller_ReadError(t *testing.T) {
	boom := errors.New("broker down")
	p := newPoller(&fakeReader{err: boom}, cache.NewMemoryCache(time.Hour), &fakeViews{}, nil)

	assert.ErrorIs(t, p.next(context.Background()), boom)
}

func TestPoller_RunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	views := &fakeViews{}
	reader := &fakeReader{msgs: make(chan kafka.Message, 1)}
	p := newPoller(reader, cache.NewMemoryCache(time.Hour), views, nil)

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	reader.msgs <- orderPlaced(t, "u2")
	require.Eventually(t, func() bool { return len(views.calls()) == 1 }, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}

	p.Close()
	assert.True(t, reader.closed)
}
