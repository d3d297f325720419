package history

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

var ErrNoView = errors.New("no open history view")

type view struct {
	refresher *Refresher
	cancel    context.CancelFunc
	subs      map[chan Snapshot]struct{}
}

// Hub keeps one Refresher per user while at least one history view of that
// user is open. Closing the last view stops it.
type Hub struct {
	fetch FetchFunc
	cfg   RefresherConfig
	log   *zap.Logger

	mu    sync.Mutex
	views map[string]*view
}

func NewHub(fetch FetchFunc, cfg RefresherConfig, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		fetch: fetch,
		cfg:   cfg,
		log:   log,
		views: make(map[string]*view),
	}
}

// Subscribe opens a history view. Snapshots arrive on the returned channel,
// which only ever holds the newest one. The returned func closes the view.
func (h *Hub) Subscribe(userID string) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	h.mu.Lock()
	v, ok := h.views[userID]
	if !ok {
		ctx, cancel := context.WithCancel(context.Background())
		nv := &view{cancel: cancel, subs: make(map[chan Snapshot]struct{})}
		nv.refresher = NewRefresher(userID, h.fetch, h.cfg, func(s Snapshot) { h.broadcast(nv, s) }, h.log)
		v = nv
		h.views[userID] = v
		go v.refresher.Run(ctx)
	}
	v.subs[ch] = struct{}{}
	h.mu.Unlock()

	if ok {
		// a broadcast that raced ahead is newer, keep it
		if s := v.refresher.Snapshot(); !s.UpdatedAt.IsZero() {
			select {
			case ch <- s:
			default:
			}
		}
	}

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.unsubscribe(userID, ch) })
	}
}

// Refresh triggers a manual refresh of the user's open view.
func (h *Hub) Refresh(userID string) error {
	h.mu.Lock()
	v, ok := h.views[userID]
	h.mu.Unlock()
	if !ok {
		return ErrNoView
	}
	return v.refresher.Refresh()
}

func (h *Hub) Views() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.views)
}

// Close stops every refresher and closes every subscriber channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, v := range h.views {
		v.cancel()
		for ch := range v.subs {
			close(ch)
		}
		v.subs = nil
		delete(h.views, userID)
	}
}

func (h *Hub) unsubscribe(userID string, ch chan Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	v, ok := h.views[userID]
	if !ok {
		return
	}
	delete(v.subs, ch)
	if len(v.subs) == 0 {
		v.cancel()
		delete(h.views, userID)
	}
}

func (h *Hub) broadcast(v *view, s Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range v.subs {
		offer(ch, s)
	}
}

// offer replaces whatever ch still holds with s. Callers hold h.mu.
func offer(ch chan Snapshot, s Snapshot) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- s:
	default:
	}
}
