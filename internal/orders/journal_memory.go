package orders

import (
	"context"
	"sort"
	"sync"
)

// MemoryJournal is the in-process Journal used when no redis is configured.
// It does not survive a restart.
type MemoryJournal struct {
	mu      sync.Mutex
	keys    map[string]string
	pending map[string]PendingClear
}

func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{
		keys:    make(map[string]string),
		pending: make(map[string]PendingClear),
	}
}

func (j *MemoryJournal) ClaimIdempotency(_ context.Context, userID, key, orderID string) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	k := idempotencyKey(userID, key)
	if existing, ok := j.keys[k]; ok {
		return existing, nil
	}
	j.keys[k] = orderID
	return orderID, nil
}

func (j *MemoryJournal) MarkPending(_ context.Context, p PendingClear) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.pending[p.UserID] = p
	return nil
}

func (j *MemoryJournal) Pending(_ context.Context, userID string) (*PendingClear, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	p, ok := j.pending[userID]
	if !ok {
		return nil, ErrNotJournaled
	}
	return &p, nil
}

func (j *MemoryJournal) ListPending(context.Context) ([]PendingClear, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]PendingClear, 0, len(j.pending))
	for _, p := range j.pending {
		out = append(out, p)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

func (j *MemoryJournal) Resolve(_ context.Context, userID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	delete(j.pending, userID)
	return nil
}
