package cache

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

type memoryEntry struct {
	bundle    domain.Handoff
	expiresAt time.Time
}

// MemoryCache is the in-process HandoffCache used when no redis is configured.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &MemoryCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (m *MemoryCache) Get(_ context.Context, userID string) (*domain.Handoff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[userID]
	if !ok {
		return nil, ErrCacheMiss
	}
	if !m.now().Before(e.expiresAt) {
		delete(m.entries, userID)
		return nil, ErrCacheMiss
	}
	bundle := e.bundle
	return &bundle, nil
}

func (m *MemoryCache) Set(_ context.Context, userID string, bundle *domain.Handoff) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[userID] = memoryEntry{bundle: *bundle, expiresAt: m.now().Add(m.ttl)}
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, userID)
	return nil
}
