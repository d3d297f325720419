package cart

import "sync"

// inflight admits at most one cart mutation per user at a time.
type inflight struct {
	mu    sync.Mutex
	users map[string]struct{}
}

func newInflight() *inflight {
	return &inflight{users: make(map[string]struct{})}
}

// acquire returns a release func, or false if userID already has a
// mutation running.
func (g *inflight) acquire(userID string) (func(), bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.users[userID]; busy {
		return nil, false
	}
	g.users[userID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.users, userID)
			g.mu.Unlock()
		})
	}, true
}
