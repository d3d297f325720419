package history

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apperr"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var ErrRateLimited = errors.New("refresh rate limited")

type Trigger string

const (
	TriggerOpen     Trigger = "open"
	TriggerPeriodic Trigger = "periodic"
	TriggerManual   Trigger = "manual"
)

// Snapshot is what an open history view renders. After a failed refresh it
// still carries the last good list, with Err set for the retry affordance.
type Snapshot struct {
	Groups    []DateGroup `json:"groups"`
	Err       string      `json:"error,omitempty"`
	Code      apperr.Kind `json:"code,omitempty"`
	Trigger   Trigger     `json:"trigger"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

type FetchFunc func(ctx context.Context, userID string) ([]domain.OrderRecord, error)

// Refresher drives one user's history view. Every trigger goes through the
// same fetch path; a new trigger cancels the fetch in flight and only the
// newest trigger's result is applied.
type Refresher struct {
	userID   string
	fetch    FetchFunc
	loc      *time.Location
	interval time.Duration
	timeout  time.Duration
	manual   *rate.Limiter
	onUpdate func(Snapshot)
	log      *zap.Logger

	mu       sync.Mutex
	base     context.Context
	seq      uint64
	cancel   context.CancelFunc
	last     []domain.OrderRecord
	snapshot Snapshot
}

type RefresherConfig struct {
	Interval time.Duration
	Timeout  time.Duration
	// ManualEvery is the minimum spacing of manual refreshes.
	ManualEvery time.Duration
	Location    *time.Location
}

func NewRefresher(userID string, fetch FetchFunc, cfg RefresherConfig, onUpdate func(Snapshot), log *zap.Logger) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.ManualEvery <= 0 {
		cfg.ManualEvery = 2 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if onUpdate == nil {
		onUpdate = func(Snapshot) {}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Refresher{
		userID:   userID,
		fetch:    fetch,
		loc:      cfg.Location,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		manual:   rate.NewLimiter(rate.Every(cfg.ManualEvery), 1),
		onUpdate: onUpdate,
		log:      log.With(zap.String("user_id", userID)),
		base:     context.Background(),
	}
}

// Run fetches on open and then every interval until ctx is done.
func (r *Refresher) Run(ctx context.Context) {
	r.mu.Lock()
	r.base = ctx
	r.mu.Unlock()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.trigger(TriggerOpen)
	for {
		select {
		case <-ticker.C:
			r.trigger(TriggerPeriodic)
		case <-ctx.Done():
			r.mu.Lock()
			if r.cancel != nil {
				r.cancel()
			}
			r.mu.Unlock()
			return
		}
	}
}

// Refresh is the pull-to-refresh trigger.
func (r *Refresher) Refresh() error {
	if !r.manual.Allow() {
		return ErrRateLimited
	}
	r.trigger(TriggerManual)
	return nil
}

func (r *Refresher) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot
}

func (r *Refresher) trigger(t Trigger) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.base.Err() != nil {
		return
	}
	if r.cancel != nil {
		r.cancel()
	}
	r.seq++
	ctx, cancel := context.WithTimeout(r.base, r.timeout)
	r.cancel = cancel

	go r.run(ctx, r.seq, t)
}

func (r *Refresher) run(ctx context.Context, seq uint64, t Trigger) {
	orders, err := r.fetch(ctx, r.userID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if seq != r.seq {
		return // superseded
	}
	r.cancel()
	r.cancel = nil

	if err != nil {
		if errors.Is(err, context.Canceled) && r.base.Err() != nil {
			return
		}
		r.log.Warn("history refresh failed", zap.String("trigger", string(t)), zap.Error(err))
		r.snapshot = Snapshot{
			Groups:    GroupByDate(r.last, r.loc),
			Err:       apperr.Notice(apperr.KindOf(err)),
			Code:      apperr.KindOf(err),
			Trigger:   t,
			UpdatedAt: time.Now(),
		}
	} else {
		r.last = orders
		r.snapshot = Snapshot{
			Groups:    GroupByDate(orders, r.loc),
			Trigger:   t,
			UpdatedAt: time.Now(),
		}
	}
	r.onUpdate(r.snapshot)
}
