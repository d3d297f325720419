package orders

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RecoverPending retries every journaled cart clear. Only the pending
// order's lines are removed. Users with a placement or cart edit in flight
// are skipped until the next pass.
func (p *Placer) RecoverPending(ctx context.Context) (int, error) {
	pending, err := p.journal.ListPending(ctx)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, entry := range pending {
		if ctx.Err() != nil {
			return recovered, ctx.Err()
		}
		release, ok := p.carts.Reserve(entry.UserID)
		if !ok {
			continue
		}
		_, err := p.settlePending(ctx, entry.UserID)
		release()

		if err != nil {
			p.log.Warn("pending cart clear still failing",
				zap.String("user_id", entry.UserID),
				zap.String("order_id", entry.OrderID),
				zap.Error(err))
			continue
		}
		p.log.Info("pending cart clear recovered",
			zap.String("user_id", entry.UserID),
			zap.String("order_id", entry.OrderID))
		recovered++
	}
	return recovered, nil
}

type RecoveryPoller struct {
	placer   *Placer
	interval time.Duration
	log      *zap.Logger
}

func NewRecoveryPoller(placer *Placer, interval time.Duration, log *zap.Logger) *RecoveryPoller {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &RecoveryPoller{placer: placer, interval: interval, log: log}
}

// Run replays pending clears once at start and then on every tick until ctx
// is done.
func (r *RecoveryPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.poll(ctx)
	for {
		select {
		case <-ticker.C:
			r.poll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (r *RecoveryPoller) poll(ctx context.Context) {
	if _, err := r.placer.RecoverPending(ctx); err != nil && ctx.Err() == nil {
		r.log.Error("failed to list pending cart clears", zap.Error(err))
	}
}
