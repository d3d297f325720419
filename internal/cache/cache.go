package cache

import (
	"context"
	"errors"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

// HandoffCache keeps the last checkout hand-off bundle per user so the
// checkout screen can recover it when navigation drops the payload.
type HandoffCache interface {
	Get(ctx context.Context, userID string) (*domain.Handoff, error)
	Set(ctx context.Context, userID string, bundle *domain.Handoff) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
