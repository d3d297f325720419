package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	pendingUsersKey = "pending-clear:users"
	idempotencyTTL  = 24 * time.Hour
)

type RedisJournal struct {
	client *redis.Client
}

func NewRedisJournal(client *redis.Client) *RedisJournal {
	return &RedisJournal{client: client}
}

func (j *RedisJournal) ClaimIdempotency(ctx context.Context, userID, key, orderID string) (string, error) {
	k := idempotencyKey(userID, key)
	ok, err := j.client.SetNX(ctx, k, orderID, idempotencyTTL).Result()
	if err != nil {
		return "", fmt.Errorf("redis setnx failed: %w", err)
	}
	if ok {
		return orderID, nil
	}

	existing, err := j.client.Get(ctx, k).Result()
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	return existing, nil
}

func (j *RedisJournal) MarkPending(ctx context.Context, p PendingClear) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal pending clear failed: %w", err)
	}

	_, err = j.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, pendingKey(p.UserID), data, 0)
		pipe.SAdd(ctx, pendingUsersKey, p.UserID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis mark pending failed: %w", err)
	}
	return nil
}

func (j *RedisJournal) Pending(ctx context.Context, userID string) (*PendingClear, error) {
	data, err := j.client.Get(ctx, pendingKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotJournaled
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var p PendingClear
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal pending clear failed: %w", err)
	}
	return &p, nil
}

func (j *RedisJournal) ListPending(ctx context.Context) ([]PendingClear, error) {
	users, err := j.client.SMembers(ctx, pendingUsersKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers failed: %w", err)
	}

	out := make([]PendingClear, 0, len(users))
	for _, userID := range users {
		p, err := j.Pending(ctx, userID)
		if errors.Is(err, ErrNotJournaled) {
			j.client.SRem(ctx, pendingUsersKey, userID)
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, nil
}

func (j *RedisJournal) Resolve(ctx context.Context, userID string) error {
	_, err := j.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, pendingKey(userID))
		pipe.SRem(ctx, pendingUsersKey, userID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis resolve failed: %w", err)
	}
	return nil
}

func pendingKey(userID string) string {
	return fmt.Sprintf("pending-clear:%s", userID)
}

func idempotencyKey(userID, key string) string {
	return fmt.Sprintf("idempotency:%s:%s", userID, key)
}
