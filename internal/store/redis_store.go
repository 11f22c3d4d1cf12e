package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisJournal keeps settled request IDs in Redis so the record survives
// bridge restarts and is shared when several game processes front one wallet.
type RedisJournal struct {
	client *redis.Client
}

func NewRedisJournal(addr string) *RedisJournal {
	return &RedisJournal{
		client: redis.NewClient(&redis.Options{Addr: addr}),
	}
}

func (r *RedisJournal) MarkSettled(ctx context.Context, requestID string, ttl time.Duration) error {
	return r.client.Set(ctx, "settled:"+requestID, "1", ttl).Err()
}

func (r *RedisJournal) WasSettled(ctx context.Context, requestID string) (bool, error) {
	count, err := r.client.Exists(ctx, "settled:"+requestID).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
