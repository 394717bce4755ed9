package counter

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var _ Counter = (*RedisCounter)(nil)

// RedisCounter keeps the value under a single key. Redis executes commands
// one at a time, so INCR/DECR/INCRBY are indivisible across clients.
type RedisCounter struct {
	key    string
	client redis.UniversalClient
}

// NewRedisCounter removes any value left under key so the counter starts at zero.
func NewRedisCounter(ctx context.Context, client redis.UniversalClient, key string) (*RedisCounter, error) {
	if err := client.Del(ctx, key).Err(); err != nil {
		return nil, fmt.Errorf("client.Del: key=%s, %w", key, err)
	}
	return &RedisCounter{key: key, client: client}, nil
}

func (c *RedisCounter) Key() string {
	return c.key
}

func (c *RedisCounter) Increment(ctx context.Context) error {
	return c.client.Incr(ctx, c.key).Err()
}

func (c *RedisCounter) Decrement(ctx context.Context) error {
	return c.client.Decr(ctx, c.key).Err()
}

func (c *RedisCounter) GetAndIncrement(ctx context.Context) (int64, error) {
	n, err := c.client.IncrBy(ctx, c.key, 1).Result()
	if err != nil {
		return 0, err
	}
	return n - 1, nil
}

func (c *RedisCounter) GetAndDecrement(ctx context.Context) (int64, error) {
	n, err := c.client.DecrBy(ctx, c.key, 1).Result()
	if err != nil {
		return 0, err
	}
	return n + 1, nil
}

func (c *RedisCounter) Get(ctx context.Context) (int64, error) {
	n, err := c.client.Get(ctx, c.key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Close deletes the key. The client is owned by the caller.
func (c *RedisCounter) Close(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}
