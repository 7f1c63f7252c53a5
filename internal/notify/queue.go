package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue carries notification ids from the request path to the dispatcher worker.
type Queue interface {
	Push(ctx context.Context, id int64) error
	// Pop waits up to timeout for an id. ok is false when the wait timed out.
	Pop(ctx context.Context, timeout time.Duration) (id int64, ok bool, err error)
}

// Connect opens a redis client from a redis:// URL and pings it.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}
	return client, nil
}

// RedisQueue is a FIFO list: LPUSH on one end, BRPOP on the other.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue returns a queue stored under key.
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	return &RedisQueue{client: client, key: key}
}

func (q *RedisQueue) Push(ctx context.Context, id int64) error {
	if err := q.client.LPush(ctx, q.key, id).Err(); err != nil {
		return fmt.Errorf("enqueue notification %d: %w", id, err)
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context, timeout time.Duration) (int64, bool, error) {
	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("dequeue notification: %w", err)
	}
	// BRPOP replies [key, value].
	if len(res) != 2 {
		return 0, false, fmt.Errorf("unexpected BRPOP reply %v", res)
	}
	id, err := strconv.ParseInt(res[1], 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("malformed notification id %q: %w", res[1], err)
	}
	return id, true, nil
}
