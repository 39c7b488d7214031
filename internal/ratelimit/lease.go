package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	redis "github.com/redis/go-redis/v9"
)

// releaseIfHolder deletes the lease key only while it still carries the
// caller's holder id.
var releaseIfHolder = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// Lease is a single named redis lease. It expires on its own after ttl so a
// crashed holder cannot block the next refresh for long.
type Lease struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewLease(client *redis.Client, key string, ttl time.Duration) (*Lease, error) {
	if client == nil {
		return nil, errors.New("lease redis client is nil")
	}
	if key == "" {
		return nil, errors.New("lease key is empty")
	}
	if ttl <= 0 {
		return nil, errors.New("lease ttl must be positive")
	}
	return &Lease{client: client, key: key, ttl: ttl}, nil
}

// Acquire returns a holder id, or ErrRefreshInProgress if someone else holds
// the lease.
func (l *Lease) Acquire(ctx context.Context) (string, error) {
	holder := ulid.Make().String()
	ok, err := l.client.SetNX(ctx, l.key, holder, l.ttl).Result()
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrRefreshInProgress
	}
	return holder, nil
}

func (l *Lease) Release(ctx context.Context, holder string) error {
	if holder == "" {
		return nil
	}
	return releaseIfHolder.Run(ctx, l.client, []string{l.key}, holder).Err()
}

// Holder reports the current holder id, empty when the lease is free.
func (l *Lease) Holder(ctx context.Context) (string, error) {
	holder, err := l.client.Get(ctx, l.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return holder, err
}
