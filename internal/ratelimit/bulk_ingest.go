package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/replenish/internal/config"
)

const (
	keyBulkIngestClient = "replenish:bulk:client:%s"
	keyDimensionRefresh = "replenish:dimensions:refresh"

	refreshLockTTL = 2 * time.Minute
)

var ErrRefreshInProgress = errors.New("dimension_refresh_in_progress")

// BulkIngestLimiter throttles bulk submissions per client and serialises
// dimension refreshes across replicas. A nil limiter allows everything.
type BulkIngestLimiter struct {
	client  *redis.Client
	bucket  *TokenBucket
	refresh *Lease

	rate  float64
	burst int
}

func NewBulkIngestLimiter(cfg config.Config) (*BulkIngestLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}

	addr := strings.TrimSpace(limitCfg.RedisAddr)
	if addr == "" {
		return nil, errors.New("rate limit redis addr is required")
	}
	rate, err := perSecond(limitCfg.BulkRate, limitCfg.BulkWindow)
	if err != nil {
		return nil, err
	}
	if limitCfg.BulkBurst <= 0 {
		return nil, errors.New("bulk ingest burst must be positive")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(limitCfg.RedisPassword),
		DB:       limitCfg.RedisDB,
	})

	refresh, err := NewLease(client, keyDimensionRefresh, refreshLockTTL)
	if err != nil {
		return nil, err
	}

	return &BulkIngestLimiter{
		client:  client,
		bucket:  NewTokenBucket(client),
		refresh: refresh,
		rate:    rate,
		burst:   limitCfg.BulkBurst,
	}, nil
}

func (l *BulkIngestLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Close releases the redis connection pool.
func (l *BulkIngestLimiter) Close() error {
	if l == nil || l.client == nil {
		return nil
	}
	return l.client.Close()
}

// AllowBulk takes one token from the client's bucket.
func (l *BulkIngestLimiter) AllowBulk(ctx context.Context, clientID string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, BulkClientKey(clientID), l.rate, l.burst)
}

// WithRefreshLock runs fn while holding the cluster-wide refresh lease.
func (l *BulkIngestLimiter) WithRefreshLock(ctx context.Context, fn func(context.Context) error) error {
	if !l.Enabled() || l.refresh == nil {
		return fn(ctx)
	}
	holder, err := l.refresh.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = l.refresh.Release(context.WithoutCancel(ctx), holder)
	}()
	return fn(ctx)
}

func BulkClientKey(clientID string) string {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		clientID = "anonymous"
	}
	return fmt.Sprintf(keyBulkIngestClient, clientID)
}

func perSecond(n int, window time.Duration) (float64, error) {
	if n <= 0 {
		return 0, errors.New("bulk ingest rate must be positive")
	}
	if window <= 0 {
		return 0, errors.New("bulk ingest window must be positive")
	}
	return float64(n) / window.Seconds(), nil
}
