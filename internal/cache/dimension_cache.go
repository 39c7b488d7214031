package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	dimensiondomain "github.com/smallbiznis/replenish/internal/dimension/domain"
	"github.com/smallbiznis/replenish/internal/observability/metrics"
	"go.uber.org/zap"
)

// DimensionSource performs the full scans a snapshot is built from.
type DimensionSource interface {
	LoadLocations(ctx context.Context) ([]dimensiondomain.Location, error)
	LoadProducts(ctx context.Context) ([]dimensiondomain.Product, error)
}

// DimensionLookup resolves business codes to surrogate ids.
type DimensionLookup interface {
	Ready() bool
	LocationID(code string) (int16, bool)
	ProductID(code string) (int32, bool)
}

type dimensionSnapshot struct {
	locationIDs   map[string]int16
	productIDs    map[string]int32
	locationCodes map[int16]string
	productCodes  map[int32]string
	loadedAt      time.Time
}

// DimensionCache holds an immutable code/id snapshot of locations and
// products. Reads never lock; a new snapshot is only published by
// Initialize (once) or Refresh.
type DimensionCache struct {
	source  DimensionSource
	log     *zap.Logger
	metrics *metrics.IngestMetrics

	sem      chan struct{}
	snapshot atomic.Pointer[dimensionSnapshot]
	loads    atomic.Int64
}

type Option func(*DimensionCache)

func WithLogger(log *zap.Logger) Option {
	return func(c *DimensionCache) {
		if log != nil {
			c.log = log.Named("dimension.cache")
		}
	}
}

func WithMetrics(m *metrics.IngestMetrics) Option {
	return func(c *DimensionCache) { c.metrics = m }
}

func NewDimensionCache(source DimensionSource, opts ...Option) *DimensionCache {
	c := &DimensionCache{
		source: source,
		log:    zap.NewNop(),
		sem:    make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize loads the snapshot exactly once. Concurrent callers wait for the
// in-flight load. A failed load publishes nothing, so a later call retries.
func (c *DimensionCache) Initialize(ctx context.Context) error {
	if c.snapshot.Load() != nil {
		return nil
	}
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()

	if c.snapshot.Load() != nil {
		return nil
	}
	return c.load(ctx)
}

// Refresh rebuilds the snapshot unconditionally and swaps it in atomically.
func (c *DimensionCache) Refresh(ctx context.Context) error {
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.release()
	return c.load(ctx)
}

func (c *DimensionCache) acquire(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *DimensionCache) release() { <-c.sem }

func (c *DimensionCache) load(ctx context.Context) error {
	start := time.Now()
	locations, err := c.source.LoadLocations(ctx)
	if err != nil {
		c.metrics.ObserveCacheLoad(0, 0, err)
		return fmt.Errorf("load locations: %w", err)
	}
	products, err := c.source.LoadProducts(ctx)
	if err != nil {
		c.metrics.ObserveCacheLoad(0, 0, err)
		return fmt.Errorf("load products: %w", err)
	}

	snap := &dimensionSnapshot{
		locationIDs:   make(map[string]int16, len(locations)),
		productIDs:    make(map[string]int32, len(products)),
		locationCodes: make(map[int16]string, len(locations)),
		productCodes:  make(map[int32]string, len(products)),
		loadedAt:      time.Now().UTC(),
	}
	for _, l := range locations {
		snap.locationIDs[l.Code] = l.ID
		snap.locationCodes[l.ID] = l.Code
	}
	for _, p := range products {
		snap.productIDs[p.Code] = p.ID
		snap.productCodes[p.ID] = p.Code
	}

	c.snapshot.Store(snap)
	c.loads.Add(1)
	c.metrics.ObserveCacheLoad(len(locations), len(products), nil)
	c.log.Info("dimension snapshot published",
		zap.Int("locations", len(locations)),
		zap.Int("products", len(products)),
		zap.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return nil
}

func (c *DimensionCache) Ready() bool {
	return c.snapshot.Load() != nil
}

// Loads reports how many snapshots have been published.
func (c *DimensionCache) Loads() int64 {
	return c.loads.Load()
}

// LoadedAt is the zero time before the first successful load.
func (c *DimensionCache) LoadedAt() time.Time {
	if snap := c.snapshot.Load(); snap != nil {
		return snap.loadedAt
	}
	return time.Time{}
}

func (c *DimensionCache) LocationID(code string) (int16, bool) {
	snap := c.snapshot.Load()
	if snap == nil {
		return 0, false
	}
	id, ok := snap.locationIDs[code]
	return id, ok
}

func (c *DimensionCache) ProductID(code string) (int32, bool) {
	snap := c.snapshot.Load()
	if snap == nil {
		return 0, false
	}
	id, ok := snap.productIDs[code]
	return id, ok
}

func (c *DimensionCache) LocationCode(id int16) (string, bool) {
	snap := c.snapshot.Load()
	if snap == nil {
		return "", false
	}
	code, ok := snap.locationCodes[id]
	return code, ok
}

func (c *DimensionCache) ProductCode(id int32) (string, bool) {
	snap := c.snapshot.Load()
	if snap == nil {
		return "", false
	}
	code, ok := snap.productCodes[id]
	return code, ok
}

// Counts returns the snapshot sizes.
func (c *DimensionCache) Counts() (locations, products int) {
	snap := c.snapshot.Load()
	if snap == nil {
		return 0, 0
	}
	return len(snap.locationIDs), len(snap.productIDs)
}

var _ DimensionLookup = (*DimensionCache)(nil)
