package dimension

import (
	"context"

	"github.com/smallbiznis/replenish/internal/cache"
	dimensiondomain "github.com/smallbiznis/replenish/internal/dimension/domain"
	"github.com/smallbiznis/replenish/internal/dimension/repository"
	"github.com/smallbiznis/replenish/internal/dimension/service"
	"github.com/smallbiznis/replenish/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("dimension.service",
	fx.Provide(repository.Provide),
	fx.Provide(provideCache),
	fx.Provide(func(c *cache.DimensionCache) cache.DimensionLookup { return c }),
	fx.Provide(service.New),
	fx.Invoke(registerWarmup),
)

type cacheParams struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Repo    dimensiondomain.Repository
	Metrics *metrics.IngestMetrics `optional:"true"`
}

func provideCache(p cacheParams) *cache.DimensionCache {
	return cache.NewDimensionCache(
		repository.NewSource(p.DB, p.Repo),
		cache.WithLogger(p.Log),
		cache.WithMetrics(p.Metrics),
	)
}

// registerWarmup loads the snapshot during fx start. Modules that serve
// traffic register their start hooks after this one.
func registerWarmup(lc fx.Lifecycle, c *cache.DimensionCache) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return c.Initialize(ctx)
		},
	})
}
