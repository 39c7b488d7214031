package ratelimit

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewBulkIngestLimiter),
	fx.Invoke(func(lc fx.Lifecycle, limiter *BulkIngestLimiter) {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return limiter.Close()
			},
		})
	}),
)
