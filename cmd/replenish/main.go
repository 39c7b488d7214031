package main

import (
	"github.com/smallbiznis/replenish/internal/clock"
	"github.com/smallbiznis/replenish/internal/config"
	"github.com/smallbiznis/replenish/internal/dimension"
	"github.com/smallbiznis/replenish/internal/ingest"
	"github.com/smallbiznis/replenish/internal/migration"
	"github.com/smallbiznis/replenish/internal/observability"
	"github.com/smallbiznis/replenish/internal/order"
	"github.com/smallbiznis/replenish/internal/ratelimit"
	"github.com/smallbiznis/replenish/internal/server"
	"github.com/smallbiznis/replenish/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		db.Module,
		clock.Module,
		migration.Module,

		// Functional Domains
		dimension.Module,
		ingest.Module,
		order.Module,
		ratelimit.Module,

		// dimension.Module registers the cache warmup first, so the listener
		// only starts once lookups can be served.
		server.Module,
	)
	app.Run()
}
