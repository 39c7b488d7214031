package main

import (
	"github.com/smallbiznis/replenish/internal/clock"
	"github.com/smallbiznis/replenish/internal/config"
	"github.com/smallbiznis/replenish/internal/dimension"
	"github.com/smallbiznis/replenish/internal/ingest"
	"github.com/smallbiznis/replenish/internal/observability"
	"github.com/smallbiznis/replenish/internal/order"
	"github.com/smallbiznis/replenish/internal/ratelimit"
	"github.com/smallbiznis/replenish/internal/server"
	"github.com/smallbiznis/replenish/pkg/db"
	"go.uber.org/fx"
)

// The API binary expects the schema to be migrated already.
func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		db.Module,
		clock.Module,

		dimension.Module,
		ingest.Module,
		order.Module,
		ratelimit.Module,

		fx.Provide(server.NewEngine),
		fx.Provide(server.NewServer),
		fx.Invoke(func(s *server.Server) {
			s.RegisterAPIRoutes()
		}),
		fx.Invoke(server.RunHTTP),
	)
	app.Run()
}
