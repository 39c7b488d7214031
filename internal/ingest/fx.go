package ingest

import (
	"github.com/smallbiznis/replenish/internal/config"
	"github.com/smallbiznis/replenish/internal/ingest/loader"
	"github.com/smallbiznis/replenish/internal/ingest/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ingest.service",
	fx.Provide(config.NewIngestConfigHolder),
	fx.Provide(loader.Provide),
	fx.Provide(service.New),
)
