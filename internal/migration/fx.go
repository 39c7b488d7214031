package migration

import (
	"context"

	"github.com/smallbiznis/replenish/internal/config"
	"github.com/smallbiznis/replenish/internal/seed"
	"github.com/smallbiznis/replenish/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Module runs migrations as an invoke, so it completes before any OnStart hook.
var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if !cfg.IsPostgres() {
			log.Info("running sqlite auto-migration", zap.String("type", cfg.DBType))
			if err := AutoMigrate(conn); err != nil {
				return err
			}
		} else {
			if err := RunMigrations(db.PostgresURL(cfg)); err != nil {
				return err
			}
			log.Info("migrations applied")
		}

		if cfg.Seed.Locations > 0 || cfg.Seed.Products > 0 {
			if err := seed.EnsureDimensions(context.Background(), conn, cfg.Seed.Locations, cfg.Seed.Products); err != nil {
				return err
			}
			log.Info("dimensions seeded",
				zap.Int("locations", cfg.Seed.Locations),
				zap.Int("products", cfg.Seed.Products),
			)
		}
		return nil
	}),
)
