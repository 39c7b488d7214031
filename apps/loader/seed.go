package main

import (
	"context"
	"fmt"
	"io"

	"github.com/smallbiznis/replenish/internal/config"
	"github.com/smallbiznis/replenish/internal/logger"
	"github.com/smallbiznis/replenish/internal/migration"
	"github.com/smallbiznis/replenish/internal/seed"
	"github.com/smallbiznis/replenish/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SeedCommand fills the dimension tables with generated codes.
type SeedCommand struct {
	Locations int
	Products  int
	Migrate   bool
	LogLevel  string
	LogFormat string

	Config *config.Config
	Stdout io.Writer
}

func newSeedCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	cmd := &SeedCommand{Stdout: stdout}
	ccmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate locations and products",
		Long: `
Inserts locations LOC-0001.. and products PROD-00001.. up to the requested
counts. Existing rows are kept, so the command can be re-run safely.
`,
		RunE: func(c *cobra.Command, args []string) error {
			cmd.LogLevel, _ = c.Flags().GetString("log-level")
			cmd.LogFormat, _ = c.Flags().GetString("log-format")
			return cmd.Run(context.Background())
		},
	}

	flags := ccmd.Flags()
	flags.IntVar(&cmd.Locations, "locations", 100, "number of locations to generate")
	flags.IntVar(&cmd.Products, "products", 5000, "number of products to generate")
	flags.BoolVar(&cmd.Migrate, "migrate", true, "apply schema migrations first")
	return ccmd
}

func (cmd *SeedCommand) Run(ctx context.Context) error {
	if cmd.Locations < 0 || cmd.Locations > seed.MaxLocations {
		return fmt.Errorf("locations must be between 0 and %d", seed.MaxLocations)
	}
	if cmd.Products < 0 {
		return fmt.Errorf("products must not be negative")
	}

	cfg := config.Load()
	if cmd.Config != nil {
		cfg = *cmd.Config
	}
	// The migration invoke seeds from cfg.Seed, EnsureDimensions runs below.
	cfg.Seed = config.SeedConfig{}

	log, err := logger.New(cmd.LogLevel, cmd.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	var conn *gorm.DB
	opts := []fx.Option{
		fx.Supply(cfg, log),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx").WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
		}),
		db.Module,
		fx.Populate(&conn),
	}
	if cmd.Migrate {
		opts = append(opts, migration.Module)
	}

	app := fx.New(opts...)
	if err := app.Err(); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = app.Stop(context.WithoutCancel(ctx)) }()

	if err := seed.EnsureDimensions(ctx, conn, cmd.Locations, cmd.Products); err != nil {
		return err
	}
	log.Info("dimensions seeded", zap.Int("locations", cmd.Locations), zap.Int("products", cmd.Products))
	fmt.Fprintf(cmd.Stdout, "seeded %d locations and %d products\n", cmd.Locations, cmd.Products)
	return nil
}
