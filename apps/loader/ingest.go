package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/replenish/internal/clock"
	"github.com/smallbiznis/replenish/internal/config"
	"github.com/smallbiznis/replenish/internal/dimension"
	"github.com/smallbiznis/replenish/internal/ingest"
	ingestdomain "github.com/smallbiznis/replenish/internal/ingest/domain"
	"github.com/smallbiznis/replenish/internal/ingest/source"
	"github.com/smallbiznis/replenish/internal/logger"
	"github.com/smallbiznis/replenish/internal/migration"
	"github.com/smallbiznis/replenish/internal/observability/metrics"
	"github.com/smallbiznis/replenish/internal/pushmetrics"
	"github.com/smallbiznis/replenish/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// IngestCommand loads one or more order files, one ingest run per file.
type IngestCommand struct {
	Policy    string
	Migrate   bool
	NoPush    bool
	LogLevel  string
	LogFormat string

	// Config overrides the environment when set.
	Config *config.Config

	Stdout io.Writer
}

func newIngestCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	cmd := &IngestCommand{Stdout: stdout}
	ccmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Load order files",
		Long: `
Loads CSV (.csv, header location_code,product_code,order_date,quantity,submitted_by)
or JSON (array or newline-delimited) order files. Each file is a separate run:
a failed file commits nothing and the remaining files are still processed.
`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			cmd.LogLevel, _ = c.Flags().GetString("log-level")
			cmd.LogFormat, _ = c.Flags().GetString("log-format")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return cmd.Run(ctx, args)
		},
	}

	flags := ccmd.Flags()
	flags.StringVar(&cmd.Policy, "policy", "", "Rejection policy override (lenient or strict).")
	flags.BoolVar(&cmd.Migrate, "migrate", false, "Apply schema migrations before loading.")
	flags.BoolVar(&cmd.NoPush, "no-push", false, "Skip pushing run metrics even when METRICS_PUSH_ENABLED is set.")
	return ccmd
}

func (cmd *IngestCommand) Run(ctx context.Context, files []string) error {
	cfg := config.Load()
	if cmd.Config != nil {
		cfg = *cmd.Config
	}
	policy := strings.ToLower(strings.TrimSpace(cmd.Policy))
	if policy != "" && policy != config.PolicyLenient && policy != config.PolicyStrict {
		return fmt.Errorf("unknown policy %q", cmd.Policy)
	}

	log, err := logger.New(cmd.LogLevel, cmd.LogFormat)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	registry := prometheus.NewRegistry()
	ingestMetrics := metrics.NewIngestMetrics(registry, metrics.Config{
		ServiceName: cfg.AppName,
		Environment: cfg.Environment,
	})

	var svc ingestdomain.Service
	opts := []fx.Option{
		fx.Supply(cfg, log, ingestMetrics),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx").WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
		}),
		db.Module,
		clock.Module,
	}
	if cmd.Migrate {
		opts = append(opts, migration.Module)
	}
	opts = append(opts,
		dimension.Module,
		ingest.Module,
		fx.Populate(&svc),
	)
	if policy != "" {
		opts = append(opts, fx.Decorate(func(h *config.IngestConfigHolder) *config.IngestConfigHolder {
			current := h.Get()
			current.Policy = policy
			return config.NewStaticIngestConfigHolder(current)
		}))
	}

	app := fx.New(opts...)
	if err := app.Err(); err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := app.Stop(context.WithoutCancel(ctx)); err != nil {
			log.Warn("loader shutdown failed", zap.Error(err))
		}
	}()

	var failed int
	for _, path := range files {
		summary, err := ingestFile(ctx, svc, path)
		if err != nil {
			failed++
			log.Error("ingest run failed", zap.String("file", path), zap.Error(err))
			fmt.Fprintf(cmd.Stdout, "%s: FAILED: %v\n", path, err)
			if errors.Is(err, context.Canceled) {
				break
			}
			continue
		}
		fmt.Fprintf(cmd.Stdout, "%s: %s\n", path, summary)
	}

	if !cmd.NoPush {
		if pusher := pushmetrics.NewPusher(cfg, log); pusher != nil {
			if err := pusher.Push(context.WithoutCancel(ctx), registry); err != nil {
				log.Warn("metrics push failed", zap.Error(err))
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

func ingestFile(ctx context.Context, svc ingestdomain.Service, path string) (ingestdomain.Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return ingestdomain.Summary{}, err
	}
	defer f.Close()

	return svc.Ingest(ctx, sourceFor(path, f))
}

// sourceFor picks the decoder by file extension. Anything that is not CSV is
// treated as JSON.
func sourceFor(path string, r io.Reader) ingestdomain.RecordSource {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return source.NewCSVSource(r)
	}
	return source.NewJSONSource(r)
}
