package loader

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/smallbiznis/replenish/internal/config"
	ingestdomain "github.com/smallbiznis/replenish/internal/ingest/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	Config config.Config
	Ingest *config.IngestConfigHolder
	DB     *gorm.DB
	Pool   *pgxpool.Pool `optional:"true"`
	Log    *zap.Logger
}

// Provide picks binary COPY on PostgreSQL and batched inserts elsewhere.
func Provide(p Params) ingestdomain.Loader {
	bufferRows := func() int { return p.Ingest.Get().BufferRows }
	batchSize := func() int { return p.Ingest.Get().BatchSize }

	if p.Config.IsPostgres() && p.Pool != nil {
		return NewCopyLoader(p.Pool, p.Log, bufferRows)
	}
	p.Log.Info("bulk COPY unavailable, using transactional batch loader", zap.String("db_type", p.Config.DBType))
	return NewTxLoader(p.DB, p.Log, batchSize)
}
