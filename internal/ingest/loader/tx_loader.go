package loader

import (
	"context"
	"fmt"
	"sync"

	ingestdomain "github.com/smallbiznis/replenish/internal/ingest/domain"
	orderdomain "github.com/smallbiznis/replenish/internal/order/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TxLoader writes rows with batched INSERTs inside one gorm transaction. It
// serves dialects without COPY support, such as sqlite in development.
type TxLoader struct {
	db        *gorm.DB
	log       *zap.Logger
	batchSize func() int
}

func NewTxLoader(db *gorm.DB, log *zap.Logger, batchSize func() int) *TxLoader {
	return &TxLoader{db: db, log: log.Named("ingest.tx_loader"), batchSize: batchSize}
}

func (l *TxLoader) Open(ctx context.Context, columns []string) (ingestdomain.Session, error) {
	if err := checkColumns(columns); err != nil {
		return nil, err
	}
	tx := l.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("begin transaction: %w", tx.Error)
	}

	size := l.batchSize()
	if size <= 0 {
		size = 1
	}
	return &txSession{tx: tx, log: l.log, size: size, batch: make([]orderdomain.Order, 0, size)}, nil
}

type txSession struct {
	mu      sync.Mutex
	tx      *gorm.DB
	log     *zap.Logger
	size    int
	batch   []orderdomain.Order
	written int64
	closed  bool
}

func (s *txSession) WriteRow(ctx context.Context, row ingestdomain.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ingestdomain.ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.batch = append(s.batch, row.Order())
	if len(s.batch) >= s.size {
		return s.flush(ctx)
	}
	return nil
}

func (s *txSession) flush(ctx context.Context) error {
	if len(s.batch) == 0 {
		return nil
	}
	if err := s.tx.WithContext(ctx).CreateInBatches(s.batch, s.size).Error; err != nil {
		return err
	}
	s.written += int64(len(s.batch))
	s.batch = s.batch[:0]
	return nil
}

func (s *txSession) Complete(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ingestdomain.ErrSessionClosed
	}
	s.closed = true

	if err := s.flush(ctx); err != nil {
		s.tx.Rollback()
		return 0, fmt.Errorf("flush: %w", err)
	}
	if err := s.tx.Commit().Error; err != nil {
		s.tx.Rollback()
		return 0, fmt.Errorf("commit: %w", err)
	}
	return s.written, nil
}

func (s *txSession) Abort(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.batch = nil
	if err := s.tx.Rollback().Error; err != nil {
		s.log.Warn("rollback failed", zap.Error(err))
		return err
	}
	return nil
}

var _ ingestdomain.Loader = (*TxLoader)(nil)
