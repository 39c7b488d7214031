package loader

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	ingestdomain "github.com/smallbiznis/replenish/internal/ingest/domain"
	"go.uber.org/zap"
)

const rollbackTimeout = 5 * time.Second

var ordersTable = pgx.Identifier{"orders"}

var errSessionAborted = errors.New("bulk session aborted")

// copyTx is the slice of pgx.Tx a COPY session needs.
type copyTx interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// CopyLoader streams rows into orders with the PostgreSQL binary COPY
// protocol. Each session runs inside its own transaction on a dedicated
// pooled connection, so nothing is visible until Complete commits.
type CopyLoader struct {
	pool       *pgxpool.Pool
	log        *zap.Logger
	bufferRows func() int
}

func NewCopyLoader(pool *pgxpool.Pool, log *zap.Logger, bufferRows func() int) *CopyLoader {
	return &CopyLoader{pool: pool, log: log.Named("ingest.copy_loader"), bufferRows: bufferRows}
}

func (l *CopyLoader) Open(ctx context.Context, columns []string) (ingestdomain.Session, error) {
	if err := checkColumns(columns); err != nil {
		return nil, err
	}

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	tx, err := conn.Begin(ctx)
	if err != nil {
		conn.Release()
		return nil, fmt.Errorf("begin transaction: %w", err)
	}

	return startCopySession(ctx, tx, columns, l.bufferRows(), conn.Release, l.log), nil
}

func checkColumns(columns []string) error {
	if !slices.Equal(columns, ingestdomain.Columns) {
		return fmt.Errorf("%w: %v", ingestdomain.ErrColumnLayout, columns)
	}
	return nil
}

type copySession struct {
	tx      copyTx
	log     *zap.Logger
	release func()

	rows    chan []any
	aborted chan struct{}
	done    chan struct{}

	copied  int64
	copyErr error

	mu         sync.Mutex
	closed     bool
	finished   bool
	abortOnce  sync.Once
	finishOnce sync.Once
}

// startCopySession runs CopyFrom in the background, fed by a bounded channel
// so at most bufferRows rows are held in memory.
func startCopySession(ctx context.Context, tx copyTx, columns []string, bufferRows int, release func(), log *zap.Logger) *copySession {
	if bufferRows <= 0 {
		bufferRows = 1
	}
	if release == nil {
		release = func() {}
	}
	s := &copySession{
		tx:      tx,
		log:     log,
		release: release,
		rows:    make(chan []any, bufferRows),
		aborted: make(chan struct{}),
		done:    make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		src := &channelSource{rows: s.rows, aborted: s.aborted}
		s.copied, s.copyErr = tx.CopyFrom(ctx, ordersTable, columns, src)
	}()
	return s
}

// WriteRow blocks while the buffer is full. It holds mu so Complete cannot
// close the channel underneath a pending send.
func (s *copySession) WriteRow(ctx context.Context, row ingestdomain.Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ingestdomain.ErrSessionClosed
	}

	values := encodeRow(row)
	select {
	case s.rows <- values:
		return nil
	case <-s.done:
		if s.copyErr != nil {
			return s.copyErr
		}
		return ingestdomain.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *copySession) Complete(ctx context.Context) (int64, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ingestdomain.ErrSessionClosed
	}
	s.closed = true
	s.mu.Unlock()

	close(s.rows)
	<-s.done

	if s.copyErr != nil {
		s.finish()
		return 0, fmt.Errorf("copy: %w", s.copyErr)
	}
	if err := s.tx.Commit(ctx); err != nil {
		s.finish()
		return 0, fmt.Errorf("commit: %w", err)
	}
	s.mu.Lock()
	s.finished = true
	s.mu.Unlock()
	s.finishOnce.Do(s.release)
	return s.copied, nil
}

func (s *copySession) Abort(ctx context.Context) error {
	s.abortOnce.Do(func() { close(s.aborted) })
	<-s.done

	s.mu.Lock()
	s.closed = true
	committed := s.finished
	s.mu.Unlock()
	if committed {
		return nil
	}
	return s.finish()
}

// finish rolls back and returns the connection to the pool. The rollback
// uses its own deadline because the caller's context is often already done.
func (s *copySession) finish() error {
	var err error
	s.finishOnce.Do(func() {
		rbCtx, cancel := context.WithTimeout(context.Background(), rollbackTimeout)
		defer cancel()
		if rbErr := s.tx.Rollback(rbCtx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			s.log.Warn("rollback failed", zap.Error(rbErr))
			err = rbErr
		}
		s.release()
	})
	return err
}

// channelSource adapts the row channel to pgx.CopyFromSource.
type channelSource struct {
	rows    <-chan []any
	aborted <-chan struct{}
	current []any
	err     error
}

func (c *channelSource) Next() bool {
	select {
	case <-c.aborted:
		c.err = errSessionAborted
		return false
	default:
	}
	select {
	case row, ok := <-c.rows:
		if !ok {
			return false
		}
		c.current = row
		return true
	case <-c.aborted:
		c.err = errSessionAborted
		return false
	}
}

func (c *channelSource) Values() ([]any, error) { return c.current, nil }

func (c *channelSource) Err() error { return c.err }

// encodeRow produces values in ingestdomain.Columns order.
func encodeRow(row ingestdomain.Row) []any {
	return []any{
		pgtype.UUID{Bytes: row.ID, Valid: true},
		row.LocationID,
		row.ProductID,
		pgtype.Date{Time: row.OrderDate, Valid: true},
		row.Quantity,
		row.SubmittedBy,
		pgtype.Timestamptz{Time: row.SubmittedAt, Valid: true},
		int32(row.Status),
	}
}

var _ ingestdomain.Loader = (*CopyLoader)(nil)
var _ pgx.CopyFromSource = (*channelSource)(nil)
