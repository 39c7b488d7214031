package loader

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	ingestdomain "github.com/smallbiznis/replenish/internal/ingest/domain"
	orderdomain "github.com/smallbiznis/replenish/internal/order/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&orderdomain.Order{}))
	return db
}

func countOrders(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&orderdomain.Order{}).Count(&n).Error)
	return n
}

func TestTxLoaderCommitsAllBatches(t *testing.T) {
	db := setupDB(t)
	l := NewTxLoader(db, zap.NewNop(), func() int { return 2 })

	s, err := l.Open(context.Background(), ingestdomain.Columns)
	require.NoError(t, err)
	for i := int32(1); i <= 5; i++ {
		require.NoError(t, s.WriteRow(context.Background(), testRow(i)))
	}
	n, err := s.Complete(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	require.NoError(t, s.Abort(context.Background()))

	assert.Equal(t, int64(5), countOrders(t, db))
}

func TestTxLoaderAbortDiscardsFlushedRows(t *testing.T) {
	db := setupDB(t)
	l := NewTxLoader(db, zap.NewNop(), func() int { return 1 })

	s, err := l.Open(context.Background(), ingestdomain.Columns)
	require.NoError(t, err)
	require.NoError(t, s.WriteRow(context.Background(), testRow(1)))
	require.NoError(t, s.WriteRow(context.Background(), testRow(2)))
	require.NoError(t, s.Abort(context.Background()))

	assert.Equal(t, int64(0), countOrders(t, db))
	assert.ErrorIs(t, s.WriteRow(context.Background(), testRow(3)), ingestdomain.ErrSessionClosed)
}

func TestTxLoaderRejectsColumnLayout(t *testing.T) {
	l := NewTxLoader(setupDB(t), zap.NewNop(), func() int { return 10 })
	_, err := l.Open(context.Background(), []string{"id"})
	assert.ErrorIs(t, err, ingestdomain.ErrColumnLayout)
}
