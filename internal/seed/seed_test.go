package seed

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	dimensiondomain "github.com/smallbiznis/replenish/internal/dimension/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&dimensiondomain.Location{}, &dimensiondomain.Product{}))
	return db
}

func TestEnsureDimensionsIsIdempotent(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	require.NoError(t, EnsureDimensions(ctx, db, 3, 1200))
	require.NoError(t, EnsureDimensions(ctx, db, 5, 1200))

	var locations, products int64
	require.NoError(t, db.Model(&dimensiondomain.Location{}).Count(&locations).Error)
	require.NoError(t, db.Model(&dimensiondomain.Product{}).Count(&products).Error)
	assert.Equal(t, int64(5), locations)
	assert.Equal(t, int64(1200), products)

	var loc dimensiondomain.Location
	require.NoError(t, db.First(&loc, 2).Error)
	assert.Equal(t, "LOC-0002", loc.Code)
}

func TestEnsureDimensionsRejectsOutOfRange(t *testing.T) {
	db := setupDB(t)
	assert.Error(t, EnsureDimensions(context.Background(), db, MaxLocations+1, 0))
	assert.Error(t, EnsureDimensions(context.Background(), db, 0, -1))
	assert.Error(t, EnsureDimensions(context.Background(), nil, 1, 1))
}

func TestCodes(t *testing.T) {
	assert.Equal(t, "LOC-0042", LocationCode(42))
	assert.Equal(t, "PROD-00007", ProductCode(7))
}
