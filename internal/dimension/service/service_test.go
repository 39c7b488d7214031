package service

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/replenish/internal/cache"
	dimensiondomain "github.com/smallbiznis/replenish/internal/dimension/domain"
	"github.com/smallbiznis/replenish/internal/dimension/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setup(t *testing.T) (dimensiondomain.Service, *gorm.DB, *cache.DimensionCache) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&dimensiondomain.Location{}, &dimensiondomain.Product{}))

	repo := repository.Provide()
	c := cache.NewDimensionCache(repository.NewSource(db, repo))
	svc := New(Params{DB: db, Log: zap.NewNop(), Repo: repo, Cache: c})
	return svc, db, c
}

func TestListEmptyReturnsNonNil(t *testing.T) {
	svc, _, _ := setup(t)

	locations, err := svc.ListLocations(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, locations)
	assert.Empty(t, locations)

	products, err := svc.ListProducts(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, products)
}

func TestRefreshPicksUpNewDimensions(t *testing.T) {
	svc, db, c := setup(t)
	require.NoError(t, db.Create(&dimensiondomain.Location{ID: 1, Code: "LOC-0001"}).Error)
	require.NoError(t, c.Initialize(context.Background()))

	require.NoError(t, db.Create(&dimensiondomain.Product{ID: 5, Code: "PROD-00005"}).Error)
	_, ok := c.ProductID("PROD-00005")
	assert.False(t, ok)

	resp, err := svc.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, dimensiondomain.RefreshResponse{Locations: 1, Products: 1}, resp)

	id, ok := c.ProductID("PROD-00005")
	assert.True(t, ok)
	assert.Equal(t, int32(5), id)
}
