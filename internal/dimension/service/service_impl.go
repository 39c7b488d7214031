package service

import (
	"context"

	"github.com/smallbiznis/replenish/internal/cache"
	dimensiondomain "github.com/smallbiznis/replenish/internal/dimension/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Repo  dimensiondomain.Repository
	Cache *cache.DimensionCache
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	repo  dimensiondomain.Repository
	cache *cache.DimensionCache
}

func New(p Params) dimensiondomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("dimension.service"),
		repo:  p.Repo,
		cache: p.Cache,
	}
}

func (s *Service) ListLocations(ctx context.Context) ([]dimensiondomain.Location, error) {
	items, err := s.repo.ListLocations(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []dimensiondomain.Location{}
	}
	return items, nil
}

func (s *Service) ListProducts(ctx context.Context) ([]dimensiondomain.Product, error) {
	items, err := s.repo.ListProducts(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []dimensiondomain.Product{}
	}
	return items, nil
}

// Refresh republishes the dimension snapshot after out-of-band dimension edits.
func (s *Service) Refresh(ctx context.Context) (dimensiondomain.RefreshResponse, error) {
	if err := s.cache.Refresh(ctx); err != nil {
		s.log.Error("dimension refresh failed", zap.Error(err))
		return dimensiondomain.RefreshResponse{}, err
	}
	locations, products := s.cache.Counts()
	return dimensiondomain.RefreshResponse{Locations: locations, Products: products}, nil
}
