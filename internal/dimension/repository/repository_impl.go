package repository

import (
	"context"

	"github.com/smallbiznis/replenish/internal/dimension/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ListLocations(ctx context.Context, db *gorm.DB) ([]domain.Location, error) {
	var items []domain.Location
	err := db.WithContext(ctx).Raw(
		`SELECT id, code FROM locations ORDER BY code ASC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListProducts(ctx context.Context, db *gorm.DB) ([]domain.Product, error) {
	var items []domain.Product
	err := db.WithContext(ctx).Raw(
		`SELECT id, code FROM products ORDER BY code ASC`,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// Source binds the repository to a connection for full dimension scans.
type Source struct {
	db   *gorm.DB
	repo domain.Repository
}

func NewSource(db *gorm.DB, repo domain.Repository) *Source {
	return &Source{db: db, repo: repo}
}

func (s *Source) LoadLocations(ctx context.Context) ([]domain.Location, error) {
	return s.repo.ListLocations(ctx, s.db)
}

func (s *Source) LoadProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, s.db)
}
