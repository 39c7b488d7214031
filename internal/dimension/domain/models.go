// Package domain holds the read-only dimension tables referenced by orders.
package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Location is a store or warehouse that places orders.
type Location struct {
	ID   int16  `gorm:"primaryKey" json:"id"`
	Code string `gorm:"type:text;not null;uniqueIndex" json:"code"`
}

// TableName sets the database table name.
func (Location) TableName() string { return "locations" }

// Product is an orderable item.
type Product struct {
	ID   int32  `gorm:"primaryKey" json:"id"`
	Code string `gorm:"type:text;not null;uniqueIndex" json:"code"`
}

// TableName sets the database table name.
func (Product) TableName() string { return "products" }

type Repository interface {
	ListLocations(ctx context.Context, db *gorm.DB) ([]Location, error)
	ListProducts(ctx context.Context, db *gorm.DB) ([]Product, error)
}

type Service interface {
	ListLocations(ctx context.Context) ([]Location, error)
	ListProducts(ctx context.Context) ([]Product, error)
	Refresh(ctx context.Context) (RefreshResponse, error)
}

type RefreshResponse struct {
	Locations int `json:"locations"`
	Products  int `json:"products"`
}

var ErrCacheNotReady = errors.New("dimension_cache_not_ready")
