package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Filter narrows list and aggregate queries. A nil LocationID means all locations.
type Filter struct {
	LocationID *int16
	StartDate  *time.Time
	EndDate    *time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, order *Order) error
	// FindByID returns nil, nil when nothing matches. A non-nil orderDate
	// prunes the search to a single partition.
	FindByID(ctx context.Context, db *gorm.DB, id uuid.UUID, orderDate *time.Time) (*Order, error)
	Update(ctx context.Context, db *gorm.DB, order *Order) (int64, error)
	Delete(ctx context.Context, db *gorm.DB, orderDate time.Time, id uuid.UUID) (int64, error)
	List(ctx context.Context, db *gorm.DB, filter Filter, limit, offset int) ([]Order, error)
	Count(ctx context.Context, db *gorm.DB, filter Filter) (int64, error)
	Stats(ctx context.Context, db *gorm.DB, filter Filter) (Stats, error)
}
