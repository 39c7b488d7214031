package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/replenish/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, order *domain.Order) error {
	if order == nil {
		return gorm.ErrInvalidData
	}
	return db.WithContext(ctx).Exec(
		`INSERT INTO orders (id, location_id, product_id, order_date, quantity, submitted_by, submitted_at, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		order.ID,
		order.LocationID,
		order.ProductID,
		order.OrderDate,
		order.Quantity,
		order.SubmittedBy,
		order.SubmittedAt,
		order.Status,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id uuid.UUID, orderDate *time.Time) (*domain.Order, error) {
	var o domain.Order
	var err error
	if orderDate != nil {
		err = db.WithContext(ctx).Raw(
			`SELECT id, location_id, product_id, order_date, quantity, submitted_by, submitted_at, status
			 FROM orders WHERE order_date = ? AND id = ?`,
			*orderDate,
			id,
		).Scan(&o).Error
	} else {
		// Without the partition key every partition is probed.
		err = db.WithContext(ctx).Raw(
			`SELECT id, location_id, product_id, order_date, quantity, submitted_by, submitted_at, status
			 FROM orders WHERE id = ? ORDER BY order_date ASC LIMIT 1`,
			id,
		).Scan(&o).Error
	}
	if err != nil {
		return nil, err
	}
	if o.ID == uuid.Nil {
		return nil, nil
	}
	return &o, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, order *domain.Order) (int64, error) {
	if order == nil {
		return 0, gorm.ErrInvalidData
	}
	res := db.WithContext(ctx).Exec(
		`UPDATE orders
		 SET quantity = ?, status = ?, submitted_at = ?
		 WHERE order_date = ? AND id = ?`,
		order.Quantity,
		order.Status,
		order.SubmittedAt,
		order.OrderDate,
		order.ID,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, orderDate time.Time, id uuid.UUID) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`DELETE FROM orders WHERE order_date = ? AND id = ?`,
		orderDate,
		id,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.Filter, limit, offset int) ([]domain.Order, error) {
	var items []domain.Order
	err := applyFilter(db.WithContext(ctx).Model(&domain.Order{}), filter).
		Order("order_date DESC").
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Count(ctx context.Context, db *gorm.DB, filter domain.Filter) (int64, error) {
	var count int64
	err := applyFilter(db.WithContext(ctx).Model(&domain.Order{}), filter).Count(&count).Error
	return count, err
}

func (r *repo) Stats(ctx context.Context, db *gorm.DB, filter domain.Filter) (domain.Stats, error) {
	var agg struct {
		TotalOrders   int64
		TotalQuantity int64
	}
	err := applyFilter(db.WithContext(ctx).Model(&domain.Order{}), filter).
		Select("COUNT(*) AS total_orders, COALESCE(SUM(quantity), 0) AS total_quantity").
		Scan(&agg).Error
	if err != nil {
		return domain.Stats{}, err
	}

	stats := domain.Stats{
		TotalOrders:   agg.TotalOrders,
		TotalQuantity: agg.TotalQuantity,
	}
	if agg.TotalOrders == 0 {
		return stats, nil
	}
	stats.AverageQuantity = float64(agg.TotalQuantity) / float64(agg.TotalOrders)

	// MIN/MAX lose the column type on some drivers, so the bounds are read as rows.
	first, err := boundaryDate(ctx, db, filter, "order_date ASC")
	if err != nil {
		return domain.Stats{}, err
	}
	last, err := boundaryDate(ctx, db, filter, "order_date DESC")
	if err != nil {
		return domain.Stats{}, err
	}
	stats.FirstOrderDate = first
	stats.LastOrderDate = last
	return stats, nil
}

func boundaryDate(ctx context.Context, db *gorm.DB, filter domain.Filter, order string) (*time.Time, error) {
	var rows []domain.Order
	err := applyFilter(db.WithContext(ctx).Model(&domain.Order{}), filter).
		Select("order_date").
		Order(order).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	d := rows[0].OrderDate.UTC()
	return &d, nil
}

func applyFilter(stmt *gorm.DB, filter domain.Filter) *gorm.DB {
	if filter.LocationID != nil {
		stmt = stmt.Where("location_id = ?", *filter.LocationID)
	}
	if filter.StartDate != nil {
		stmt = stmt.Where("order_date >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		stmt = stmt.Where("order_date <= ?", *filter.EndDate)
	}
	return stmt
}
