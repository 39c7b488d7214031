// Package seed bootstraps dimension tables for local and load-test
// environments.
package seed

import (
	"context"
	"errors"
	"fmt"

	dimensiondomain "github.com/smallbiznis/replenish/internal/dimension/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	batchSize = 500

	// MaxLocations is the SMALLINT id ceiling.
	MaxLocations = 32767
)

// LocationCode is the code assigned to the seeded location with id i.
func LocationCode(i int) string { return fmt.Sprintf("LOC-%04d", i) }

// ProductCode is the code assigned to the seeded product with id i.
func ProductCode(i int) string { return fmt.Sprintf("PROD-%05d", i) }

// EnsureDimensions inserts locations 1..locations and products 1..products.
// Existing ids are left untouched, so it is safe on every start.
func EnsureDimensions(ctx context.Context, db *gorm.DB, locations, products int) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}
	if locations < 0 || locations > MaxLocations {
		return fmt.Errorf("seed locations out of range: %d", locations)
	}
	if products < 0 {
		return fmt.Errorf("seed products out of range: %d", products)
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if locations > 0 {
			items := make([]dimensiondomain.Location, 0, locations)
			for i := 1; i <= locations; i++ {
				items = append(items, dimensiondomain.Location{ID: int16(i), Code: LocationCode(i)})
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&items, batchSize).Error; err != nil {
				return fmt.Errorf("seed locations: %w", err)
			}
		}
		if products > 0 {
			items := make([]dimensiondomain.Product, 0, products)
			for i := 1; i <= products; i++ {
				items = append(items, dimensiondomain.Product{ID: int32(i), Code: ProductCode(i)})
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&items, batchSize).Error; err != nil {
				return fmt.Errorf("seed products: %w", err)
			}
		}
		return nil
	})
}
