// Package domain defines the bulk order ingestion contract: inbound records,
// resolved rows, per-run summaries and the loader session interfaces.
package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	orderdomain "github.com/smallbiznis/replenish/internal/order/domain"
)

// Record is one inbound order as submitted, before dimension codes are resolved.
type Record struct {
	LocationCode string           `json:"locationCode"`
	ProductCode  string           `json:"productCode"`
	OrderDate    orderdomain.Date `json:"orderDate"`
	Quantity     int32            `json:"quantity"`
	SubmittedBy  string           `json:"submittedBy"`
}

// Row is a validated record with surrogate keys resolved, ready for the loader.
type Row struct {
	ID          uuid.UUID
	LocationID  int16
	ProductID   int32
	OrderDate   time.Time
	Quantity    int32
	SubmittedBy string
	SubmittedAt time.Time
	Status      orderdomain.Status
}

// Columns is the fixed positional layout every loader session writes.
var Columns = []string{
	"id",
	"location_id",
	"product_id",
	"order_date",
	"quantity",
	"submitted_by",
	"submitted_at",
	"status",
}

// Order converts the row into its persisted model.
func (r Row) Order() orderdomain.Order {
	return orderdomain.Order{
		ID:          r.ID,
		LocationID:  r.LocationID,
		ProductID:   r.ProductID,
		OrderDate:   r.OrderDate,
		Quantity:    r.Quantity,
		SubmittedBy: r.SubmittedBy,
		SubmittedAt: r.SubmittedAt,
		Status:      r.Status,
	}
}

// RejectionReason explains why a record was not loaded. It is an error so
// single-row callers can return it directly.
type RejectionReason string

const (
	RejectMissingField        RejectionReason = "missing_field"
	RejectNonPositiveQuantity RejectionReason = "non_positive_quantity"
	RejectUnknownLocation     RejectionReason = "unknown_location"
	RejectUnknownProduct      RejectionReason = "unknown_product"
)

func (r RejectionReason) Error() string { return string(r) }

// Summary is the outcome of one completed run.
type Summary struct {
	Accepted   int64                     `json:"accepted"`
	Rejected   int64                     `json:"rejected"`
	Rejections map[RejectionReason]int64 `json:"rejections"`
}

func (s Summary) Total() int64 { return s.Accepted + s.Rejected }

// Reject counts one rejected record.
func (s *Summary) Reject(reason RejectionReason) {
	if s.Rejections == nil {
		s.Rejections = make(map[RejectionReason]int64)
	}
	s.Rejected++
	s.Rejections[reason]++
}

func (s Summary) String() string {
	return fmt.Sprintf("Processed %d items. Inserted: %d. Failed: %d.", s.Total(), s.Accepted, s.Rejected)
}
