package validator

import (
	"strings"

	"github.com/google/uuid"
	"github.com/smallbiznis/replenish/internal/cache"
	"github.com/smallbiznis/replenish/internal/clock"
	ingestdomain "github.com/smallbiznis/replenish/internal/ingest/domain"
	orderdomain "github.com/smallbiznis/replenish/internal/order/domain"
)

// Validator turns a Record into a loadable Row. Structural checks run before
// dimension lookups so a malformed record never touches the cache.
type Validator struct {
	lookup cache.DimensionLookup
	clock  clock.Clock
	newID  func() uuid.UUID
}

type Option func(*Validator)

// WithIDGenerator replaces uuid.New.
func WithIDGenerator(fn func() uuid.UUID) Option {
	return func(v *Validator) { v.newID = fn }
}

func New(lookup cache.DimensionLookup, clk clock.Clock, opts ...Option) *Validator {
	v := &Validator{
		lookup: lookup,
		clock:  clk,
		newID:  uuid.New,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate returns the resolved row, or an ingestdomain.RejectionReason.
func (v *Validator) Validate(rec ingestdomain.Record) (ingestdomain.Row, error) {
	locationCode := strings.TrimSpace(rec.LocationCode)
	productCode := strings.TrimSpace(rec.ProductCode)
	submittedBy := strings.TrimSpace(rec.SubmittedBy)

	if locationCode == "" || productCode == "" || submittedBy == "" || rec.OrderDate.IsZero() {
		return ingestdomain.Row{}, ingestdomain.RejectMissingField
	}
	if rec.Quantity <= 0 {
		return ingestdomain.Row{}, ingestdomain.RejectNonPositiveQuantity
	}

	locationID, ok := v.lookup.LocationID(locationCode)
	if !ok {
		return ingestdomain.Row{}, ingestdomain.RejectUnknownLocation
	}
	productID, ok := v.lookup.ProductID(productCode)
	if !ok {
		return ingestdomain.Row{}, ingestdomain.RejectUnknownProduct
	}

	return ingestdomain.Row{
		ID:          v.newID(),
		LocationID:  locationID,
		ProductID:   productID,
		OrderDate:   rec.OrderDate.Time(),
		Quantity:    rec.Quantity,
		SubmittedBy: submittedBy,
		SubmittedAt: v.clock.Now().UTC(),
		Status:      orderdomain.StatusPending,
	}, nil
}
