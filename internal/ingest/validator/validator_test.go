package validator

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/replenish/internal/clock"
	ingestdomain "github.com/smallbiznis/replenish/internal/ingest/domain"
	orderdomain "github.com/smallbiznis/replenish/internal/order/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLookup struct {
	locations map[string]int16
	products  map[string]int32
	calls     int
}

func (f *fakeLookup) Ready() bool { return true }

func (f *fakeLookup) LocationID(code string) (int16, bool) {
	f.calls++
	id, ok := f.locations[code]
	return id, ok
}

func (f *fakeLookup) ProductID(code string) (int32, bool) {
	f.calls++
	id, ok := f.products[code]
	return id, ok
}

func newLookup() *fakeLookup {
	return &fakeLookup{
		locations: map[string]int16{"L1": 1},
		products:  map[string]int32{"P1": 10},
	}
}

func mustDate(t *testing.T, s string) orderdomain.Date {
	t.Helper()
	d, err := orderdomain.ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestValidateResolvesRow(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	id := uuid.MustParse("8b0f2d0a-5c4e-4f5e-9d7c-2f7b0c1e9a11")
	v := New(newLookup(), clock.NewFakeClock(now), WithIDGenerator(func() uuid.UUID { return id }))

	row, err := v.Validate(ingestdomain.Record{
		LocationCode: " L1 ",
		ProductCode:  "P1",
		OrderDate:    mustDate(t, "2024-05-20"),
		Quantity:     5,
		SubmittedBy:  "ops",
	})
	require.NoError(t, err)

	assert.Equal(t, ingestdomain.Row{
		ID:          id,
		LocationID:  1,
		ProductID:   10,
		OrderDate:   time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC),
		Quantity:    5,
		SubmittedBy: "ops",
		SubmittedAt: now,
		Status:      orderdomain.StatusPending,
	}, row)
}

func TestValidateRejections(t *testing.T) {
	valid := ingestdomain.Record{
		LocationCode: "L1",
		ProductCode:  "P1",
		OrderDate:    mustDate(t, "2024-05-20"),
		Quantity:     1,
		SubmittedBy:  "ops",
	}

	cases := []struct {
		name   string
		mutate func(r *ingestdomain.Record)
		want   ingestdomain.RejectionReason
	}{
		{name: "blank location", mutate: func(r *ingestdomain.Record) { r.LocationCode = "  " }, want: ingestdomain.RejectMissingField},
		{name: "blank product", mutate: func(r *ingestdomain.Record) { r.ProductCode = "" }, want: ingestdomain.RejectMissingField},
		{name: "blank submitter", mutate: func(r *ingestdomain.Record) { r.SubmittedBy = "" }, want: ingestdomain.RejectMissingField},
		{name: "missing date", mutate: func(r *ingestdomain.Record) { r.OrderDate = orderdomain.Date{} }, want: ingestdomain.RejectMissingField},
		{name: "zero quantity", mutate: func(r *ingestdomain.Record) { r.Quantity = 0 }, want: ingestdomain.RejectNonPositiveQuantity},
		{name: "negative quantity", mutate: func(r *ingestdomain.Record) { r.Quantity = -4 }, want: ingestdomain.RejectNonPositiveQuantity},
		{name: "unknown location", mutate: func(r *ingestdomain.Record) { r.LocationCode = "L9" }, want: ingestdomain.RejectUnknownLocation},
		{name: "unknown product", mutate: func(r *ingestdomain.Record) { r.ProductCode = "P9" }, want: ingestdomain.RejectUnknownProduct},
		{name: "both unknown reports location", mutate: func(r *ingestdomain.Record) { r.LocationCode = "L9"; r.ProductCode = "P9" }, want: ingestdomain.RejectUnknownLocation},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := valid
			tc.mutate(&rec)
			v := New(newLookup(), clock.NewFakeClock(time.Now()))

			_, err := v.Validate(rec)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestStructuralChecksSkipLookups(t *testing.T) {
	lookup := newLookup()
	v := New(lookup, clock.NewFakeClock(time.Now()))

	_, err := v.Validate(ingestdomain.Record{LocationCode: "L9", ProductCode: "P9", SubmittedBy: "ops", OrderDate: mustDate(t, "2024-01-01"), Quantity: 0})
	assert.ErrorIs(t, err, ingestdomain.RejectNonPositiveQuantity)
	assert.Equal(t, 0, lookup.calls)
}

func TestValidateAssignsFreshIDs(t *testing.T) {
	v := New(newLookup(), clock.NewFakeClock(time.Now()))
	rec := ingestdomain.Record{LocationCode: "L1", ProductCode: "P1", OrderDate: mustDate(t, "2024-01-01"), Quantity: 1, SubmittedBy: "ops"}

	a, err := v.Validate(rec)
	require.NoError(t, err)
	b, err := v.Validate(rec)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}
