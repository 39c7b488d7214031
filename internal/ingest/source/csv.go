package source

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	ingestdomain "github.com/smallbiznis/replenish/internal/ingest/domain"
	orderdomain "github.com/smallbiznis/replenish/internal/order/domain"
)

const (
	colLocationCode = "location_code"
	colProductCode  = "product_code"
	colOrderDate    = "order_date"
	colQuantity     = "quantity"
	colSubmittedBy  = "submitted_by"
)

var requiredCSVColumns = []string{colLocationCode, colProductCode, colOrderDate, colQuantity, colSubmittedBy}

var ErrCSVHeader = errors.New("csv header is missing a required column")

// CSVSource reads records from a CSV stream whose first line names the
// columns. Extra columns are ignored. Blank cells become zero values so the
// validator reports them; unparseable numbers or dates fail the stream.
type CSVSource struct {
	r      *csv.Reader
	index  map[string]int
	line   int
	header bool
}

func NewCSVSource(r io.Reader) *CSVSource {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true
	cr.TrimLeadingSpace = true
	return &CSVSource{r: cr}
}

func (s *CSVSource) Next(ctx context.Context) (ingestdomain.Record, error) {
	if err := ctx.Err(); err != nil {
		return ingestdomain.Record{}, err
	}
	if !s.header {
		if err := s.readHeader(); err != nil {
			return ingestdomain.Record{}, err
		}
	}

	fields, err := s.r.Read()
	if err != nil {
		return ingestdomain.Record{}, err
	}
	s.line++

	rec := ingestdomain.Record{
		LocationCode: s.field(fields, colLocationCode),
		ProductCode:  s.field(fields, colProductCode),
		SubmittedBy:  s.field(fields, colSubmittedBy),
	}

	if raw := s.field(fields, colQuantity); raw != "" {
		qty, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			return ingestdomain.Record{}, fmt.Errorf("line %d: quantity %q: %w", s.line, raw, err)
		}
		rec.Quantity = int32(qty)
	}
	if raw := s.field(fields, colOrderDate); raw != "" {
		d, err := orderdomain.ParseDate(raw)
		if err != nil {
			return ingestdomain.Record{}, fmt.Errorf("line %d: %w", s.line, err)
		}
		rec.OrderDate = d
	}
	return rec, nil
}

func (s *CSVSource) readHeader() error {
	fields, err := s.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("read header: %w", err)
	}
	s.line = 1
	s.index = make(map[string]int, len(fields))
	for i, name := range fields {
		s.index[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, col := range requiredCSVColumns {
		if _, ok := s.index[col]; !ok {
			return fmt.Errorf("%w: %s", ErrCSVHeader, col)
		}
	}
	s.header = true
	return nil
}

func (s *CSVSource) field(fields []string, name string) string {
	i, ok := s.index[name]
	if !ok || i >= len(fields) {
		return ""
	}
	return strings.TrimSpace(fields[i])
}

var _ ingestdomain.RecordSource = (*CSVSource)(nil)
