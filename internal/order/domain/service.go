package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/replenish/pkg/db/pagination"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// FindRequest locates one order. OrderDate is the partition hint: when set it
// restricts the lookup to that date, when nil every partition is searched.
type FindRequest struct {
	ID        uuid.UUID
	OrderDate *Date
}

type DeleteRequest struct {
	ID        uuid.UUID
	OrderDate *Date
}

type UpdateRequest struct {
	ID        uuid.UUID
	OrderDate *Date
	Quantity  int64
	// Status is left unchanged when nil.
	Status *string
}

type CreateRequest struct {
	LocationCode string `json:"locationCode"`
	ProductCode  string `json:"productCode"`
	OrderDate    Date   `json:"orderDate"`
	Quantity     int32  `json:"quantity"`
	SubmittedBy  string `json:"submittedBy"`
}

type ListRequest struct {
	LocationCode string
	StartDate    *Date
	EndDate      *Date
	Page         int
	PageSize     int
}

type ListResponse struct {
	Orders     []Order
	Page       int
	PageSize   int
	TotalCount int64
}

func (r ListResponse) TotalPages() int {
	return pagination.TotalPages(r.TotalCount, r.PageSize)
}

type StatsRequest struct {
	LocationCode string
	StartDate    *Date
	EndDate      *Date
}

type Stats struct {
	TotalOrders     int64
	TotalQuantity   int64
	AverageQuantity float64
	FirstOrderDate  *time.Time
	LastOrderDate   *time.Time
}

type Service interface {
	Find(context.Context, FindRequest) (*Order, error)
	Delete(context.Context, DeleteRequest) error
	Update(context.Context, UpdateRequest) (*Order, error)
	Create(context.Context, CreateRequest) (*Order, error)
	List(context.Context, ListRequest) (ListResponse, error)
	Stats(context.Context, StatsRequest) (Stats, error)
}

var (
	ErrNotFound               = errors.New("order_not_found")
	ErrPastOrder              = errors.New("past_order")
	ErrInvalidStatusForDelete = errors.New("invalid_status_for_delete")
	ErrInvalidQuantity        = errors.New("invalid_quantity")
	ErrInvalidStatus          = errors.New("invalid_status")
	ErrInvalidDateRange       = errors.New("invalid_date_range")
	ErrInvalidPage            = errors.New("invalid_page")
	ErrInvalidPageSize        = errors.New("invalid_page_size")
)
