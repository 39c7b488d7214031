package service

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/smallbiznis/replenish/internal/cache"
	"github.com/smallbiznis/replenish/internal/clock"
	ingestdomain "github.com/smallbiznis/replenish/internal/ingest/domain"
	"github.com/smallbiznis/replenish/internal/ingest/validator"
	"github.com/smallbiznis/replenish/internal/observability/logger"
	"github.com/smallbiznis/replenish/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/replenish/internal/order/domain"
	"github.com/smallbiznis/replenish/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Repo    orderdomain.Repository
	Lookup  cache.DimensionLookup
	Metrics *metrics.Metrics `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	repo      orderdomain.Repository
	lookup    cache.DimensionLookup
	validator *validator.Validator
	metrics   *metrics.Metrics
}

func New(p Params) orderdomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("order.service"),
		clock:     p.Clock,
		repo:      p.Repo,
		lookup:    p.Lookup,
		validator: validator.New(p.Lookup, p.Clock),
		metrics:   p.Metrics,
	}
}

func (s *Service) Find(ctx context.Context, req orderdomain.FindRequest) (*orderdomain.Order, error) {
	order, err := s.find(ctx, req.ID, req.OrderDate)
	s.record(ctx, "find", err, req.OrderDate != nil)
	return order, err
}

// Delete removes a pending order dated today or later.
func (s *Service) Delete(ctx context.Context, req orderdomain.DeleteRequest) (err error) {
	defer func() { s.record(ctx, "delete", err, req.OrderDate != nil) }()

	order, err := s.find(ctx, req.ID, req.OrderDate)
	if err != nil {
		return err
	}
	if order.OrderDate.Before(clock.Today(s.clock)) {
		return orderdomain.ErrPastOrder
	}
	if order.Status != orderdomain.StatusPending {
		return orderdomain.ErrInvalidStatusForDelete
	}

	affected, err := s.repo.Delete(ctx, s.db, order.OrderDate, order.ID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return orderdomain.ErrNotFound
	}
	return nil
}

// Update sets quantity and, when given, status. SubmittedAt is always
// refreshed.
func (s *Service) Update(ctx context.Context, req orderdomain.UpdateRequest) (_ *orderdomain.Order, err error) {
	defer func() { s.record(ctx, "update", err, req.OrderDate != nil) }()

	if req.Quantity <= 0 || req.Quantity > math.MaxInt32 {
		return nil, orderdomain.ErrInvalidQuantity
	}
	var status *orderdomain.Status
	if req.Status != nil && strings.TrimSpace(*req.Status) != "" {
		parsed, err := orderdomain.ParseStatus(*req.Status)
		if err != nil {
			return nil, err
		}
		status = &parsed
	}

	order, err := s.find(ctx, req.ID, req.OrderDate)
	if err != nil {
		return nil, err
	}

	order.Quantity = int32(req.Quantity)
	if status != nil {
		order.Status = *status
	}
	order.SubmittedAt = s.clock.Now().UTC()

	affected, err := s.repo.Update(ctx, s.db, order)
	if err != nil {
		return nil, err
	}
	// deleted between the lookup and the update
	if affected == 0 {
		return nil, orderdomain.ErrNotFound
	}
	return order, nil
}

// Create validates and stores a single order, returning the
// ingestdomain.RejectionReason when the record is rejected.
func (s *Service) Create(ctx context.Context, req orderdomain.CreateRequest) (_ *orderdomain.Order, err error) {
	defer func() { s.record(ctx, "create", err, true) }()

	if !s.lookup.Ready() {
		return nil, ingestdomain.ErrCacheNotInitialized
	}
	row, err := s.validator.Validate(ingestdomain.Record{
		LocationCode: req.LocationCode,
		ProductCode:  req.ProductCode,
		OrderDate:    req.OrderDate,
		Quantity:     req.Quantity,
		SubmittedBy:  req.SubmittedBy,
	})
	if err != nil {
		return nil, err
	}

	order := row.Order()
	if err := s.repo.Insert(ctx, s.db, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) List(ctx context.Context, req orderdomain.ListRequest) (orderdomain.ListResponse, error) {
	page := req.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return orderdomain.ListResponse{}, orderdomain.ErrInvalidPage
	}
	pageSize := req.PageSize
	if pageSize == 0 {
		pageSize = orderdomain.DefaultPageSize
	}
	if pageSize < 1 || pageSize > orderdomain.MaxPageSize {
		return orderdomain.ListResponse{}, orderdomain.ErrInvalidPageSize
	}

	resp := orderdomain.ListResponse{
		Orders:   []orderdomain.Order{},
		Page:     page,
		PageSize: pageSize,
	}
	filter, ok, err := s.filter(req.LocationCode, req.StartDate, req.EndDate)
	if err != nil {
		return orderdomain.ListResponse{}, err
	}
	if !ok {
		return resp, nil
	}

	total, err := s.repo.Count(ctx, s.db, filter)
	if err != nil {
		return orderdomain.ListResponse{}, err
	}
	resp.TotalCount = total
	if total == 0 {
		return resp, nil
	}

	items, err := s.repo.List(ctx, s.db, filter, pageSize, pagination.Offset(page, pageSize))
	if err != nil {
		return orderdomain.ListResponse{}, err
	}
	if items != nil {
		resp.Orders = items
	}
	return resp, nil
}

func (s *Service) Stats(ctx context.Context, req orderdomain.StatsRequest) (orderdomain.Stats, error) {
	filter, ok, err := s.filter(req.LocationCode, req.StartDate, req.EndDate)
	if err != nil {
		return orderdomain.Stats{}, err
	}
	if !ok {
		return orderdomain.Stats{}, nil
	}
	return s.repo.Stats(ctx, s.db, filter)
}

func (s *Service) find(ctx context.Context, id uuid.UUID, hint *orderdomain.Date) (*orderdomain.Order, error) {
	var orderDate *time.Time
	if hint != nil && !hint.IsZero() {
		t := hint.Time()
		orderDate = &t
	} else {
		logger.WithContext(ctx, s.log).Debug("order lookup without partition hint")
	}

	order, err := s.repo.FindByID(ctx, s.db, id, orderDate)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, orderdomain.ErrNotFound
	}
	return order, nil
}

// filter resolves the location code through the cache. ok is false when the
// code is unknown, which can only match nothing.
func (s *Service) filter(locationCode string, start, end *orderdomain.Date) (orderdomain.Filter, bool, error) {
	var filter orderdomain.Filter
	if start != nil && !start.IsZero() {
		t := start.Time()
		filter.StartDate = &t
	}
	if end != nil && !end.IsZero() {
		t := end.Time()
		filter.EndDate = &t
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return orderdomain.Filter{}, false, orderdomain.ErrInvalidDateRange
	}

	code := strings.TrimSpace(locationCode)
	if code == "" {
		return filter, true, nil
	}
	if !s.lookup.Ready() {
		return orderdomain.Filter{}, false, ingestdomain.ErrCacheNotInitialized
	}
	id, ok := s.lookup.LocationID(code)
	if !ok {
		return filter, false, nil
	}
	filter.LocationID = &id
	return filter, true, nil
}

func (s *Service) record(ctx context.Context, operation string, err error, hinted bool) {
	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, orderdomain.ErrNotFound):
		outcome = "not_found"
	case isRejection(err):
		outcome = "rejected"
	default:
		outcome = "error"
		logger.WithContext(ctx, s.log).Error("order operation failed",
			zap.String("operation", operation),
			zap.Error(err),
		)
	}
	s.metrics.RecordOrderMutation(context.WithoutCancel(ctx), operation, outcome, hinted)
}

func isRejection(err error) bool {
	var reason ingestdomain.RejectionReason
	if errors.As(err, &reason) {
		return true
	}
	for _, target := range []error{
		orderdomain.ErrPastOrder,
		orderdomain.ErrInvalidStatusForDelete,
		orderdomain.ErrInvalidQuantity,
		orderdomain.ErrInvalidStatus,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

var _ orderdomain.Service = (*Service)(nil)
