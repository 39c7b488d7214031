package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/smallbiznis/replenish/internal/cache"
	dimensiondomain "github.com/smallbiznis/replenish/internal/dimension/domain"
	ingestdomain "github.com/smallbiznis/replenish/internal/ingest/domain"
	"github.com/smallbiznis/replenish/internal/observability"
	orderdomain "github.com/smallbiznis/replenish/internal/order/domain"
	"github.com/smallbiznis/replenish/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubDimensions struct{}

func (stubDimensions) LoadLocations(context.Context) ([]dimensiondomain.Location, error) {
	return []dimensiondomain.Location{{ID: 1, Code: "JKT-01"}}, nil
}

func (stubDimensions) LoadProducts(context.Context) ([]dimensiondomain.Product, error) {
	return []dimensiondomain.Product{{ID: 10, Code: "SKU-A"}}, nil
}

type fakeIngestService struct {
	calls   int
	records []ingestdomain.Record
	err     error
}

func (f *fakeIngestService) Ingest(ctx context.Context, src ingestdomain.RecordSource) (ingestdomain.Summary, error) {
	f.calls++
	if f.err != nil {
		return ingestdomain.Summary{}, f.err
	}
	var summary ingestdomain.Summary
	for {
		rec, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ingestdomain.Summary{}, err
		}
		f.records = append(f.records, rec)
		if rec.Quantity <= 0 {
			summary.Reject(ingestdomain.RejectNonPositiveQuantity)
			continue
		}
		summary.Accepted++
	}
	return summary, nil
}

type fakeOrderService struct {
	find   func(orderdomain.FindRequest) (*orderdomain.Order, error)
	delete func(orderdomain.DeleteRequest) error
	update func(orderdomain.UpdateRequest) (*orderdomain.Order, error)
	create func(orderdomain.CreateRequest) (*orderdomain.Order, error)
	list   func(orderdomain.ListRequest) (orderdomain.ListResponse, error)
	stats  func(orderdomain.StatsRequest) (orderdomain.Stats, error)
}

func (f *fakeOrderService) Find(_ context.Context, req orderdomain.FindRequest) (*orderdomain.Order, error) {
	return f.find(req)
}

func (f *fakeOrderService) Delete(_ context.Context, req orderdomain.DeleteRequest) error {
	return f.delete(req)
}

func (f *fakeOrderService) Update(_ context.Context, req orderdomain.UpdateRequest) (*orderdomain.Order, error) {
	return f.update(req)
}

func (f *fakeOrderService) Create(_ context.Context, req orderdomain.CreateRequest) (*orderdomain.Order, error) {
	return f.create(req)
}

func (f *fakeOrderService) List(_ context.Context, req orderdomain.ListRequest) (orderdomain.ListResponse, error) {
	return f.list(req)
}

func (f *fakeOrderService) Stats(_ context.Context, req orderdomain.StatsRequest) (orderdomain.Stats, error) {
	return f.stats(req)
}

type fakeDimensionService struct {
	refreshes int
}

func (f *fakeDimensionService) ListLocations(context.Context) ([]dimensiondomain.Location, error) {
	return []dimensiondomain.Location{{ID: 1, Code: "JKT-01"}}, nil
}

func (f *fakeDimensionService) ListProducts(context.Context) ([]dimensiondomain.Product, error) {
	return []dimensiondomain.Product{{ID: 10, Code: "SKU-A"}}, nil
}

func (f *fakeDimensionService) Refresh(context.Context) (dimensiondomain.RefreshResponse, error) {
	f.refreshes++
	return dimensiondomain.RefreshResponse{Locations: 1, Products: 1}, nil
}

type testServer struct {
	engine     *gin.Engine
	ingest     *fakeIngestService
	orders     *fakeOrderService
	dimensions *fakeDimensionService
	cache      *cache.DimensionCache
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

func newTestServer(t *testing.T, warm bool) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dims := cache.NewDimensionCache(stubDimensions{})
	if warm {
		require.NoError(t, dims.Initialize(context.Background()))
	}

	ts := &testServer{
		engine:     NewEngine(observability.Config{}, nil),
		ingest:     &fakeIngestService{},
		orders:     &fakeOrderService{},
		dimensions: &fakeDimensionService{},
		cache:      dims,
	}
	s := NewServer(ServerParams{
		Gin:          ts.engine,
		DB:           openTestDB(t),
		Log:          zap.NewNop(),
		IngestSvc:    ts.ingest,
		OrderSvc:     ts.orders,
		DimensionSvc: ts.dimensions,
		Cache:        dims,
	})
	s.RegisterAPIRoutes()
	s.RegisterAdminRoutes()
	return ts
}

func (ts *testServer) do(method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func sampleOrder(id uuid.UUID) *orderdomain.Order {
	return &orderdomain.Order{
		ID:          id,
		LocationID:  1,
		ProductID:   10,
		OrderDate:   time.Date(2024, 6, 20, 0, 0, 0, 0, time.UTC),
		Quantity:    12,
		SubmittedBy: "planner",
		SubmittedAt: time.Date(2024, 6, 15, 10, 30, 0, 0, time.UTC),
		Status:      orderdomain.StatusPending,
	}
}

func TestBulkIngestReturnsSummary(t *testing.T) {
	ts := newTestServer(t, true)

	body := `{"locationCode":"JKT-01","productCode":"SKU-A","orderDate":"2024-06-20","quantity":5,"submittedBy":"a"}
{"locationCode":"JKT-01","productCode":"SKU-A","orderDate":"2024-06-20","quantity":0,"submittedBy":"a"}
`
	rec := ts.do(http.MethodPost, "/orders/bulk", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp bulkIngestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(2), resp.Total)
	assert.Equal(t, int64(1), resp.Accepted)
	assert.Equal(t, int64(1), resp.Rejected)
	assert.Equal(t, int64(1), resp.Rejections[ingestdomain.RejectNonPositiveQuantity])
	assert.Equal(t, "Processed 2 items. Inserted: 1. Failed: 1.", resp.Summary)
	require.Len(t, ts.ingest.records, 2)
	assert.Equal(t, "SKU-A", ts.ingest.records[0].ProductCode)
}

func TestBulkIngestAcceptsJSONArray(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(http.MethodPost, "/orders/bulk", `[{"locationCode":"JKT-01","productCode":"SKU-A","orderDate":"2024-06-20","quantity":3,"submittedBy":"a"}]`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp bulkIngestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Accepted)
	assert.NotNil(t, resp.Rejections)
}

func TestBulkIngestRejectsEmptyBody(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(http.MethodPost, "/orders/bulk", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "empty_body", payload.Errors[0].Code)
	assert.Zero(t, ts.ingest.calls)
}

func TestBulkIngestSurfacesStreamFailure(t *testing.T) {
	ts := newTestServer(t, true)
	ts.ingest.err = fmt.Errorf("%w: %w", ingestdomain.ErrStreamRead, io.ErrUnexpectedEOF)

	rec := ts.do(http.MethodPost, "/orders/bulk", `[{"locationCode":"JKT-01"`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "ingest_failed", payload.Type)
	assert.True(t, strings.HasPrefix(payload.Message, "Streaming failed: "), payload.Message)
	assert.Contains(t, payload.Message, "unexpected EOF")
}

func TestBulkIngestCacheNotReady(t *testing.T) {
	ts := newTestServer(t, false)
	ts.ingest.err = ingestdomain.ErrCacheNotInitialized

	rec := ts.do(http.MethodPost, "/orders/bulk", `[]`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "ingest_failed", payload.Type)
	assert.Contains(t, payload.Message, "dimension_cache_not_initialized")
}

func TestGetOrderPassesHint(t *testing.T) {
	ts := newTestServer(t, true)
	id := uuid.New()

	var got orderdomain.FindRequest
	ts.orders.find = func(req orderdomain.FindRequest) (*orderdomain.Order, error) {
		got = req
		return sampleOrder(id), nil
	}

	rec := ts.do(http.MethodGet, "/orders/"+id.String()+"?order_date=2024-06-20", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.NotNil(t, got.OrderDate)
	assert.Equal(t, "2024-06-20", got.OrderDate.String())
	assert.Equal(t, id, got.ID)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "JKT-01", resp["locationCode"])
	assert.Equal(t, "SKU-A", resp["productCode"])
	assert.Equal(t, "2024-06-20", resp["orderDate"])
	assert.Equal(t, "Pending", resp["status"])
}

func TestGetOrderWithoutHint(t *testing.T) {
	ts := newTestServer(t, true)
	id := uuid.New()

	var got orderdomain.FindRequest
	ts.orders.find = func(req orderdomain.FindRequest) (*orderdomain.Order, error) {
		got = req
		return nil, orderdomain.ErrNotFound
	}

	rec := ts.do(http.MethodGet, "/orders/"+id.String(), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Nil(t, got.OrderDate)
}

func TestGetOrderRejectsMalformedInput(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(http.MethodGet, "/orders/not-a-uuid", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_id", decodeError(t, rec).Errors[0].Code)

	rec = ts.do(http.MethodGet, "/orders/"+uuid.NewString()+"?order_date=20-06-2024", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "order_date", decodeError(t, rec).Errors[0].Field)
}

func TestDeleteOrderMapsBusinessRules(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{name: "deleted", wantCode: http.StatusNoContent},
		{name: "past", err: orderdomain.ErrPastOrder, wantCode: http.StatusBadRequest, wantErr: "past_order"},
		{name: "status", err: orderdomain.ErrInvalidStatusForDelete, wantCode: http.StatusBadRequest, wantErr: "invalid_status_for_delete"},
		{name: "missing", err: orderdomain.ErrNotFound, wantCode: http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t, true)
			ts.orders.delete = func(orderdomain.DeleteRequest) error { return tc.err }

			rec := ts.do(http.MethodDelete, "/orders/"+uuid.NewString()+"?order_date=2024-06-20", "")
			require.Equal(t, tc.wantCode, rec.Code)
			if tc.wantErr != "" {
				payload := decodeError(t, rec)
				require.Len(t, payload.Errors, 1)
				assert.Equal(t, tc.wantErr, payload.Errors[0].Code)
			}
		})
	}
}

func TestUpdateOrderHintFromBody(t *testing.T) {
	ts := newTestServer(t, true)
	id := uuid.New()

	var got orderdomain.UpdateRequest
	ts.orders.update = func(req orderdomain.UpdateRequest) (*orderdomain.Order, error) {
		got = req
		order := sampleOrder(id)
		order.Quantity = int32(req.Quantity)
		order.Status = orderdomain.StatusConfirmed
		return order, nil
	}

	rec := ts.do(http.MethodPut, "/orders/"+id.String()+"?order_date=2024-01-01",
		`{"quantity":40,"status":"confirmed","orderDate":"2024-06-20"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.NotNil(t, got.OrderDate)
	assert.Equal(t, "2024-06-20", got.OrderDate.String())
	assert.Equal(t, int64(40), got.Quantity)
	require.NotNil(t, got.Status)
	assert.Equal(t, "confirmed", *got.Status)
}

func TestUpdateOrderHintFromQuery(t *testing.T) {
	ts := newTestServer(t, true)

	var got orderdomain.UpdateRequest
	ts.orders.update = func(req orderdomain.UpdateRequest) (*orderdomain.Order, error) {
		got = req
		return nil, orderdomain.ErrInvalidStatus
	}

	rec := ts.do(http.MethodPut, "/orders/"+uuid.NewString()+"?order_date=2024-06-20", `{"quantity":4,"status":"lost"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "invalid_status", payload.Errors[0].Code)
	assert.Equal(t, "status", payload.Errors[0].Field)
	require.NotNil(t, got.OrderDate)
	assert.Equal(t, "2024-06-20", got.OrderDate.String())
	require.NotNil(t, got.Status)
	assert.Equal(t, "lost", *got.Status)
}

func TestCreateOrderMapsRejection(t *testing.T) {
	ts := newTestServer(t, true)
	ts.orders.create = func(orderdomain.CreateRequest) (*orderdomain.Order, error) {
		return nil, ingestdomain.RejectUnknownProduct
	}

	rec := ts.do(http.MethodPost, "/orders",
		`{"locationCode":"JKT-01","productCode":"NOPE","orderDate":"2024-06-20","quantity":1,"submittedBy":"a"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "unknown_product", payload.Errors[0].Code)
	assert.Equal(t, "productCode", payload.Errors[0].Field)
}

func TestCreateOrderReturnsCreated(t *testing.T) {
	ts := newTestServer(t, true)
	id := uuid.New()

	var got orderdomain.CreateRequest
	ts.orders.create = func(req orderdomain.CreateRequest) (*orderdomain.Order, error) {
		got = req
		return sampleOrder(id), nil
	}

	rec := ts.do(http.MethodPost, "/orders",
		`{"locationCode":"JKT-01","productCode":"SKU-A","orderDate":"2024-06-20","quantity":12,"submittedBy":"planner"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "SKU-A", got.ProductCode)
	assert.Equal(t, "2024-06-20", got.OrderDate.String())
	assert.Contains(t, rec.Body.String(), id.String())
}

func TestListOrdersBuildsPageInfo(t *testing.T) {
	ts := newTestServer(t, true)

	var got orderdomain.ListRequest
	ts.orders.list = func(req orderdomain.ListRequest) (orderdomain.ListResponse, error) {
		got = req
		return orderdomain.ListResponse{
			Orders:     []orderdomain.Order{*sampleOrder(uuid.New())},
			Page:       2,
			PageSize:   10,
			TotalCount: 21,
		}, nil
	}

	rec := ts.do(http.MethodGet, "/orders?location_code=JKT-01&start_date=2024-06-01&end_date=2024-06-30&page=2&page_size=10", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "JKT-01", got.LocationCode)
	assert.Equal(t, 2, got.Page)
	assert.Equal(t, 10, got.PageSize)
	require.NotNil(t, got.StartDate)
	require.NotNil(t, got.EndDate)

	var resp listOrdersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 1)
	assert.Equal(t, 3, resp.PageInfo.TotalPages)
	assert.True(t, resp.PageInfo.HasMore)
}

func TestListOrdersValidation(t *testing.T) {
	ts := newTestServer(t, true)
	ts.orders.list = func(orderdomain.ListRequest) (orderdomain.ListResponse, error) {
		return orderdomain.ListResponse{}, orderdomain.ErrInvalidPageSize
	}

	rec := ts.do(http.MethodGet, "/orders?page_size=500", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_page_size", decodeError(t, rec).Errors[0].Code)

	rec = ts.do(http.MethodGet, "/orders?page=abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec).Errors[0].Code)
}

func TestOrderStats(t *testing.T) {
	ts := newTestServer(t, true)
	first := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	ts.orders.stats = func(orderdomain.StatsRequest) (orderdomain.Stats, error) {
		return orderdomain.Stats{TotalOrders: 4, TotalQuantity: 10, AverageQuantity: 2.5, FirstOrderDate: &first, LastOrderDate: &first}, nil
	}

	rec := ts.do(http.MethodGet, "/orders/stats", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp orderStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(4), resp.TotalOrders)
	assert.InDelta(t, 2.5, resp.AverageQuantity, 0.0001)
}

func TestHealthReflectsCacheState(t *testing.T) {
	cold := newTestServer(t, false)
	rec := cold.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	warm := newTestServer(t, true)
	rec = warm.do(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"locations":1`)
}

func TestRefreshDimensionsWithoutRedis(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(http.MethodPost, "/admin/dimensions/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, ts.dimensions.refreshes)
}

func TestListDimensions(t *testing.T) {
	ts := newTestServer(t, true)

	rec := ts.do(http.MethodGet, "/locations", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "JKT-01")

	rec = ts.do(http.MethodGet, "/products", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "SKU-A")
}

func TestMapErrorStatuses(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{ratelimit.ErrRefreshInProgress, http.StatusConflict},
		{ErrRateLimited, http.StatusTooManyRequests},
		{dimensiondomain.ErrCacheNotReady, http.StatusServiceUnavailable},
		{fmt.Errorf("lookup: %w", orderdomain.ErrNotFound), http.StatusNotFound},
		{orderdomain.ErrInvalidDateRange, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, _ := mapError(tc.err)
		assert.Equal(t, tc.want, status, tc.err.Error())
	}
}

func TestClassifyErrorForLog(t *testing.T) {
	kind, code := classifyErrorForLog(orderdomain.ErrPastOrder)
	assert.Equal(t, "client", kind)
	assert.Equal(t, "past_order", code)

	kind, code = classifyErrorForLog(errors.New("boom"))
	assert.Equal(t, "server", kind)
	assert.Equal(t, "internal_error", code)
}

func TestRetryAfterSeconds(t *testing.T) {
	assert.Equal(t, "1", retryAfterSeconds(0))
	assert.Equal(t, "3", retryAfterSeconds(2100*time.Millisecond))
}
