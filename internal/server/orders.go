package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/smallbiznis/replenish/internal/order/domain"
	"github.com/smallbiznis/replenish/pkg/db/pagination"
)

type orderResponse struct {
	ID           string           `json:"id"`
	LocationID   int16            `json:"locationId"`
	LocationCode string           `json:"locationCode,omitempty"`
	ProductID    int32            `json:"productId"`
	ProductCode  string           `json:"productCode,omitempty"`
	OrderDate    orderdomain.Date `json:"orderDate"`
	Quantity     int32            `json:"quantity"`
	SubmittedBy  string           `json:"submittedBy"`
	SubmittedAt  time.Time        `json:"submittedAt"`
	Status       string           `json:"status"`
}

type listOrdersResponse struct {
	Data     []orderResponse     `json:"data"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

type orderStatsResponse struct {
	TotalOrders     int64      `json:"totalOrders"`
	TotalQuantity   int64      `json:"totalQuantity"`
	AverageQuantity float64    `json:"averageQuantity"`
	FirstOrderDate  *time.Time `json:"firstOrderDate,omitempty"`
	LastOrderDate   *time.Time `json:"lastOrderDate,omitempty"`
}

type updateOrderRequest struct {
	Quantity  int64            `json:"quantity"`
	Status    *string          `json:"status"`
	OrderDate orderdomain.Date `json:"orderDate"`
}

func (s *Server) GetOrderByID(c *gin.Context) {
	id, err := parseOrderID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}
	hint, err := parseOptionalDate(c.Query("order_date"))
	if err != nil {
		AbortWithError(c, newValidationError("order_date", "invalid_date", "order_date must be YYYY-MM-DD"))
		return
	}

	order, err := s.orderSvc.Find(c.Request.Context(), orderdomain.FindRequest{ID: id, OrderDate: hint})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, s.toOrderResponse(*order))
}

// UpdateOrder takes the partition hint from the body's orderDate, falling
// back to the order_date query parameter.
func (s *Server) UpdateOrder(c *gin.Context) {
	id, err := parseOrderID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	var req updateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	hint := orderdomain.DatePtr(req.OrderDate)
	if hint == nil {
		hint, err = parseOptionalDate(c.Query("order_date"))
		if err != nil {
			AbortWithError(c, newValidationError("order_date", "invalid_date", "order_date must be YYYY-MM-DD"))
			return
		}
	}

	order, err := s.orderSvc.Update(c.Request.Context(), orderdomain.UpdateRequest{
		ID:        id,
		OrderDate: hint,
		Quantity:  req.Quantity,
		Status:    req.Status,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, s.toOrderResponse(*order))
}

func (s *Server) DeleteOrder(c *gin.Context) {
	id, err := parseOrderID(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}
	hint, err := parseOptionalDate(c.Query("order_date"))
	if err != nil {
		AbortWithError(c, newValidationError("order_date", "invalid_date", "order_date must be YYYY-MM-DD"))
		return
	}

	if err := s.orderSvc.Delete(c.Request.Context(), orderdomain.DeleteRequest{ID: id, OrderDate: hint}); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) CreateOrder(c *gin.Context) {
	var req orderdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	order, err := s.orderSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, s.toOrderResponse(*order))
}

func (s *Server) ListOrders(c *gin.Context) {
	var query pagination.Pagination
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	start, end, ok := bindDateRange(c)
	if !ok {
		return
	}

	resp, err := s.orderSvc.List(c.Request.Context(), orderdomain.ListRequest{
		LocationCode: strings.TrimSpace(c.Query("location_code")),
		StartDate:    start,
		EndDate:      end,
		Page:         query.Page,
		PageSize:     query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	data := make([]orderResponse, 0, len(resp.Orders))
	for _, order := range resp.Orders {
		data = append(data, s.toOrderResponse(order))
	}

	c.JSON(http.StatusOK, listOrdersResponse{
		Data:     data,
		PageInfo: pagination.BuildPageInfo(resp.Page, resp.PageSize, resp.TotalCount),
	})
}

func (s *Server) GetOrderStats(c *gin.Context) {
	start, end, ok := bindDateRange(c)
	if !ok {
		return
	}

	stats, err := s.orderSvc.Stats(c.Request.Context(), orderdomain.StatsRequest{
		LocationCode: strings.TrimSpace(c.Query("location_code")),
		StartDate:    start,
		EndDate:      end,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, orderStatsResponse{
		TotalOrders:     stats.TotalOrders,
		TotalQuantity:   stats.TotalQuantity,
		AverageQuantity: stats.AverageQuantity,
		FirstOrderDate:  stats.FirstOrderDate,
		LastOrderDate:   stats.LastOrderDate,
	})
}

func bindDateRange(c *gin.Context) (*orderdomain.Date, *orderdomain.Date, bool) {
	start, err := parseOptionalDate(c.Query("start_date"))
	if err != nil {
		AbortWithError(c, newValidationError("start_date", "invalid_date", "start_date must be YYYY-MM-DD"))
		return nil, nil, false
	}
	end, err := parseOptionalDate(c.Query("end_date"))
	if err != nil {
		AbortWithError(c, newValidationError("end_date", "invalid_date", "end_date must be YYYY-MM-DD"))
		return nil, nil, false
	}
	return start, end, true
}

func (s *Server) toOrderResponse(order orderdomain.Order) orderResponse {
	resp := orderResponse{
		ID:          order.ID.String(),
		LocationID:  order.LocationID,
		ProductID:   order.ProductID,
		OrderDate:   orderdomain.NewDate(order.OrderDate),
		Quantity:    order.Quantity,
		SubmittedBy: order.SubmittedBy,
		SubmittedAt: order.SubmittedAt.UTC(),
		Status:      order.Status.String(),
	}
	if s.cache != nil {
		resp.LocationCode, _ = s.cache.LocationCode(order.LocationID)
		resp.ProductCode, _ = s.cache.ProductCode(order.ProductID)
	}
	return resp
}
