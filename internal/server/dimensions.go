package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	dimensiondomain "github.com/smallbiznis/replenish/internal/dimension/domain"
	"github.com/smallbiznis/replenish/internal/observability/logger"
	"go.uber.org/zap"
)

func (s *Server) ListLocations(c *gin.Context) {
	items, err := s.dimensionSvc.ListLocations(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) ListProducts(c *gin.Context) {
	items, err := s.dimensionSvc.ListProducts(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

// RefreshDimensions reloads the dimension snapshot. Only one refresh runs
// across all replicas when rate limiting is backed by redis.
func (s *Server) RefreshDimensions(c *gin.Context) {
	ctx := c.Request.Context()

	var resp dimensiondomain.RefreshResponse
	err := s.bulkLimiter.WithRefreshLock(ctx, func(ctx context.Context) error {
		var err error
		resp, err = s.dimensionSvc.Refresh(ctx)
		return err
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	logger.FromContext(ctx).Info("dimension snapshot refreshed",
		zap.Int("locations", resp.Locations),
		zap.Int("products", resp.Products),
	)
	c.JSON(http.StatusOK, resp)
}
