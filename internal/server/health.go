package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/replenish/internal/observability/logger"
	"go.uber.org/zap"
)

const healthPingTimeout = 2 * time.Second

// Health reports ready once the dimension snapshot is loaded and the
// database answers a ping.
func (s *Server) Health(c *gin.Context) {
	if s.cache == nil || !s.cache.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting", "cache": "not_ready"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
	defer cancel()

	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	if err != nil {
		logger.FromContext(ctx).Warn("health check database ping failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": "unreachable"})
		return
	}

	locations, products := s.cache.Counts()
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"locations": locations,
		"products":  products,
		"loaded_at": s.cache.LoadedAt().UTC(),
	})
}
