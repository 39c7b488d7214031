package server

import (
	"bufio"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/oklog/ulid/v2"
	ingestdomain "github.com/smallbiznis/replenish/internal/ingest/domain"
	"github.com/smallbiznis/replenish/internal/ingest/source"
	obscontext "github.com/smallbiznis/replenish/internal/observability/context"
)

type bulkIngestResponse struct {
	Summary    string                                 `json:"summary"`
	Total      int64                                  `json:"total"`
	Accepted   int64                                  `json:"accepted"`
	Rejected   int64                                  `json:"rejected"`
	Rejections map[ingestdomain.RejectionReason]int64 `json:"rejections"`
}

// BulkIngestOrders streams a JSON array or NDJSON body through the ingest
// pipeline. The body is never buffered in full.
func (s *Server) BulkIngestOrders(c *gin.Context) {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		AbortWithError(c, ErrEmptyBody)
		return
	}

	body := bufio.NewReader(c.Request.Body)
	if _, err := body.Peek(1); err != nil {
		AbortWithError(c, ErrEmptyBody)
		return
	}

	runID := ulid.Make().String()
	c.Set("ingest_run_id", runID)
	ctx := obscontext.WithIngestRunID(c.Request.Context(), runID)

	summary, err := s.ingestSvc.Ingest(ctx, source.NewJSONSource(body))
	if err != nil {
		if isIngestFailure(err) {
			AbortWithError(c, &ingestFailure{err: err})
			return
		}
		AbortWithError(c, err)
		return
	}

	rejections := summary.Rejections
	if rejections == nil {
		rejections = map[ingestdomain.RejectionReason]int64{}
	}
	c.JSON(http.StatusOK, bulkIngestResponse{
		Summary:    summary.String(),
		Total:      summary.Total(),
		Accepted:   summary.Accepted,
		Rejected:   summary.Rejected,
		Rejections: rejections,
	})
}
