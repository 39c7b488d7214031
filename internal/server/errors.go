package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	dimensiondomain "github.com/smallbiznis/replenish/internal/dimension/domain"
	ingestdomain "github.com/smallbiznis/replenish/internal/ingest/domain"
	"github.com/smallbiznis/replenish/internal/ingest/source"
	orderdomain "github.com/smallbiznis/replenish/internal/order/domain"
	"github.com/smallbiznis/replenish/internal/ratelimit"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrEmptyBody          = errors.New("empty_body")
	ErrRateLimited        = errors.New("rate_limited")
	ErrInternal           = errors.New("internal_error")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// ingestFailure marks a bulk run that ended on an infrastructure failure.
// The detail is returned to the caller as-is.
type ingestFailure struct {
	err error
}

func (e *ingestFailure) Error() string { return "Streaming failed: " + e.err.Error() }

func (e *ingestFailure) Unwrap() error { return e.err }

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var failure *ingestFailure
	if errors.As(err, &failure) {
		return http.StatusBadRequest, errorPayload{
			Type:    "ingest_failed",
			Message: failure.Error(),
		}
	}

	var reason ingestdomain.RejectionReason
	if errors.As(err, &reason) {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   rejectionField(reason),
					Code:    string(reason),
					Message: validationErrorMessage(string(reason)),
				},
			},
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ratelimit.ErrRefreshInProgress):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "dimension refresh already in progress",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable),
		errors.Is(err, ingestdomain.ErrCacheNotInitialized),
		errors.Is(err, dimensiondomain.ErrCacheNotReady):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, ErrEmptyBody),
		errors.Is(err, orderdomain.ErrPastOrder),
		errors.Is(err, orderdomain.ErrInvalidStatusForDelete),
		errors.Is(err, orderdomain.ErrInvalidQuantity),
		errors.Is(err, orderdomain.ErrInvalidStatus),
		errors.Is(err, orderdomain.ErrInvalidDateRange),
		errors.Is(err, orderdomain.ErrInvalidPage),
		errors.Is(err, orderdomain.ErrInvalidPageSize):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, orderdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isIngestFailure(err error) bool {
	switch {
	case errors.Is(err, ingestdomain.ErrStreamRead),
		errors.Is(err, ingestdomain.ErrLoad),
		errors.Is(err, ingestdomain.ErrColumnLayout),
		errors.Is(err, ingestdomain.ErrStrictRejection),
		errors.Is(err, ingestdomain.ErrCacheNotInitialized),
		errors.Is(err, source.ErrCSVHeader),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, ErrEmptyBody):
		return "empty_body"
	case errors.Is(err, orderdomain.ErrPastOrder):
		return "past_order"
	case errors.Is(err, orderdomain.ErrInvalidStatusForDelete):
		return "invalid_status_for_delete"
	case errors.Is(err, orderdomain.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, orderdomain.ErrInvalidStatus):
		return "invalid_status"
	case errors.Is(err, orderdomain.ErrInvalidDateRange):
		return "invalid_date_range"
	case errors.Is(err, orderdomain.ErrInvalidPage):
		return "invalid_page"
	case errors.Is(err, orderdomain.ErrInvalidPageSize):
		return "invalid_page_size"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request", "empty_body":
		return "request"
	case "past_order", "invalid_date_range":
		return "order_date"
	case "invalid_status_for_delete":
		return "status"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "empty_body":
		return "request body is empty"
	case "past_order":
		return "orders dated before today cannot be deleted"
	case "invalid_status_for_delete":
		return "only pending orders can be deleted"
	case "invalid_quantity":
		return "quantity must be a positive 32-bit integer"
	case "invalid_status":
		return "status must be one of " + strings.Join(orderdomain.StatusNames(), ", ")
	case "invalid_date_range":
		return "end date is before start date"
	case "invalid_page":
		return "page must be at least 1"
	case "invalid_page_size":
		return "page size must be between 1 and 100"
	case string(ingestdomain.RejectMissingField):
		return "a required field is missing"
	case string(ingestdomain.RejectNonPositiveQuantity):
		return "quantity must be positive"
	case string(ingestdomain.RejectUnknownLocation):
		return "location code is not known"
	case string(ingestdomain.RejectUnknownProduct):
		return "product code is not known"
	default:
		return "invalid value"
	}
}

func rejectionField(reason ingestdomain.RejectionReason) string {
	switch reason {
	case ingestdomain.RejectNonPositiveQuantity:
		return "quantity"
	case ingestdomain.RejectUnknownLocation:
		return "locationCode"
	case ingestdomain.RejectUnknownProduct:
		return "productCode"
	default:
		return "request"
	}
}

// classifyErrorForLog returns the error type and code attached to request logs.
func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	if status >= http.StatusInternalServerError {
		return "server", code
	}
	return "client", code
}
