// Package correlation carries a request-spanning correlation id through
// contexts and HTTP headers.
package correlation

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"
)

// Header is the inbound and outbound HTTP header name.
const Header = "X-Correlation-Id"

const maxLength = 128

type correlationKey struct{}

// ExtractCorrelationID fetches a correlation ID from the context if present.
func ExtractCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if val, ok := ctx.Value(correlationKey{}).(string); ok {
		return val
	}
	return ""
}

// ContextWithCorrelationID sets the correlation ID onto the context.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// FromHeader adopts a caller-supplied id when it is usable, dropping blank
// or oversized values.
func FromHeader(ctx context.Context, value string) context.Context {
	value = strings.TrimSpace(value)
	if value == "" || len(value) > maxLength {
		return ctx
	}
	return ContextWithCorrelationID(ctx, value)
}

// EnsureCorrelationID guarantees a correlation ID on the context, generating one when missing.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	cid := ExtractCorrelationID(ctx)
	if cid == "" {
		cid = ulid.Make().String()
	}
	return ContextWithCorrelationID(ctx, cid), cid
}
