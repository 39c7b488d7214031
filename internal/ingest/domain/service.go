package domain

import (
	"context"
	"errors"
)

type Service interface {
	Ingest(ctx context.Context, source RecordSource) (Summary, error)
}

var (
	ErrCacheNotInitialized = errors.New("dimension_cache_not_initialized")
	ErrStreamRead          = errors.New("stream_read_failed")
	ErrLoad                = errors.New("bulk_load_failed")
	ErrColumnLayout        = errors.New("unexpected_column_layout")
	ErrStrictRejection     = errors.New("record_rejected")
	ErrSessionClosed       = errors.New("session_closed")
)
