package domain

import (
	"context"
)

// RecordSource yields records one at a time and returns io.EOF once the
// stream is exhausted. Any other error is an infrastructure failure.
type RecordSource interface {
	Next(ctx context.Context) (Record, error)
}

// Loader opens exclusive bulk write sessions against the order store.
type Loader interface {
	Open(ctx context.Context, columns []string) (Session, error)
}

// Session is one atomic bulk write. Nothing written becomes visible unless
// Complete succeeds. Abort is idempotent and safe after a failed Complete.
type Session interface {
	WriteRow(ctx context.Context, row Row) error
	Complete(ctx context.Context) (int64, error)
	Abort(ctx context.Context) error
}
