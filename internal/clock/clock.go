package clock

import (
	"time"

	"go.uber.org/fx"
)

// Clock supplies wall time. Business rules that compare against "today"
// take it as a dependency so tests can pin the date.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func New() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Today returns the UTC calendar date of c.Now() at midnight.
func Today(c Clock) time.Time {
	now := c.Now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

var Module = fx.Module("clock",
	fx.Provide(New),
)
