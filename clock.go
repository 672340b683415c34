package datacache

import "time"

// Clock provides the current time for entry timestamps and staleness checks.
// The default implementation uses time.Now().
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}
