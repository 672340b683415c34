package datacache

import (
	"context"
	"reflect"
	"time"

	"github.com/goforj/datacache/cachecore"
)

// FetchFunc produces a fresh value from the source of truth.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// Key identifies one logical cached item.
type Key = cachecore.Key

// Entry is a cached value stamped with the time it was fetched.
// Timestamp is milliseconds since the Unix epoch.
type Entry[T any] struct {
	Value     T     `json:"value"`
	Timestamp int64 `json:"timestamp"`
}

func newEntry[T any](value T, now time.Time) Entry[T] {
	return Entry[T]{Value: value, Timestamp: now.UnixMilli()}
}

// Age reports how old the entry is relative to now.
func (e Entry[T]) Age(now time.Time) time.Duration {
	return time.Duration(now.UnixMilli()-e.Timestamp) * time.Millisecond
}

// isStale reports whether the entry is older than threshold.
// A non-positive threshold never marks entries stale.
func (e Entry[T]) isStale(now time.Time, threshold time.Duration) bool {
	return threshold > 0 && e.Age(now) > threshold
}

// isZeroValue is the default emptiness check for fetched values.
// Structs and arrays always count as data. Reference kinds are empty only
// when nil, so an empty but allocated slice or map is kept.
func isZeroValue[T any](v T) bool {
	rv := reflect.ValueOf(&v).Elem()
	switch rv.Kind() {
	case reflect.Struct, reflect.Array:
		return false
	case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return rv.IsZero()
	}
}
