package datacache

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Option mutates a coordinator Config before validation.
type Option[T any] func(*Config[T])

// WithFetchTimeout bounds each fetch call.
func WithFetchTimeout[T any](d time.Duration) Option[T] {
	return func(c *Config[T]) { c.FetchTimeout = d }
}

// WithStoreTimeout bounds each store read and write.
func WithStoreTimeout[T any](d time.Duration) Option[T] {
	return func(c *Config[T]) { c.StoreTimeout = d }
}

// WithStaleAfter enables background refresh for cache_first hits older than d.
func WithStaleAfter[T any](d time.Duration) Option[T] {
	return func(c *Config[T]) { c.StaleAfter = d }
}

// WithOnError registers the failure callback.
func WithOnError[T any](fn func(err error, sev Severity)) Option[T] {
	return func(c *Config[T]) { c.OnError = fn }
}

// WithOnRefreshing registers the callback fired when a background refresh starts.
func WithOnRefreshing[T any](fn func()) Option[T] {
	return func(c *Config[T]) { c.OnRefreshing = fn }
}

// WithOnRefreshed registers the callback fired with the refreshed value.
func WithOnRefreshed[T any](fn func(value T)) Option[T] {
	return func(c *Config[T]) { c.OnRefreshed = fn }
}

// WithDebug toggles diagnostic logging.
func WithDebug[T any](enabled bool) Option[T] {
	return func(c *Config[T]) { c.Debug = enabled }
}

// WithLogger sets the logger used when debug logging is enabled.
func WithLogger[T any](logger logrus.FieldLogger) Option[T] {
	return func(c *Config[T]) { c.Logger = logger }
}

// WithClock overrides the time source used for entry timestamps and staleness.
func WithClock[T any](clock Clock) Option[T] {
	return func(c *Config[T]) { c.Clock = clock }
}

// WithObserver registers an operation observer.
func WithObserver[T any](o Observer) Option[T] {
	return func(c *Config[T]) { c.Observer = o }
}

// WithEmptyCheck overrides what counts as an empty fetch result.
func WithEmptyCheck[T any](fn func(value T) bool) Option[T] {
	return func(c *Config[T]) { c.IsEmpty = fn }
}
