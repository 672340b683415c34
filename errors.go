package datacache

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMissingParameter is matched by construction failures for absent required fields.
	ErrMissingParameter = errors.New("datacache: missing required parameter")
	// ErrUnknownStrategy is matched when Retrieve meets a strategy it cannot dispatch.
	ErrUnknownStrategy = errors.New("datacache: unknown strategy")
	// ErrAlreadyInvoked is matched when Retrieve is called more than once.
	ErrAlreadyInvoked = errors.New("datacache: retrieve already invoked")
	// ErrTimeout is matched by every *TimeoutError.
	ErrTimeout = errors.New("datacache: operation timed out")
	// ErrEmptyResult marks a fetch that succeeded without producing data.
	ErrEmptyResult = errors.New("datacache: fetch returned an empty result")
	// ErrNoData is matched by every *NoDataError.
	ErrNoData = errors.New("datacache: no data available")
)

// ConfigError reports a misuse of the coordinator API. It is returned
// synchronously and is never retried.
type ConfigError struct {
	kind  error
	Field string
	Value string
}

func (e *ConfigError) Error() string {
	switch e.kind {
	case ErrMissingParameter:
		return fmt.Sprintf("required parameter %q is missing", e.Field)
	case ErrUnknownStrategy:
		return fmt.Sprintf("unknown strategy %q", e.Value)
	case ErrAlreadyInvoked:
		return "retrieve has already been called on this coordinator"
	default:
		return "invalid coordinator configuration"
	}
}

func (e *ConfigError) Unwrap() error { return e.kind }

func missingParameter(field string) error {
	return &ConfigError{kind: ErrMissingParameter, Field: field}
}

func unknownStrategy(s Strategy) error {
	return &ConfigError{kind: ErrUnknownStrategy, Field: "strategy", Value: string(s)}
}

func alreadyInvoked() error {
	return &ConfigError{kind: ErrAlreadyInvoked}
}

// TimeoutError reports that a fetch or store operation exceeded its bound.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %dms", e.Op, e.Timeout.Milliseconds())
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// SourceError wraps a failed, timed out, or empty fetch.
type SourceError struct {
	Key Key
	Err error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Key, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// StoreError wraps a failed or timed out store read or write.
type StoreError struct {
	Op  string
	Key Key
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// NoDataError is returned when neither the cache nor the source produced a value.
type NoDataError struct {
	Strategy Strategy
	Key      Key
}

func (e *NoDataError) Error() string {
	if e.Strategy == StrategyCacheFirst {
		return fmt.Sprintf("no cache match and fetch failed for object %q, id: %q", e.Key.ObjectType, e.Key.ObjectID)
	}
	return fmt.Sprintf("fetch failed and no cache match for object %q, id: %q", e.Key.ObjectType, e.Key.ObjectID)
}

func (e *NoDataError) Is(target error) bool { return target == ErrNoData }
