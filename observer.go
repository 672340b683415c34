package datacache

import (
	"context"
	"time"
)

// Observer receives an event for every fetch, store read, store write and
// background refresh a coordinator performs.
type Observer interface {
	OnCacheOp(ctx context.Context, op string, key Key, hit bool, err error, dur time.Duration)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, op string, key Key, hit bool, err error, dur time.Duration)

// OnCacheOp implements Observer.
func (f ObserverFunc) OnCacheOp(ctx context.Context, op string, key Key, hit bool, err error, dur time.Duration) {
	if f == nil {
		return
	}
	f(ctx, op, key, hit, err, dur)
}

// Operation names passed to Observer.OnCacheOp.
const (
	OpFetch   = "fetch"
	OpGet     = "get"
	OpSet     = "set"
	OpRefresh = "refresh"
)
