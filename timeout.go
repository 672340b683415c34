package datacache

import (
	"context"
	"fmt"
	"time"
)

type outcome[T any] struct {
	value T
	err   error
}

// withTimeout races fn against a timer. The loser is abandoned: fn keeps its
// own goroutine, its context is cancelled, and its result lands in a buffered
// channel nobody reads. A panic inside fn is returned as an error.
func withTimeout[T any](ctx context.Context, op string, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan outcome[T], 1)
	go func() {
		var res outcome[T]
		defer func() {
			if p := recover(); p != nil {
				res.err = fmt.Errorf("%s panicked: %v", op, p)
			}
			done <- res
		}()
		res.value, res.err = fn(runCtx)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.value, res.err
	case <-timer.C:
		var zero T
		return zero, &TimeoutError{Op: op, Timeout: timeout}
	}
}
