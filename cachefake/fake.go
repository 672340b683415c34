package cachefake

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goforj/datacache"
)

// Op identifies a store operation for assertions.
type Op string

const (
	OpGet Op = "get"
	OpSet Op = "set"
)

// Fake is an in-memory EntryStore that records every call and can be told to
// fail or stall. Keys in assertions are "objectType__objectID".
type Fake[T any] struct {
	inner *datacache.MemoryEntryStore[T]

	mu       sync.Mutex
	counts   map[Op]map[string]int
	getErr   error
	setErr   error
	getDelay time.Duration
	setDelay time.Duration
}

// New creates an empty Fake.
func New[T any]() *Fake[T] {
	return &Fake[T]{
		inner:  datacache.NewMemoryEntryStore[T](),
		counts: make(map[Op]map[string]int),
	}
}

// Get implements datacache.EntryStore.
func (f *Fake[T]) Get(ctx context.Context, objectType, objectID string) (datacache.Entry[T], bool, error) {
	delay, err := f.record(OpGet, objectType, objectID)
	if err := wait(ctx, delay); err != nil {
		return datacache.Entry[T]{}, false, err
	}
	if err != nil {
		return datacache.Entry[T]{}, false, err
	}
	return f.inner.Get(ctx, objectType, objectID)
}

// Set implements datacache.EntryStore.
func (f *Fake[T]) Set(ctx context.Context, objectType, objectID string, entry datacache.Entry[T]) error {
	delay, err := f.record(OpSet, objectType, objectID)
	if err := wait(ctx, delay); err != nil {
		return err
	}
	if err != nil {
		return err
	}
	return f.inner.Set(ctx, objectType, objectID, entry)
}

// Seed stores entry without counting a call.
func (f *Fake[T]) Seed(objectType, objectID string, entry datacache.Entry[T]) {
	_ = f.inner.Set(context.Background(), objectType, objectID, entry)
}

// Peek reads an entry without counting a call.
func (f *Fake[T]) Peek(objectType, objectID string) (datacache.Entry[T], bool) {
	entry, ok, _ := f.inner.Get(context.Background(), objectType, objectID)
	return entry, ok
}

// FailGet makes every subsequent Get return err. Pass nil to clear.
func (f *Fake[T]) FailGet(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErr = err
}

// FailSet makes every subsequent Set return err. Pass nil to clear.
func (f *Fake[T]) FailSet(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setErr = err
}

// DelayGet stalls every Get by d, or until its context ends.
func (f *Fake[T]) DelayGet(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getDelay = d
}

// DelaySet stalls every Set by d, or until its context ends.
func (f *Fake[T]) DelaySet(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setDelay = d
}

// Reset clears recorded counts.
func (f *Fake[T]) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = make(map[Op]map[string]int)
}

// AssertCalled verifies key was touched by op the expected number of times.
func (f *Fake[T]) AssertCalled(t testing.TB, op Op, key string, times int) {
	t.Helper()
	if got := f.Count(op, key); got != times {
		t.Fatalf("expected %s %q called %d times, got %d", op, key, times, got)
	}
}

// AssertNotCalled ensures key was never touched by op.
func (f *Fake[T]) AssertNotCalled(t testing.TB, op Op, key string) {
	t.Helper()
	if got := f.Count(op, key); got != 0 {
		t.Fatalf("expected %s %q not called, got %d", op, key, got)
	}
}

// AssertTotal ensures the total call count for an op matches times.
func (f *Fake[T]) AssertTotal(t testing.TB, op Op, times int) {
	t.Helper()
	if got := f.Total(op); got != times {
		t.Fatalf("expected %s total=%d, got %d", op, times, got)
	}
}

// WaitForCount polls until op has been called times times on key. Writes made
// by a coordinator happen in the background, so tests wait for them here.
func (f *Fake[T]) WaitForCount(t testing.TB, op Op, key string, times int, within time.Duration) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if f.Count(op, key) >= times {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("expected %s %q called %d times within %s, got %d", op, key, times, within, f.Count(op, key))
}

// Count returns calls for op+key.
func (f *Fake[T]) Count(op Op, key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[op][key]
}

// Total returns total calls for an op across keys.
func (f *Fake[T]) Total(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum int
	for _, v := range f.counts[op] {
		sum += v
	}
	return sum
}

func (f *Fake[T]) record(op Op, objectType, objectID string) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := datacache.Key{ObjectType: objectType, ObjectID: objectID}.Composite()
	if f.counts[op] == nil {
		f.counts[op] = make(map[string]int)
	}
	f.counts[op][key]++
	if op == OpGet {
		return f.getDelay, f.getErr
	}
	return f.setDelay, f.setErr
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
