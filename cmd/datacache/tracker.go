package main

import (
	"context"
	"sync"
	"time"

	"github.com/goforj/datacache"
)

// tracker follows the coordinator's background work through its observer
// events so the process does not exit before a write lands.
type tracker struct {
	mu             sync.Mutex
	pendingWrites  int
	refreshSettled bool
}

func newTracker() *tracker {
	return &tracker{}
}

func (t *tracker) OnCacheOp(_ context.Context, op string, _ datacache.Key, hit bool, _ error, _ time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch op {
	case datacache.OpFetch:
		if hit {
			t.pendingWrites++
		}
	case datacache.OpSet:
		if t.pendingWrites > 0 {
			t.pendingWrites--
		}
	case datacache.OpRefresh:
		t.refreshSettled = true
	}
}

func (t *tracker) refreshed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refreshSettled
}

func (t *tracker) idle(waitRefresh bool) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pendingWrites > 0 {
		return false
	}
	return !waitRefresh || t.refreshSettled
}

// wait blocks until pending writes finish (at most writeLimit). When
// refreshLimit is positive it also waits up to that long for a background
// refresh to settle.
func (t *tracker) wait(writeLimit, refreshLimit time.Duration) {
	limit := writeLimit
	if refreshLimit > limit {
		limit = refreshLimit
	}
	deadline := time.Now().Add(limit)
	for time.Now().Before(deadline) {
		if t.idle(refreshLimit > 0) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}
