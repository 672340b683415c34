package cachetest

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/goforj/datacache"
)

// RunEntryStoreContract checks that store returns exactly what was written for
// each (object type, object id) pair and keeps pairs apart. sample must return
// distinct values for distinct i.
func RunEntryStoreContract[T any](t *testing.T, store datacache.EntryStore[T], sample func(i int) T) {
	t.Helper()
	ctx := context.Background()
	objectType := sanitize(t.Name())

	if _, ok, err := store.Get(ctx, objectType, "absent"); err != nil || ok {
		t.Fatalf("expected miss for unknown id; ok=%v err=%v", ok, err)
	}

	first := datacache.Entry[T]{Value: sample(1), Timestamp: time.Now().UnixMilli()}
	if err := store.Set(ctx, objectType, "1", first); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got, ok, err := store.Get(ctx, objectType, "1")
	if err != nil || !ok {
		t.Fatalf("get failed: ok=%v err=%v", ok, err)
	}
	if !reflect.DeepEqual(got, first) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, first)
	}

	// Same id under another type, and another id under the same type, are separate.
	other := datacache.Entry[T]{Value: sample(2), Timestamp: first.Timestamp + 1}
	if err := store.Set(ctx, objectType+"_other", "1", other); err != nil {
		t.Fatalf("set other type failed: %v", err)
	}
	if err := store.Set(ctx, objectType, "2", other); err != nil {
		t.Fatalf("set other id failed: %v", err)
	}
	if got, _, _ := store.Get(ctx, objectType, "1"); !reflect.DeepEqual(got, first) {
		t.Fatalf("entry overwritten by a different key: got %+v", got)
	}

	// Last write wins.
	second := datacache.Entry[T]{Value: sample(3), Timestamp: first.Timestamp + 2}
	if err := store.Set(ctx, objectType, "1", second); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	if got, ok, err := store.Get(ctx, objectType, "1"); err != nil || !ok || !reflect.DeepEqual(got, second) {
		t.Fatalf("expected overwritten entry, got %+v ok=%v err=%v", got, ok, err)
	}
}
