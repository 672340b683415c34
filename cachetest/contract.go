package cachetest

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/goforj/datacache/cachecore"
)

// Options configures shared store contract checks.
type Options struct {
	// CaseName namespaces the object types used by the suite. Defaults to t.Name().
	CaseName string
	// NullSemantics enables relaxed expectations for the null store.
	NullSemantics bool
	// TTL controls the expiry duration used in TTL tests.
	TTL time.Duration
	// TTLWait is how long the harness waits for expiry to occur.
	TTLWait time.Duration
	// SkipTTL disables the expiry check for backends with coarse expiry.
	SkipTTL bool
	// SkipInvalidateAll disables the namespace-wide invalidation check for
	// backends shared with other suites under the same prefix.
	SkipInvalidateAll bool
}

// Store is the minimal contract required by RunStoreContract.
type Store = cachecore.Store

// RunStoreContract runs a backend-agnostic store contract suite.
func RunStoreContract(t *testing.T, store Store, opts Options) {
	t.Helper()

	caseName := opts.CaseName
	if caseName == "" {
		caseName = t.Name()
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 50 * time.Millisecond
	}
	wait := opts.TTLWait
	if wait <= 0 {
		wait = 120 * time.Millisecond
	}

	ctx := context.Background()
	objectType := sanitize(caseName)
	siblingType := objectType + "-sibling"
	key := func(id string) cachecore.Key {
		return cachecore.Key{ObjectType: objectType, ObjectID: id}
	}
	rec := func(value string, storedAt int64) cachecore.Record {
		return cachecore.Record{Value: []byte(value), StoredAt: storedAt}
	}

	// Put/Get round-trip, including the fetch time.
	if err := store.Put(ctx, key("alpha"), rec("value", 1700000000123), time.Minute); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	got, ok, err := store.Get(ctx, key("alpha"))
	if err != nil {
		t.Fatalf("get failed: ok=%v err=%v", ok, err)
	}
	if opts.NullSemantics {
		if ok {
			t.Fatalf("expected miss for null semantics")
		}
		if err := store.Invalidate(ctx, objectType); err != nil {
			t.Fatalf("invalidate failed: %v", err)
		}
		return
	}
	if !ok || string(got.Value) != "value" || got.StoredAt != 1700000000123 {
		t.Fatalf("unexpected get result: ok=%v value=%q storedAt=%d", ok, got.Value, got.StoredAt)
	}

	// Callers own the returned bytes.
	got.Value[0] = 'X'
	again, ok, err := store.Get(ctx, key("alpha"))
	if err != nil || !ok || string(again.Value) != "value" {
		t.Fatalf("expected stored value unchanged, got ok=%v value=%q err=%v", ok, again.Value, err)
	}

	// Overwrite replaces value and fetch time.
	if err := store.Put(ctx, key("alpha"), rec("value-2", 1700000000999), time.Minute); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	if got, ok, err := store.Get(ctx, key("alpha")); err != nil || !ok || string(got.Value) != "value-2" || got.StoredAt != 1700000000999 {
		t.Fatalf("expected overwritten record, got ok=%v rec=%+v err=%v", ok, got, err)
	}

	// Binary values and awkward ids survive unchanged.
	binary := []byte{0, 1, 2, 0xff, '\n', ' '}
	for _, id := range []string{"with space", "slash/../id", "colon:id", "ünïcode", ""} {
		if err := store.Put(ctx, key(id), cachecore.Record{Value: binary, StoredAt: 1}, time.Minute); err != nil {
			t.Fatalf("put %q failed: %v", id, err)
		}
		if got, ok, err := store.Get(ctx, key(id)); err != nil || !ok || !bytes.Equal(got.Value, binary) {
			t.Fatalf("round trip %q failed: ok=%v rec=%+v err=%v", id, ok, got, err)
		}
	}

	// Miss on an unknown key and on the same id under another type.
	if _, ok, err := store.Get(ctx, key("missing")); err != nil || ok {
		t.Fatalf("expected miss for unknown key; ok=%v err=%v", ok, err)
	}
	if _, ok, err := store.Get(ctx, cachecore.Key{ObjectType: siblingType, ObjectID: "alpha"}); err != nil || ok {
		t.Fatalf("expected miss for id under another type; ok=%v err=%v", ok, err)
	}

	// ttl <= 0 falls back to the store default, which keeps the entry.
	if err := store.Put(ctx, key("forever"), rec("kept", 1), 0); err != nil {
		t.Fatalf("put without ttl failed: %v", err)
	}
	if got, ok, err := store.Get(ctx, key("forever")); err != nil || !ok || string(got.Value) != "kept" {
		t.Fatalf("expected entry without ttl to persist, got ok=%v rec=%+v err=%v", ok, got, err)
	}

	// TTL expiry.
	if !opts.SkipTTL {
		if err := store.Put(ctx, key("ttl"), rec("v", 1), ttl); err != nil {
			t.Fatalf("put ttl failed: %v", err)
		}
		if err := waitForMiss(ctx, store, key("ttl"), wait); err != nil {
			t.Fatalf("expected ttl expiry: %v", err)
		}
	}

	// Delete, including a key that never existed.
	if err := store.Put(ctx, key("a"), rec("1", 1), time.Minute); err != nil {
		t.Fatalf("put a failed: %v", err)
	}
	if err := store.Delete(ctx, key("a")); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok, err := store.Get(ctx, key("a")); err != nil || ok {
		t.Fatalf("expected key a deleted; ok=%v err=%v", ok, err)
	}
	if err := store.Delete(ctx, key("never-set")); err != nil {
		t.Fatalf("delete of missing key failed: %v", err)
	}

	// Invalidate by type leaves other types alone.
	sibling := cachecore.Key{ObjectType: siblingType, ObjectID: "b"}
	if err := store.Put(ctx, key("b"), rec("x", 1), time.Minute); err != nil {
		t.Fatalf("put b failed: %v", err)
	}
	if err := store.Put(ctx, sibling, rec("y", 1), time.Minute); err != nil {
		t.Fatalf("put sibling failed: %v", err)
	}
	if err := store.Invalidate(ctx, objectType); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}
	if _, ok, err := store.Get(ctx, key("b")); err != nil || ok {
		t.Fatalf("expected invalidate to clear key; ok=%v err=%v", ok, err)
	}
	if got, ok, err := store.Get(ctx, sibling); err != nil || !ok || string(got.Value) != "y" {
		t.Fatalf("expected sibling type kept; ok=%v rec=%+v err=%v", ok, got, err)
	}

	// Writes after invalidation are readable again.
	if err := store.Put(ctx, key("b"), rec("z", 2), time.Minute); err != nil {
		t.Fatalf("put after invalidate failed: %v", err)
	}
	if got, ok, err := store.Get(ctx, key("b")); err != nil || !ok || string(got.Value) != "z" {
		t.Fatalf("expected write after invalidate; ok=%v rec=%+v err=%v", ok, got, err)
	}

	// Invalidate with no type clears the namespace.
	if !opts.SkipInvalidateAll {
		if err := store.Invalidate(ctx, ""); err != nil {
			t.Fatalf("invalidate all failed: %v", err)
		}
		for _, k := range []cachecore.Key{key("b"), sibling} {
			if _, ok, err := store.Get(ctx, k); err != nil || ok {
				t.Fatalf("expected invalidate all to clear %s; ok=%v err=%v", k, ok, err)
			}
		}
	} else if err := store.Invalidate(ctx, siblingType); err != nil {
		t.Fatalf("invalidate sibling failed: %v", err)
	}
}

func waitForMiss(ctx context.Context, store Store, key cachecore.Key, wait time.Duration) error {
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		_, ok, err := store.Get(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	_, ok, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("key %s still present after %s", key, wait)
	}
	return nil
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
