// Package cachetest provides reusable contract tests for record stores and
// entry stores.
//
// Example pattern:
//
//	func TestRedisStoreContract(t *testing.T) {
//		store := datacache.NewRedisStore(ctx, newTestRedisClient(t), datacache.WithPrefix("test"))
//		cachetest.RunStoreContract(t, store, cachetest.Options{
//			TTL:     time.Second,
//			TTLWait: 1500 * time.Millisecond,
//		})
//	}
//
//	func TestKeyedStoreContract(t *testing.T) {
//		store := datacache.NewKeyedStore[string](datacache.NewMemoryStore(ctx))
//		cachetest.RunEntryStoreContract(t, store, func(i int) string { return fmt.Sprint("v", i) })
//	}
package cachetest
