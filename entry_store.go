package datacache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// EntryStore persists entries by (object type, object id). Implementations
// must be safe for concurrent use; the coordinator may write from background
// goroutines.
type EntryStore[T any] interface {
	Get(ctx context.Context, objectType, objectID string) (Entry[T], bool, error)
	Set(ctx context.Context, objectType, objectID string, entry Entry[T]) error
}

// ValueCodec defines how values are turned into record bytes.
type ValueCodec[T any] struct {
	Encode func(T) ([]byte, error)
	Decode func([]byte) (T, error)
}

// JSONCodec encodes values with encoding/json.
func JSONCodec[T any]() ValueCodec[T] {
	return ValueCodec[T]{
		Encode: func(v T) ([]byte, error) { return json.Marshal(v) },
		Decode: func(b []byte) (T, error) {
			var out T
			err := json.Unmarshal(b, &out)
			return out, err
		},
	}
}

// MemoryEntryStore keeps entries in process memory without expiry.
// Entries are stored by value and do not survive a restart.
type MemoryEntryStore[T any] struct {
	cache *gocache.Cache
}

// NewMemoryEntryStore returns an empty in-process entry store.
func NewMemoryEntryStore[T any]() *MemoryEntryStore[T] {
	return &MemoryEntryStore[T]{cache: gocache.New(gocache.NoExpiration, 0)}
}

func (s *MemoryEntryStore[T]) Get(_ context.Context, objectType, objectID string) (Entry[T], bool, error) {
	item, ok := s.cache.Get(packKey(objectType, objectID))
	if !ok {
		return Entry[T]{}, false, nil
	}
	entry, ok := item.(Entry[T])
	if !ok {
		return Entry[T]{}, false, nil
	}
	return entry, true, nil
}

func (s *MemoryEntryStore[T]) Set(_ context.Context, objectType, objectID string, entry Entry[T]) error {
	s.cache.Set(packKey(objectType, objectID), entry, gocache.NoExpiration)
	return nil
}

// Delete removes one entry.
func (s *MemoryEntryStore[T]) Delete(_ context.Context, objectType, objectID string) error {
	s.cache.Delete(packKey(objectType, objectID))
	return nil
}

// Len reports how many entries are held.
func (s *MemoryEntryStore[T]) Len() int {
	return s.cache.ItemCount()
}

// KeyedStore adapts a record Store into an EntryStore. Only Entry.Value
// goes through the codec; Entry.Timestamp travels as the record's StoredAt,
// which each backend keeps as its own metadata.
type KeyedStore[T any] struct {
	store Store
	codec ValueCodec[T]
	ttl   time.Duration
}

// KeyedStoreOption configures a KeyedStore.
type KeyedStoreOption[T any] func(*KeyedStore[T])

// WithValueCodec replaces the default JSON value encoding.
func WithValueCodec[T any](codec ValueCodec[T]) KeyedStoreOption[T] {
	return func(s *KeyedStore[T]) {
		if codec.Encode != nil && codec.Decode != nil {
			s.codec = codec
		}
	}
}

// WithEntryTTL sets the backend TTL for written entries. Zero defers to the
// store default.
func WithEntryTTL[T any](ttl time.Duration) KeyedStoreOption[T] {
	return func(s *KeyedStore[T]) { s.ttl = ttl }
}

// NewKeyedStore wraps store. Values are JSON encoded unless WithValueCodec is given.
//
// Example: entries over a redis store
//
//	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
//	entries := datacache.NewKeyedStore[Profile](
//		datacache.NewRedisStore(ctx, client, datacache.WithPrefix("app")),
//		datacache.WithEntryTTL[Profile](24*time.Hour),
//	)
func NewKeyedStore[T any](store Store, opts ...KeyedStoreOption[T]) *KeyedStore[T] {
	s := &KeyedStore[T]{store: store, codec: JSONCodec[T]()}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Driver reports the backing store driver.
func (s *KeyedStore[T]) Driver() Driver {
	return s.store.Driver()
}

func (s *KeyedStore[T]) Get(ctx context.Context, objectType, objectID string) (Entry[T], bool, error) {
	key := Key{ObjectType: objectType, ObjectID: objectID}
	rec, ok, err := s.store.Get(ctx, key)
	if err != nil || !ok {
		return Entry[T]{}, false, err
	}
	value, err := s.codec.Decode(rec.Value)
	if err != nil {
		return Entry[T]{}, false, fmt.Errorf("decode entry %s: %w", key, err)
	}
	return Entry[T]{Value: value, Timestamp: rec.StoredAt}, true, nil
}

func (s *KeyedStore[T]) Set(ctx context.Context, objectType, objectID string, entry Entry[T]) error {
	key := Key{ObjectType: objectType, ObjectID: objectID}
	body, err := s.codec.Encode(entry.Value)
	if err != nil {
		return fmt.Errorf("encode entry %s: %w", key, err)
	}
	return s.store.Put(ctx, key, Record{Value: body, StoredAt: entry.Timestamp}, s.ttl)
}

// Delete removes one entry.
func (s *KeyedStore[T]) Delete(ctx context.Context, objectType, objectID string) error {
	return s.store.Delete(ctx, Key{ObjectType: objectType, ObjectID: objectID})
}

// Invalidate drops every entry of objectType, or every entry in the store's
// namespace when objectType is empty.
func (s *KeyedStore[T]) Invalidate(ctx context.Context, objectType string) error {
	return s.store.Invalidate(ctx, objectType)
}
