package datacache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type memoryRecord struct {
	objectType string
	value      []byte
	storedAt   int64
}

type memoryStore struct {
	cache      *gocache.Cache
	defaultTTL time.Duration
}

// newMemoryStore keeps records in process. A zero defaultTTL keeps records
// until they are overwritten, deleted or invalidated.
func newMemoryStore(defaultTTL, cleanupInterval time.Duration) Store {
	if cleanupInterval <= 0 {
		cleanupInterval = defaultMemoryCleanupInterval
	}
	return &memoryStore{
		cache:      gocache.New(gocache.NoExpiration, cleanupInterval),
		defaultTTL: defaultTTL,
	}
}

func (s *memoryStore) Driver() Driver {
	return DriverMemory
}

func (s *memoryStore) Get(_ context.Context, key Key) (Record, bool, error) {
	item, ok := s.cache.Get(packKey(key.ObjectType, key.ObjectID))
	if !ok {
		return Record{}, false, nil
	}
	rec, ok := item.(memoryRecord)
	if !ok {
		return Record{}, false, nil
	}
	return Record{Value: cloneBytes(rec.value), StoredAt: rec.storedAt}, true, nil
}

func (s *memoryStore) Put(_ context.Context, key Key, rec Record, ttl time.Duration) error {
	ttl = effectiveTTL(ttl, s.defaultTTL)
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	s.cache.Set(packKey(key.ObjectType, key.ObjectID), memoryRecord{
		objectType: key.ObjectType,
		value:      cloneBytes(rec.Value),
		storedAt:   rec.StoredAt,
	}, ttl)
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key Key) error {
	s.cache.Delete(packKey(key.ObjectType, key.ObjectID))
	return nil
}

func (s *memoryStore) Invalidate(_ context.Context, objectType string) error {
	if objectType == "" {
		s.cache.Flush()
		return nil
	}
	for k, item := range s.cache.Items() {
		if rec, ok := item.Object.(memoryRecord); ok && rec.objectType == objectType {
			s.cache.Delete(k)
		}
	}
	return nil
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
