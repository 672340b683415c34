package datacache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcachedClient captures the subset of memcache.Client used by the store.
type MemcachedClient interface {
	Get(key string) (*memcache.Item, error)
	GetMulti(keys []string) (map[string]*memcache.Item, error)
	Set(item *memcache.Item) error
	Add(item *memcache.Item) error
	Increment(key string, delta uint64) (uint64, error)
	Delete(key string) error
}

const (
	memcachedMaxKeyLen    = 250
	memcachedMaxPrefixLen = 128
	// memcached reads expirations beyond 30 days as absolute Unix times.
	memcachedRelativeLimit = 30 * 24 * time.Hour
	memcachedStoredAtLen   = 8
)

// memcachedStore scopes item keys by two generation counters, one for the
// whole prefix and one per object type. Invalidate bumps a counter and the
// old items age out on their own, since memcached cannot delete by pattern.
type memcachedStore struct {
	client     MemcachedClient
	defaultTTL time.Duration
	prefix     string
}

func newMemcachedStore(cfg StoreConfig) (Store, error) {
	if len(cfg.Prefix) > memcachedMaxPrefixLen || !legalMemcachedKey(cfg.Prefix) {
		return nil, fmt.Errorf("memcached prefix %q must be 1-%d bytes without spaces or control characters", cfg.Prefix, memcachedMaxPrefixLen)
	}
	client := cfg.MemcachedClient
	if client == nil {
		if len(cfg.MemcachedAddresses) == 0 {
			return nil, errors.New("memcached driver requires at least one address")
		}
		mc := memcache.New(cfg.MemcachedAddresses...)
		mc.Timeout = time.Second
		client = mc
	}
	return &memcachedStore{
		client:     client,
		defaultTTL: cfg.DefaultTTL,
		prefix:     cfg.Prefix,
	}, nil
}

func (s *memcachedStore) Driver() Driver { return DriverMemcached }

func (s *memcachedStore) Get(_ context.Context, key Key) (Record, bool, error) {
	itemKey, err := s.itemKey(key)
	if err != nil {
		return Record{}, false, err
	}
	item, err := s.client.Get(itemKey)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	if len(item.Value) < memcachedStoredAtLen {
		return Record{}, false, ErrCorruptRecord
	}
	return Record{
		StoredAt: int64(binary.BigEndian.Uint64(item.Value[:memcachedStoredAtLen])),
		Value:    cloneBytes(item.Value[memcachedStoredAtLen:]),
	}, true, nil
}

func (s *memcachedStore) Put(_ context.Context, key Key, rec Record, ttl time.Duration) error {
	itemKey, err := s.itemKey(key)
	if err != nil {
		return err
	}
	value := make([]byte, memcachedStoredAtLen+len(rec.Value))
	binary.BigEndian.PutUint64(value[:memcachedStoredAtLen], uint64(rec.StoredAt))
	copy(value[memcachedStoredAtLen:], rec.Value)
	return s.client.Set(&memcache.Item{
		Key:        itemKey,
		Value:      value,
		Expiration: memcachedExpiration(effectiveTTL(ttl, s.defaultTTL)),
	})
}

func (s *memcachedStore) Delete(_ context.Context, key Key) error {
	itemKey, err := s.itemKey(key)
	if err != nil {
		return err
	}
	err = s.client.Delete(itemKey)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}

// Invalidate bumps the generation of one object type, or the prefix-wide
// generation when objectType is empty.
func (s *memcachedStore) Invalidate(_ context.Context, objectType string) error {
	genKey := s.genKey(objectType)
	_, err := s.client.Increment(genKey, 1)
	if !errors.Is(err, memcache.ErrCacheMiss) {
		return err
	}
	// An evicted counter restarts from the clock, which is past any value the
	// old counter could have reached.
	err = s.client.Add(&memcache.Item{Key: genKey, Value: []byte(newMemcachedGeneration())})
	if errors.Is(err, memcache.ErrNotStored) {
		_, err = s.client.Increment(genKey, 1)
	}
	return err
}

func (s *memcachedStore) itemKey(key Key) (string, error) {
	global, typed, err := s.generations(key.ObjectType)
	if err != nil {
		return "", err
	}
	full := packKey(s.prefix, global+"."+typed, key.ObjectType, key.ObjectID)
	if legalMemcachedKey(full) {
		return full, nil
	}
	sum := sha256.Sum256([]byte(full))
	return s.prefix + ":h:" + hex.EncodeToString(sum[:]), nil
}

func (s *memcachedStore) generations(objectType string) (string, string, error) {
	globalKey, typeKey := s.genKey(""), s.genKey(objectType)
	items, err := s.client.GetMulti([]string{globalKey, typeKey})
	if err != nil {
		return "", "", err
	}
	global, err := s.generation(items, globalKey)
	if err != nil {
		return "", "", err
	}
	typed, err := s.generation(items, typeKey)
	if err != nil {
		return "", "", err
	}
	return global, typed, nil
}

func (s *memcachedStore) generation(items map[string]*memcache.Item, key string) (string, error) {
	if item, ok := items[key]; ok {
		return string(item.Value), nil
	}
	gen := newMemcachedGeneration()
	err := s.client.Add(&memcache.Item{Key: key, Value: []byte(gen)})
	if err == nil {
		return gen, nil
	}
	if !errors.Is(err, memcache.ErrNotStored) {
		return "", err
	}
	item, err := s.client.Get(key)
	if err != nil {
		return "", err
	}
	return string(item.Value), nil
}

func (s *memcachedStore) genKey(objectType string) string {
	if objectType == "" {
		return s.prefix + ":gen"
	}
	key := s.prefix + ":gen:" + objectType
	if legalMemcachedKey(key) {
		return key
	}
	sum := sha256.Sum256([]byte(objectType))
	return s.prefix + ":gen:h:" + hex.EncodeToString(sum[:])
}

func newMemcachedGeneration() string {
	return strconv.FormatUint(uint64(time.Now().UnixNano()), 10)
}

func legalMemcachedKey(key string) bool {
	if len(key) == 0 || len(key) > memcachedMaxKeyLen {
		return false
	}
	for i := 0; i < len(key); i++ {
		if key[i] <= ' ' || key[i] == 0x7f {
			return false
		}
	}
	return true
}

func memcachedExpiration(ttl time.Duration) int32 {
	if ttl <= 0 {
		return 0
	}
	if ttl > memcachedRelativeLimit {
		return int32(time.Now().Add(ttl).Unix())
	}
	secs := int32(ttl / time.Second)
	if secs == 0 {
		secs = 1
	}
	return secs
}
