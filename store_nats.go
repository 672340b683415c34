package datacache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSKeyValue captures the subset of nats.KeyValue used by the store.
type NATSKeyValue interface {
	Get(key string) (nats.KeyValueEntry, error)
	Put(key string, value []byte) (uint64, error)
	Delete(key string, opts ...nats.DeleteOpt) error
	Purge(key string, opts ...nats.DeleteOpt) error
	ListKeys(opts ...nats.WatchOpt) (nats.KeyLister, error)
}

var errNATSUnavailable = errors.New("nats cache key-value unavailable")

// natsStore writes the same framed record as the file store, so each value
// carries its fetch time and a per-key expiry that a bucket-wide MaxAge
// cannot express. Keys are dc.<prefix>.<type>.<id> with each part base64
// encoded, which keeps them inside the KV key alphabet.
type natsStore struct {
	kv         NATSKeyValue
	defaultTTL time.Duration
	prefix     string
	bucketTTL  bool
}

func newNATSStore(kv NATSKeyValue, defaultTTL time.Duration, prefix string, bucketTTL bool) Store {
	if prefix == "" {
		prefix = defaultCachePrefix
	}
	return &natsStore{
		kv:         kv,
		defaultTTL: defaultTTL,
		prefix:     prefix,
		bucketTTL:  bucketTTL,
	}
}

func (s *natsStore) Driver() Driver { return DriverNATS }

func (s *natsStore) Get(_ context.Context, key Key) (Record, bool, error) {
	if s.kv == nil {
		return Record{}, false, errNATSUnavailable
	}
	cacheKey := s.cacheKey(key)
	entry, err := s.kv.Get(cacheKey)
	if isNATSMiss(err) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	if entry.Operation() == nats.KeyValueDelete || entry.Operation() == nats.KeyValuePurge {
		return Record{}, false, nil
	}
	rec, expiresAt, err := decodeRecord(entry.Value())
	if err != nil {
		return Record{}, false, err
	}
	if expiredAt(expiresAt) {
		_ = s.kv.Purge(cacheKey)
		return Record{}, false, nil
	}
	rec.Value = cloneBytes(rec.Value)
	return rec, true, nil
}

// Put leaves the record expiry at zero in bucket TTL mode and lets the
// bucket's MaxAge age it out.
func (s *natsStore) Put(_ context.Context, key Key, rec Record, ttl time.Duration) error {
	if s.kv == nil {
		return errNATSUnavailable
	}
	var expiresAt int64
	if !s.bucketTTL {
		expiresAt = expiresAtMillis(effectiveTTL(ttl, s.defaultTTL))
	}
	_, err := s.kv.Put(s.cacheKey(key), encodeRecord(rec, expiresAt))
	return err
}

func (s *natsStore) Delete(_ context.Context, key Key) error {
	if s.kv == nil {
		return errNATSUnavailable
	}
	err := s.kv.Delete(s.cacheKey(key))
	if isNATSMiss(err) {
		return nil
	}
	return err
}

// Invalidate purges every key of one object type, or every key under the
// store prefix when objectType is empty.
func (s *natsStore) Invalidate(_ context.Context, objectType string) error {
	if s.kv == nil {
		return errNATSUnavailable
	}
	lister, err := s.kv.ListKeys(nats.IgnoreDeletes())
	if err != nil {
		if errors.Is(err, nats.ErrNoKeysFound) {
			return nil
		}
		return err
	}
	defer func() { _ = lister.Stop() }()

	scope := "dc." + encodeKeyPart(s.prefix) + "."
	if objectType != "" {
		scope += encodeKeyPart(objectType) + "."
	}
	for key := range lister.Keys() {
		if !strings.HasPrefix(key, scope) {
			continue
		}
		if err := s.kv.Purge(key); err != nil && !isNATSMiss(err) {
			return err
		}
	}
	return nil
}

func (s *natsStore) cacheKey(key Key) string {
	return "dc." + encodeKeyPart(s.prefix) + "." + encodeKeyPart(key.ObjectType) + "." + encodeKeyPart(key.ObjectID)
}

func isNATSMiss(err error) bool {
	return errors.Is(err, nats.ErrKeyNotFound) || errors.Is(err, nats.ErrKeyDeleted)
}
