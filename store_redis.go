package datacache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient captures the subset of redis.Client used by the store.
type RedisClient interface {
	HSet(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	HMGet(ctx context.Context, key string, fields ...string) *redis.SliceCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Persist(ctx context.Context, key string) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

const (
	redisValueField    = "v"
	redisStoredAtField = "t"
)

var errRedisUnavailable = errors.New("redis cache client unavailable")

// redisStore keeps one hash per key holding the value and its fetch time.
type redisStore struct {
	client     RedisClient
	defaultTTL time.Duration
	prefix     string
}

func newRedisStore(client RedisClient, defaultTTL time.Duration, prefix string) Store {
	if prefix == "" {
		prefix = defaultCachePrefix
	}
	return &redisStore{
		client:     client,
		defaultTTL: defaultTTL,
		prefix:     prefix,
	}
}

func (s *redisStore) Driver() Driver {
	return DriverRedis
}

func (s *redisStore) Get(ctx context.Context, key Key) (Record, bool, error) {
	if s.client == nil {
		return Record{}, false, errRedisUnavailable
	}
	vals, err := s.client.HMGet(ctx, s.cacheKey(key), redisValueField, redisStoredAtField).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, false, nil
		}
		return Record{}, false, err
	}
	if len(vals) != 2 || vals[0] == nil {
		return Record{}, false, nil
	}
	value, ok := vals[0].(string)
	if !ok {
		return Record{}, false, fmt.Errorf("redis field %q: unexpected type %T", redisValueField, vals[0])
	}
	var storedAt int64
	if raw, ok := vals[1].(string); ok {
		if storedAt, err = strconv.ParseInt(raw, 10, 64); err != nil {
			return Record{}, false, fmt.Errorf("redis field %q: %w", redisStoredAtField, err)
		}
	}
	// []byte(string) copies, so callers never alias the client's reply.
	return Record{Value: []byte(value), StoredAt: storedAt}, true, nil
}

// Put writes both fields then sets or clears the key expiry. A zero ttl
// after defaults keeps the key forever.
func (s *redisStore) Put(ctx context.Context, key Key, rec Record, ttl time.Duration) error {
	if s.client == nil {
		return errRedisUnavailable
	}
	k := s.cacheKey(key)
	if err := s.client.HSet(ctx, k, redisValueField, rec.Value, redisStoredAtField, rec.StoredAt).Err(); err != nil {
		return err
	}
	if ttl = effectiveTTL(ttl, s.defaultTTL); ttl > 0 {
		return s.client.Expire(ctx, k, ttl).Err()
	}
	return s.client.Persist(ctx, k).Err()
}

func (s *redisStore) Delete(ctx context.Context, key Key) error {
	if s.client == nil {
		return errRedisUnavailable
	}
	return s.client.Del(ctx, s.cacheKey(key)).Err()
}

// Invalidate scans the keys of one object type, or of the whole prefix when
// objectType is empty, and deletes them in batches.
func (s *redisStore) Invalidate(ctx context.Context, objectType string) error {
	if s.client == nil {
		return errRedisUnavailable
	}
	scope := packKey(s.prefix)
	if objectType != "" {
		scope = packKey(s.prefix, objectType)
	}
	pattern := escapeRedisGlob(scope) + ":*"
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (s *redisStore) cacheKey(key Key) string {
	return packKey(s.prefix, key.ObjectType, key.ObjectID)
}

var redisGlobEscaper = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func escapeRedisGlob(s string) string {
	return redisGlobEscaper.Replace(s)
}
