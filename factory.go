package datacache

import (
	"context"
	"fmt"
)

// NewStore returns a record store for the requested driver, wrapped with
// compression and encryption when configured. Construction failures do not
// panic: the returned store reports the failure on every call, and
// StoreInitError exposes it up front.
//
// Example: select driver explicitly
//
//	ctx := context.Background()
//	store := datacache.NewStore(ctx, datacache.StoreConfig{
//		Driver: datacache.DriverMemory,
//	})
//	fmt.Println(store.Driver()) // memory
func NewStore(ctx context.Context, cfg StoreConfig) Store {
	cfg = cfg.withDefaults()
	store, err := newDriverStore(ctx, cfg)
	if err != nil {
		return &errorStore{driver: cfg.Driver, err: err}
	}
	// Encryption sits below shaping so compression sees plaintext.
	store, err = newEncryptingStore(store, cfg.EncryptionKey)
	if err != nil {
		return &errorStore{driver: cfg.Driver, err: err}
	}
	return newShapingStore(store, cfg.Compression, cfg.MaxValueBytes)
}

func newDriverStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch cfg.Driver {
	case DriverMemory:
		return newMemoryStore(cfg.DefaultTTL, cfg.MemoryCleanupInterval), nil
	case DriverNull:
		return newNullStore(), nil
	case DriverFile:
		return newFileStore(cfg.FileDir, cfg.DefaultTTL)
	case DriverRedis:
		return newRedisStore(cfg.RedisClient, cfg.DefaultTTL, cfg.Prefix), nil
	case DriverMemcached:
		return newMemcachedStore(cfg)
	case DriverDynamo:
		return newDynamoStore(ctx, cfg)
	case DriverSQL:
		return newSQLStore(ctx, cfg)
	case DriverNATS:
		return newNATSStore(cfg.NATSKeyValue, cfg.DefaultTTL, cfg.Prefix, cfg.NATSBucketTTL), nil
	case DriverMinio:
		return newMinioStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported cache driver %q", cfg.Driver)
	}
}

// NewStoreWith builds a store using a driver and a set of functional options.
//
// Example: redis store (options)
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
//	store := datacache.NewStoreWith(ctx, datacache.DriverRedis,
//		datacache.WithRedisClient(redisClient),
//		datacache.WithPrefix("app"),
//	)
func NewStoreWith(ctx context.Context, driver Driver, opts ...StoreOption) Store {
	cfg := StoreConfig{Driver: driver}
	for _, opt := range opts {
		if opt != nil {
			cfg = opt(cfg)
		}
	}
	return NewStore(ctx, cfg)
}

// NewMemoryStore is a convenience for an in-process record store.
func NewMemoryStore(ctx context.Context, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverMemory, opts...)
}

// NewNullStore returns a store that never holds anything.
func NewNullStore(ctx context.Context, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverNull, opts...)
}

// NewFileStore is a convenience for a filesystem-backed store.
func NewFileStore(ctx context.Context, dir string, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverFile, append([]StoreOption{WithFileDir(dir)}, opts...)...)
}

// NewRedisStore is a convenience for a redis-backed store.
func NewRedisStore(ctx context.Context, client RedisClient, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverRedis, append([]StoreOption{WithRedisClient(client)}, opts...)...)
}

// NewMemcachedStore is a convenience for a memcached-backed store.
func NewMemcachedStore(ctx context.Context, addrs []string, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverMemcached, append([]StoreOption{WithMemcachedAddresses(addrs...)}, opts...)...)
}

// NewDynamoStore is a convenience for a DynamoDB-backed store.
func NewDynamoStore(ctx context.Context, client DynamoAPI, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverDynamo, append([]StoreOption{WithDynamoClient(client)}, opts...)...)
}

// NewSQLStore is a convenience for a database/sql backed store.
func NewSQLStore(ctx context.Context, driverName, dsn, table string, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverSQL, append([]StoreOption{WithSQL(driverName, dsn, table)}, opts...)...)
}

// NewNATSStore is a convenience for a JetStream key-value store.
func NewNATSStore(ctx context.Context, kv NATSKeyValue, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverNATS, append([]StoreOption{WithNATSKeyValue(kv)}, opts...)...)
}

// NewMinioStore is a convenience for an S3-compatible object storage store.
func NewMinioStore(ctx context.Context, client ObjectClient, bucket string, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverMinio, append([]StoreOption{
		WithMinioClient(client),
		func(cfg StoreConfig) StoreConfig {
			cfg.MinioBucket = bucket
			return cfg
		},
	}, opts...)...)
}
