package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/goforj/datacache"
	"github.com/goforj/datacache/internal/config"
)

// buildStore turns the Store section of the config into a byte store. The
// returned func releases any client connections it opened.
func buildStore(ctx context.Context, cfg config.StoreConfig) (datacache.Store, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	opts := []datacache.StoreOption{
		datacache.WithPrefix(cfg.Prefix),
		datacache.WithDefaultTTL(cfg.DefaultTTL.DurationValue()),
		datacache.WithCompression(datacache.CompressionCodec(cfg.Compression)),
		datacache.WithMaxValueBytes(cfg.MaxValueBytes),
	}
	if cfg.EncryptionKey != "" {
		opts = append(opts, datacache.WithEncryptionKey([]byte(cfg.EncryptionKey)))
	}

	switch datacache.Driver(cfg.Driver) {
	case datacache.DriverFile:
		opts = append(opts, datacache.WithFileDir(cfg.FileDir))
	case datacache.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		closers = append(closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
		}
		opts = append(opts, datacache.WithRedisClient(client))
	case datacache.DriverMemcached:
		opts = append(opts, datacache.WithMemcachedAddresses(cfg.MemcachedAddresses...))
	case datacache.DriverDynamo:
		opts = append(opts,
			datacache.WithDynamoTable(cfg.DynamoTable),
			datacache.WithDynamoEndpoint(cfg.DynamoRegion, cfg.DynamoEndpoint),
		)
	case datacache.DriverSQL:
		opts = append(opts, datacache.WithSQL(cfg.SQLDriver, cfg.SQLDSN, cfg.SQLTable))
	case datacache.DriverNATS:
		nc, err := nats.Connect(cfg.NATSURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats %s: %w", cfg.NATSURL, err)
		}
		closers = append(closers, nc.Close)
		kv, err := openKeyValue(nc, cfg.NATSBucket)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		opts = append(opts, datacache.WithNATSKeyValue(kv))
	case datacache.DriverMinio:
		opts = append(opts, datacache.WithMinio(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioSecure))
	}

	store := datacache.NewStoreWith(ctx, datacache.Driver(cfg.Driver), opts...)
	if err := datacache.StoreInitError(store); err != nil {
		closeAll()
		return nil, nil, err
	}
	return store, closeAll, nil
}

// openKeyValue binds the JetStream bucket, creating it on first use.
func openKeyValue(nc *nats.Conn, bucket string) (nats.KeyValue, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream context: %w", err)
	}
	kv, err := js.KeyValue(bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{Bucket: bucket})
	}
	if err != nil {
		return nil, fmt.Errorf("open key-value bucket %q: %w", bucket, err)
	}
	return kv, nil
}
