package datacache

import "time"

// StoreOption mutates StoreConfig when constructing a store.
type StoreOption func(StoreConfig) StoreConfig

// WithDefaultTTL sets the backend expiry used when a write passes ttl <= 0.
// Zero, the default, keeps entries until they are overwritten.
func WithDefaultTTL(ttl time.Duration) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.DefaultTTL = ttl
		return cfg
	}
}

// WithMemoryCleanupInterval overrides the sweep interval for the memory driver.
func WithMemoryCleanupInterval(interval time.Duration) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.MemoryCleanupInterval = interval
		return cfg
	}
}

// WithPrefix sets the key prefix for shared backends.
func WithPrefix(prefix string) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.Prefix = prefix
		return cfg
	}
}

// WithCompression compresses values before they reach the backend.
func WithCompression(codec CompressionCodec) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.Compression = codec
		return cfg
	}
}

// WithMaxValueBytes rejects writes larger than n bytes after shaping.
func WithMaxValueBytes(n int) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.MaxValueBytes = n
		return cfg
	}
}

// WithEncryptionKey enables AES-GCM encryption at rest. The key must be 16, 24 or 32 bytes.
func WithEncryptionKey(key []byte) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.EncryptionKey = key
		return cfg
	}
}

// WithFileDir sets the directory used by the file driver.
func WithFileDir(dir string) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.FileDir = dir
		return cfg
	}
}

// WithRedisClient sets the redis client; required when using DriverRedis.
func WithRedisClient(client RedisClient) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.RedisClient = client
		return cfg
	}
}

// WithMemcachedAddresses sets the servers dialed by the memcached driver.
func WithMemcachedAddresses(addrs ...string) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.MemcachedAddresses = append([]string(nil), addrs...)
		return cfg
	}
}

// WithMemcachedClient injects a ready memcached client.
func WithMemcachedClient(client MemcachedClient) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.MemcachedClient = client
		return cfg
	}
}

// WithDynamoClient injects a DynamoDB client.
func WithDynamoClient(client DynamoAPI) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.DynamoClient = client
		return cfg
	}
}

// WithDynamoTable sets the table used by the dynamodb driver.
func WithDynamoTable(table string) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.DynamoTable = table
		return cfg
	}
}

// WithDynamoEndpoint points the generated DynamoDB client at a custom endpoint.
func WithDynamoEndpoint(region, endpoint string) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.DynamoRegion = region
		cfg.DynamoEndpoint = endpoint
		return cfg
	}
}

// WithSQL configures the sql driver.
func WithSQL(driverName, dsn, table string) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.SQLDriverName = driverName
		cfg.SQLDSN = dsn
		cfg.SQLTable = table
		return cfg
	}
}

// WithNATSKeyValue sets the JetStream key-value bucket; required when using DriverNATS.
func WithNATSKeyValue(kv NATSKeyValue) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.NATSKeyValue = kv
		return cfg
	}
}

// WithNATSBucketTTL leaves expiry to the bucket instead of a per-value envelope.
func WithNATSBucketTTL(enabled bool) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.NATSBucketTTL = enabled
		return cfg
	}
}

// WithMinioClient injects an object storage client.
func WithMinioClient(client ObjectClient) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.MinioClient = client
		return cfg
	}
}

// WithMinio configures the object storage endpoint and credentials.
func WithMinio(endpoint, accessKey, secretKey, bucket string, secure bool) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.MinioEndpoint = endpoint
		cfg.MinioAccessKey = accessKey
		cfg.MinioSecretKey = secretKey
		cfg.MinioBucket = bucket
		cfg.MinioSecure = secure
		return cfg
	}
}
