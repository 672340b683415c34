package datacache

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goforj/datacache/cachecore"
)

const (
	defaultCachePrefix           = "datacache"
	defaultMemoryCleanupInterval = 10 * time.Minute
	defaultDynamoTable           = "datacache_entries"
	defaultDynamoRegion          = "us-east-1"
	defaultSQLTable              = "datacache_entries"
	defaultMinioBucket           = "datacache"
)

func defaultFileDir() string {
	return filepath.Join(os.TempDir(), "datacache")
}

// StoreConfig controls how a record Store is constructed.
type StoreConfig struct {
	cachecore.BaseConfig

	Driver Driver

	// MemoryCleanupInterval controls in-process eviction sweeps.
	MemoryCleanupInterval time.Duration

	// FileDir controls where the file driver writes entries.
	FileDir string

	// RedisClient is required when DriverRedis is used.
	RedisClient RedisClient

	// MemcachedAddresses are dialed when no MemcachedClient is given.
	MemcachedAddresses []string
	MemcachedClient    MemcachedClient

	// DynamoClient is optional; when nil one is built from region and endpoint.
	DynamoClient   DynamoAPI
	DynamoTable    string
	DynamoRegion   string
	DynamoEndpoint string

	SQLDriverName string
	SQLDSN        string
	SQLTable      string

	// NATSKeyValue is required when DriverNATS is used.
	NATSKeyValue NATSKeyValue
	// NATSBucketTTL leaves expiry to the bucket's MaxAge instead of the record header.
	NATSBucketTTL bool

	// MinioClient is optional; when nil one is built from the endpoint and keys.
	MinioClient    ObjectClient
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioSecure    bool
}

func (c StoreConfig) withDefaults() StoreConfig {
	if c.Driver == "" {
		c.Driver = DriverMemory
	}
	if c.DefaultTTL < 0 {
		c.DefaultTTL = 0
	}
	if c.MemoryCleanupInterval <= 0 {
		c.MemoryCleanupInterval = defaultMemoryCleanupInterval
	}
	if c.Prefix == "" {
		c.Prefix = defaultCachePrefix
	}
	if c.Compression == "" {
		c.Compression = CompressionNone
	}
	if c.FileDir == "" {
		c.FileDir = defaultFileDir()
	}
	if c.DynamoTable == "" {
		c.DynamoTable = defaultDynamoTable
	}
	if c.DynamoRegion == "" {
		c.DynamoRegion = defaultDynamoRegion
	}
	if c.SQLTable == "" {
		c.SQLTable = defaultSQLTable
	}
	if c.MinioBucket == "" {
		c.MinioBucket = defaultMinioBucket
	}
	return c
}

// effectiveTTL picks the per-call ttl or the store default. Zero means the
// entry never expires.
func effectiveTTL(ttl, defaultTTL time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return defaultTTL
}

// expiresAtMillis converts a ttl into an absolute Unix millisecond deadline.
// Zero means no deadline.
func expiresAtMillis(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return time.Now().Add(ttl).UnixMilli()
}

func expiredAt(expiresAt int64) bool {
	return expiresAt > 0 && time.Now().UnixMilli() > expiresAt
}

// packKey joins parts with a length prefix on each one, so a packed scope
// such as packKey(prefix, objectType)+":" never matches a sibling type.
func packKey(parts ...string) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(strconv.Itoa(len(p)))
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}

// encodeKeyPart maps a key part onto [A-Za-z0-9_-] so it is safe in NATS
// subjects and object names alike. An empty part maps to "_", which no
// non-empty input encodes to.
func encodeKeyPart(part string) string {
	if part == "" {
		return "_"
	}
	return base64.RawURLEncoding.EncodeToString([]byte(part))
}
