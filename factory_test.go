package datacache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/goforj/datacache/cachecore"
)

func TestNewStoreDefaultsToMemory(t *testing.T) {
	store := NewStore(context.Background(), StoreConfig{})
	if store.Driver() != DriverMemory {
		t.Fatalf("expected memory driver, got %s", store.Driver())
	}
	if err := StoreInitError(store); err != nil {
		t.Fatalf("unexpected init error: %v", err)
	}
}

func TestNewStoreUnknownDriver(t *testing.T) {
	store := NewStore(context.Background(), StoreConfig{Driver: "tape"})
	err := StoreInitError(store)
	if err == nil || !strings.Contains(err.Error(), `unsupported cache driver "tape"`) {
		t.Fatalf("expected unsupported driver error, got %v", err)
	}
	if store.Driver() != "tape" {
		t.Fatalf("expected error store to keep driver identity")
	}
	ctx := context.Background()
	key := Key{ObjectType: "user", ObjectID: "k"}
	if _, _, err := store.Get(ctx, key); err == nil {
		t.Fatalf("expected get to surface init error")
	}
	if err := store.Put(ctx, key, Record{}, 0); err == nil {
		t.Fatalf("expected put to surface init error")
	}
	if err := store.Delete(ctx, key); err == nil {
		t.Fatalf("expected delete to surface init error")
	}
	if err := store.Invalidate(ctx, ""); err == nil {
		t.Fatalf("expected invalidate to surface init error")
	}
}

func TestNewStoreBadEncryptionKey(t *testing.T) {
	store := NewMemoryStore(context.Background(), WithEncryptionKey([]byte("short")))
	if err := StoreInitError(store); !errors.Is(err, ErrEncryptionKey) {
		t.Fatalf("expected encryption key error, got %v", err)
	}
}

func TestNewStoreLayersCompressionOverEncryption(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ctx,
		WithCompression(CompressionGzip),
		WithEncryptionKey(testEncryptionKey),
	)
	shaped, ok := store.(*shapingStore)
	if !ok {
		t.Fatalf("expected shaping wrapper outermost, got %T", store)
	}
	if _, ok := shaped.inner.(*encryptingStore); !ok {
		t.Fatalf("expected encryption below shaping, got %T", shaped.inner)
	}
	key := Key{ObjectType: "user", ObjectID: "k"}
	if err := store.Put(ctx, key, Record{Value: []byte("value"), StoredAt: 9}, 0); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	got, ok, err := store.Get(ctx, key)
	if err != nil || !ok || string(got.Value) != "value" || got.StoredAt != 9 {
		t.Fatalf("unexpected get: ok=%v err=%v rec=%+v", ok, err, got)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name   string
		store  Store
		driver Driver
	}{
		{"memory", NewMemoryStore(ctx), DriverMemory},
		{"null", NewNullStore(ctx), DriverNull},
		{"file", NewFileStore(ctx, t.TempDir()), DriverFile},
		{"redis", NewRedisStore(ctx, newStubRedisClient()), DriverRedis},
		{"memcached", NewStoreWith(ctx, DriverMemcached, WithMemcachedClient(newStubMemcached())), DriverMemcached},
		{"dynamo", NewDynamoStore(ctx, newDynStub()), DriverDynamo},
		{"nats", NewNATSStore(ctx, newStubNATSKeyValue("b")), DriverNATS},
		{"minio", NewMinioStore(ctx, newMemObjectClient(), "bucket"), DriverMinio},
	}
	for _, tc := range cases {
		if err := StoreInitError(tc.store); err != nil {
			t.Fatalf("%s: unexpected init error: %v", tc.name, err)
		}
		if tc.store.Driver() != tc.driver {
			t.Fatalf("%s: expected driver %s, got %s", tc.name, tc.driver, tc.store.Driver())
		}
	}
}

func TestNewMemcachedStoreFromAddresses(t *testing.T) {
	store := NewMemcachedStore(context.Background(), []string{"127.0.0.1:11211"})
	if err := StoreInitError(store); err != nil {
		t.Fatalf("unexpected init error: %v", err)
	}
}

func TestNewMemcachedStoreRejectsBadPrefix(t *testing.T) {
	store := NewMemcachedStore(context.Background(), []string{"127.0.0.1:11211"}, WithPrefix("has space"))
	if err := StoreInitError(store); err == nil || !strings.Contains(err.Error(), "memcached prefix") {
		t.Fatalf("expected prefix error, got %v", err)
	}
}

func TestNewSQLStoreFailureIsReported(t *testing.T) {
	store := NewSQLStore(context.Background(), "dcpingfail", "x", "t")
	if err := StoreInitError(store); err == nil {
		t.Fatalf("expected init error from failing ping")
	}
	if store.Driver() != DriverSQL {
		t.Fatalf("expected sql driver identity")
	}
}

func TestStoreOptionsApply(t *testing.T) {
	objects := newMemObjectClient()
	opts := []StoreOption{
		WithDefaultTTL(time.Minute),
		WithMemoryCleanupInterval(time.Second),
		WithPrefix("app"),
		WithCompression(CompressionSnappy),
		WithMaxValueBytes(1024),
		WithEncryptionKey(testEncryptionKey),
		WithFileDir("/tmp/x"),
		WithMemcachedAddresses("a:1", "b:2"),
		WithDynamoTable("tbl"),
		WithDynamoEndpoint("eu-west-1", "http://localhost:8000"),
		WithSQL("pgx", "postgres://", "entries"),
		WithNATSBucketTTL(true),
		WithMinio("localhost:9000", "ak", "sk", "bkt", true),
		WithMinioClient(objects),
	}
	var cfg StoreConfig
	for _, opt := range opts {
		cfg = opt(cfg)
	}
	want := StoreConfig{
		BaseConfig: cachecore.BaseConfig{
			DefaultTTL:    time.Minute,
			Prefix:        "app",
			Compression:   CompressionSnappy,
			MaxValueBytes: 1024,
		},
		MemoryCleanupInterval: time.Second,
		FileDir:               "/tmp/x",
		DynamoTable:           "tbl",
		DynamoRegion:          "eu-west-1",
		DynamoEndpoint:        "http://localhost:8000",
		SQLDriverName:         "pgx",
		SQLDSN:                "postgres://",
		SQLTable:              "entries",
		NATSBucketTTL:         true,
		MinioEndpoint:         "localhost:9000",
		MinioAccessKey:        "ak",
		MinioSecretKey:        "sk",
		MinioBucket:           "bkt",
		MinioSecure:           true,
	}
	if cfg.DefaultTTL != want.DefaultTTL || cfg.Prefix != want.Prefix || cfg.Compression != want.Compression || cfg.MaxValueBytes != want.MaxValueBytes {
		t.Fatalf("unexpected base config: %+v", cfg.BaseConfig)
	}
	if string(cfg.EncryptionKey) != string(testEncryptionKey) {
		t.Fatalf("expected encryption key set")
	}
	if cfg.MemoryCleanupInterval != want.MemoryCleanupInterval || cfg.FileDir != want.FileDir {
		t.Fatalf("unexpected memory/file config: %+v", cfg)
	}
	if len(cfg.MemcachedAddresses) != 2 || cfg.MemcachedAddresses[1] != "b:2" {
		t.Fatalf("unexpected memcached addresses: %v", cfg.MemcachedAddresses)
	}
	if cfg.DynamoTable != want.DynamoTable || cfg.DynamoRegion != want.DynamoRegion || cfg.DynamoEndpoint != want.DynamoEndpoint {
		t.Fatalf("unexpected dynamo config: %+v", cfg)
	}
	if cfg.SQLDriverName != want.SQLDriverName || cfg.SQLDSN != want.SQLDSN || cfg.SQLTable != want.SQLTable {
		t.Fatalf("unexpected sql config: %+v", cfg)
	}
	if !cfg.NATSBucketTTL || cfg.MinioClient == nil {
		t.Fatalf("expected nats ttl mode and minio client set")
	}
	if cfg.MinioEndpoint != want.MinioEndpoint || cfg.MinioAccessKey != want.MinioAccessKey || cfg.MinioSecretKey != want.MinioSecretKey || cfg.MinioBucket != want.MinioBucket || !cfg.MinioSecure {
		t.Fatalf("unexpected minio config: %+v", cfg)
	}
}

func TestStoreConfigDefaults(t *testing.T) {
	cfg := StoreConfig{BaseConfig: cachecore.BaseConfig{DefaultTTL: -time.Second}}.withDefaults()
	if cfg.Driver != DriverMemory || cfg.Prefix != defaultCachePrefix || cfg.Compression != CompressionNone {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.DefaultTTL != 0 {
		t.Fatalf("expected negative default ttl clamped to 0")
	}
	if cfg.DynamoTable != defaultDynamoTable || cfg.SQLTable != defaultSQLTable || cfg.MinioBucket != defaultMinioBucket {
		t.Fatalf("unexpected table defaults: %+v", cfg)
	}
}

func TestTTLHelpers(t *testing.T) {
	if effectiveTTL(0, time.Minute) != time.Minute || effectiveTTL(time.Second, time.Minute) != time.Second {
		t.Fatalf("unexpected effective ttl")
	}
	if expiresAtMillis(0) != 0 || expiredAt(0) {
		t.Fatalf("expected zero ttl to mean no deadline")
	}
	if !expiredAt(time.Now().Add(-time.Second).UnixMilli()) {
		t.Fatalf("expected past deadline to be expired")
	}
}
