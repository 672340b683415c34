//go:build integration

package integration

import (
	"context"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/goforj/datacache"
	"github.com/goforj/datacache/cachetest"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/nats-io/nats.go"
	goredis "github.com/redis/go-redis/v9"
	testcontainers "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	redisPort     nat.Port = "6379/tcp"
	memcachedPort nat.Port = "11211/tcp"
	dynamoPort    nat.Port = "8000/tcp"
	natsPort      nat.Port = "4222/tcp"
	postgresPort  nat.Port = "5432/tcp"
	mysqlPort     nat.Port = "3306/tcp"
	minioPort     nat.Port = "9000/tcp"
)

type storeFactory struct {
	name string
	new  func(t *testing.T) (datacache.Store, func())
	opts cachetest.Options
}

func TestStoreContract_AllDrivers(t *testing.T) {
	var fixtures []storeFactory

	if integrationDriverEnabled("redis") {
		fixtures = append(fixtures, storeFactory{
			name: "redis",
			new: func(t *testing.T) (datacache.Store, func()) {
				ctx := context.Background()
				container, addr := startContainer(t, ctx, testcontainers.ContainerRequest{
					Image:        "redis:7-bookworm",
					ExposedPorts: []string{string(redisPort)},
					WaitingFor:   wait.ForListeningPort(redisPort).WithStartupTimeout(30 * time.Second),
				}, redisPort)
				client := goredis.NewClient(&goredis.Options{Addr: addr})
				store := datacache.NewRedisStore(ctx, client, datacache.WithPrefix("itest"))
				return store, func() {
					_ = client.Close()
					terminate(container)
				}
			},
		})
	}

	if integrationDriverEnabled("memcached") {
		fixtures = append(fixtures, storeFactory{
			name: "memcached",
			new: func(t *testing.T) (datacache.Store, func()) {
				ctx := context.Background()
				container, addr := startContainer(t, ctx, testcontainers.ContainerRequest{
					Image:        "memcached:1.6-bookworm",
					ExposedPorts: []string{string(memcachedPort)},
					WaitingFor:   wait.ForListeningPort(memcachedPort).WithStartupTimeout(30 * time.Second),
				}, memcachedPort)
				store := datacache.NewMemcachedStore(ctx, []string{addr}, datacache.WithPrefix("itest"))
				return store, func() { terminate(container) }
			},
			opts: cachetest.Options{
				TTL:     time.Second,
				TTLWait: 2500 * time.Millisecond,
			},
		})
	}

	if integrationDriverEnabled("dynamodb") {
		fixtures = append(fixtures, storeFactory{
			name: "dynamodb",
			new: func(t *testing.T) (datacache.Store, func()) {
				ctx := context.Background()
				container, addr := startContainer(t, ctx, testcontainers.ContainerRequest{
					Image:        "amazon/dynamodb-local:latest",
					ExposedPorts: []string{string(dynamoPort)},
					WaitingFor:   wait.ForListeningPort(dynamoPort).WithStartupTimeout(45 * time.Second),
				}, dynamoPort)
				store := datacache.NewStoreWith(ctx, datacache.DriverDynamo,
					datacache.WithPrefix("itest"),
					datacache.WithDynamoEndpoint("us-east-1", "http://"+addr),
				)
				return store, func() { terminate(container) }
			},
		})
	}

	if integrationDriverEnabled("nats") {
		fixtures = append(fixtures, storeFactory{
			name: "nats",
			new: func(t *testing.T) (datacache.Store, func()) {
				ctx := context.Background()
				container, addr := startContainer(t, ctx, testcontainers.ContainerRequest{
					Image:        "nats:2",
					Cmd:          []string{"-js"},
					ExposedPorts: []string{string(natsPort)},
					WaitingFor:   wait.ForLog("Server is ready").WithStartupTimeout(30 * time.Second),
				}, natsPort)
				nc, err := nats.Connect("nats://" + addr)
				if err != nil {
					terminate(container)
					t.Fatalf("connect nats: %v", err)
				}
				js, err := nc.JetStream()
				if err != nil {
					nc.Close()
					terminate(container)
					t.Fatalf("jetstream nats: %v", err)
				}
				kv, err := js.CreateKeyValue(&nats.KeyValueConfig{Bucket: "datacache_itest", History: 1})
				if err != nil {
					nc.Close()
					terminate(container)
					t.Fatalf("create nats kv bucket: %v", err)
				}
				store := datacache.NewNATSStore(ctx, kv, datacache.WithPrefix("itest"))
				return store, func() {
					_ = nc.Drain()
					nc.Close()
					terminate(container)
				}
			},
		})
	}

	if integrationDriverEnabled("postgres") {
		fixtures = append(fixtures, storeFactory{
			name: "postgres",
			new: func(t *testing.T) (datacache.Store, func()) {
				ctx := context.Background()
				container, addr := startContainer(t, ctx, testcontainers.ContainerRequest{
					Image:        "postgres:16-bookworm",
					Env:          map[string]string{"POSTGRES_PASSWORD": "pass", "POSTGRES_USER": "user", "POSTGRES_DB": "app"},
					ExposedPorts: []string{string(postgresPort)},
					WaitingFor:   wait.ForListeningPort(postgresPort).WithStartupTimeout(60 * time.Second),
				}, postgresPort)
				dsn := "postgres://user:pass@" + addr + "/app?sslmode=disable"
				store := retryStoreInit(10*time.Second, 200*time.Millisecond, func() datacache.Store {
					return datacache.NewSQLStore(ctx, "pgx", dsn, "cache_entries", datacache.WithPrefix("itest"))
				})
				return store, func() { terminate(container) }
			},
		})
	}

	if integrationDriverEnabled("mysql") {
		fixtures = append(fixtures, storeFactory{
			name: "mysql",
			new: func(t *testing.T) (datacache.Store, func()) {
				ctx := context.Background()
				container, addr := startContainer(t, ctx, testcontainers.ContainerRequest{
					Image: "mysql:8",
					Env: map[string]string{
						"MYSQL_ROOT_PASSWORD": "pass",
						"MYSQL_DATABASE":      "app",
						"MYSQL_USER":          "user",
						"MYSQL_PASSWORD":      "pass",
					},
					ExposedPorts: []string{string(mysqlPort)},
					WaitingFor: wait.ForAll(
						wait.ForListeningPort(mysqlPort).WithStartupTimeout(90*time.Second),
						wait.ForLog("ready for connections").WithOccurrence(2).WithStartupTimeout(90*time.Second),
					),
				}, mysqlPort)
				dsn := "user:pass@tcp(" + addr + ")/app"
				store := retryStoreInit(10*time.Second, 200*time.Millisecond, func() datacache.Store {
					return datacache.NewSQLStore(ctx, "mysql", dsn, "cache_entries", datacache.WithPrefix("itest"))
				})
				return store, func() { terminate(container) }
			},
		})
	}

	if integrationDriverEnabled("minio") {
		fixtures = append(fixtures, storeFactory{
			name: "minio",
			new: func(t *testing.T) (datacache.Store, func()) {
				ctx := context.Background()
				container, addr := startContainer(t, ctx, testcontainers.ContainerRequest{
					Image:        "minio/minio:latest",
					Cmd:          []string{"server", "/data"},
					Env:          map[string]string{"MINIO_ROOT_USER": "minioadmin", "MINIO_ROOT_PASSWORD": "minioadmin"},
					ExposedPorts: []string{string(minioPort)},
					WaitingFor:   wait.ForHTTP("/minio/health/ready").WithPort(minioPort).WithStartupTimeout(60 * time.Second),
				}, minioPort)
				client, err := minio.New(addr, &minio.Options{Creds: credentials.NewStaticV4("minioadmin", "minioadmin", "")})
				if err != nil {
					terminate(container)
					t.Fatalf("minio client: %v", err)
				}
				store := datacache.NewMinioStore(ctx, datacache.NewMinioObjectClient(client), "itest")
				return store, func() { terminate(container) }
			},
		})
	}

	if len(fixtures) == 0 {
		t.Skip("no integration drivers selected")
	}

	for _, fx := range fixtures {
		fx := fx
		t.Run(fx.name, func(t *testing.T) {
			store, cleanup := fx.new(t)
			t.Cleanup(cleanup)
			if err := datacache.StoreInitError(store); err != nil {
				t.Fatalf("store init: %v", err)
			}

			opts := fx.opts
			opts.CaseName = t.Name()
			cachetest.RunStoreContract(t, store, opts)
			cachetest.RunEntryStoreContract[string](t, datacache.NewKeyedStore[string](store), func(i int) string {
				return "value-" + string(rune('a'+i))
			})
		})
	}
}

func retryStoreInit(timeout, interval time.Duration, fn func() datacache.Store) datacache.Store {
	deadline := time.Now().Add(timeout)
	for {
		store := fn()
		if datacache.StoreInitError(store) == nil || time.Now().After(deadline) {
			return store
		}
		time.Sleep(interval)
	}
}

func startContainer(t *testing.T, ctx context.Context, req testcontainers.ContainerRequest, port nat.Port) (testcontainers.Container, string) {
	t.Helper()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start %s container: %v", req.Image, err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		terminate(container)
		t.Fatalf("%s container host: %v", req.Image, err)
	}
	mapped, err := container.MappedPort(ctx, port)
	if err != nil {
		terminate(container)
		t.Fatalf("%s container port: %v", req.Image, err)
	}
	return container, net.JoinHostPort(host, mapped.Port())
}

func terminate(container testcontainers.Container) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = container.Terminate(shutdownCtx)
}

// selectedIntegrationDrivers chooses which drivers run under the integration tag.
// INTEGRATION_DRIVER may be "all" (default) or a comma-separated list such as "redis,nats".
func selectedIntegrationDrivers() map[string]bool {
	selected := map[string]bool{
		"redis":     true,
		"memcached": true,
		"dynamodb":  true,
		"nats":      true,
		"postgres":  true,
		"mysql":     true,
		"minio":     true,
	}
	value := strings.TrimSpace(strings.ToLower(os.Getenv("INTEGRATION_DRIVER")))
	if value == "" || value == "all" {
		return selected
	}
	for key := range selected {
		selected[key] = false
	}
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		selected[part] = true
	}
	return selected
}

func integrationDriverEnabled(name string) bool {
	return selectedIntegrationDrivers()[strings.ToLower(name)]
}
