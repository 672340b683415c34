package cachecore

import (
	"fmt"
	"strings"
)

// Driver names a storage backend.
type Driver string

const (
	DriverNull      Driver = "null"
	DriverFile      Driver = "file"
	DriverMemory    Driver = "memory"
	DriverMemcached Driver = "memcached"
	DriverDynamo    Driver = "dynamodb"
	DriverSQL       Driver = "sql"
	DriverRedis     Driver = "redis"
	DriverNATS      Driver = "nats"
	DriverMinio     Driver = "minio"
)

// Drivers lists every backend in a stable order.
var Drivers = []Driver{
	DriverMemory, DriverFile, DriverNull, DriverRedis, DriverMemcached,
	DriverDynamo, DriverSQL, DriverNATS, DriverMinio,
}

// ParseDriver matches name case-insensitively against Drivers.
func ParseDriver(name string) (Driver, error) {
	want := Driver(strings.ToLower(strings.TrimSpace(name)))
	for _, d := range Drivers {
		if d == want {
			return d, nil
		}
	}
	return "", fmt.Errorf("unsupported driver %q", name)
}
