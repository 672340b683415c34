package config

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/goforj/datacache/cachecore"
)

// Validate checks semantic constraints the decoder cannot.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return newFieldError("Log.Level", "unknown level "+c.Log.Level)
	}
	if c.Log.MaxSize < 0 || c.Log.MaxBackups < 0 {
		return newFieldError("Log.MaxSize", "must not be negative")
	}

	co := c.Coordinator
	if co.Strategy != "api_first" && co.Strategy != "cache_first" {
		return newFieldError("Coordinator.Strategy", "must be api_first or cache_first")
	}
	if co.FetchTimeout.DurationValue() < 0 {
		return newFieldError("Coordinator.FetchTimeout", "must not be negative")
	}
	if co.StoreTimeout.DurationValue() < 0 {
		return newFieldError("Coordinator.StoreTimeout", "must not be negative")
	}
	if co.StaleAfter.DurationValue() < 0 {
		return newFieldError("Coordinator.StaleAfter", "must not be negative")
	}

	s := c.Store
	if _, err := cachecore.ParseDriver(s.Driver); err != nil {
		return newFieldError("Store.Driver", "unsupported driver "+s.Driver)
	}
	switch s.Compression {
	case "", "none", "gzip", "snappy":
	default:
		return newFieldError("Store.Compression", "must be none, gzip or snappy")
	}
	if n := len(s.EncryptionKey); n != 0 && n != 16 && n != 24 && n != 32 {
		return newFieldError("Store.EncryptionKey", "must be 16, 24 or 32 bytes")
	}
	if s.DefaultTTL.DurationValue() < 0 {
		return newFieldError("Store.DefaultTTL", "must not be negative")
	}

	switch s.Driver {
	case "file":
		if s.FileDir == "" {
			return newFieldError("Store.FileDir", "required for the file driver")
		}
	case "redis":
		if s.RedisAddr == "" {
			return newFieldError("Store.RedisAddr", "required for the redis driver")
		}
	case "memcached":
		if len(s.MemcachedAddresses) == 0 {
			return newFieldError("Store.MemcachedAddresses", "required for the memcached driver")
		}
	case "sql":
		if s.SQLDriver == "" || s.SQLDSN == "" {
			return newFieldError("Store.SQLDSN", "SQLDriver and SQLDSN are required for the sql driver")
		}
	case "nats":
		if s.NATSURL == "" || s.NATSBucket == "" {
			return newFieldError("Store.NATSURL", "NATSURL and NATSBucket are required for the nats driver")
		}
	case "minio":
		if s.MinioEndpoint == "" {
			return newFieldError("Store.MinioEndpoint", "required for the minio driver")
		}
	}
	return nil
}
