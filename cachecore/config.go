package cachecore

import "time"

// CompressionCodec names the algorithm applied to record values.
type CompressionCodec string

const (
	CompressionNone   CompressionCodec = "none"
	CompressionGzip   CompressionCodec = "gzip"
	CompressionSnappy CompressionCodec = "snappy"
)

// BaseConfig holds the settings every driver understands.
type BaseConfig struct {
	// DefaultTTL applies when Put is given ttl <= 0. Zero keeps records until
	// they are overwritten, deleted or invalidated.
	DefaultTTL time.Duration
	// Prefix namespaces records on shared backends.
	Prefix        string
	Compression   CompressionCodec
	MaxValueBytes int
	// EncryptionKey enables AES-GCM sealing of record values when set.
	EncryptionKey []byte
}
