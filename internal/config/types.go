package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration accepts Go duration strings ("30s", "5m") or a plain number of seconds.
type Duration time.Duration

// UnmarshalText lets viper decode Duration from TOML strings.
func (d *Duration) UnmarshalText(text []byte) error {
	raw := strings.TrimSpace(string(text))
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if parsed, err := time.ParseDuration(raw); err == nil {
		*d = Duration(parsed)
		return nil
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*d = Duration(time.Duration(secs) * time.Second)
		return nil
	}
	return fmt.Errorf("invalid duration value: %s", raw)
}

// DurationValue returns the underlying time.Duration.
func (d Duration) DurationValue() time.Duration {
	return time.Duration(d)
}

// Config is the root of the CLI configuration file.
type Config struct {
	Log         LogConfig         `mapstructure:"Log"`
	Coordinator CoordinatorConfig `mapstructure:"Coordinator"`
	Store       StoreConfig       `mapstructure:"Store"`
}

// LogConfig controls where structured logs go.
type LogConfig struct {
	Level      string `mapstructure:"Level"`
	FilePath   string `mapstructure:"FilePath"`
	MaxSize    int    `mapstructure:"MaxSize"`
	MaxBackups int    `mapstructure:"MaxBackups"`
	Compress   bool   `mapstructure:"Compress"`
}

// CoordinatorConfig holds the retrieval defaults; flags may override Strategy.
type CoordinatorConfig struct {
	Strategy     string   `mapstructure:"Strategy"`
	FetchTimeout Duration `mapstructure:"FetchTimeout"`
	StoreTimeout Duration `mapstructure:"StoreTimeout"`
	StaleAfter   Duration `mapstructure:"StaleAfter"`
	Debug        bool     `mapstructure:"Debug"`
}

// StoreConfig selects and configures the cache backend.
type StoreConfig struct {
	Driver        string   `mapstructure:"Driver"`
	Prefix        string   `mapstructure:"Prefix"`
	DefaultTTL    Duration `mapstructure:"DefaultTTL"`
	Compression   string   `mapstructure:"Compression"`
	MaxValueBytes int      `mapstructure:"MaxValueBytes"`
	EncryptionKey string   `mapstructure:"EncryptionKey"`

	FileDir string `mapstructure:"FileDir"`

	RedisAddr     string `mapstructure:"RedisAddr"`
	RedisPassword string `mapstructure:"RedisPassword"`
	RedisDB       int    `mapstructure:"RedisDB"`

	MemcachedAddresses []string `mapstructure:"MemcachedAddresses"`

	DynamoTable    string `mapstructure:"DynamoTable"`
	DynamoRegion   string `mapstructure:"DynamoRegion"`
	DynamoEndpoint string `mapstructure:"DynamoEndpoint"`

	SQLDriver string `mapstructure:"SQLDriver"`
	SQLDSN    string `mapstructure:"SQLDSN"`
	SQLTable  string `mapstructure:"SQLTable"`

	NATSURL    string `mapstructure:"NATSURL"`
	NATSBucket string `mapstructure:"NATSBucket"`

	MinioEndpoint  string `mapstructure:"MinioEndpoint"`
	MinioAccessKey string `mapstructure:"MinioAccessKey"`
	MinioSecretKey string `mapstructure:"MinioSecretKey"`
	MinioBucket    string `mapstructure:"MinioBucket"`
	MinioSecure    bool   `mapstructure:"MinioSecure"`
}
