package config

import (
	"fmt"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load reads a TOML file, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "datacache.toml"
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Store.FileDir != "" {
		abs, err := filepath.Abs(cfg.Store.FileDir)
		if err != nil {
			return nil, fmt.Errorf("resolve Store.FileDir: %w", err)
		}
		cfg.Store.FileDir = abs
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Log.Level", "info")
	v.SetDefault("Log.FilePath", "")
	v.SetDefault("Log.MaxSize", 100)
	v.SetDefault("Log.MaxBackups", 10)
	v.SetDefault("Log.Compress", true)
	v.SetDefault("Coordinator.Strategy", "cache_first")
	v.SetDefault("Coordinator.FetchTimeout", "5s")
	v.SetDefault("Coordinator.StoreTimeout", "1s")
	v.SetDefault("Coordinator.StaleAfter", "0")
	v.SetDefault("Store.Driver", "file")
	v.SetDefault("Store.Prefix", "datacache")
	v.SetDefault("Store.Compression", "none")
	v.SetDefault("Store.FileDir", "./datacache")
}

func applyDefaults(cfg *Config) {
	c := &cfg.Coordinator
	if c.FetchTimeout.DurationValue() == 0 {
		c.FetchTimeout = Duration(5 * time.Second)
	}
	if c.StoreTimeout.DurationValue() == 0 {
		c.StoreTimeout = Duration(time.Second)
	}
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	cfg.Store.Compression = strings.ToLower(strings.TrimSpace(cfg.Store.Compression))
	cfg.Coordinator.Strategy = strings.ToLower(strings.TrimSpace(cfg.Coordinator.Strategy))
}

// durationDecodeHook turns strings and bare numbers (seconds) into Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	targetType := reflect.TypeOf(Duration(0))

	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != targetType {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			var d Duration
			if err := d.UnmarshalText([]byte(v)); err != nil {
				if secs, ferr := strconv.ParseFloat(strings.TrimSpace(v), 64); ferr == nil {
					return Duration(time.Duration(secs * float64(time.Second))), nil
				}
				return nil, err
			}
			return d, nil
		case int:
			return Duration(time.Duration(v) * time.Second), nil
		case int64:
			return Duration(time.Duration(v) * time.Second), nil
		case float64:
			return Duration(time.Duration(v * float64(time.Second))), nil
		case time.Duration:
			return Duration(v), nil
		case Duration:
			return v, nil
		default:
			return nil, fmt.Errorf("unsupported duration type: %T", v)
		}
	}
}
