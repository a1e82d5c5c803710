// Package config holds the command line configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment variables, e.g. RANGEZIP_PASSWORD.
const EnvPrefix = "RANGEZIP"

// Config holds app configuration
type Config struct {
	LogLevel     string `mapstructure:"log_level"`
	LogOutputDir string `mapstructure:"log_output_dir"`

	// Password decrypts ZipCrypto entries.
	Password string `mapstructure:"password"`

	// Workers is the number of entries extracted in parallel.
	Workers int `mapstructure:"workers"`

	PreserveTimes bool `mapstructure:"preserve_times"`
	PreserveMode  bool `mapstructure:"preserve_mode"`

	// CacheDir enables the disk block cache when set.
	CacheDir      string `mapstructure:"cache_dir"`
	CacheMaxBytes int64  `mapstructure:"cache_max_bytes"`

	// MemoryCacheBlocks enables the in-memory block cache when > 0.
	MemoryCacheBlocks int   `mapstructure:"memory_cache_blocks"`
	BlockSize         int64 `mapstructure:"block_size"`

	MinReadSize int   `mapstructure:"min_read_size"`
	MaxPrefetch int64 `mapstructure:"max_prefetch"`

	// Headers are extra HTTP request headers in "Key: Value" form.
	Headers []string `mapstructure:"headers"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("workers", 1)
	v.SetDefault("block_size", 64<<10)
	v.SetDefault("min_read_size", 4<<10)
	v.SetDefault("max_prefetch", 8<<20)
}

// Init points v at the config file and environment. An empty cfgFile
// searches the user and system config directories for config.toml.
func Init(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "rangezip"))
		}
		v.AddConfigPath("/etc/rangezip")
		v.SetConfigName("config")
		v.SetConfigType("toml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// Load unmarshals and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch {
	case c.Workers < 1:
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	case c.BlockSize <= 0:
		return fmt.Errorf("block_size must be > 0, got %d", c.BlockSize)
	case c.MemoryCacheBlocks < 0:
		return fmt.Errorf("memory_cache_blocks must be >= 0, got %d", c.MemoryCacheBlocks)
	case c.CacheMaxBytes < 0:
		return fmt.Errorf("cache_max_bytes must be >= 0, got %d", c.CacheMaxBytes)
	case c.MinReadSize <= 0:
		return fmt.Errorf("min_read_size must be > 0, got %d", c.MinReadSize)
	case c.MaxPrefetch < 0:
		return fmt.Errorf("max_prefetch must be >= 0, got %d", c.MaxPrefetch)
	}
	for _, h := range c.Headers {
		if _, _, ok := strings.Cut(h, ":"); !ok {
			return fmt.Errorf("header %q is not in \"Key: Value\" form", h)
		}
	}
	return nil
}

// HeaderPairs splits Headers into keys and values.
func (c *Config) HeaderPairs() [][2]string {
	pairs := make([][2]string, 0, len(c.Headers))
	for _, h := range c.Headers {
		k, v, _ := strings.Cut(h, ":")
		pairs = append(pairs, [2]string{strings.TrimSpace(k), strings.TrimSpace(v)})
	}
	return pairs
}
