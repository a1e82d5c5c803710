package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	v := viper.New()
	SetDefaults(v)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 1, cfg.Workers)
	assert.Equal(t, int64(64<<10), cfg.BlockSize)
	assert.Equal(t, 4<<10, cfg.MinReadSize)
	assert.Equal(t, int64(8<<20), cfg.MaxPrefetch)
	assert.Empty(t, cfg.CacheDir)
}

func TestInitConfigFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level = "debug"
workers = 8
cache_dir = "/tmp/blocks"
headers = ["Authorization: Bearer abc"]
`), 0o600))

	v := viper.New()
	SetDefaults(v)
	require.NoError(t, Init(v, path))
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8, cfg.Workers)
	assert.Equal(t, "/tmp/blocks", cfg.CacheDir)
	assert.Equal(t, [][2]string{{"Authorization", "Bearer abc"}}, cfg.HeaderPairs())
}

func TestInitMissingExplicitFile(t *testing.T) {
	t.Parallel()

	v := viper.New()
	err := Init(v, filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := Config{Workers: 1, BlockSize: 1, MinReadSize: 1}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"workers", func(c *Config) { c.Workers = 0 }},
		{"block size", func(c *Config) { c.BlockSize = 0 }},
		{"memory blocks", func(c *Config) { c.MemoryCacheBlocks = -1 }},
		{"cache max bytes", func(c *Config) { c.CacheMaxBytes = -1 }},
		{"min read", func(c *Config) { c.MinReadSize = 0 }},
		{"max prefetch", func(c *Config) { c.MaxPrefetch = -1 }},
		{"header", func(c *Config) { c.Headers = []string{"no colon"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := valid
			tt.mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}
