package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchlog/storage"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, BackendFile, cfg.Backend)
	assert.Equal(t, "./matchlog-data", cfg.DataDir)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matchlog.yaml")
	content := "backend: redis\nlog_level: debug\nredis:\n  address: redis.internal:6379\n  prefix: \"team:\"\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.Backend)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "redis.internal:6379", cfg.Redis.Address)
	assert.Equal(t, "team:", cfg.Redis.Prefix)

	// Untouched keys keep their defaults.
	assert.Equal(t, "./matchlog-data", cfg.DataDir)
}

func TestLoadBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "matchlog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestOpenKV(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		kv, err := Config{Backend: BackendMemory}.OpenKV(ctx)
		require.NoError(t, err)
		defer kv.Close()
		_, ok := kv.(*storage.MemoryKV)
		assert.True(t, ok)
	})

	t.Run("empty backend falls back to memory", func(t *testing.T) {
		kv, err := Config{}.OpenKV(ctx)
		require.NoError(t, err)
		defer kv.Close()
		_, ok := kv.(*storage.MemoryKV)
		assert.True(t, ok)
	})

	t.Run("file", func(t *testing.T) {
		kv, err := Config{Backend: BackendFile, DataDir: t.TempDir()}.OpenKV(ctx)
		require.NoError(t, err)
		defer kv.Close()
		require.NoError(t, kv.Set(ctx, "k", []byte("v")))
		got, found, err := kv.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, []byte("v"), got)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := Config{Backend: "carrier-pigeon"}.OpenKV(ctx)
		assert.Error(t, err)
	})
}
