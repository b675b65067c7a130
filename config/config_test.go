package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/shoprec/core"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(PathEnvVar, "")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, uint64(42), cfg.Engine.Seed)
	assert.Equal(t, 50, cfg.Engine.MaxLatentFactors)
	assert.Equal(t, 10, cfg.Engine.SimilarUsers)
	assert.Equal(t, 20, cfg.Engine.HistoryLimit)
	assert.Equal(t, 100, cfg.Engine.MaxFeatures)
	assert.Equal(t, 7*24*time.Hour, cfg.Engine.StaleAfter)
	assert.Equal(t, "recommendation_models", cfg.Engine.StateKey)
	assert.False(t, cfg.Engine.ExcludeInteracted)
	assert.Equal(t, "badger", cfg.Store.Driver)
	assert.Equal(t, "models", cfg.Store.BadgerDir)
	assert.Equal(t, 2*time.Second, cfg.Engine.RecallTimeout)
	assert.Equal(t, 90, cfg.Feed.SearchWindowDays)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shoprec.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
engine:
  similar_users: 5
  stale_after: 48h
  exclude_interacted: true
store:
  driver: badger
  badger_dir: /tmp/shoprec
feed:
  driver: postgres
  dsn: postgres://shop@localhost/shop
`), 0o600))

	t.Setenv("SHOPREC_ENGINE_SIMILAR_USERS", "8")
	t.Setenv("SHOPREC_ENGINE_BLOCKED_PRODUCTS", "3, 5,8")
	t.Setenv("SHOPREC_ENGINE_FILTER_EXPR", "item.meta.price > 0.0")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 8, cfg.Engine.SimilarUsers)
	assert.Equal(t, 48*time.Hour, cfg.Engine.StaleAfter)
	assert.True(t, cfg.Engine.ExcludeInteracted)
	assert.Equal(t, []int64{3, 5, 8}, cfg.Engine.BlockedProducts)
	assert.Equal(t, "item.meta.price > 0.0", cfg.Engine.FilterExpr)
	assert.Equal(t, "badger", cfg.Store.Driver)
	assert.Equal(t, "postgres", cfg.Feed.Driver)
	assert.Equal(t, 50, cfg.Engine.MaxLatentFactors)
}

func TestLoad_MemoryStoreOptIn(t *testing.T) {
	t.Setenv(PathEnvVar, "")
	t.Setenv("SHOPREC_STORE_DRIVER", "memory")
	t.Setenv("SHOPREC_ENGINE_RECALL_TIMEOUT", "500ms")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 500*time.Millisecond, cfg.Engine.RecallTimeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"store driver", func(c *Config) { c.Store.Driver = "etcd" }},
		{"feed driver", func(c *Config) { c.Feed.Driver = "mysql" }},
		{"missing dsn", func(c *Config) { c.Feed.DSN = "" }},
		{"similar users", func(c *Config) { c.Engine.SimilarUsers = 0 }},
		{"stale after", func(c *Config) { c.Engine.StaleAfter = 0 }},
		{"state key", func(c *Config) { c.Engine.StateKey = "" }},
		{"badger without dir", func(c *Config) { c.Store.BadgerDir = "" }},
		{"recall timeout", func(c *Config) { c.Engine.RecallTimeout = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.True(t, core.IsInvalidInput(cfg.Validate()))
		})
	}
	require.NoError(t, Default().Validate())
}

func TestYAML_HidesSecrets(t *testing.T) {
	cfg := Default()
	cfg.Feed.DSN = "postgres://user:secret@db/shop"
	cfg.Store.RedisPassword = "hunter2"

	out, err := cfg.YAML()
	require.NoError(t, err)
	assert.NotContains(t, string(out), "secret")
	assert.NotContains(t, string(out), "hunter2")
	assert.Contains(t, string(out), "stale_after: 168h0m0s")
}
