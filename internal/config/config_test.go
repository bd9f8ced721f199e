package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestRead_Defaults(t *testing.T) {
	cfg := Read(viper.New())

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "stockrecon", cfg.Database.DBName)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 10, cfg.Reconcile.ResolverMaxParallel)
	assert.Equal(t, 30*time.Second, cfg.Sync.Timeout())
	assert.Equal(t, 30*time.Second, cfg.Reconcile.LockTTL())
}

func TestRead_EnvOverrides(t *testing.T) {
	t.Setenv("SYNC_BASE_URL", "https://platform.example.com")
	t.Setenv("SYNC_API_TOKEN", "secret")
	t.Setenv("SYNC_TENANT_ID", "tenant-9")
	t.Setenv("SYNC_TIMEOUT_SECONDS", "5")
	t.Setenv("RECONCILE_LOCK_TTL_SECONDS", "45")
	t.Setenv("CACHE_ENABLED", "true")

	cfg := Read(viper.New())

	assert.Equal(t, "https://platform.example.com", cfg.Sync.BaseURL)
	assert.Equal(t, "secret", cfg.Sync.APIToken)
	assert.Equal(t, "tenant-9", cfg.Sync.TenantID)
	assert.Equal(t, 5*time.Second, cfg.Sync.Timeout())
	assert.Equal(t, 45*time.Second, cfg.Reconcile.LockTTL())
	assert.True(t, cfg.Cache.Enabled)
}
