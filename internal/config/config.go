// internal/config/config.go
package config

import (
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Sync      SyncConfig
	Reconcile ReconcileConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
}

// SyncConfig points at the external commerce platform's inventory endpoint.
type SyncConfig struct {
	BaseURL          string
	APIToken         string
	TenantID         string
	TimeoutSeconds   int
	FailureThreshold int
	OpenTimeoutSecs  int
}

type ReconcileConfig struct {
	LockTTLSeconds      int
	ResolverMaxParallel int
}

type LogConfig struct {
	Level string
}

// Timeout returns the per-call sync timeout the caller applies.
func (c SyncConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LockTTL returns how long an order lock is held before it expires.
func (c ReconcileConfig) LockTTL() time.Duration {
	if c.LockTTLSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.LockTTLSeconds) * time.Second
}

var (
	once     sync.Once
	instance *Config
)

// Load reads the configuration once per process.
func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		instance = Read(viper.New())
	})

	return instance
}

// Read builds a Config from environment variables through v.
func Read(v *viper.Viper) *Config {
	// Set default values
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 15)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 60)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "stockrecon")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("SYNC_BASE_URL", "")
	v.SetDefault("SYNC_API_TOKEN", "")
	v.SetDefault("SYNC_TENANT_ID", "")
	v.SetDefault("SYNC_TIMEOUT_SECONDS", 30)
	v.SetDefault("SYNC_FAILURE_THRESHOLD", 5)
	v.SetDefault("SYNC_OPEN_TIMEOUT_SECONDS", 60)
	v.SetDefault("RECONCILE_LOCK_TTL_SECONDS", 30)
	v.SetDefault("RESOLVER_MAX_PARALLEL", 10)
	v.SetDefault("LOG_LEVEL", "info")

	// Read from environment variables
	v.AutomaticEnv()

	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			DBName:   v.GetString("DB_NAME"),
			SSLMode:  v.GetString("DB_SSLMODE"),
		},
		Cache: CacheConfig{
			Enabled:       v.GetBool("CACHE_ENABLED"),
			RedisURL:      v.GetString("REDIS_URL"),
			RedisHost:     v.GetString("REDIS_HOST"),
			RedisPort:     v.GetString("REDIS_PORT"),
			RedisPassword: v.GetString("REDIS_PASSWORD"),
			RedisDB:       v.GetInt("REDIS_DB"),
		},
		Sync: SyncConfig{
			BaseURL:          v.GetString("SYNC_BASE_URL"),
			APIToken:         v.GetString("SYNC_API_TOKEN"),
			TenantID:         v.GetString("SYNC_TENANT_ID"),
			TimeoutSeconds:   v.GetInt("SYNC_TIMEOUT_SECONDS"),
			FailureThreshold: v.GetInt("SYNC_FAILURE_THRESHOLD"),
			OpenTimeoutSecs:  v.GetInt("SYNC_OPEN_TIMEOUT_SECONDS"),
		},
		Reconcile: ReconcileConfig{
			LockTTLSeconds:      v.GetInt("RECONCILE_LOCK_TTL_SECONDS"),
			ResolverMaxParallel: v.GetInt("RESOLVER_MAX_PARALLEL"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
	}
}
