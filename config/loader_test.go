package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_Defaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 50, cfg.Cache.MemoryMaxEntries)
	assert.Equal(t, 24*time.Hour, cfg.Cache.MemoryTTL)
	assert.Equal(t, int64(20<<20), cfg.Cache.MaxArchiveBytes)
	assert.Equal(t, 3, cfg.Cache.SearchDepth)
	assert.Equal(t, 5, cfg.Marketplace.MaxRetries)
	assert.Equal(t, float64(1), cfg.Marketplace.RequestsPerSecond)
}

func TestLoader_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
server:
  http_port: 9000
cache:
  root: /var/lib/fitroom/models
  memory_max_entries: 10
marketplace:
  requests_per_second: 2
  token: test-token
proxy:
  allowed_hosts:
    - example.com
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, "/var/lib/fitroom/models", cfg.Cache.Root)
	assert.Equal(t, 10, cfg.Cache.MemoryMaxEntries)
	assert.Equal(t, float64(2), cfg.Marketplace.RequestsPerSecond)
	assert.Equal(t, "test-token", cfg.Marketplace.Token)
	assert.Equal(t, []string{"example.com"}, cfg.Proxy.AllowedHosts)
	// 未覆盖的字段保持默认值
	assert.Equal(t, 9091, cfg.Server.MetricsPort)
}

func TestLoader_FileMissing(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
}

func TestLoader_EnvOverride(t *testing.T) {
	t.Setenv("FITROOM_SERVER_HTTP_PORT", "8888")
	t.Setenv("FITROOM_CACHE_ROOT", "/tmp/models")
	t.Setenv("FITROOM_CACHE_MEMORY_TTL", "1h")
	t.Setenv("FITROOM_MARKETPLACE_REQUESTS_PER_SECOND", "0.5")
	t.Setenv("FITROOM_PROXY_ALLOWED_HOSTS", "a.com, b.com")
	t.Setenv("FITROOM_REDIS_ENABLED", "true")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, 8888, cfg.Server.HTTPPort)
	assert.Equal(t, "/tmp/models", cfg.Cache.Root)
	assert.Equal(t, time.Hour, cfg.Cache.MemoryTTL)
	assert.Equal(t, 0.5, cfg.Marketplace.RequestsPerSecond)
	assert.Equal(t, []string{"a.com", "b.com"}, cfg.Proxy.AllowedHosts)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoader_EnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  http_port: 9000\n"), 0o644))

	t.Setenv("FITROOM_SERVER_HTTP_PORT", "9999")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.HTTPPort)
}

func TestLoader_CustomValidator(t *testing.T) {
	_, err := NewLoader().
		WithValidator(func(c *Config) error {
			if c.Marketplace.Token == "" {
				return assert.AnError
			}
			return nil
		}).
		Load()
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "defaults are valid",
			mutate:  func(c *Config) {},
			wantErr: "",
		},
		{
			name:    "bad http port",
			mutate:  func(c *Config) { c.Server.HTTPPort = -1 },
			wantErr: "invalid HTTP port",
		},
		{
			name:    "empty cache root",
			mutate:  func(c *Config) { c.Cache.Root = "" },
			wantErr: "cache root",
		},
		{
			name:    "zero rate",
			mutate:  func(c *Config) { c.Marketplace.RequestsPerSecond = 0 },
			wantErr: "requests_per_second",
		},
		{
			name:    "negative search depth",
			mutate:  func(c *Config) { c.Cache.SearchDepth = -1 },
			wantErr: "search_depth",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	pg := DatabaseConfig{Driver: "postgres", Host: "db", Port: 5432, User: "u", Password: "p", Name: "fitroom", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=fitroom sslmode=disable", pg.DSN())

	my := DatabaseConfig{Driver: "mysql", Host: "db", Port: 3306, User: "u", Password: "p", Name: "fitroom"}
	assert.Equal(t, "u:p@tcp(db:3306)/fitroom?parseTime=true", my.DSN())

	lite := DatabaseConfig{Driver: "sqlite", Name: "fitroom.db"}
	assert.Equal(t, "fitroom.db", lite.DSN())

	unknown := DatabaseConfig{Driver: "oracle"}
	assert.Equal(t, "", unknown.DSN())
}
