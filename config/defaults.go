// =============================================================================
// 📦 FitRoom 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:      DefaultServerConfig(),
		Cache:       DefaultCacheConfig(),
		Marketplace: DefaultMarketplaceConfig(),
		Proxy:       DefaultProxyConfig(),
		TryOn:       DefaultTryOnConfig(),
		Redis:       DefaultRedisConfig(),
		Database:    DefaultDatabaseConfig(),
		JWT:         DefaultJWTConfig(),
		Log:         DefaultLogConfig(),
		Telemetry:   DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// DefaultCacheConfig 返回默认缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Root:             "./models",
		PoolDir:          "_pool",
		MemoryMaxEntries: 50,
		MemoryTTL:        24 * time.Hour,
		MaxArchiveBytes:  20 << 20, // 20 MB
		FreshnessWindow:  24 * time.Hour,
		SearchDepth:      3,
	}
}

// DefaultMarketplaceConfig 返回默认市场配置
func DefaultMarketplaceConfig() MarketplaceConfig {
	return MarketplaceConfig{
		BaseURL:           "https://api.sketchfab.com/v3",
		Token:             "",
		RequestsPerSecond: 1,
		MaxRetries:        5,
		BackoffBase:       1 * time.Second,
		MetadataTimeout:   15 * time.Second,
		DownloadTimeout:   60 * time.Second,
		MetadataCacheTTL:  10 * time.Minute,
	}
}

// DefaultProxyConfig 返回默认代理配置
func DefaultProxyConfig() ProxyConfig {
	return ProxyConfig{
		AllowedHosts: []string{"sketchfab.com", "readyplayer.me", "models.readyplayer.me"},
		FetchTimeout: 30 * time.Second,
		MaxBodyBytes: 100 << 20, // 100 MB
	}
}

// DefaultTryOnConfig 返回默认 2D 试穿配置
func DefaultTryOnConfig() TryOnConfig {
	return TryOnConfig{
		BaseURL:      "",
		APIKey:       "",
		Timeout:      2 * time.Minute,
		PollInterval: 2 * time.Second,
	}
}

// DefaultRedisConfig 返回默认 Redis 配置
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
	}
}

// DefaultDatabaseConfig 返回默认数据库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "fitroom",
		Password:        "",
		Name:            "fitroom.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultJWTConfig 返回默认 JWT 配置
func DefaultJWTConfig() JWTConfig {
	return JWTConfig{
		Enabled: false,
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{"stdout"},
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "fitroom",
		SampleRate:   1.0,
	}
}
