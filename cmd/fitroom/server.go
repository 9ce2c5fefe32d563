package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/fitroom/api/handlers"
	"github.com/BaSui01/fitroom/config"
	"github.com/BaSui01/fitroom/internal/cache"
	"github.com/BaSui01/fitroom/internal/database"
	"github.com/BaSui01/fitroom/internal/metrics"
	"github.com/BaSui01/fitroom/internal/server"
	"github.com/BaSui01/fitroom/internal/telemetry"
	"github.com/BaSui01/fitroom/marketplace"
	"github.com/BaSui01/fitroom/store"
	"github.com/BaSui01/fitroom/tryon"
	"github.com/BaSui01/fitroom/wardrobe"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 FitRoom 的主服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// 资产管线
	marketQueue  *marketplace.Queue
	marketClient *marketplace.Client
	assetService *store.Service

	// Handlers
	healthHandler   *handlers.HealthHandler
	assetsHandler   *handlers.AssetsHandler
	wardrobeHandler *handlers.WardrobeHandler

	// 基础设施
	metricsCollector *metrics.Collector
	cacheManager     *cache.Manager
	dbPool           *database.PoolManager
	otelProviders    *telemetry.Providers
	db               *gorm.DB

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc

	wg sync.WaitGroup
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, logger *zap.Logger, otelProviders *telemetry.Providers, db *gorm.DB) *Server {
	return &Server{
		cfg:           cfg,
		logger:        logger,
		otelProviders: otelProviders,
		db:            db,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 初始化指标收集器
	s.metricsCollector = metrics.NewCollector("fitroom", s.logger)

	// 2. 初始化资产管线与 Handlers
	if err := s.initPipeline(); err != nil {
		return fmt.Errorf("failed to init asset pipeline: %w", err)
	}
	s.initHandlers()

	// 3. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 4. 启动 Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("wardrobe_enabled", s.dbPool != nil),
	)

	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initPipeline 初始化市场客户端与资产解析服务
func (s *Server) initPipeline() error {
	// Redis 元数据缓存是可选的
	if s.cfg.Redis.Enabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.Addr = s.cfg.Redis.Addr
		cacheCfg.Password = s.cfg.Redis.Password
		cacheCfg.DB = s.cfg.Redis.DB
		cacheCfg.PoolSize = s.cfg.Redis.PoolSize
		cacheCfg.MinIdleConns = s.cfg.Redis.MinIdleConns

		manager, err := cache.NewManager(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn("Redis not available, marketplace metadata cache disabled", zap.Error(err))
		} else {
			s.cacheManager = manager
		}
	}

	// 市场请求队列：单飞 + 限速 + 429 退避
	s.marketQueue = marketplace.NewQueue(marketplace.QueueConfig{
		RequestsPerSecond: s.cfg.Marketplace.RequestsPerSecond,
		MaxRetries:        s.cfg.Marketplace.MaxRetries,
		BackoffBase:       s.cfg.Marketplace.BackoffBase,
	}, s.metricsCollector, s.logger)
	s.marketClient = marketplace.NewClient(s.cfg.Marketplace, s.marketQueue, s.cacheManager, s.logger)

	disk, err := store.NewDiskStore(s.cfg.Cache, s.logger)
	if err != nil {
		return err
	}
	s.assetService = store.NewService(s.cfg.Cache, disk, s.marketClient, s.metricsCollector, s.logger)

	// 衣橱存储需要数据库
	if s.db != nil {
		poolCfg := database.DefaultPoolConfig()
		if s.cfg.Database.MaxOpenConns > 0 {
			poolCfg.MaxOpenConns = s.cfg.Database.MaxOpenConns
		}
		if s.cfg.Database.MaxIdleConns > 0 {
			poolCfg.MaxIdleConns = s.cfg.Database.MaxIdleConns
		}
		if s.cfg.Database.ConnMaxLifetime > 0 {
			poolCfg.ConnMaxLifetime = s.cfg.Database.ConnMaxLifetime
		}

		pool, err := database.NewPoolManager(s.db, poolCfg, s.logger)
		if err != nil {
			s.logger.Warn("Database pool init failed, wardrobe endpoints disabled", zap.Error(err))
		} else {
			s.dbPool = pool
		}
	}

	return nil
}

// initHandlers 初始化所有 handlers
func (s *Server) initHandlers() {
	s.healthHandler = handlers.NewHealthHandler(Version, s.logger)
	s.assetsHandler = handlers.NewAssetsHandler(s.assetService, s.marketClient, s.cfg.Proxy, s.logger)

	if s.dbPool != nil {
		wstore := wardrobe.NewStore(s.dbPool, s.logger)
		provider := tryon.NewProvider(s.cfg.TryOn, s.logger)
		s.wardrobeHandler = handlers.NewWardrobeHandler(wstore, s.assetService, provider, s.logger)
	}

	// 就绪检查覆盖外部依赖
	if s.dbPool != nil {
		s.healthHandler.RegisterCheck(handlers.HealthCheckFunc{
			CheckName: "database",
			Fn:        s.dbPool.Ping,
		})
	}
	if s.cacheManager != nil {
		s.healthHandler.RegisterCheck(handlers.HealthCheckFunc{
			CheckName: "redis",
			Fn:        s.cacheManager.Ping,
		})
	}

	s.logger.Info("Handlers initialized")
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 启动资产/API 服务器
func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	// ========================================
	// 健康检查与版本端点
	// ========================================
	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /readyz", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion)

	// ========================================
	// 资产服务器
	// ========================================
	mux.HandleFunc("GET /assets/{asset}/{path...}", s.assetsHandler.HandleServe)
	mux.HandleFunc("POST /api/v1/assets/resolve", s.assetsHandler.HandleResolve)
	mux.HandleFunc("GET /api/v1/proxy", s.assetsHandler.HandleProxy)

	// ========================================
	// 衣橱 API（数据库可用时）
	// ========================================
	if s.wardrobeHandler != nil {
		mux.HandleFunc("GET /api/v1/garments", s.wardrobeHandler.HandleListGarments)
		mux.HandleFunc("POST /api/v1/garments", s.wardrobeHandler.HandleCreateGarment)
		mux.HandleFunc("GET /api/v1/garments/{id}", s.wardrobeHandler.HandleGetGarment)
		mux.HandleFunc("POST /api/v1/avatars", s.wardrobeHandler.HandleCreateAvatar)
		mux.HandleFunc("GET /api/v1/avatars/{id}", s.wardrobeHandler.HandleGetAvatar)
		mux.HandleFunc("POST /api/v1/photos", s.wardrobeHandler.HandleCreatePhoto)
		mux.HandleFunc("GET /api/v1/photos/{id}", s.wardrobeHandler.HandleGetPhoto)
		mux.HandleFunc("POST /api/v1/measurements/{photo_id}/estimate", s.wardrobeHandler.HandleEstimateMeasurements)
		mux.HandleFunc("POST /api/v1/tryon", s.wardrobeHandler.HandleCreateTryon)
		mux.HandleFunc("GET /api/v1/tryon/{id}", s.wardrobeHandler.HandleGetTryon)
		s.logger.Info("Wardrobe API routes registered")
	}

	// ========================================
	// 构建中间件链
	// ========================================
	skipAuthPaths := []string{"/health", "/healthz", "/ready", "/readyz", "/version", "/metrics"}
	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		CORS(s.cfg.Server.CORSAllowedOrigins),
		RateLimiter(rateLimiterCtx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
	}
	if s.cfg.Telemetry.Enabled {
		middlewares = append(middlewares, OTelTracing())
	}
	if s.cfg.JWT.Enabled {
		middlewares = append(middlewares, JWTAuth(s.cfg.JWT, skipAuthPaths, s.logger))
	}
	handler := Chain(mux, middlewares...)

	// ========================================
	// 使用 internal/server.Manager
	// ========================================
	serverConfig := server.DefaultConfig()
	serverConfig.Name = "asset_server"
	serverConfig.Addr = fmt.Sprintf(":%d", s.cfg.Server.HTTPPort)
	serverConfig.ReadTimeout = s.cfg.Server.ReadTimeout
	serverConfig.WriteTimeout = s.cfg.Server.WriteTimeout
	serverConfig.ShutdownTimeout = s.cfg.Server.ShutdownTimeout

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器
func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Name:            "metrics_server",
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)

	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	// 0. 停止 rate limiter 清理 goroutine
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	// 1. 关闭 HTTP 服务器（先停止接收新请求）
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 2. 排空市场请求队列
	if s.marketQueue != nil {
		s.marketQueue.Close()
	}

	// 3. 关闭 Metrics 服务器
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("Metrics server shutdown error", zap.Error(err))
		}
	}

	// 4. 释放外部连接
	if s.cacheManager != nil {
		if err := s.cacheManager.Close(); err != nil {
			s.logger.Error("Cache shutdown error", zap.Error(err))
		}
	}
	if s.dbPool != nil {
		if err := s.dbPool.Close(); err != nil {
			s.logger.Error("Database pool shutdown error", zap.Error(err))
		}
	}
	if s.otelProviders != nil {
		if err := s.otelProviders.Shutdown(ctx); err != nil {
			s.logger.Error("Telemetry shutdown error", zap.Error(err))
		}
	}

	// 5. 等待所有 goroutine 完成
	s.wg.Wait()

	s.logger.Info("Graceful shutdown completed")
}
