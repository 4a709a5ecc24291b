package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mohsenkhakbazan/mailto-linker/internal/config"
	"github.com/mohsenkhakbazan/mailto-linker/internal/health"
	"github.com/mohsenkhakbazan/mailto-linker/internal/logger"
	"github.com/mohsenkhakbazan/mailto-linker/internal/middleware"
	"github.com/mohsenkhakbazan/mailto-linker/internal/monitoring"
	"github.com/mohsenkhakbazan/mailto-linker/internal/service"
	"github.com/mohsenkhakbazan/mailto-linker/internal/storage"
	"github.com/mohsenkhakbazan/mailto-linker/internal/storage/memory"
	redislimit "github.com/mohsenkhakbazan/mailto-linker/internal/storage/redis"
	sqlstore "github.com/mohsenkhakbazan/mailto-linker/internal/storage/sql"
	httptransport "github.com/mohsenkhakbazan/mailto-linker/internal/transport/http"
)

// main 启动 mailto 短链服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		File:        cfg.Log.File,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting mailto-linker server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	store, err := openStore(cfg, log)
	if err != nil {
		log.Fatal("failed to initialize storage", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	metrics := monitoring.NewMetrics()
	healthChecker := health.NewChecker(store)

	quota := service.NewQuotaEnforcer(store, store, cfg.Links.MaxTotalLinks, cfg.Links.IPDailyLimit)
	links := service.NewLinkService(store, quota, cfg.CreateLimits(), cfg.Links.PublicBaseURL, cfg.Links.IDLength, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	limiter := buildRateLimiter(ctx, cfg, log)

	// 启动即做一次全量清理，之后按周期运行
	cleanup := service.NewCleanupScheduler(store, cfg.Cleanup.Interval, log).WithMetrics(metrics)
	cleanup.Start()
	defer cleanup.Stop()

	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:      cfg,
		LinkService: links,
		RateLimiter: limiter,
		Metrics:     metrics,
		Health:      healthChecker,
		Logger:      log,
	})

	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting HTTP server",
			zap.String("address", httpAddr),
			zap.String("public_base_url", cfg.Links.PublicBaseURL),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		log.Info("server stopped")
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// openStore 根据配置选择存储后端
func openStore(cfg *config.Config, log *zap.Logger) (storage.Store, error) {
	if cfg.Database.Driver == "memory" {
		log.Warn("using in-memory storage, links will not survive a restart")
		return memory.NewStore(), nil
	}

	store, err := sqlstore.NewStore(cfg.Database.Driver, cfg.Database.DSN, sqlstore.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}

	log.Info("database storage initialized",
		zap.String("driver", cfg.Database.Driver),
	)
	return store, nil
}

// buildRateLimiter 构建 /api 限流后端：配置了 Redis 时用共享固定窗口，
// 否则退回进程内令牌桶
func buildRateLimiter(ctx context.Context, cfg *config.Config, log *zap.Logger) middleware.Allower {
	if cfg.RateLimit.Max <= 0 {
		log.Warn("rate limiting disabled by configuration")
		return nil
	}

	if cfg.Redis.Address != "" {
		limiter, err := redislimit.NewLimiter(
			cfg.Redis.Address,
			cfg.Redis.Password,
			cfg.Redis.DB,
			cfg.RateLimit.Window,
			cfg.RateLimit.Max,
			log,
		)
		if err != nil {
			log.Warn("redis rate limiter unavailable, falling back to in-process limiter", zap.Error(err))
		} else {
			log.Info("using redis rate limiter", zap.String("address", cfg.Redis.Address))
			return limiter
		}
	}

	memLimiter := middleware.NewMemoryRateLimiter(cfg.RateLimit.Window, cfg.RateLimit.Max)
	memLimiter.StartJanitor(ctx)
	return memLimiter
}
