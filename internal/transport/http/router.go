package httptransport

import (
	"path/filepath"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mohsenkhakbazan/mailto-linker/internal/config"
	"github.com/mohsenkhakbazan/mailto-linker/internal/health"
	"github.com/mohsenkhakbazan/mailto-linker/internal/middleware"
	"github.com/mohsenkhakbazan/mailto-linker/internal/monitoring"
	"github.com/mohsenkhakbazan/mailto-linker/internal/service"
)

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config      *config.Config
	LinkService *service.LinkService
	RateLimiter middleware.Allower // /api 入口限流，nil 时关闭
	Metrics     *monitoring.Metrics
	Health      *health.Checker // nil 时不注册 /live /ready
	Logger      *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
//
// 短链解析路径 GET /:id 注册在 NoRoute 上，避免根路径通配符与
// /health、/metrics 等静态路由冲突，未命中任何已注册路由的
// 单段 GET 请求都交给解析处理器。
func NewRouter(deps RouterDependencies) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RecoveryHandler(deps.Logger))
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(deps.Metrics.HTTPMetrics())

	corsConfig := gincors.Config{
		AllowOrigins:  deps.Config.CORS.AllowedOrigins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-API-Key"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range corsConfig.AllowOrigins {
		if origin == "*" {
			corsConfig.AllowCredentials = false
			break
		}
	}
	router.Use(gincors.New(corsConfig))

	handler := NewHandler(deps.LinkService, deps.Config, deps.Metrics, deps.Logger)

	router.GET("/health", handler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if deps.Health != nil {
		router.GET("/live", gin.WrapF(deps.Health.LiveEndpoint()))
		router.GET("/ready", gin.WrapF(deps.Health.ReadyEndpoint()))
	}

	api := router.Group("/api")
	api.Use(middleware.BodySizeLimit(deps.Config.Limits.MaxBodyBytes))
	if deps.RateLimiter != nil {
		api.Use(middleware.RateLimit(deps.RateLimiter, deps.Logger))
	}
	api.Use(middleware.RequireAPIKey(deps.Config.APIKey))
	api.POST("/create", handler.CreateLink)

	if deps.Config.WebDir != "" {
		router.StaticFile("/", filepath.Join(deps.Config.WebDir, "index.html"))
		router.StaticFile("/app.js", filepath.Join(deps.Config.WebDir, "app.js"))
		router.StaticFile("/style.css", filepath.Join(deps.Config.WebDir, "style.css"))
	}

	router.NoRoute(handler.ResolveLink)

	return router
}
