package httptransport

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mohsenkhakbazan/mailto-linker/internal/config"
	"github.com/mohsenkhakbazan/mailto-linker/internal/domain"
	"github.com/mohsenkhakbazan/mailto-linker/internal/monitoring"
	"github.com/mohsenkhakbazan/mailto-linker/internal/service"
	"github.com/mohsenkhakbazan/mailto-linker/internal/storage"
)

// Handler 聚合短链相关的 HTTP 处理逻辑
type Handler struct {
	links   *service.LinkService
	cfg     *config.Config
	metrics *monitoring.Metrics
	log     *zap.Logger
}

// NewHandler 创建处理器
func NewHandler(links *service.LinkService, cfg *config.Config, metrics *monitoring.Metrics, log *zap.Logger) *Handler {
	return &Handler{
		links:   links,
		cfg:     cfg,
		metrics: metrics,
		log:     log,
	}
}

// Health GET /health 存活探针
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// CreateLink POST /api/create
//
// 成功 200 {id, url}；校验失败 400；单 IP 日配额 429；全局容量 503；其余 500。
// 错误响应统一为 {error, details}，不携带内部诊断信息。
func (h *Handler) CreateLink(c *gin.Context) {
	var req domain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Validation failed",
			"details": []string{"Request body must be valid JSON."},
		})
		return
	}

	result, err := h.links.Create(&req, c.ClientIP(), time.Now())
	if err != nil {
		h.writeCreateError(c, err)
		return
	}

	h.metrics.LinksCreated.Inc()
	c.JSON(http.StatusOK, result)
}

func (h *Handler) writeCreateError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Validation failed",
			"details": verr.Details,
		})

	case errors.Is(err, service.ErrDailyLimitReached):
		h.metrics.LinksRejected.WithLabelValues("daily_quota").Inc()
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": "Daily limit reached",
			"details": []string{fmt.Sprintf(
				"This server allows up to %d link creations per IP per day.",
				h.cfg.Links.IPDailyLimit,
			)},
		})

	case errors.Is(err, service.ErrCapacityExceeded):
		h.metrics.LinksRejected.WithLabelValues("capacity").Inc()
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "Service temporarily unavailable",
			"details": []string{fmt.Sprintf(
				"Storage limit reached (%d links). Try again later.",
				h.cfg.Links.MaxTotalLinks,
			)},
		})

	default:
		// 包含 ErrCreateExhausted 与存储故障：对外通用失败，详情进日志
		h.log.Error("link creation failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create link",
		})
	}
}

// ResolveLink 短链解析，挂在 NoRoute 上处理 GET /:id。
//
// 形态非法或不存在 404 HTML；过期 410 HTML；命中后默认 302 跳转 mailto，
// 已知拦截跳转的内嵌浏览器或 ?landing=1 时返回 200 落地页。
func (h *Handler) ResolveLink(c *gin.Context) {
	if c.Request.Method != http.MethodGet {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	id := strings.Trim(c.Request.URL.Path, "/")
	if strings.Contains(id, "/") {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	shortURL := h.cfg.Links.PublicBaseURL + "/" + id

	resolution, err := h.links.Resolve(id, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrLinkNotFound):
			h.renderErrorPage(c, http.StatusNotFound, errorData{
				Title:    "Link not found",
				Message:  "This link doesn't exist or has already been deleted.",
				ShortURL: shortURL,
			})
		case errors.Is(err, service.ErrLinkExpired):
			h.metrics.LinksExpired.Inc()
			h.renderErrorPage(c, http.StatusGone, errorData{
				Title:    "Link expired",
				Message:  "This link has expired and can no longer open an email draft.",
				ShortURL: shortURL,
			})
		default:
			h.log.Error("link resolution failed", zap.String("id", id), zap.Error(err))
			h.renderErrorPage(c, http.StatusInternalServerError, errorData{
				Title:   "Something went wrong",
				Message: "Please try again later.",
			})
		}
		return
	}

	h.metrics.LinksResolved.Inc()

	if service.IsInAppBrowser(c.Request.UserAgent()) || c.Query("landing") == "1" {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.Status(http.StatusOK)
		if err := landingTemplate.Execute(c.Writer, landingData{
			Mailto:   resolution.MailtoURL,
			ShortURL: resolution.ShortURL,
		}); err != nil {
			h.log.Error("failed to render landing page", zap.Error(err))
		}
		return
	}

	c.Redirect(http.StatusFound, resolution.MailtoURL)
}

func (h *Handler) renderErrorPage(c *gin.Context, status int, data errorData) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if err := errorTemplate.Execute(c.Writer, data); err != nil {
		h.log.Error("failed to render error page", zap.Error(err))
	}
}
