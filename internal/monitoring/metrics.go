// Package monitoring 提供 Prometheus 指标。
package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 短链业务指标
	LinksCreated     prometheus.Counter
	LinksResolved    prometheus.Counter
	LinksExpired     prometheus.Counter
	LinksRejected    *prometheus.CounterVec
	CleanupDeleted   prometheus.Counter
	CleanupRunsTotal prometheus.Counter
}

// NewMetrics 创建监控指标（promauto 自动注册到默认 registry）
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailtolinker_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailtolinker_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		LinksCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailtolinker_links_created_total",
			Help: "Total number of links created",
		}),
		LinksResolved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailtolinker_links_resolved_total",
			Help: "Total number of successful link resolutions",
		}),
		LinksExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailtolinker_links_expired_total",
			Help: "Total number of resolutions hitting an expired link",
		}),
		LinksRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailtolinker_links_rejected_total",
				Help: "Total number of rejected creation attempts",
			},
			[]string{"reason"},
		),
		CleanupDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailtolinker_cleanup_deleted_total",
			Help: "Total number of rows removed by the cleanup scheduler",
		}),
		CleanupRunsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mailtolinker_cleanup_runs_total",
			Help: "Total number of cleanup passes",
		}),
	}
}

// HTTPMetrics 记录请求量与时延的 gin 中间件
func (m *Metrics) HTTPMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			// NoRoute 上的短链解析没有注册路径模板
			endpoint = "/:id"
		}

		m.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, endpoint).
			Observe(time.Since(start).Seconds())
	}
}
