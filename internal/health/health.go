// Package health 基于 heptiolabs/healthcheck 提供存活与就绪探针。
package health

import (
	"net/http"

	"github.com/heptiolabs/healthcheck"

	"github.com/mohsenkhakbazan/mailto-linker/internal/storage"
)

// Checker 健康检查器
type Checker struct {
	handler healthcheck.Handler
}

// NewChecker 创建健康检查器并挂上存储探针
func NewChecker(store storage.Store) *Checker {
	h := healthcheck.NewHandler()
	h.AddReadinessCheck("database", func() error {
		return store.Health()
	})

	return &Checker{handler: h}
}

// LiveEndpoint 存活探针 http.HandlerFunc
func (c *Checker) LiveEndpoint() http.HandlerFunc {
	return c.handler.LiveEndpoint
}

// ReadyEndpoint 就绪探针 http.HandlerFunc
func (c *Checker) ReadyEndpoint() http.HandlerFunc {
	return c.handler.ReadyEndpoint
}
