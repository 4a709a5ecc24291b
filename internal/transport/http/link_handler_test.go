package httptransport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mohsenkhakbazan/mailto-linker/internal/config"
	"github.com/mohsenkhakbazan/mailto-linker/internal/domain"
	"github.com/mohsenkhakbazan/mailto-linker/internal/middleware"
	"github.com/mohsenkhakbazan/mailto-linker/internal/monitoring"
	"github.com/mohsenkhakbazan/mailto-linker/internal/service"
	"github.com/mohsenkhakbazan/mailto-linker/internal/storage/memory"
)

// promauto registers into the default registry; build the metrics once
// for the whole test package to avoid duplicate collector panics.
var (
	testMetrics     *monitoring.Metrics
	testMetricsOnce sync.Once
)

func getTestMetrics() *monitoring.Metrics {
	testMetricsOnce.Do(func() {
		testMetrics = monitoring.NewMetrics()
	})
	return testMetrics
}

func baseConfig() *config.Config {
	return &config.Config{
		Links: config.LinkConfig{
			PublicBaseURL:  "http://short.test",
			IDLength:       8,
			AllowedTTLDays: map[int]struct{}{7: {}, 30: {}, 90: {}},
			MaxTotalLinks:  1000,
			IPDailyLimit:   1000,
		},
		Limits: config.LimitsConfig{
			MaxSubjectChars: 200,
			MaxBodyChars:    10000,
			MaxToRecipients: 100,
			MaxCcRecipients: 100,
			MaxBodyBytes:    64 * 1024,
		},
		CORS: config.CORSConfig{AllowedOrigins: []string{"*"}},
	}
}

type routerOption func(*RouterDependencies)

func newTestRouter(t *testing.T, store *memory.Store, cfg *config.Config, opts ...routerOption) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	quota := service.NewQuotaEnforcer(store, store, cfg.Links.MaxTotalLinks, cfg.Links.IPDailyLimit)
	links := service.NewLinkService(store, quota, cfg.CreateLimits(), cfg.Links.PublicBaseURL, cfg.Links.IDLength, zap.NewNop())

	deps := RouterDependencies{
		Config:      cfg,
		LinkService: links,
		Metrics:     getTestMetrics(),
		Logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return NewRouter(deps)
}

func createBody(t *testing.T, to []string, ttl int) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(map[string]interface{}{
		"to":      to,
		"cc":      []string{},
		"subject": "Hi there",
		"body":    "line1\nline2",
		"ttlDays": ttl,
	})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func doCreate(router *gin.Engine, body *bytes.Reader, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/create", body)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, memory.NewStore(), baseConfig())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestCreateLink_Success(t *testing.T) {
	store := memory.NewStore()
	router := newTestRouter(t, store, baseConfig())

	w := doCreate(router, createBody(t, []string{"a@b.com"}, 7), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var res struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Len(t, res.ID, 8)
	assert.Equal(t, "http://short.test/"+res.ID, res.URL)

	link, err := store.GetLink(res.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7)*86400000, link.ExpiresAt-link.CreatedAt)
}

func TestCreateLink_ValidationFailure(t *testing.T) {
	router := newTestRouter(t, memory.NewStore(), baseConfig())

	w := doCreate(router, createBody(t, []string{}, 14), nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var res struct {
		Error   string   `json:"error"`
		Details []string `json:"details"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "Validation failed", res.Error)
	assert.Contains(t, res.Details, "Recipient is required.")
	assert.Contains(t, res.Details, "Invalid expiration. Allowed: 7, 30, 90 days.")
}

func TestCreateLink_InvalidJSON(t *testing.T) {
	router := newTestRouter(t, memory.NewStore(), baseConfig())

	req := httptest.NewRequest(http.MethodPost, "/api/create", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Validation failed")
}

func TestCreateLink_DailyQuota(t *testing.T) {
	cfg := baseConfig()
	cfg.Links.IPDailyLimit = 1
	router := newTestRouter(t, memory.NewStore(), cfg)

	w := doCreate(router, createBody(t, []string{"a@b.com"}, 7), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doCreate(router, createBody(t, []string{"a@b.com"}, 7), nil)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Daily limit reached")
	assert.Contains(t, w.Body.String(), "up to 1 link creations per IP per day")
}

func TestCreateLink_GlobalCapacity(t *testing.T) {
	cfg := baseConfig()
	cfg.Links.MaxTotalLinks = 0
	store := memory.NewStore()
	router := newTestRouter(t, store, cfg)

	w := doCreate(router, createBody(t, []string{"a@b.com"}, 7), nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "Service temporarily unavailable")

	count, _ := store.CountLinks()
	assert.EqualValues(t, 0, count)
}

func TestCreateLink_APIKeyGate(t *testing.T) {
	cfg := baseConfig()
	cfg.APIKey = "sekrit"
	router := newTestRouter(t, memory.NewStore(), cfg)

	w := doCreate(router, createBody(t, []string{"a@b.com"}, 7), nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doCreate(router, createBody(t, []string{"a@b.com"}, 7), map[string]string{"X-API-Key": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doCreate(router, createBody(t, []string{"a@b.com"}, 7), map[string]string{"X-API-Key": "sekrit"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateLink_BodySizeLimit(t *testing.T) {
	cfg := baseConfig()
	cfg.Limits.MaxBodyBytes = 16
	router := newTestRouter(t, memory.NewStore(), cfg)

	w := doCreate(router, createBody(t, []string{"a@b.com"}, 7), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestCreateLink_RateLimited(t *testing.T) {
	cfg := baseConfig()
	limiter := middleware.NewMemoryRateLimiter(time.Minute, 2)
	router := newTestRouter(t, memory.NewStore(), cfg, func(deps *RouterDependencies) {
		deps.RateLimiter = limiter
	})

	for i := 0; i < 2; i++ {
		w := doCreate(router, createBody(t, []string{"a@b.com"}, 7), nil)
		require.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
	}

	w := doCreate(router, createBody(t, []string{"a@b.com"}, 7), nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "Too many requests")
}

func TestResolve_RedirectFastPath(t *testing.T) {
	store := memory.NewStore()
	router := newTestRouter(t, store, baseConfig())

	w := doCreate(router, createBody(t, []string{"a@b.com"}, 7), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	req := httptest.NewRequest(http.MethodGet, "/"+created.ID, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 Safari/605.1.15")
	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, req)

	assert.Equal(t, http.StatusFound, rw.Code)
	assert.Equal(t, "mailto:a@b.com?subject=Hi%20there&body=line1%0D%0Aline2", rw.Header().Get("Location"))

	link, err := store.GetLink(created.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, link.Hits)
}

func TestResolve_LandingForInAppBrowser(t *testing.T) {
	router := newTestRouter(t, memory.NewStore(), baseConfig())

	w := doCreate(router, createBody(t, []string{"a@b.com"}, 7), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	req := httptest.NewRequest(http.MethodGet, "/"+created.ID, nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 ... WhatsApp/2.23")
	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, req)

	assert.Equal(t, http.StatusOK, rw.Code)
	assert.Contains(t, rw.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rw.Body.String(), "Open email")
	assert.Contains(t, rw.Body.String(), "http://short.test/"+created.ID)
}

func TestResolve_LandingQueryOverride(t *testing.T) {
	router := newTestRouter(t, memory.NewStore(), baseConfig())

	w := doCreate(router, createBody(t, []string{"a@b.com"}, 7), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	req := httptest.NewRequest(http.MethodGet, "/"+created.ID+"?landing=1", nil)
	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, req)

	assert.Equal(t, http.StatusOK, rw.Code)
	assert.Contains(t, rw.Body.String(), "Opening your email app")
}

func TestResolve_NotFoundAndBadShape(t *testing.T) {
	router := newTestRouter(t, memory.NewStore(), baseConfig())

	for _, path := range []string{"/missing1", "/ab", "/bad-id!!"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rw := httptest.NewRecorder()
		router.ServeHTTP(rw, req)

		assert.Equal(t, http.StatusNotFound, rw.Code, "path %s", path)
		assert.Contains(t, rw.Header().Get("Content-Type"), "text/html")
		assert.Contains(t, rw.Body.String(), "Link not found")
	}
}

func TestResolve_ExpiredThenGone(t *testing.T) {
	store := memory.NewStore()
	router := newTestRouter(t, store, baseConfig())

	past := time.Now().Add(-time.Hour).UnixMilli()
	require.NoError(t, store.InsertLink(&domain.Link{
		ID:        "expired1",
		Payload:   domain.MailtoPayload{To: []string{"a@b.com"}},
		CreatedAt: past - 1000,
		ExpiresAt: past,
	}))

	req := httptest.NewRequest(http.MethodGet, "/expired1", nil)
	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, req)
	assert.Equal(t, http.StatusGone, rw.Code)
	assert.Contains(t, rw.Body.String(), "Link expired")

	// the row was lazily deleted, so the second hit is a plain 404
	rw = httptest.NewRecorder()
	router.ServeHTTP(rw, httptest.NewRequest(http.MethodGet, "/expired1", nil))
	assert.Equal(t, http.StatusNotFound, rw.Code)
	assert.Contains(t, rw.Body.String(), "Link not found")
}

func TestNoRoute_MultiSegmentPath(t *testing.T) {
	router := newTestRouter(t, memory.NewStore(), baseConfig())

	req := httptest.NewRequest(http.MethodGet, "/foo/bar", nil)
	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, req)

	assert.Equal(t, http.StatusNotFound, rw.Code)
	assert.JSONEq(t, `{"error":"Not found"}`, rw.Body.String())
}

func TestNoRoute_NonGetMethod(t *testing.T) {
	router := newTestRouter(t, memory.NewStore(), baseConfig())

	req := httptest.NewRequest(http.MethodDelete, "/abcd1234", nil)
	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, req)

	assert.Equal(t, http.StatusNotFound, rw.Code)
	assert.JSONEq(t, `{"error":"Not found"}`, rw.Body.String())
}

func TestSecurityHeadersPresent(t *testing.T) {
	router := newTestRouter(t, memory.NewStore(), baseConfig())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestMetricsEndpoint(t *testing.T) {
	router := newTestRouter(t, memory.NewStore(), baseConfig())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "mailtolinker_http_requests_total")
}

func TestEscapesInterpolatedValues(t *testing.T) {
	store := memory.NewStore()
	router := newTestRouter(t, store, baseConfig())

	// subject with markup must come back escaped inside the landing page
	body, err := json.Marshal(map[string]interface{}{
		"to":      []string{"a@b.com"},
		"subject": `<script>alert(1)</script>`,
		"ttlDays": 7,
	})
	require.NoError(t, err)

	w := doCreate(router, bytes.NewReader(body), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/%s?landing=1", created.ID), nil)
	rw := httptest.NewRecorder()
	router.ServeHTTP(rw, req)

	require.Equal(t, http.StatusOK, rw.Code)
	assert.NotContains(t, rw.Body.String(), "<script>alert(1)</script>")
}
