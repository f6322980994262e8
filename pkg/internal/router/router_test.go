package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/yeisme/fastlink/pkg/configs"
	"github.com/yeisme/fastlink/pkg/internal/handle"
)

func newOrigin(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := configs.Defaults()
	cfg.Auth.Enabled = true
	cfg.Auth.AdminToken = "s3cret"
	cfg.RateLimit.Enabled = false

	e := gin.New()
	RegisterOrigin(e, &cfg, OriginDeps{Handlers: handle.New(nil, nil)})

	return e
}

func TestOriginRoutes(t *testing.T) {
	e := newOrigin(t)

	want := map[string]bool{
		"GET /dl/:id":                        true,
		"HEAD /dl/:id":                       true,
		"GET /dl/:id/*filename":              true,
		"GET /file/:id/info":                 true,
		"GET /health":                        true,
		"GET /health/mq":                     true,
		"GET /admin/api/files":               true,
		"DELETE /admin/api/files/:id":        true,
		"POST /admin/api/uploads":            true,
		"GET /admin/api/uploads/:pending_id": true,
		"GET /admin/api/scheduler/jobs":      true,
	}

	for _, r := range e.Routes() {
		delete(want, r.Method+" "+r.Path)
	}

	assert.Empty(t, want)
}

func TestSwaggerOnlyInDebug(t *testing.T) {
	e := newOrigin(t)

	for _, r := range e.Routes() {
		assert.NotEqual(t, "/swagger/*any", r.Path)
	}

	cfg := configs.Defaults()
	cfg.Server.Debug = true
	cfg.RateLimit.Enabled = false

	dbg := gin.New()
	RegisterOrigin(dbg, &cfg, OriginDeps{Handlers: handle.New(nil, nil)})

	w := httptest.NewRecorder()
	dbg.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/dl/{id}")
}

func TestAdminRequiresToken(t *testing.T) {
	e := newOrigin(t)

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/api/scheduler/jobs", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"))

	req := httptest.NewRequest(http.MethodGet, "/admin/api/scheduler/jobs", nil)
	req.Header.Set("Authorization", "Bearer s3cret")

	w = httptest.NewRecorder()
	e.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHealthWithoutStorage(t *testing.T) {
	e := newOrigin(t)

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/db", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}
