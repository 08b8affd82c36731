package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workdesk/workdesk/internal/config"
	"github.com/workdesk/workdesk/internal/storage"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Setenv("DEV_MODE", "true")
	os.Exit(m.Run())
}

func testRouterConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Auth.ClientKeys.Prefix = "wdk_"
	cfg.Auth.ClientKeys.LockTimeout = 30 * time.Minute
	cfg.Auth.ClientKeys.SweepInterval = 5 * time.Minute
	cfg.Auth.Sessions.AdminTTL = 24 * time.Hour
	cfg.Auth.Sessions.ClientTTL = 12 * time.Hour
	cfg.Storage.DefaultBackend = "local"
	cfg.Storage.Local.BasePath = t.TempDir()
	cfg.Storage.MaxUploadBytes = 1 << 20
	cfg.Security.CORS.AllowedOrigins = []string{"*"}
	return cfg
}

// ---
// Router wiring
// ---

func TestNewRouter_HealthEndpoint(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	router, bg := NewRouter(testRouterConfig(t), db)
	defer bg.Shutdown()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestNewRouter_AuthenticatedRoutesRejectAnonymous(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	router, bg := NewRouter(testRouterConfig(t), db)
	defer bg.Shutdown()

	paths := []string{
		"/api/v1/projects",
		"/api/v1/invoices",
		"/api/v1/dashboard",
		"/api/v1/admin/client-keys",
	}
	for _, path := range paths {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code, "expected 401 for %s", path)
	}
}

func TestNewRouter_UnknownRoute(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	router, bg := NewRouter(testRouterConfig(t), db)
	defer bg.Shutdown()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNewRouter_OIDCRoutesAbsentWhenDisabled(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	router, bg := NewRouter(testRouterConfig(t), db)
	defer bg.Shutdown()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/oidc/login", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ---
// Probe handlers
// ---

func TestHealthCheck_DatabaseDown(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	r := gin.New()
	r.GET("/health", healthCheckHandler(db))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "unhealthy")
}

// brokenStorage fails every probe so readiness can be driven to 503.
type brokenStorage struct{}

func (brokenStorage) Upload(ctx context.Context, path string, r io.Reader, size int64) (*storage.UploadResult, error) {
	return nil, errors.New("storage offline")
}

func (brokenStorage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	return nil, errors.New("storage offline")
}

func (brokenStorage) Delete(ctx context.Context, path string) error {
	return errors.New("storage offline")
}

func (brokenStorage) GetURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	return "", errors.New("storage offline")
}

func (brokenStorage) Exists(ctx context.Context, path string) (bool, error) {
	return false, errors.New("storage offline")
}

var _ storage.Storage = brokenStorage{}

func TestReadiness_StorageDown(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	r := gin.New()
	r.GET("/ready", readinessHandler(db, brokenStorage{}))

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "storage backend not ready")
}

func TestVersionEndpoint(t *testing.T) {
	r := gin.New()
	r.GET("/version", versionHandler())

	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"api_version":"v1"`)
}
