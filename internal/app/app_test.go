package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/geolens/engine/internal/config"
	jwtpkg "github.com/geolens/engine/internal/pkg/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	mr := miniredis.RunT(t)
	yml := fmt.Sprintf(`env: production
jwt_secret: test-secret
database:
  driver: sqlite
  path: %s
redis:
  url: redis://%s
schedule:
  enable: true
  interval: 24h
`, filepath.Join(t.TempDir(), "geo.db"), mr.Addr())
	cfg, err := config.Parse([]byte(yml))
	require.NoError(t, err)

	a, err := New(nil, cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = a.Shutdown(ctx)
	})
	return a
}

func serve(a *App, method, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	a.Router().ServeHTTP(w, req)
	return w
}

func TestAppRoutes(t *testing.T) {
	a := newTestApp(t)

	w := serve(a, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":true`)
	assert.Contains(t, w.Body.String(), "scheduled_prompt_runs")
	assert.Contains(t, w.Body.String(), "cleanup_task_records")

	assert.Equal(t, http.StatusUnauthorized, serve(a, http.MethodGet, "/api/v1/tasks", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(a, http.MethodGet, "/api/v1/nope", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(a, http.MethodDelete, "/api/v1/health", "").Code)

	token, err := jwtpkg.Sign("ops", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, serve(a, http.MethodGet, "/api/v1/tasks", token).Code)
	assert.Equal(t, http.StatusNotFound, serve(a, http.MethodGet, "/api/v1/tasks/missing", token).Code)
	assert.Equal(t, http.StatusOK, serve(a, http.MethodGet, "/api/v1/cron-task", token).Code)
	assert.Equal(t, http.StatusNotFound, serve(a, http.MethodGet, "/api/v1/domains/missing/prompt-runs/status", token).Code)
}

func TestScheduledProvidersDefaultsToConfigured(t *testing.T) {
	a := newTestApp(t)
	assert.Empty(t, a.scheduledProviders(a.logger))

	a.cfg.Schedule.Providers = []string{"openai", "bard", "xai"}
	ids := a.scheduledProviders(a.logger)
	require.Len(t, ids, 2)
	assert.EqualValues(t, "chatgpt", ids[0])
	assert.EqualValues(t, "grok", ids[1])
}

func TestMatchOriginPattern(t *testing.T) {
	cases := []struct {
		pattern, origin string
		want            bool
	}{
		{"app.geolens.io", "https://app.geolens.io", true},
		{"*.geolens.io", "https://eu.geolens.io", true},
		{"*.geolens.io", "https://geolens.io.evil.com", false},
		{"localhost:*", "http://localhost:5173", true},
		{"APP.geolens.io", "https://app.GEOLENS.io", true},
		{"", "https://app.geolens.io", false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, matchOriginPattern(tc.pattern, extractOriginHost(tc.origin)), tc.pattern+" "+tc.origin)
	}
}

func TestParseTimezoneLocation(t *testing.T) {
	loc, err := parseTimezoneLocation("+05:30")
	require.NoError(t, err)
	_, offset := time.Date(2026, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 5*3600+30*60, offset)

	_, err = parseTimezoneLocation("Mars/Olympus")
	assert.Error(t, err)
}
