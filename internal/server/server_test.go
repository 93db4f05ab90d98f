package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"road-orienteer/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.ServerAddr = "127.0.0.1:0"
	cfg.GeocoderURL = "http://127.0.0.1:1"
	return cfg
}

func TestServerStartAndShutdown(t *testing.T) {
	srv, err := New(testConfig(t))
	require.NoError(t, err)

	addr, err := srv.Start()
	require.NoError(t, err)
	assert.NotEqual(t, "127.0.0.1:0", addr)

	resp, err := http.Get("http://" + addr + "/api/v1/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
}

func TestServerFailsOnMissingGraph(t *testing.T) {
	cfg := testConfig(t)
	cfg.GraphFile = cfg.DataDir + "/missing.osm.pbf"

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestRoutes(t *testing.T) {
	srv, err := New(testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { srv.db.Close() })
	handler := srv.httpServer.Handler

	cases := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/api/v1/health", http.StatusOK},
		{http.MethodPost, "/api/v1/health", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v1/graphs", http.StatusOK},
		{http.MethodPut, "/api/v1/graphs", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v1/graphs/", http.StatusNotFound},
		{http.MethodGet, "/api/v1/graphs/missing", http.StatusNotFound},
		{http.MethodGet, "/api/v1/solves", http.StatusOK},
		{http.MethodGet, "/api/v1/solves/missing", http.StatusNotFound},
		{http.MethodGet, "/api/v1/solves/missing/geojson", http.StatusNotFound},
		{http.MethodPost, "/api/v1/solves/missing/geojson", http.StatusMethodNotAllowed},
		{http.MethodDelete, "/api/v1/solves/missing", http.StatusNotFound},
		{http.MethodPatch, "/api/v1/solves/missing", http.StatusMethodNotAllowed},
		{http.MethodOptions, "/api/v1/solves", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, tc.status, w.Code)
		})
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/solves", strings.NewReader(`{"max_distance_meters": 10}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORSMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := corsMiddleware(next)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	r.Header.Set("Origin", "http://localhost:5173")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))

	r = httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	r.Header.Set("Origin", "https://example.com")
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	r = httptest.NewRequest(http.MethodOptions, "/api/v1/solves", nil)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoggingResponseWriterRecordsStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	lrw := &loggingResponseWriter{ResponseWriter: rec, statusCode: http.StatusOK}
	lrw.WriteHeader(http.StatusNotFound)
	assert.Equal(t, http.StatusNotFound, lrw.statusCode)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
