package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen/lumen/pkg/decode"
	"github.com/lumen/lumen/pkg/dispatch"
	"github.com/lumen/lumen/pkg/fetch"
	"github.com/lumen/lumen/pkg/logger"
	"github.com/lumen/lumen/pkg/metrics"
)

func testDeps(t *testing.T) Deps {
	t.Helper()

	loop := dispatch.NewLoop()

	fcfg := fetch.DefaultConfig()
	fcfg.SpoolDir = t.TempDir()
	fr := fetch.New(fcfg, loop)
	fr.Start()
	t.Cleanup(fr.Stop)

	dr := decode.New(loop)
	dr.Start()
	t.Cleanup(dr.Stop)

	return Deps{
		Fetch:   fr,
		Decode:  dr,
		Metrics: metrics.NewManager(metrics.DefaultConfig()).Handler(),
	}
}

func get(t *testing.T, router http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	router := NewRouter(testDeps(t))

	w := get(t, router, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestRouter_Version(t *testing.T) {
	router := NewRouter(testDeps(t))

	w := get(t, router, "/version")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "version")
	assert.Contains(t, body, "goVersion")
}

func TestRouter_Stats(t *testing.T) {
	router := NewRouter(testDeps(t))

	w := get(t, router, "/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var body statsPayload
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 0, body.DecodeQueue)
	assert.Equal(t, 0, body.Fetch.Active)
}

func TestRouter_Metrics(t *testing.T) {
	router := NewRouter(testDeps(t))

	w := get(t, router, "/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Body.String())
}

func TestRouter_MetricsDisabled(t *testing.T) {
	deps := testDeps(t)
	deps.Metrics = nil
	router := NewRouter(deps)

	w := get(t, router, "/metrics")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestServer_StartShutdown(t *testing.T) {
	deps := testDeps(t)
	srv := NewServer("127.0.0.1:0", logger.Global(), deps)

	go func() { _ = srv.Start() }()
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, srv.Shutdown(ctx))
}
