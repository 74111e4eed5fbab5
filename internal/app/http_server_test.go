package app

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	healthcheck "github.com/Leonardofps/gomarketplace/internal/health"
	"github.com/Leonardofps/gomarketplace/internal/version"
)

func httpGet(t *testing.T, url string) (int, string) {
	t.Helper()

	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

// waitListening ждёт, пока фоновый сервер начнёт принимать соединения.
func waitListening(t *testing.T, port int) {
	t.Helper()

	require.Eventually(t, func() bool {
		conn, err := net.DialTimeout("tcp", fmt.Sprintf("localhost:%d", port), 50*time.Millisecond)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 2*time.Second, 20*time.Millisecond)
}

func TestStartMetricsServer_Endpoints(t *testing.T) {
	port := findFreePort(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := startMetricsServer(ctx, fmt.Sprintf(":%d", port), log.WithField("test", "metrics"), healthcheck.NewHandler(version.GetVersion()))
	require.NotNil(t, srv)
	waitListening(t, port)

	status, body := httpGet(t, fmt.Sprintf("http://localhost:%d/metrics", port))
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, body)

	for _, path := range []string{"/healthz", "/readyz"} {
		status, _ = httpGet(t, fmt.Sprintf("http://localhost:%d%s", port, path))
		assert.Equal(t, http.StatusOK, status, path)
	}

	status, body = httpGet(t, fmt.Sprintf("http://localhost:%d/livez", port))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body)
}

func TestStartMetricsServer_ReadinessFollowsCartLoad(t *testing.T) {
	port := findFreePort(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var loaded atomic.Bool
	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("cart", healthcheck.NewLoadedChecker("cart", loaded.Load))

	startMetricsServer(ctx, fmt.Sprintf(":%d", port), log.WithField("test", "readiness"), healthHandler)
	waitListening(t, port)

	readyz := fmt.Sprintf("http://localhost:%d/readyz", port)
	status, _ := httpGet(t, readyz)
	assert.Equal(t, http.StatusServiceUnavailable, status)

	loaded.Store(true)
	status, _ = httpGet(t, readyz)
	assert.Equal(t, http.StatusOK, status)

	// liveness не зависит от загрузки корзины
	status, _ = httpGet(t, fmt.Sprintf("http://localhost:%d/livez", port))
	assert.Equal(t, http.StatusOK, status)
}

func TestStartHTTPServer_StopsOnContextCancel(t *testing.T) {
	port := findFreePort(t)
	ctx, cancel := context.WithCancel(context.Background())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/cart", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"products":[]}`))
	})

	srv := startHTTPServer(ctx, "api", fmt.Sprintf(":%d", port), mux, log.WithField("test", "api"))
	require.NotNil(t, srv)
	waitListening(t, port)

	url := fmt.Sprintf("http://localhost:%d/v1/cart", port)
	status, body := httpGet(t, url)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"products":[]}`, body)

	cancel()
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return true
		}
		_ = resp.Body.Close()
		return false
	}, 2*time.Second, 20*time.Millisecond)
}

func TestStartHTTPServer_AddressInUseDoesNotPanic(t *testing.T) {
	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addr := fmt.Sprintf(":%d", listener.Addr().(*net.TCPAddr).Port)
	srv := startHTTPServer(ctx, "api", addr, http.NewServeMux(), log.WithField("test", "busy"))
	assert.NotNil(t, srv)
}

func TestShutdownHTTP_NilServer(_ *testing.T) {
	shutdownHTTP(nil, log.WithField("test", "http-nil"))
}

// findFreePort находит свободный порт для тестов
func findFreePort(t *testing.T) int {
	t.Helper()

	listener, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port
}
