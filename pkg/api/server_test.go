package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/bbsync/pkg/desktop"
	"github.com/ssargent/bbsync/pkg/logging"
	"github.com/ssargent/bbsync/pkg/record"
	"github.com/ssargent/bbsync/pkg/sync"
)

func newTestServer(t *testing.T, config ServerConfig) (*Server, *desktop.Device) {
	t.Helper()

	dev, err := desktop.NewDevice(desktop.NewMemoryStore(), nil)
	require.NoError(t, err)
	engine := sync.NewEngine(dev, t.TempDir(), logging.Discard())
	return NewServer(dev, engine, config, NewMetrics(prometheus.NewRegistry()), logging.Discard()), dev
}

func TestStartServerShutdown(t *testing.T) {
	server, _ := newTestServer(t, ServerConfig{Bind: "127.0.0.1", Port: 0, APIKey: testKey})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- StartServer(ctx, server) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestStartServerBadAddress(t *testing.T) {
	server, _ := newTestServer(t, ServerConfig{Bind: "256.0.0.1", Port: 1, APIKey: testKey})

	err := StartServer(context.Background(), server)
	assert.Error(t, err)
}

func TestMetricsEndpointUnprotected(t *testing.T) {
	server, _ := newTestServer(t, ServerConfig{APIKey: testKey})
	h := NewRouter(server)

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	server, _ := newTestServer(t, ServerConfig{APIKey: testKey})
	h := NewRouter(server)

	req := httptest.NewRequest("OPTIONS", "/api/v1/health", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", "GET")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsUpdater(t *testing.T) {
	server, dev := newTestServer(t, ServerConfig{APIKey: testKey})
	_, err := dev.Put(context.Background(), &record.Memo{Title: "counted"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		server.startMetricsUpdater(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		g, err := server.metrics.deviceRecordsTotal.GetMetricWithLabelValues(record.MemoDBName)
		if err != nil {
			return false
		}
		return testutil.ToFloat64(g) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
