package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultServerConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultServerConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "/metrics", cfg.Path)
	assert.Equal(t, 5*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
}

func TestServerStartDisabled(t *testing.T) {
	t.Parallel()

	cfg := DefaultServerConfig()
	cfg.Enabled = false
	server := NewServer(cfg)

	err := server.Start()
	assert.NoError(t, err)
	assert.Empty(t, server.Addr())
}

func TestServerStartEnabledServesMetrics(t *testing.T) {
	InitMetrics()

	cfg := ServerConfig{
		Enabled:      true,
		Port:         19092,
		Path:         "/metrics",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	server := NewServer(cfg)

	require.NoError(t, server.Start())
	time.Sleep(100 * time.Millisecond)

	resp, err := http.Get("http://localhost:19092/metrics")
	if err != nil {
		t.Skipf("skipping test: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "aegis_") || strings.Contains(string(body), "go_"))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.Stop(ctx))
}

func TestServerHealthEndpoint(t *testing.T) {
	InitMetrics()

	cfg := ServerConfig{
		Enabled:      true,
		Port:         19093,
		Path:         "/metrics",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	server := NewServer(cfg)

	require.NoError(t, server.Start())
	time.Sleep(100 * time.Millisecond)

	resp, err := http.Get("http://localhost:19093/health")
	if err != nil {
		t.Skipf("skipping test: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.Stop(ctx))
}

func TestServerStopNilServer(t *testing.T) {
	t.Parallel()

	server := NewServer(DefaultServerConfig())
	assert.NoError(t, server.Stop(context.Background()))
}
