package runtime

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domu-platform/domu/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.LocalDir = t.TempDir()
	cfg.Jobs.Enabled = false
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestApplicationServesHealth(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"chat-hub", "jobs-scheduler"}, a.Services().Services())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Serve(ctx, ln) }()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	cancel()
	require.NoError(t, <-done)
	require.NoError(t, a.Shutdown(context.Background()))
}

func TestNewFailsWhenRedisUnreachable(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.Addr = "127.0.0.1:1"

	_, err := New(context.Background(), cfg, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping")
}

func TestOpenDatabaseRequiresDriverAndDSN(t *testing.T) {
	_, err := OpenDatabase(context.Background(), config.DatabaseConfig{DSN: "postgres://x"})
	assert.Error(t, err)

	_, err = OpenDatabase(context.Background(), config.DatabaseConfig{Driver: "postgres"})
	assert.Error(t, err)
}
