package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domu-platform/domu/internal/config"
	"github.com/domu-platform/domu/internal/platform/filestore"
)

func TestNewWiresDefaults(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	files, err := filestore.NewLocal(t.TempDir(), "http://localhost:7000/files", time.Minute, "secret")
	require.NoError(t, err)

	application, err := New(Stores{}, Dependencies{Config: cfg, Files: files}, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"chat-hub", "jobs-scheduler"}, application.Services())
	assert.NotNil(t, application.Auth)
	assert.NotNil(t, application.Library)
	assert.Same(t, cfg, application.Config)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, application.Start(ctx))
	require.NoError(t, application.Stop(ctx))
}
