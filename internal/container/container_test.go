package container

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tamima/evoucher/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	dir := t.TempDir()
	cfg.Database.Path = filepath.Join(dir, "runs.db")
	cfg.Voucher.OutputDir = filepath.Join(dir, "out")
	return cfg
}

func TestNewContainer(t *testing.T) {
	logger := zap.NewNop()

	_, err := NewContainer(nil, Options{}, logger)
	assert.Error(t, err)

	_, err = NewContainer(testConfig(t), Options{}, nil)
	assert.Error(t, err)

	cfg := testConfig(t)
	cfg.Voucher.Workers = 0
	_, err = NewContainer(cfg, Options{}, logger)
	assert.ErrorContains(t, err, "invalid config")
}

func TestContainer_Lifecycle(t *testing.T) {
	c, err := NewContainer(testConfig(t), Options{}, zap.NewNop())
	require.NoError(t, err)
	assert.False(t, c.Ready())

	health := c.Health(context.Background())
	assert.False(t, health.Overall)
	assert.Equal(t, "not initialized", health.Components["database"].Message)

	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.Ready())
	assert.NotNil(t, c.Service())
	assert.NotNil(t, c.Runs())
	assert.NotNil(t, c.FileStorage())
	assert.NotNil(t, c.FolderManager())

	health = c.Health(context.Background())
	assert.True(t, health.Overall)
	assert.True(t, health.Components["database"].Healthy)
	assert.NoError(t, c.Check(context.Background()))

	runs, err := c.Runs().ListRecent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)

	assert.Error(t, c.Start(context.Background()), "second start")

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close(), "second close")
	assert.Error(t, c.Start(context.Background()), "start after close")
	assert.ErrorContains(t, c.Check(context.Background()), "database: not initialized")
}

func TestContainer_WithoutLedger(t *testing.T) {
	cfg := testConfig(t)
	c, err := NewContainer(cfg, Options{DisableLedger: true, OutputDir: t.TempDir()}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	defer c.Close()

	assert.Nil(t, c.Runs())
	assert.NoFileExists(t, cfg.Database.Path)
	assert.NotEqual(t, cfg.Voucher.OutputDir, c.OutputDir())
	assert.Equal(t, c.OutputDir(), c.FileStorage().BaseDir())

	health := c.Health(context.Background())
	assert.True(t, health.Overall)
	assert.Equal(t, "disabled", health.Components["database"].Message)
}

func TestContainer_StartCancelled(t *testing.T) {
	c, err := NewContainer(testConfig(t), Options{}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Start(ctx), context.Canceled)
	assert.False(t, c.Ready())
}

func TestProvidePipeline_BadTheme(t *testing.T) {
	cfg := testConfig(t)
	cfg.Voucher.Theme.AccentColor = "not-a-color"

	_, err := ProvidePipeline(&cfg.Voucher, 0, zap.NewNop())
	assert.Error(t, err)
}
