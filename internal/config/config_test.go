package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tamima/evoucher/internal/voucher"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// chdir runs the test from an empty directory so no .env file is picked up
func chdir(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { os.Chdir(wd) })
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "data/evoucher.db", cfg.Database.Path)
	assert.Equal(t, voucher.DefaultWorkers, cfg.Voucher.Workers)
	assert.Equal(t, voucher.DefaultArchiveName, cfg.Voucher.ArchiveName)
	assert.Equal(t, int64(20), cfg.Voucher.MaxUploadMB)
	assert.Equal(t, 96.0, cfg.Voucher.PreviewDPI)
	assert.Equal(t, "json", cfg.Logger.Format)
}

func TestLoad_ShippedConfig(t *testing.T) {
	path, err := filepath.Abs(filepath.Join("..", "..", "configs", "config.yaml"))
	require.NoError(t, err)
	chdir(t)

	cfg, err := Load(path)
	require.NoError(t, err)

	theme, err := cfg.Voucher.Theme.Build()
	require.NoError(t, err)
	assert.Equal(t, voucher.DefaultTheme(), theme)
}

func TestLoad_FileAndEnvironment(t *testing.T) {
	chdir(t)
	path := writeConfig(t, `
server:
  port: 9090
voucher:
  workers: 2
  archive_name: batch.zip
  theme:
    title: E-VOUCHER TEST
    accent_color: "#D4AF37"
logger:
  format: console
`)
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("DATABASE_PATH", "/tmp/runs.db")
	t.Setenv("VOUCHER_DEFAULT_LOGO", "/srv/logo.png")
	t.Setenv("VOUCHER_MAX_RECORDS", "10")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "/tmp/runs.db", cfg.Database.Path)
	assert.Equal(t, "/srv/logo.png", cfg.Voucher.DefaultLogoPath)
	assert.Equal(t, 10, cfg.Voucher.MaxRecords)
	assert.Equal(t, 2, cfg.Voucher.Workers)
	assert.Equal(t, "batch.zip", cfg.Voucher.ArchiveName)

	theme, err := cfg.Voucher.Theme.Build()
	require.NoError(t, err)
	assert.Equal(t, "E-VOUCHER TEST", theme.Title)
	assert.Equal(t, voucher.RGB{R: 0xD4, G: 0xAF, B: 0x37}, theme.Accent)
	assert.Equal(t, voucher.DefaultTheme().Subtitle, theme.Subtitle)
}

func TestLoad_DotEnv(t *testing.T) {
	chdir(t)
	require.NoError(t, os.WriteFile(".env", []byte("VOUCHER_WORKERS=3\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("VOUCHER_WORKERS") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Voucher.Workers)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"workers", "voucher:\n  workers: 0\n", "voucher.workers"},
		{"archive name", "voucher:\n  archive_name: vouchers.rar\n", "voucher.archive_name"},
		{"upload limit", "voucher:\n  max_upload_mb: 0\n", "voucher.max_upload_mb"},
		{"colour", "voucher:\n  theme:\n    accent_color: blue\n", "accent_color"},
		{"label count", "voucher:\n  theme:\n    labels: [a, b]\n", "labels"},
		{"unrenderable title", "voucher:\n  theme:\n    title: 电子券\n", "voucher.theme"},
		{"log format", "logger:\n  format: xml\n", "logger.format"},
		{"port", "server:\n  port: 70000\n", "server.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdir(t)
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	chdir(t)
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
