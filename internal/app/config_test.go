package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	require.Equal(t, ":5000", cfg.Addr)
	require.Equal(t, "uploads", cfg.UploadDir)
	require.Equal(t, "compressed_videos", cfg.VideoDir)
	require.Equal(t, int64(100<<20), cfg.MaxUploadBytes)
	require.Equal(t, int64(2), cfg.TranscodeWorkers)
	require.Equal(t, Duration(10*time.Minute), cfg.TranscodeTimeout)
	require.Equal(t, "*", cfg.AllowedOrigin)
}

func TestLoadServerConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9999"
upload_dir: /data/uploads
transcode_workers: 4
transcode_timeout: 2m
log_level: debug
`), 0o644))

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	require.Equal(t, ":9999", cfg.Addr)
	require.Equal(t, "/data/uploads", cfg.UploadDir)
	require.Equal(t, int64(4), cfg.TranscodeWorkers)
	require.Equal(t, Duration(2*time.Minute), cfg.TranscodeTimeout)
	require.Equal(t, "debug", cfg.LogLevel)
	// untouched keys keep their defaults.
	require.Equal(t, "compressed_videos", cfg.VideoDir)
}

func TestLoadServerConfigMissingFile(t *testing.T) {
	_, err := LoadServerConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("addr: \":9999\"\n"), 0o644))

	t.Setenv("MEDIACHAT_ADDR", ":7777")
	t.Setenv("MEDIACHAT_MAX_UPLOAD_BYTES", "1024")
	t.Setenv("MEDIACHAT_TRANSCODE_WORKERS", "8")

	cfg, err := LoadServerConfig(path)
	require.NoError(t, err)
	require.Equal(t, ":7777", cfg.Addr)
	require.Equal(t, int64(1024), cfg.MaxUploadBytes)
	require.Equal(t, int64(8), cfg.TranscodeWorkers)
}

func TestEnvIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("MEDIACHAT_MAX_UPLOAD_BYTES", "not-a-number")
	t.Setenv("MEDIACHAT_TRANSCODE_WORKERS", "-3")

	cfg, err := LoadServerConfig("")
	require.NoError(t, err)
	require.Equal(t, int64(100<<20), cfg.MaxUploadBytes)
	require.Equal(t, int64(2), cfg.TranscodeWorkers)
}
