// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/happypanda/internal/platform/config"
)

/*
TestLoad checks defaults, environment overrides and the .env file.
*/
func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		t.Chdir(t.TempDir())

		cfg, err := config.Load()
		require.NoError(t, err)

		assert.Equal(t, "7006", cfg.ServerPort)
		assert.Equal(t, 5*time.Second, cfg.WebRequestDelay)
		assert.Equal(t, 4, cfg.DownloadWorkers)
		assert.True(t, cfg.IsDevelopment())
		assert.False(t, cfg.S3Enabled())
		assert.False(t, cfg.RarEnabled())
	})

	t.Run("Environment", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("MONITOR_PATHS", "/lib/a;/lib/b")
		t.Setenv("DOWNLOAD_WORKERS", "0")
		t.Setenv("S3_BUCKET", "backups")
		t.Setenv("UNRAR_TOOL_PATH", "unrar")
		t.Setenv("ENVIRONMENT", "production")

		cfg, err := config.Load()
		require.NoError(t, err)

		assert.Equal(t, []string{"/lib/a", "/lib/b"}, cfg.MonitorPaths)
		assert.Equal(t, 1, cfg.DownloadWorkers)
		assert.True(t, cfg.S3Enabled())
		assert.True(t, cfg.RarEnabled())
		assert.False(t, cfg.IsDevelopment())
	})

	t.Run("Dotenv file", func(t *testing.T) {
		dir := t.TempDir()
		t.Chdir(dir)
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("THUMB_WIDTH=300\n"), 0o644))
		t.Cleanup(func() { os.Unsetenv("THUMB_WIDTH") })

		cfg, err := config.Load()
		require.NoError(t, err)
		assert.Equal(t, 300, cfg.ThumbWidth)
	})

	t.Run("Bad value", func(t *testing.T) {
		t.Chdir(t.TempDir())
		t.Setenv("WEB_REQUEST_DELAY", "soon")

		_, err := config.Load()
		assert.Error(t, err)
	})
}

func TestPaths(t *testing.T) {
	cfg := &config.Config{DataDir: "data", DBFile: "happypanda.db"}
	assert.Equal(t, filepath.Join("data", "happypanda.db"), cfg.DBPath())

	abs := filepath.Join(t.TempDir(), "other.db")
	cfg.DBFile = abs
	assert.Equal(t, abs, cfg.DBPath())

	root := t.TempDir()
	cfg = &config.Config{
		DataDir:     filepath.Join(root, "data"),
		TempDir:     filepath.Join(root, "temp"),
		ThumbDir:    filepath.Join(root, "data", "thumbs"),
		DownloadDir: filepath.Join(root, "downloads"),
	}
	require.NoError(t, cfg.EnsureDirs())
	for _, dir := range []string{cfg.DataDir, cfg.TempDir, cfg.ThumbDir, cfg.DownloadDir} {
		assert.DirExists(t, dir)
	}
}
