package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	assert.Equal(t, 9528, cfg.Port)
	assert.Equal(t, 10, cfg.HZ)
	assert.Equal(t, 30*time.Second, cfg.IdleTimeout)
	assert.Equal(t, 300*time.Second, cfg.TCPKeepAlive)
	assert.Equal(t, 10000, cfg.MaxClients)
	assert.Equal(t, 10, cfg.ThreadCount)
	assert.Equal(t, 100, cfg.MaxQueuedTasks)
	assert.Equal(t, 16*1024, cfg.InlineBufferBytes)
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoad_OverlaysFileOntoDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pusher.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 7000\nmaxClients: 50\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, 50, cfg.MaxClients)
	// Untouched fields keep their defaults.
	assert.Equal(t, Defaults().HZ, cfg.HZ)
}

func TestLoad_MissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}

func TestSetSize(t *testing.T) {
	cfg := Config{MaxClients: 1000, FDSetIncrement: 128}
	assert.Equal(t, 1128, cfg.SetSize())
}
