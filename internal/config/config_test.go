package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "typesage.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, "127.0.0.1:8000", cfg.Server.Address)
	assert.Equal(t, []string{"*"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "typesage.db", cfg.DB.Path)
	assert.False(t, cfg.Oracle.Enabled)
	assert.Equal(t, "http://localhost:11434", cfg.Oracle.BaseURL)
	assert.Equal(t, "qwen2.5-coder:7b", cfg.Oracle.Model)
	assert.Equal(t, 60*time.Second, cfg.Oracle.Timeout)
	assert.Equal(t, 1.0, cfg.Oracle.RequestsPerSec)
	assert.Equal(t, "localhost:4317", cfg.Tracing.Endpoint)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
version = 1

[server]
address = "0.0.0.0:9090"
cors_origins = ["http://app.local"]

[db]
path = "/tmp/custom.db"

[oracle]
enabled = true
model = "llama3:8b"
requests_per_sec = 2.5

[annotate]
skip_names = ["_*", "test_*"]

[tracing]
enabled = true
endpoint = "collector:4317"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Address)
	assert.Equal(t, []string{"http://app.local"}, cfg.Server.CORSOrigins)
	assert.Equal(t, "/tmp/custom.db", cfg.DB.Path)
	assert.True(t, cfg.Oracle.Enabled)
	assert.Equal(t, "llama3:8b", cfg.Oracle.Model)
	assert.Equal(t, 2.5, cfg.Oracle.RequestsPerSec)
	assert.True(t, cfg.Tracing.Enabled)
	assert.Equal(t, "collector:4317", cfg.Tracing.Endpoint)

	// Unset fields still get defaults.
	assert.Equal(t, "http://localhost:11434", cfg.Oracle.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.Oracle.Timeout)
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	path := writeConfig(t, "version = 2\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported config version 2")
}

func TestLoadRejectsMalformedTOML(t *testing.T) {
	path := writeConfig(t, "version = [broken\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsBadSkipGlob(t *testing.T) {
	path := writeConfig(t, "[annotate]\nskip_names = [\"[\"]\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "skip_names")
}

func TestSkipGlobsCompile(t *testing.T) {
	cfg := &Config{Annotate: Annotate{SkipNames: []string{"_*", " ", "test_*"}}}
	globs, err := cfg.SkipGlobs()
	require.NoError(t, err)
	require.Len(t, globs, 2)

	assert.True(t, globs[0].Match("_private"))
	assert.False(t, globs[0].Match("public"))
	assert.True(t, globs[1].Match("test_helper"))
}

func TestWatcherReload(t *testing.T) {
	path := writeConfig(t, "[annotate]\nskip_names = [\"_*\"]\n")

	reloaded := make(chan *Config, 1)
	w := NewWatcher(path, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("[annotate]\nskip_names = [\"tmp_*\"]\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, []string{"tmp_*"}, cfg.Annotate.SkipNames)
	case <-time.After(3 * time.Second):
		t.Fatal("config reload never fired")
	}
}
