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

// isolate points config lookups at a temp dir and clears overrides
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	for _, key := range []string{"MERGEN_API_KEY", "MERGEN_DB", "MERGEN_AI_ENABLED", "MERGEN_MODEL", "MERGEN_BASE_URL"} {
		t.Setenv(key, "")
	}
	return dir
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.True(t, cfg.AIEnabled)
	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, DefaultRefreshSchedule, cfg.RefreshSchedule)
	assert.Equal(t, 50, cfg.MaxProfileCommands)
	assert.False(t, cfg.HasCredential())
}

func TestLoad_NoFile(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, filepath.Join(dir, "config", "mergen", "config.yaml"), Path())
}

func TestLoad_FileValues(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
db_path: /tmp/h.db
api_key: file-key
ai_enabled: false
model: other-model
timeout: 15s
refresh_schedule: "0 3 * * *"
max_profile_commands: 20
`), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/h.db", cfg.DBPath)
	assert.Equal(t, "file-key", cfg.APIKey)
	assert.False(t, cfg.AIEnabled)
	assert.Equal(t, "other-model", cfg.Model)
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL, "unset fields keep defaults")
	assert.Equal(t, 15*time.Second, cfg.Timeout)
	assert.Equal(t, "0 3 * * *", cfg.RefreshSchedule)
	assert.Equal(t, 20, cfg.MaxProfileCommands)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout: [unterminated"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("api_key: file-key\nai_enabled: true\n"), 0600))

	// .env supplies values the environment does not
	require.NoError(t, os.WriteFile(filepath.Join(dir, EnvFile), []byte("MERGEN_API_KEY=dotenv-key\nMERGEN_DB=/dotenv.db\n"), 0600))
	t.Setenv("MERGEN_DB", "/env.db")
	t.Setenv("MERGEN_AI_ENABLED", "false")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dotenv-key", cfg.APIKey, ".env overrides the file")
	assert.Equal(t, "/env.db", cfg.DBPath, "environment overrides .env")
	assert.False(t, cfg.AIEnabled)
	assert.Empty(t, os.Getenv("MERGEN_API_KEY"), ".env must not leak into the process environment")
}

func TestLoadFile_IgnoresEnvironment(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: file-model\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, EnvFile), []byte("MERGEN_API_KEY=dotenv-key\n"), 0600))
	t.Setenv("MERGEN_MODEL", "env-model")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "file-model", cfg.Model)
	assert.False(t, cfg.HasCredential())
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
}

func TestSave_RoundTrip(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.APIKey = "secret"
	cfg.Timeout = 90 * time.Second
	require.NoError(t, Save(cfg, path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSetAndGet(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Set("ai_enabled", "false"))
	require.NoError(t, cfg.Set("timeout", "2m"))
	require.NoError(t, cfg.Set("max_profile_commands", "10"))
	require.NoError(t, cfg.Set("api_key", "k"))

	assert.False(t, cfg.AIEnabled)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	assert.Equal(t, 10, cfg.MaxProfileCommands)

	v, err := cfg.Get("api_key")
	require.NoError(t, err)
	assert.Equal(t, "********", v, "credential is never displayed")

	v, err = cfg.Get("timeout")
	require.NoError(t, err)
	assert.Equal(t, "2m0s", v)

	for _, key := range Keys {
		_, err := cfg.Get(key)
		assert.NoError(t, err, key)
	}

	assert.Error(t, cfg.Set("ai_enabled", "perhaps"))
	assert.Error(t, cfg.Set("timeout", "-1s"))
	assert.Error(t, cfg.Set("max_profile_commands", "0"))
	assert.Error(t, cfg.Set("nope", "x"))
	_, err = cfg.Get("nope")
	assert.Error(t, err)
}

func TestWatch_PublishesReloadedConfig(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, Save(DefaultConfig(), path))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan *Config, 8)
	require.NoError(t, Watch(ctx, path, nil, func(cfg *Config) { changes <- cfg }))

	updated := DefaultConfig()
	updated.AIEnabled = false
	updated.Model = "hot-reloaded"
	require.NoError(t, Save(updated, path))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			if cfg.Model == "hot-reloaded" {
				assert.False(t, cfg.AIEnabled)
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for config reload")
		}
	}
}
