package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points the config file lookup at a temp dir so a developer's
// own config never leaks into tests
func isolate(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	t.Setenv(EnvPrefix+"CONFIG", path)

	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfigWithOverrides(nil)
	require.NoError(t, err)

	assert.Equal(t, "sample_table", cfg.Database.Table)
	assert.Equal(t, "30s", cfg.Database.QueryTimeout)
	assert.InDelta(t, 0.45, cfg.Resolver.Threshold, 1e-9)
	assert.Equal(t, "ngram", cfg.Embedding.Provider)
	assert.Equal(t, 384, cfg.Embedding.Dimensions)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "stderr", cfg.Logging.Output)
	assert.Equal(t, 30*time.Second, cfg.QueryTimeout())
	assert.Equal(t, time.Minute, cfg.EmbeddingTimeout())
}

func TestLoadConfigPrecedence(t *testing.T) {
	path := isolate(t)

	fileContent := `{
		"database": {"path": "/data/from-file.duckdb", "table": "hours"},
		"resolver": {"threshold": 0.6},
		"logging": {"format": "json"}
	}`
	require.NoError(t, os.WriteFile(path, []byte(fileContent), 0600))

	t.Setenv(EnvPrefix+"DB_TABLE", "timesheets")
	t.Setenv(EnvPrefix+"EMBEDDING_PROVIDER", "ollama")

	cfg, err := LoadConfigWithOverrides(map[string]any{
		"threshold": 0.7,
	})
	require.NoError(t, err)

	// file beats defaults
	assert.Equal(t, "/data/from-file.duckdb", cfg.Database.Path)
	assert.Equal(t, "json", cfg.Logging.Format)
	// env beats file
	assert.Equal(t, "timesheets", cfg.Database.Table)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	// flags beat everything
	assert.InDelta(t, 0.7, cfg.Resolver.Threshold, 1e-9)
	// untouched defaults survive
	assert.Equal(t, "30s", cfg.Database.QueryTimeout)
}

func TestLoadConfigZeroThresholdFromFile(t *testing.T) {
	path := isolate(t)
	require.NoError(t, os.WriteFile(path, []byte(`{"resolver": {"threshold": 0}}`), 0600))

	cfg, err := LoadConfigWithOverrides(nil)
	require.NoError(t, err)
	assert.Zero(t, cfg.Resolver.Threshold)

	require.NoError(t, os.WriteFile(path, []byte(`{"resolver": {}}`), 0600))

	cfg, err = LoadConfigWithOverrides(nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.45, cfg.Resolver.Threshold, 1e-9, "an absent threshold keeps the default")
}

func TestFlagOverrides(t *testing.T) {
	isolate(t)

	cfg, err := LoadConfigWithOverrides(map[string]any{
		"db":       "/tmp/x.duckdb",
		"table":    "",
		"debug":    true,
		"embedder": "ngram",
	})
	require.NoError(t, err)

	assert.Equal(t, "/tmp/x.duckdb", cfg.Database.Path)
	assert.Equal(t, "sample_table", cfg.Database.Table, "empty flag values are ignored")
	assert.True(t, cfg.Debug.Enabled)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"bad log level", "LOG_LEVEL", "loud"},
		{"bad log format", "LOG_FORMAT", "xml"},
		{"bad provider", "EMBEDDING_PROVIDER", "faiss"},
		{"bad timeout", "DB_QUERY_TIMEOUT", "soon"},
		{"threshold out of range", "RESOLVER_THRESHOLD", "1.5"},
		{"non positive dims", "EMBEDDING_DIMENSIONS", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			t.Setenv(EnvPrefix+tt.key, tt.val)

			_, err := LoadConfigWithOverrides(nil)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMalformedFile(t *testing.T) {
	path := isolate(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := LoadConfigWithOverrides(nil)
	assert.ErrorContains(t, err, "failed to load config file")
}

func TestSaveConfigRoundTrip(t *testing.T) {
	isolate(t)

	cfg := Default()
	cfg.Database.Table = "saved_table"
	require.NoError(t, SaveConfig(cfg))

	loaded, err := LoadConfigWithOverrides(nil)
	require.NoError(t, err)
	assert.Equal(t, "saved_table", loaded.Database.Table)
	assert.Equal(t, getConfigPath(), Path())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, home, expandPath("~"))
	assert.Equal(t, filepath.Join(home, "a", "b"), expandPath("~/a/b"))
	assert.Equal(t, "/abs/path", expandPath("/abs/path"))
	assert.Equal(t, "~user/x", expandPath("~user/x"))
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()

	cfg := Default()
	cfg.Database.Path = filepath.Join(dir, "db", "timesheet.duckdb")
	cfg.Cache.Enabled = true
	cfg.Cache.Directory = filepath.Join(dir, "cache")

	require.NoError(t, cfg.EnsureDirectories())
	assert.DirExists(t, filepath.Join(dir, "db"))
	assert.DirExists(t, filepath.Join(dir, "cache"))
}
