package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix is prepended to every environment variable the configuration reads
const EnvPrefix = "TIMESHEET_SQL_"

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig  `json:"database"  envPrefix:"DB_"`
	Resolver  ResolverConfig  `json:"resolver"  envPrefix:"RESOLVER_"`
	Embedding EmbeddingConfig `json:"embedding" envPrefix:"EMBEDDING_"`
	Cache     CacheConfig     `json:"cache"     envPrefix:"CACHE_"`
	Logging   LoggingConfig   `json:"logging"   envPrefix:"LOG_"`
	Debug     DebugConfig     `json:"debug"`
}

// DatabaseConfig holds the DuckDB file and table the questions run against
type DatabaseConfig struct {
	Path            string `json:"path"              env:"PATH"`
	Table           string `json:"table"             env:"TABLE"`
	MaxConnections  int    `json:"max_connections"   env:"MAX_CONNECTIONS"`
	MaxIdleConns    int    `json:"max_idle_conns"    env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime string `json:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	QueryTimeout    string `json:"query_timeout"     env:"QUERY_TIMEOUT"`
}

// ResolverConfig tunes entity name resolution
type ResolverConfig struct {
	Threshold float64 `json:"threshold" env:"THRESHOLD"`
}

// EmbeddingConfig selects the provider used to build name indexes
type EmbeddingConfig struct {
	Provider   string `json:"provider"   env:"PROVIDER"` // ngram, ollama
	Model      string `json:"model"      env:"MODEL"`
	Dimensions int    `json:"dimensions" env:"DIMENSIONS"`
	BaseURL    string `json:"base_url"   env:"BASE_URL"`
	Timeout    string `json:"timeout"    env:"TIMEOUT"`
}

// CacheConfig controls the on-disk embedding cache
type CacheConfig struct {
	Enabled   bool   `json:"enabled"   env:"ENABLED"`
	Directory string `json:"directory" env:"DIR"`
	TTLHours  int    `json:"ttl_hours" env:"TTL_HOURS"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `json:"level"  env:"LEVEL"`  // debug, info, warn, error
	Format string `json:"format" env:"FORMAT"` // text, json
	Output string `json:"output" env:"OUTPUT"` // stdout, stderr, file
	File   string `json:"file"   env:"FILE"`   // log file path when output is file
}

// DebugConfig represents debug configuration
type DebugConfig struct {
	Enabled bool `json:"enabled" env:"DEBUG"`
	Verbose bool `json:"verbose" env:"VERBOSE"`
}

// Default returns the built-in configuration. Defaults live in code rather than
// envDefault tags so that file values are not clobbered by the env pass.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:            "~/.local/share/timesheet-sql/timesheet.duckdb",
			Table:           "sample_table",
			MaxConnections:  4,
			MaxIdleConns:    2,
			ConnMaxLifetime: "30m",
			QueryTimeout:    "30s",
		},
		Resolver: ResolverConfig{
			Threshold: 0.45,
		},
		Embedding: EmbeddingConfig{
			Provider:   "ngram",
			Model:      "all-minilm",
			Dimensions: 384,
			BaseURL:    "http://localhost:11434",
			Timeout:    "60s",
		},
		Cache: CacheConfig{
			Enabled:   false,
			Directory: "~/.cache/timesheet-sql",
			TTLHours:  24 * 7,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
			Output: "stderr",
			File:   "~/.config/timesheet-sql/logs/app.log",
		},
	}
}

// LoadConfigWithOverrides loads configuration from defaults, file and
// environment variables, then applies non-empty flag values on top
func LoadConfigWithOverrides(flagOverrides map[string]any) (*Config, error) {
	config := Default()

	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil {
		if err := loadConfigFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if flagOverrides != nil {
		applyFlagOverrides(config, flagOverrides)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func loadConfigFromFile(config *Config, configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var fileConfig Config
	if err := json.Unmarshal(data, &fileConfig); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	mergeConfigs(config, &fileConfig)

	// mergeConfigs skips zero values, but a threshold of 0 is a real setting
	var explicit struct {
		Resolver struct {
			Threshold *float64 `json:"threshold"`
		} `json:"resolver"`
	}

	if err := json.Unmarshal(data, &explicit); err == nil && explicit.Resolver.Threshold != nil {
		config.Resolver.Threshold = *explicit.Resolver.Threshold
	}

	return nil
}

// applyFlagOverrides applies command-line flag overrides; empty values are ignored
func applyFlagOverrides(config *Config, overrides map[string]any) {
	for key, value := range overrides {
		switch key {
		case "db":
			if str, ok := value.(string); ok && str != "" {
				config.Database.Path = str
			}
		case "table":
			if str, ok := value.(string); ok && str != "" {
				config.Database.Table = str
			}
		case "log-level":
			if str, ok := value.(string); ok && str != "" {
				config.Logging.Level = str
			}
		case "embedder":
			if str, ok := value.(string); ok && str != "" {
				config.Embedding.Provider = str
			}
		case "threshold":
			if f, ok := value.(float64); ok {
				config.Resolver.Threshold = f
			}
		case "verbose":
			if b, ok := value.(bool); ok && b {
				config.Debug.Verbose = true
				if !strings.EqualFold(config.Logging.Level, "debug") {
					config.Logging.Level = "info"
				}
			}
		case "debug":
			if b, ok := value.(bool); ok && b {
				config.Debug.Enabled = true
				config.Logging.Level = "debug"
			}
		}
	}
}

// mergeConfigs copies every non-zero value of source into target.
// Booleans are only ever switched on by the file.
func mergeConfigs(target, source *Config) {
	var mergeValues func(t, s reflect.Value)
	mergeValues = func(t, s reflect.Value) {
		if t.Kind() != s.Kind() {
			return
		}

		if t.Kind() == reflect.Struct {
			for i := range s.NumField() {
				mergeValues(t.Field(i), s.Field(i))
			}
		} else if !s.IsZero() {
			t.Set(s)
		}
	}

	mergeValues(reflect.ValueOf(target).Elem(), reflect.ValueOf(source).Elem())
}

func validateConfig(config *Config) error {
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf(
			"invalid log level: %s (must be debug, info, warn, or error)",
			config.Logging.Level,
		)
	}

	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[strings.ToLower(config.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", config.Logging.Format)
	}

	validLogOutputs := map[string]bool{"stdout": true, "stderr": true, "file": true}
	if !validLogOutputs[strings.ToLower(config.Logging.Output)] {
		return fmt.Errorf(
			"invalid log output: %s (must be stdout, stderr, or file)",
			config.Logging.Output,
		)
	}

	validProviders := map[string]bool{"ngram": true, "ollama": true}
	if !validProviders[strings.ToLower(config.Embedding.Provider)] {
		return fmt.Errorf(
			"invalid embedding provider: %s (must be ngram or ollama)",
			config.Embedding.Provider,
		)
	}

	for name, value := range map[string]string{
		"database query timeout":     config.Database.QueryTimeout,
		"database conn max lifetime": config.Database.ConnMaxLifetime,
		"embedding timeout":          config.Embedding.Timeout,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s: %s", name, value)
		}
	}

	if config.Resolver.Threshold < -1 || config.Resolver.Threshold > 1 {
		return fmt.Errorf("resolver threshold must be within [-1, 1]: %v", config.Resolver.Threshold)
	}

	if config.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive: %d", config.Embedding.Dimensions)
	}

	if config.Database.MaxConnections <= 0 {
		return fmt.Errorf(
			"database max connections must be positive: %d",
			config.Database.MaxConnections,
		)
	}

	if config.Database.Table == "" {
		return fmt.Errorf("database table must not be empty")
	}

	return nil
}

// SaveConfig writes configuration to the config file path
func SaveConfig(config *Config) error {
	configPath := getConfigPath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Path returns the config file location
func Path() string {
	return getConfigPath()
}

func getConfigPath() string {
	if configPath := os.Getenv(EnvPrefix + "CONFIG"); configPath != "" {
		return expandPath(configPath)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}

	return filepath.Join(homeDir, ".config", "timesheet-sql", "config.json")
}

// expandPath expands ~ to home directory in file paths
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

// ExpandAllPaths expands all paths in the configuration
func (c *Config) ExpandAllPaths() {
	c.Database.Path = expandPath(c.Database.Path)
	c.Cache.Directory = expandPath(c.Cache.Directory)
	c.Logging.File = expandPath(c.Logging.File)
}

// QueryTimeout returns the parsed database query timeout
func (c *Config) QueryTimeout() time.Duration {
	d, err := time.ParseDuration(c.Database.QueryTimeout)
	if err != nil {
		return 30 * time.Second
	}

	return d
}

// EmbeddingTimeout returns the parsed embedding request timeout
func (c *Config) EmbeddingTimeout() time.Duration {
	d, err := time.ParseDuration(c.Embedding.Timeout)
	if err != nil {
		return time.Minute
	}

	return d
}

// EnsureDirectories creates the directories the configured paths live in
func (c *Config) EnsureDirectories() error {
	dirs := []string{filepath.Dir(c.Database.Path)}
	if c.Cache.Enabled {
		dirs = append(dirs, c.Cache.Directory)
	}

	if strings.EqualFold(c.Logging.Output, "file") {
		dirs = append(dirs, filepath.Dir(c.Logging.File))
	}

	for _, dir := range dirs {
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}

	return nil
}
