// Package config provides configuration loading and structs for apuntes.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	LLM     LLMConfig     `yaml:"llm"`
	Search  SearchConfig  `yaml:"search"`
	Watch   WatchConfig   `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// AccessToken, when set, is required as a Bearer token on every /api request.
	AccessToken string `yaml:"access_token"`
	// MaxUploadMB caps the size of one multipart upload request.
	MaxUploadMB int `yaml:"max_upload_mb"`
}

// KV backends.
const (
	KVBackendBolt  = "bolt"
	KVBackendRedis = "redis"
)

// StorageConfig holds paths and connection settings for the blob and key-value stores.
type StorageConfig struct {
	DatabasePath  string `yaml:"database_path"`
	KVBackend     string `yaml:"kv_backend"`
	KVPath        string `yaml:"kv_path"`
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`
}

// LLMConfig holds chat-completion settings.
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
	// APIKey is the default key; a key stored with `apuntes key set` takes precedence.
	// Falls back to OPENAI_API_KEY when empty.
	APIKey           string   `yaml:"api_key"`
	TimeoutSeconds   int      `yaml:"timeout_seconds"`
	NotesTemperature *float64 `yaml:"notes_temperature"`
	QuizTemperature  *float64 `yaml:"quiz_temperature"`
}

// Timeout returns the HTTP timeout for one completion request.
func (l *LLMConfig) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// NotesTemperatureOrDefault returns the sampling temperature for notes; 0.7 when unset.
func (l *LLMConfig) NotesTemperatureOrDefault() float64 {
	if l.NotesTemperature != nil {
		return *l.NotesTemperature
	}
	return 0.7
}

// QuizTemperatureOrDefault returns the sampling temperature for questions and corrections;
// 1.0 (the API default) when unset.
func (l *LLMConfig) QuizTemperatureOrDefault() float64 {
	if l.QuizTemperature != nil {
		return *l.QuizTemperature
	}
	return 1.0
}

// SearchConfig holds keyword search settings.
type SearchConfig struct {
	DefaultLimit int `yaml:"default_limit"`
	MaxLimit     int `yaml:"max_limit"`
}

// WatchConfig holds inbox directory settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
	// SyncExisting uploads files already in the inbox when the server starts.
	SyncExisting bool `yaml:"sync_existing"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.KVPath = expandPath(cfg.Storage.KVPath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Default returns a config with every default applied, for when no file exists.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Save writes the config to path, creating its directory.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
