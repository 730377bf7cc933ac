// Package server provides configuration helpers that define runtime
// defaults, file loading, environment overrides, and validation for the
// Parley chat service.
package server

import (
	"fmt"
	"os"
	"sync"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/parley-chat/parley/internal/history"
)

// Config holds the server configuration settings including the WebSocket
// limits and the history database connection.
type Config struct {
	Port           string         `yaml:"port" envconfig:"PORT"`
	AllowedOrigins []string       `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS"`
	MaxMessageSize int64          `yaml:"max_message_size" envconfig:"MAX_MESSAGE_SIZE"`
	SendBuffer     int            `yaml:"send_buffer" envconfig:"SEND_BUFFER"`
	Database       history.Config `yaml:"database"`
}

var (
	configMu        sync.RWMutex
	activeConfig    Config
	allowedOrigins  map[string]struct{}
	allowAllOrigins bool
)

func init() {
	SetConfig(nil)
}

func defaultConfig() Config {
	return Config{
		Port: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: 512,
		SendBuffer:     256,
		Database: history.Config{
			Host: "localhost",
			Port: 5432,
			Name: "chat",
			User: "postgres",
		},
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Port == "" {
		cfg.Port = ":8080"
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 512
	}

	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}

	normalizedOrigins, allowAll := normalizeOrigins(cfg.AllowedOrigins)
	cfg.AllowedOrigins = normalizedOrigins

	configMu.Lock()
	defer configMu.Unlock()

	activeConfig = cfg
	allowAllOrigins = allowAll
	allowedOrigins = make(map[string]struct{}, len(normalizedOrigins))
	for _, origin := range normalizedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	return cfg
}

// SetConfig applies the provided configuration. Passing nil resets to defaults.
func SetConfig(cfg *Config) {
	if cfg == nil {
		defaultCfg := defaultConfig()
		sanitizeConfig(defaultCfg)
		return
	}

	sanitized := Config{
		Port:           cfg.Port,
		AllowedOrigins: append([]string(nil), cfg.AllowedOrigins...),
		MaxMessageSize: cfg.MaxMessageSize,
		SendBuffer:     cfg.SendBuffer,
		Database:       cfg.Database,
	}
	sanitizeConfig(sanitized)
}

func currentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := activeConfig
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// LoadConfig builds the runtime configuration in three layers: defaults,
// then the optional YAML file (with ${VAR} environment expansion), then
// PARLEY_* environment variable overrides. An empty path skips the file
// layer.
func LoadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}

		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config yaml: %w", err)
		}
	}

	if err := envconfig.Process("parley", &cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}

	return &cfg, nil
}
