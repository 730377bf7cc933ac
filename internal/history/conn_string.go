package history

import (
	"fmt"
	"net/url"
)

// Config holds PostgreSQL connection settings for the message log.
type Config struct {
	Enabled  bool   `yaml:"enabled" envconfig:"DB_ENABLED"`
	Host     string `yaml:"host" envconfig:"DB_HOST"`
	Port     int    `yaml:"port" envconfig:"DB_PORT"`
	Name     string `yaml:"name" envconfig:"DB_NAME"`
	User     string `yaml:"user" envconfig:"DB_USER"`
	Password string `yaml:"password" envconfig:"DB_PASSWORD"`
	SSLMode  string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
}

// BuildConnString builds a PostgreSQL connection string from config.
func BuildConnString(cfg Config) string {
	// URL-encode password to handle special characters
	escapedPassword := url.QueryEscape(cfg.Password)

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		escapedPassword,
		cfg.Host,
		cfg.Port,
		cfg.Name,
		sslMode,
	)
}
