package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/mentionflow/harness/internal/config"
)

// Config holds all configuration for the migration tool.
type Config struct {
	// DatabaseURL is the PostgreSQL connection string.
	DatabaseURL string

	// MigrationsPath is the path to migration files.
	MigrationsPath string

	// MigrationTable is the name of the table to track migrations.
	MigrationTable string
}

// LoadConfig loads configuration from environment variables with sensible
// defaults, reusing internal/config's MENTIONFLOW_-prefixed convention so
// this tool reads the same MENTIONFLOW_DATABASE_URL the harness itself does.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		DatabaseURL:    config.GetEnvStr("MENTIONFLOW_DATABASE_URL", ""),
		MigrationsPath: config.GetEnvStr("MENTIONFLOW_MIGRATIONS_PATH", "./migrations"),
		MigrationTable: config.GetEnvStr("MENTIONFLOW_MIGRATION_TABLE", "schema_migrations"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("MENTIONFLOW_DATABASE_URL cannot be empty")
	}

	if c.MigrationTable == "" {
		return fmt.Errorf("MENTIONFLOW_MIGRATION_TABLE cannot be empty")
	}

	if c.MigrationsPath == "" {
		return fmt.Errorf("MENTIONFLOW_MIGRATIONS_PATH cannot be empty")
	}

	absPath, err := filepath.Abs(c.MigrationsPath)
	if err != nil {
		return fmt.Errorf("failed to resolve migrations path: %w", err)
	}
	c.MigrationsPath = absPath

	if _, err := os.Stat(c.MigrationsPath); os.IsNotExist(err) {
		return fmt.Errorf("migrations directory does not exist: %s", c.MigrationsPath)
	}

	return nil
}

// String returns a string representation of the configuration safe for
// logging: the database URL's password component is masked.
func (c *Config) String() string {
	return fmt.Sprintf("Config{DatabaseURL: %s, MigrationsPath: %s, MigrationTable: %s}",
		maskDatabaseURL(c.DatabaseURL), c.MigrationsPath, c.MigrationTable)
}

// maskDatabaseURL masks the password component of a Postgres connection
// string for safe logging.
func maskDatabaseURL(url string) string {
	if url == "" {
		return ""
	}

	authStart := -1
	for i := 0; i < len(url)-1; i++ {
		if url[i] == '/' && url[i+1] == '/' {
			authStart = i + 2
			break
		}
	}
	if authStart == -1 {
		return url
	}

	atPos := -1
	for i := authStart; i < len(url); i++ {
		if url[i] == '@' {
			atPos = i
		}
		if url[i] == '/' || url[i] == '?' || url[i] == '#' {
			break
		}
	}
	if atPos == -1 {
		return url
	}

	colonPos := -1
	for i := authStart; i < atPos; i++ {
		if url[i] == ':' {
			colonPos = i
			break
		}
	}
	if colonPos == -1 {
		return url
	}

	if atPos-(colonPos+1) == 0 {
		return url
	}

	return url[:colonPos+1] + "***" + url[atPos:]
}
