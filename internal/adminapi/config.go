// Package adminapi provides the operator-facing HTTP surface for the harness:
// health checks, queue/worker stats, and an out-of-band sweep trigger.
package adminapi

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mentionflow/harness/internal/config"
)

const (
	// DefaultPort is the default admin HTTP server port.
	DefaultPort = 9090
	// MaxPort is the maximum valid port number.
	MaxPort = 65535
	// DefaultHost is the default server host.
	DefaultHost = "0.0.0.0"
	// DefaultTimeout is the default timeout for HTTP operations.
	DefaultTimeout = 15 * time.Second
	// DefaultCORSMaxAge is the default CORS max age (24 hours).
	DefaultCORSMaxAge = 86400
)

// Static validation errors.
var (
	ErrInvalidPort            = errors.New("invalid port")
	ErrEmptyHost              = errors.New("host cannot be empty")
	ErrInvalidReadTimeout     = errors.New("read timeout must be positive")
	ErrInvalidWriteTimeout    = errors.New("write timeout must be positive")
	ErrInvalidShutdownTimeout = errors.New("shutdown timeout must be positive")
)

// ServerConfig holds admin HTTP server configuration.
type ServerConfig struct {
	Port               int
	Host               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	ShutdownTimeout    time.Duration
	LogLevel           slog.Level
	CORSAllowedOrigins []string
	CORSAllowedMethods []string
	CORSAllowedHeaders []string
	CORSMaxAge         int
}

// LoadServerConfig loads admin server configuration from environment variables
// with sensible defaults, following MENTIONFLOW_ADMIN_* naming.
func LoadServerConfig() ServerConfig {
	return ServerConfig{
		Port:               config.GetEnvInt("MENTIONFLOW_ADMIN_PORT", DefaultPort),
		Host:               config.GetEnvStr("MENTIONFLOW_ADMIN_HOST", DefaultHost),
		ReadTimeout:        config.GetEnvDuration("MENTIONFLOW_ADMIN_READ_TIMEOUT", DefaultTimeout),
		WriteTimeout:       config.GetEnvDuration("MENTIONFLOW_ADMIN_WRITE_TIMEOUT", DefaultTimeout),
		ShutdownTimeout:    config.GetEnvDuration("MENTIONFLOW_ADMIN_SHUTDOWN_TIMEOUT", DefaultTimeout),
		LogLevel:           config.GetEnvLogLevel("MENTIONFLOW_ADMIN_LOG_LEVEL", slog.LevelInfo),
		CORSAllowedOrigins: config.GetEnvStrList("MENTIONFLOW_ADMIN_CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods: config.GetEnvStrList("MENTIONFLOW_ADMIN_CORS_ALLOWED_METHODS",
			[]string{"GET", "POST", "OPTIONS"}),
		CORSAllowedHeaders: config.GetEnvStrList("MENTIONFLOW_ADMIN_CORS_ALLOWED_HEADERS",
			[]string{"Content-Type", "Authorization", "X-Correlation-ID", "X-Api-Key"}),
		CORSMaxAge: config.GetEnvInt("MENTIONFLOW_ADMIN_CORS_MAX_AGE", DefaultCORSMaxAge),
	}
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ToCORSConfig converts ServerConfig CORS fields to the middleware's CORSConfig.
func (c ServerConfig) ToCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedOrigins: c.CORSAllowedOrigins,
		AllowedMethods: c.CORSAllowedMethods,
		AllowedHeaders: c.CORSAllowedHeaders,
		MaxAge:         c.CORSMaxAge,
	}
}

// CORSConfig holds CORS configuration options, kept centralized here the way
// the teacher centralizes it in its api package.
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
	MaxAge         int
}

// GetAllowedOrigins returns the allowed origins for CORS.
func (c CORSConfig) GetAllowedOrigins() []string { return c.AllowedOrigins }

// GetAllowedMethods returns the allowed methods for CORS.
func (c CORSConfig) GetAllowedMethods() []string { return c.AllowedMethods }

// GetAllowedHeaders returns the allowed headers for CORS.
func (c CORSConfig) GetAllowedHeaders() []string { return c.AllowedHeaders }

// GetMaxAge returns the max age for CORS preflight cache.
func (c CORSConfig) GetMaxAge() int { return c.MaxAge }

// Validate validates the server configuration.
func (c ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > MaxPort {
		return fmt.Errorf("%w: %d, must be between 1 and %d", ErrInvalidPort, c.Port, MaxPort)
	}

	if c.Host == "" {
		return ErrEmptyHost
	}

	if c.ReadTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidReadTimeout, c.ReadTimeout)
	}

	if c.WriteTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidWriteTimeout, c.WriteTimeout)
	}

	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidShutdownTimeout, c.ShutdownTimeout)
	}

	return nil
}
