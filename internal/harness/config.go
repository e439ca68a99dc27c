// Package harness wires the Queue Store, Trigger Channel, Worker cohort,
// Ingress Adapters, and admin HTTP surface into one running process, the
// way the teacher's cmd/correlator wires its api.Server and dependencies.
package harness

import (
	"log/slog"
	"time"

	"github.com/mentionflow/harness/internal/config"
	"github.com/mentionflow/harness/internal/storage"
	"github.com/mentionflow/harness/internal/worker"
)

// Config is every knob named in spec.md §6's configuration surface, plus the
// expansion's domain wiring, all MENTIONFLOW_-prefixed and loaded with
// internal/config's env helpers.
type Config struct {
	Database storage.Config

	// ChatBotToken and ChatAppToken authenticate the concrete
	// chatplatform.Client/EventSource an embedder constructs; the harness
	// itself never dials out (transport is out of scope per spec.md §1), it
	// only loads and forwards these so cmd/harness doesn't need its own
	// env-var parsing for them.
	ChatBotToken string
	ChatAppToken string

	Workers       int
	BaseSleep     time.Duration
	MinJitter     time.Duration
	MaxJitter     time.Duration
	MaxAttempts   int
	LeaseDuration time.Duration
	MaxAge        time.Duration
	BatchCap      int

	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	AdminAddr            string
	AdminShutdownTimeout time.Duration

	KindsConfigPath string

	LogLevel slog.Level
}

const (
	defaultWorkers       = 5
	defaultBaseSleep     = 60 * time.Second
	defaultMinJitter     = -15 * time.Second
	defaultMaxJitter     = 15 * time.Second
	defaultMaxAttempts   = 3
	defaultLeaseDuration = 10 * time.Minute
	defaultMaxAge        = 60 * time.Minute
	defaultBatchCap      = 20

	defaultAdminAddr            = "0.0.0.0:9090"
	defaultAdminShutdownTimeout = 15 * time.Second
)

// LoadConfig loads the harness's full configuration from environment
// variables, following the teacher's env-var-with-defaults convention.
func LoadConfig() Config {
	return Config{
		Database: *storage.LoadConfig(),

		ChatBotToken: config.GetEnvStr("MENTIONFLOW_CHAT_BOT_TOKEN", ""),
		ChatAppToken: config.GetEnvStr("MENTIONFLOW_CHAT_APP_TOKEN", ""),

		Workers:       config.GetEnvInt("MENTIONFLOW_WORKERS", defaultWorkers),
		BaseSleep:     config.GetEnvDuration("MENTIONFLOW_BASE_SLEEP", defaultBaseSleep),
		MinJitter:     config.GetEnvDuration("MENTIONFLOW_MIN_JITTER", defaultMinJitter),
		MaxJitter:     config.GetEnvDuration("MENTIONFLOW_MAX_JITTER", defaultMaxJitter),
		MaxAttempts:   config.GetEnvInt("MENTIONFLOW_MAX_ATTEMPTS", defaultMaxAttempts),
		LeaseDuration: config.GetEnvDuration("MENTIONFLOW_LEASE_DURATION", defaultLeaseDuration),
		MaxAge:        config.GetEnvDuration("MENTIONFLOW_MAX_AGE", defaultMaxAge),
		BatchCap:      config.GetEnvInt("MENTIONFLOW_BATCH_CAP", defaultBatchCap),

		KafkaBrokers: config.GetEnvStrList("MENTIONFLOW_KAFKA_BROKERS", nil),
		KafkaTopic:   config.GetEnvStr("MENTIONFLOW_KAFKA_TOPIC", ""),
		KafkaGroupID: config.GetEnvStr("MENTIONFLOW_KAFKA_GROUP_ID", "mentionflow-harness"),

		AdminAddr:            config.GetEnvStr("MENTIONFLOW_ADMIN_ADDR", defaultAdminAddr),
		AdminShutdownTimeout: config.GetEnvDuration("MENTIONFLOW_ADMIN_SHUTDOWN_TIMEOUT", defaultAdminShutdownTimeout),

		KindsConfigPath: config.GetEnvStr("MENTIONFLOW_KINDS_CONFIG", ""),

		LogLevel: config.GetEnvLogLevel("MENTIONFLOW_LOG_LEVEL", slog.LevelInfo),
	}
}

// KafkaEnabled reports whether the Kafka ingress adapter should be started.
func (c Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0 && c.KafkaTopic != ""
}

// WorkerParams returns the per-worker tunables for worker index id, using
// this Config's values in place of worker.DefaultParams.
func (c Config) WorkerParams(id int) worker.Params {
	return worker.Params{
		WorkerID:      id,
		BaseSleep:     c.BaseSleep,
		MinJitter:     c.MinJitter,
		MaxJitter:     c.MaxJitter,
		BatchCap:      c.BatchCap,
		MaxAttempts:   c.MaxAttempts,
		LeaseDuration: c.LeaseDuration,
		MaxAge:        c.MaxAge,
	}
}
