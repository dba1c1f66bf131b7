package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Broker   BrokerConfig   `mapstructure:"broker" validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker" validate:"required"`
	Provider ProviderConfig `mapstructure:"provider"`
}

// ServerConfig contains all HTTP server related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// BrokerConfig contains the message broker connection settings.
type BrokerConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// WorkerConfig contains the generation worker and supervisory loop settings.
// Durations are expressed in seconds to keep environment overrides simple.
type WorkerConfig struct {
	// ID identifies this worker instance in job ownership records.
	// Defaults to the hostname when empty.
	ID string `mapstructure:"id"`

	// Prefetch is the number of unacknowledged deliveries the broker hands
	// this worker at a time.
	Prefetch int `mapstructure:"prefetch" validate:"gte=1"`

	// HeartbeatTimeoutSeconds defines how long a job may sit in processing
	// before the sweeper presumes its worker dead.
	HeartbeatTimeoutSeconds int `mapstructure:"heartbeat_timeout_seconds" validate:"gte=60"`

	// SweepIntervalSeconds defines how often the stale-processing sweep runs.
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds" validate:"gte=10"`

	// RetryPollIntervalSeconds defines how often due retries are republished.
	RetryPollIntervalSeconds int `mapstructure:"retry_poll_interval_seconds" validate:"gte=5"`
}

// ProviderConfig contains the content generation provider settings. Only the
// worker binary needs these; the API server leaves them empty.
type ProviderConfig struct {
	// URL is the base endpoint of the lesson generation provider.
	URL string `mapstructure:"url" validate:"omitempty,url"`

	// APIKey authenticates requests to the provider.
	APIKey string `mapstructure:"api_key"`

	// TimeoutSeconds bounds a single generation call.
	TimeoutSeconds int `mapstructure:"timeout_seconds" validate:"gte=1"`
}
