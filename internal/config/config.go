package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage" validate:"required"`
	SRS      SRSConfig      `mapstructure:"srs"`
	Sync     SyncConfig     `mapstructure:"sync" validate:"required"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Study    StudyConfig    `mapstructure:"study"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port               int      `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel           string   `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
}

// DatabaseConfig contains the Postgres connection settings. The URL is only
// required when the postgres storage driver is selected.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url" validate:"omitempty,url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" validate:"gte=0"`
}

// StorageConfig selects the store backend.
type StorageConfig struct {
	Driver     string `mapstructure:"driver" validate:"required,oneof=memory postgres sqlite"`
	SQLitePath string `mapstructure:"sqlite_path" validate:"required_if=Driver sqlite"`
}

// SRSConfig overrides the scheduler parameters. Zero values keep the
// scheduler defaults.
type SRSConfig struct {
	BaseInterval      time.Duration `mapstructure:"base_interval" validate:"gte=0"`
	MaxInterval       time.Duration `mapstructure:"max_interval" validate:"gte=0"`
	LapseInterval     time.Duration `mapstructure:"lapse_interval" validate:"gte=0"`
	LearnedThreshold  int           `mapstructure:"learned_threshold" validate:"gte=0"`
	ReviewLaterPolicy string        `mapstructure:"review_later_policy" validate:"omitempty,oneof=include deprioritize exclude"`
}

// SyncConfig controls remote synchronization. An empty RemoteURL disables it.
type SyncConfig struct {
	RemoteURL      string        `mapstructure:"remote_url" validate:"omitempty,url"`
	APIKey         string        `mapstructure:"api_key"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxAttempts    uint          `mapstructure:"max_attempts" validate:"gte=1"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" validate:"gt=0"`
	SweepInterval  time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`
	WorkerCount    int           `mapstructure:"worker_count" validate:"gte=1"`
	QueueSize      int           `mapstructure:"queue_size" validate:"gte=1"`
}

// Enabled reports whether a remote store is configured.
func (c SyncConfig) Enabled() bool {
	return c.RemoteURL != ""
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`

	// TokenLifetime is the validity of tokens minted by the token command.
	TokenLifetime time.Duration `mapstructure:"token_lifetime" validate:"gt=0"`
}

// StudyConfig holds settings of the study pipeline.
type StudyConfig struct {
	// Timezone is the IANA zone used to bucket activity into streak days.
	Timezone string `mapstructure:"timezone" validate:"required"`

	// SessionTTL bounds how long an open session is kept before it is
	// discarded along with its unflushed answers.
	SessionTTL time.Duration `mapstructure:"session_ttl" validate:"gt=0"`
}

// Location resolves the study timezone.
func (c StudyConfig) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
