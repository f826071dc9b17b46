package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "FLASHDECK"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.cors_allowed_origins", []string{})

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 25)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.sqlite_path", "")

	v.SetDefault("srs.base_interval", 0)
	v.SetDefault("srs.max_interval", 0)
	v.SetDefault("srs.lapse_interval", 0)
	v.SetDefault("srs.learned_threshold", 0)
	v.SetDefault("srs.review_later_policy", "deprioritize")

	v.SetDefault("sync.remote_url", "")
	v.SetDefault("sync.api_key", "")
	v.SetDefault("sync.timeout", 10*time.Second)
	v.SetDefault("sync.max_attempts", 5)
	v.SetDefault("sync.initial_backoff", 500*time.Millisecond)
	v.SetDefault("sync.sweep_interval", 5*time.Minute)
	v.SetDefault("sync.worker_count", 2)
	v.SetDefault("sync.queue_size", 100)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_lifetime", time.Hour)

	v.SetDefault("study.timezone", "UTC")
	v.SetDefault("study.session_ttl", 12*time.Hour)
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// A .env file in the working directory is loaded first when present.
// Returns a populated Config struct or an error if loading/validation fails.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if cfg.Storage.Driver == "postgres" && cfg.Database.URL == "" {
		return errors.New("config validation failed: database.url is required for the postgres driver")
	}
	if _, err := cfg.Study.Location(); err != nil {
		return fmt.Errorf("config validation failed: unknown study.timezone %q: %w", cfg.Study.Timezone, err)
	}
	return nil
}
