package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var ErrMissingEnvironmentVariables = errors.New("missing required environment variables")

// Config holds application configuration loaded from files and environment variables.
type Config struct {
	Env              string `mapstructure:"env"`      // current application environment (local, dev, prod etc)
	Timezone         string `mapstructure:"timezone"` // IANA zone all calendar math runs in
	VocabJSONPath    string `mapstructure:"vocab_json_path" validate:"required"`
	TelegramAPIToken string `mapstructure:"-"` // optional; alarm delivery is disabled without it
	DB               DB     `mapstructure:"database"`
	SRS              SRS    `mapstructure:"srs"`
}

// DB contains database-related configuration parameters.
type DB struct {
	URL             string        `mapstructure:"-"` // connection string loaded from environment
	MaxConnections  int           `mapstructure:"max_connections"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// SRS groups the scheduling policy constants. The validate tags pin them to
// the ranges the scheduler is designed for.
type SRS struct {
	RequiredDailyQuizzes int `mapstructure:"required_daily_quizzes" validate:"min=1"`
	WrongAnswerQuizSize  int `mapstructure:"wrong_answer_quiz_size" validate:"min=1,max=50"`
	RecalcBatchSize      int `mapstructure:"recalc_batch_size" validate:"min=1"`
}

// DSN returns the database connection string.
func (db DB) DSN() string {
	return db.URL
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// Load reads configuration from config files and environment variables.
func Load() (*Config, error) {
	// Initialize Viper instance and base config options.
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")

	// Set default values for configuration keys.
	v.SetDefault("env", "local")
	v.SetDefault("timezone", "Asia/Seoul")
	v.SetDefault("vocab_json_path", "assets/data/vocab.json")
	v.SetDefault("database.max_connections", 20)
	v.SetDefault("database.max_conn_lifetime", "30s")
	v.SetDefault("srs.required_daily_quizzes", 10)
	v.SetDefault("srs.wrong_answer_quiz_size", 10)
	v.SetDefault("srs.recalc_batch_size", 500)

	// Configure environment variable handling and key mapping.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // map nested keys to ENV style names
	v.AutomaticEnv()

	// Bind explicit environment variables to configuration keys.
	_ = v.BindEnv("telegram_api_token", "TELEGRAM_API_TOKEN")
	_ = v.BindEnv("database_url", "DATABASE_URL")
	_ = v.BindEnv("env", "APP_ENV")

	// Try to read configuration file if present.
	if err := v.ReadInConfig(); err != nil {
		var fileLookupErr viper.ConfigFileNotFoundError
		if !errors.As(err, &fileLookupErr) {
			return nil, fmt.Errorf("error loading config file: %w", err)
		}
	}

	// Unmarshal configuration into strongly typed struct.
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	// Load sensitive values from environment variables.
	cfg.TelegramAPIToken = v.GetString("telegram_api_token")

	cfg.DB.URL = v.GetString("database_url")
	if cfg.DB.URL == "" {
		return nil, ErrMissingEnvironmentVariables
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
