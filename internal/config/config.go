// Package config loads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v8"
	"github.com/joho/godotenv"
)

// DefaultStoreURI is used when neither STORE_URI nor MONGO_URI is set.
const DefaultStoreURI = "mongodb://127.0.0.1:27017"

// Config holds every setting the binaries read from the environment.
type Config struct {
	Port      int    `env:"PORT" envDefault:"8000"`
	StoreURI  string `env:"STORE_URI"`
	MongoURI  string `env:"MONGO_URI"`
	Database  string `env:"DATABASE_NAME" envDefault:"financeDB"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"` // console or json

	Model    Model
	Jobs     Jobs
	BigQuery BigQuery
}

// Model configures training and artifact storage.
type Model struct {
	ArtifactDir    string `env:"ARTIFACT_DIR" envDefault:"."`
	ArtifactBucket string `env:"ARTIFACT_BUCKET"`
	ArtifactPrefix string `env:"ARTIFACT_PREFIX"`
	Trees          int    `env:"MODEL_TREES" envDefault:"100"`
	Seed           int64  `env:"MODEL_SEED" envDefault:"0"` // 0 seeds from the clock
	AutoRetrain    bool   `env:"AUTO_RETRAIN" envDefault:"false"`
}

// Jobs configures the in-process training queue.
type Jobs struct {
	QueueSize    int           `env:"JOB_QUEUE_SIZE" envDefault:"100"`
	Workers      int           `env:"JOB_WORKERS" envDefault:"2"`
	RetryBackoff time.Duration `env:"JOB_RETRY_BACKOFF" envDefault:"1s"`
}

// BigQuery configures the export-bq command.
type BigQuery struct {
	Project string `env:"BQ_PROJECT"`
	Dataset string `env:"BQ_DATASET" envDefault:"finance"`
	Table   string `env:"BQ_TABLE" envDefault:"transactions"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("Load: read .env: %w", err)
	}
	return Parse()
}

// Parse reads the process environment only.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("Parse: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ConnectionURI returns STORE_URI, falling back to MONGO_URI and then the local default.
func (c *Config) ConnectionURI() string {
	if s := strings.TrimSpace(c.StoreURI); s != "" {
		return s
	}
	if s := strings.TrimSpace(c.MongoURI); s != "" {
		return s
	}
	return DefaultStoreURI
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be console or json, got %q", c.LogFormat)
	}
	if c.Model.Trees <= 0 {
		return fmt.Errorf("MODEL_TREES must be positive, got %d", c.Model.Trees)
	}
	if c.Jobs.QueueSize <= 0 {
		return fmt.Errorf("JOB_QUEUE_SIZE must be positive, got %d", c.Jobs.QueueSize)
	}
	if c.Jobs.Workers <= 0 {
		return fmt.Errorf("JOB_WORKERS must be positive, got %d", c.Jobs.Workers)
	}
	if c.Jobs.RetryBackoff < 0 {
		return fmt.Errorf("JOB_RETRY_BACKOFF must not be negative, got %s", c.Jobs.RetryBackoff)
	}
	return nil
}
