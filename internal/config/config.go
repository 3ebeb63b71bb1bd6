// Package config loads the server configuration from a config file,
// a .env file and the environment.
package config

import (
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/mdouchement/uploadstore/internal/model"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Name is the basename of the optional configuration file.
const Name = "uploadstore"

// Config holds all runtime configuration.
type Config struct {
	DatabasePath  string        `mapstructure:"database_path"`
	Bucket        string        `mapstructure:"bucket"`
	ChunkSize     int64         `mapstructure:"chunk_size"`
	Binding       string        `mapstructure:"binding"`
	Port          string        `mapstructure:"port"`
	ReconcileSpec string        `mapstructure:"reconcile_spec"`
	PendingGrace  time.Duration `mapstructure:"pending_grace"`
	LogLevel      string        `mapstructure:"log_level"`
	DumpRequests  bool          `mapstructure:"dump_requests"`
}

// Load reads the configuration. Flags, when given, take precedence over
// the environment which takes precedence over the config file.
func Load(paths []string, flags *pflag.FlagSet) (*Config, error) {
	// A missing .env is not an error, the process environment is used.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName(Name)
	v.SetConfigType("yaml")
	for _, path := range paths {
		v.AddConfigPath(path)
	}
	v.AutomaticEnv()

	v.SetDefault("database_path", Name+".db")
	v.SetDefault("bucket", "uploads")
	v.SetDefault("chunk_size", model.DefaultChunkSize)
	v.SetDefault("binding", "0.0.0.0")
	v.SetDefault("port", "5000")
	v.SetDefault("reconcile_spec", "@every 10m")
	v.SetDefault("pending_grace", 24*time.Hour)
	v.SetDefault("log_level", "info")
	v.SetDefault("dump_requests", false)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, errors.Wrap(err, "could not bind flags")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "could not read config file")
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, errors.Wrap(err, "could not decode config")
	}

	return &c, c.Validate()
}

// Validate checks the configuration values.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return errors.New("database_path must be set")
	}
	if c.ChunkSize <= 0 {
		return errors.Errorf("chunk_size must be positive: %d", c.ChunkSize)
	}
	if c.PendingGrace <= 0 {
		return errors.Errorf("pending_grace must be positive: %s", c.PendingGrace)
	}
	return nil
}

// Listen returns the address the server listens on.
func (c *Config) Listen() string {
	return c.Binding + ":" + c.Port
}

// DatabaseFile returns the absolute path of the database.
func (c *Config) DatabaseFile() string {
	p, err := filepath.Abs(c.DatabasePath)
	if err != nil {
		return c.DatabasePath
	}
	return p
}
