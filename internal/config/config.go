// Package config loads application settings from defaults, an optional
// config file, .env files and FACTURX_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/rezonia/facturx-engine/internal/model"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "FACTURX"

// Config is the full application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Data     DataConfig     `mapstructure:"data"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// ServerConfig holds HTTP API settings
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// DataConfig points at the domain configuration files. Empty paths are skipped.
type DataConfig struct {
	TemplatesFile    string `mapstructure:"templates_file"`
	ProfilesFile     string `mapstructure:"profiles_file"`
	LookupTablesFile string `mapstructure:"lookup_tables_file"`
	MasterDataFile   string `mapstructure:"master_data_file"`
}

// PipelineConfig holds ingestion settings
type PipelineConfig struct {
	Workers         int  `mapstructure:"workers"`
	RejectDuplicate bool `mapstructure:"reject_duplicate"`
}

// IsDevelopment reports whether the server runs in development mode.
func (s ServerConfig) IsDevelopment() bool {
	return s.Environment == "" || s.Environment == "development"
}

// NewViper returns a viper instance with defaults and environment overrides
// configured. Callers may bind flags to it before calling Load.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.environment", "development")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stderr")

	v.SetDefault("data.templates_file", "")
	v.SetDefault("data.profiles_file", "")
	v.SetDefault("data.lookup_tables_file", "")
	v.SetDefault("data.master_data_file", "")

	v.SetDefault("pipeline.workers", 4)
	v.SetDefault("pipeline.reject_duplicate", true)
}

// Load reads configFile (when set) into v and decodes the result. A nil v
// gets a fresh instance from NewViper.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if v == nil {
		v = NewViper()
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the values that would otherwise fail late.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Server.Port) == "" {
		return model.NewValidationError("server.port", c.Server.Port, "required", "server port must be set")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return model.NewValidationError("server.read_timeout", c.Server.ReadTimeout, "non_negative", "timeouts cannot be negative")
	}
	if c.Pipeline.Workers < 1 {
		return model.NewValidationError("pipeline.workers", c.Pipeline.Workers, "min", "at least one worker is required")
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "console":
	default:
		return model.NewValidationError("log.format", c.Log.Format, "enum", "log format must be json or console")
	}
	return nil
}

// LoadDotEnv loads the given .env files into the process environment without
// overriding variables already set. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}
