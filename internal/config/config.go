package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/dshills/puppetdoc-mcp/internal/parser"
)

// EnvPrefix is the prefix for environment overrides, e.g. PUPPETDOC_RUNTIME_VERSION
const EnvPrefix = "PUPPETDOC"

// ErrInvalidRuntimeVersion is returned when runtime.version is not a semantic version
var ErrInvalidRuntimeVersion = errors.New("runtime version must be a semantic version")

// Config holds the complete application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Runtime  RuntimeConfig  `mapstructure:"runtime"`
	Indexer  IndexerConfig  `mapstructure:"indexer"`
	Search   SearchConfig   `mapstructure:"search"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig holds the declaration store location.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// RuntimeConfig describes the Puppet runtime manifests are parsed against.
type RuntimeConfig struct {
	Version  string   `mapstructure:"version" validate:"required"`
	Settings []string `mapstructure:"settings" validate:"dive,required"`
}

// IndexerConfig holds module indexing configuration.
type IndexerConfig struct {
	Workers   int `mapstructure:"workers" validate:"min=1,max=64"`
	BatchSize int `mapstructure:"batch_size" validate:"min=1"`
}

// SearchConfig holds search defaults.
type SearchConfig struct {
	DefaultLimit int `mapstructure:"default_limit" validate:"min=1,max=100"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.path", DefaultDBPath())

	v.SetDefault("runtime.version", parser.DefaultRuntimeVersion)
	v.SetDefault("runtime.settings", []string{parser.TasksSetting})

	v.SetDefault("indexer.workers", 4)
	v.SetDefault("indexer.batch_size", 20)

	v.SetDefault("search.default_limit", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// DefaultDBPath returns ~/.puppetdoc/index.db, or a relative path if the home
// directory is unknown.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".puppetdoc", "index.db")
	}
	return filepath.Join(home, ".puppetdoc", "index.db")
}

// NewViper creates a viper instance with defaults, the optional config file and
// environment overrides applied. An empty cfgFile searches for puppetdoc.yaml in
// the working directory and ~/.puppetdoc.
func NewViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("puppetdoc")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".puppetdoc"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment
	}

	return v, nil
}

// New decodes and validates the configuration held by v.
func New(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	if _, err := semver.NewVersion(c.Runtime.Version); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidRuntimeVersion, c.Runtime.Version)
	}

	return nil
}

// RuntimeSettings returns the parser runtime described by the configuration.
func (c *Config) RuntimeSettings() parser.Runtime {
	return parser.NewRuntime(c.Runtime.Version, c.Runtime.Settings...)
}

// ExpandedDBPath returns the database path with a leading ~ resolved.
func (c *Config) ExpandedDBPath() (string, error) {
	path := c.Database.Path
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path, nil
}
