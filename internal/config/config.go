package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. Z3TRACE_LOGGER_LEVEL
const EnvPrefix = "Z3TRACE"

// Config holds all application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Parser   ParserConfig   `mapstructure:"parser"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// DatabaseConfig holds the run store configuration
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// ParserConfig holds trace dispatch configuration
type ParserConfig struct {
	MaxLineBytes       int  `mapstructure:"max_line_bytes"`
	DiagnosticSample   int  `mapstructure:"diagnostic_sample"`
	PersistDiagnostics bool `mapstructure:"persist_diagnostics"`
	LogDiagnostics     bool `mapstructure:"log_diagnostics"`
	TopQuantifiers     int  `mapstructure:"top_quantifiers"`
}

// flagKeys maps command line flags to configuration keys
var flagKeys = map[string]string{
	"log-level":           "logger.level",
	"log-format":          "logger.format",
	"log-output":          "logger.output_path",
	"db":                  "database.path",
	"store":               "database.enabled",
	"host":                "server.host",
	"port":                "server.port",
	"max-line-bytes":      "parser.max_line_bytes",
	"diagnostic-sample":   "parser.diagnostic_sample",
	"persist-diagnostics": "parser.persist_diagnostics",
	"log-diagnostics":     "parser.log_diagnostics",
	"top":                 "parser.top_quantifiers",
}

// Load loads configuration from an optional file, environment variables
// and command line flags, in increasing order of precedence. An empty
// configPath searches ./configs and . for config.yaml and tolerates its
// absence.
func Load(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath("configs")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	if err := bindFlags(v, flags); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 60*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.max_body_bytes", int64(1<<30))

	// Database defaults
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.path", "data/z3trace.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stderr")
	v.SetDefault("logger.format", "console")

	// Parser defaults
	v.SetDefault("parser.max_line_bytes", 16<<20)
	v.SetDefault("parser.diagnostic_sample", 20)
	v.SetDefault("parser.persist_diagnostics", true)
	v.SetDefault("parser.log_diagnostics", true)
	v.SetDefault("parser.top_quantifiers", 10)
}

// bindFlags binds the flags of flags that have a configuration key. Only
// flags the user actually set override lower layers.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", name, err)
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		return fmt.Errorf("database.path is required when the store is enabled")
	}

	switch c.Logger.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logger.format must be json or console, got %q", c.Logger.Format)
	}

	if c.Parser.MaxLineBytes <= 0 {
		return fmt.Errorf("parser.max_line_bytes must be positive")
	}
	if c.Parser.DiagnosticSample < 0 {
		return fmt.Errorf("parser.diagnostic_sample must not be negative")
	}
	if c.Parser.TopQuantifiers < 0 {
		return fmt.Errorf("parser.top_quantifiers must not be negative")
	}

	return nil
}
