// Package config loads tinyq settings from an optional YAML file and
// TINYQ_ environment variables.
//
//	database:
//	  driver: sqlite3
//	  dsn: app.db
//	compiler:
//	  input: ./queries
//	  output: ./compiled
//	globals:
//	  - name: tenantID
//	    value: 1
//
// Environment variables use the key path in upper case with underscores,
// e.g. TINYQ_DATABASE_DSN or TINYQ_LOG_LEVEL.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/wdiesveld/tinyqueries/internal/querysql"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "TINYQ"

// DatabaseConfig selects the row source.
type DatabaseConfig struct {
	Driver    string `mapstructure:"driver"`
	DSN       string `mapstructure:"dsn"`
	InitQuery string `mapstructure:"init_query"`
}

// CompilerConfig locates query sources and compiled output.
type CompilerConfig struct {
	Input  string `mapstructure:"input"`
	Output string `mapstructure:"output"`
	Label  string `mapstructure:"label"`
	// Watch reloads the compiled set when its files change.
	Watch bool `mapstructure:"watch"`
}

type PostprocessorConfig struct {
	NestFields bool `mapstructure:"nest_fields"`
}

type EngineConfig struct {
	MaxFilterSize int `mapstructure:"max_filter_size"`
}

// Global is one global parameter value. Globals are a list because viper
// folds map keys to lower case and parameter names are case sensitive.
type Global struct {
	Name  string `mapstructure:"name"`
	Value any    `mapstructure:"value"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // text or json
}

type HTTPConfig struct {
	Listen      string   `mapstructure:"listen"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// Config is the complete configuration.
type Config struct {
	Database      DatabaseConfig      `mapstructure:"database"`
	Compiler      CompilerConfig      `mapstructure:"compiler"`
	Postprocessor PostprocessorConfig `mapstructure:"postprocessor"`
	Engine        EngineConfig        `mapstructure:"engine"`
	Globals       []Global            `mapstructure:"globals"`
	Log           LogConfig           `mapstructure:"log"`
	HTTP          HTTPConfig          `mapstructure:"http"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.init_query", "")
	v.SetDefault("compiler.input", "./queries")
	v.SetDefault("compiler.output", "./compiled")
	v.SetDefault("compiler.label", "")
	v.SetDefault("compiler.watch", false)
	v.SetDefault("postprocessor.nest_fields", true)
	v.SetDefault("engine.max_filter_size", 5000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("http.listen", ":8080")
	v.SetDefault("http.cors_origins", []string{"*"})
}

// Load reads the config file at path, or tinyq.yaml in the working
// directory when path is empty and the file exists, then applies
// environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("tinyq")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if _, err := querysql.DialectFor(c.Database.Driver); err != nil {
		return fmt.Errorf("database.driver: %w", err)
	}
	if c.Engine.MaxFilterSize < 0 {
		return fmt.Errorf("engine.max_filter_size must not be negative, got %d", c.Engine.MaxFilterSize)
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	if c.Compiler.Watch && c.Compiler.Output == "" {
		return errors.New("compiler.watch requires compiler.output")
	}
	seen := make(map[string]bool, len(c.Globals))
	for i, g := range c.Globals {
		if g.Name == "" {
			return fmt.Errorf("globals[%d]: name is required", i)
		}
		if seen[g.Name] {
			return fmt.Errorf("globals[%d]: duplicate name %q", i, g.Name)
		}
		seen[g.Name] = true
	}
	return nil
}

// GlobalValues returns the globals as a parameter map.
func (c *Config) GlobalValues() map[string]any {
	out := make(map[string]any, len(c.Globals))
	for _, g := range c.Globals {
		out[g.Name] = g.Value
	}
	return out
}

// SlogLevel maps the log level string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
