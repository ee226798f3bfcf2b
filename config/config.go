// Package config loads the querybridge process configuration from YAML and
// the environment.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/tomyedwab/querybridge/providers"
)

// JWTSecretEnv overrides auth.jwt_secret when set.
const JWTSecretEnv = "QUERYBRIDGE_JWT_SECRET"

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns host:port.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, c.Port)
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ProviderConfig registers an extra provider name for a database/sql
// driver. BindType is one of "named", "question", "dollar", "at"; empty
// picks the driver's default.
type ProviderConfig struct {
	Name     string `yaml:"name"`
	Driver   string `yaml:"driver"`
	BindType string `yaml:"bind_type"`
}

type WasmConfig struct {
	Module string `yaml:"module"`
}

type Config struct {
	Server       ServerConfig     `yaml:"server"`
	Auth         AuthConfig       `yaml:"auth"`
	Log          LogConfig        `yaml:"log"`
	AutoRegister bool             `yaml:"auto_register"`
	Providers    []ProviderConfig `yaml:"providers"`
	Wasm         WasmConfig       `yaml:"wasm"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            "8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		AutoRegister: true,
	}
}

// Load reads envPath and configPath, applies environment overrides and
// validates the result.
func Load(configPath, envPath string) (*Config, error) {
	if err := LoadEnv(envPath); err != nil {
		return nil, err
	}
	cfg, err := LoadYAMLConfig(configPath, Default)
	if err != nil {
		return nil, err
	}
	if secret := os.Getenv(JWTSecretEnv); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigError reports an invalid field.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Msg
}

// Validate checks the fields Load cannot default.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return &ConfigError{Field: "server.port", Msg: "port is required"}
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		return &ConfigError{Field: "log.level", Msg: err.Error()}
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return &ConfigError{Field: "log.format", Msg: fmt.Sprintf("unknown format %q", c.Log.Format)}
	}
	for i, p := range c.Providers {
		field := fmt.Sprintf("providers[%d]", i)
		if p.Name == "" {
			return &ConfigError{Field: field + ".name", Msg: "name is required"}
		}
		if p.Driver == "" {
			return &ConfigError{Field: field + ".driver", Msg: "driver is required"}
		}
		if _, ok := ParseBindType(p.BindType); !ok {
			return &ConfigError{Field: field + ".bind_type", Msg: fmt.Sprintf("unknown bind type %q", p.BindType)}
		}
	}
	return nil
}

// SlogLevel parses the configured level name.
func (c *LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if c.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo, err
	}
	return level, nil
}

// NewLogger builds a logger writing to w in the configured format.
func (c *LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, _ := c.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

var bindTypes = map[string]int{
	"named":    sqlx.NAMED,
	"question": sqlx.QUESTION,
	"dollar":   sqlx.DOLLAR,
	"at":       sqlx.AT,
}

// ParseBindType maps a bind type name to its sqlx constant. The empty
// name maps to sqlx.UNKNOWN, meaning the driver's default.
func ParseBindType(name string) (int, bool) {
	if name == "" {
		return sqlx.UNKNOWN, true
	}
	bindType, ok := bindTypes[strings.ToLower(name)]
	return bindType, ok
}

// RegisterProviders registers the configured providers on r and returns
// how many succeeded. Failures are logged by the registry.
func (c *Config) RegisterProviders(r *providers.Registry) int {
	registered := 0
	for _, p := range c.Providers {
		var opts []providers.DriverOption
		if bindType, _ := ParseBindType(p.BindType); bindType != sqlx.UNKNOWN {
			opts = append(opts, providers.WithBindType(bindType))
		}
		if r.RegisterDriver(p.Name, p.Driver, opts...) {
			registered++
		}
	}
	return registered
}
