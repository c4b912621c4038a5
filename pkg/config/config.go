// Package config loads the shop's TOML profile. Every key can be overridden
// from the environment as MOTOSHOP_<SECTION>_<KEY>, upper-cased, for example
// MOTOSHOP_STORAGE_DSN or MOTOSHOP_SERVER_REQUIRETOKEN.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

const EnvPrefix = "MOTOSHOP"

// ServerConfig defines the listening endpoint.
type ServerConfig struct {
	Addr         string        `toml:"addr" mapstructure:"addr"`
	RequireToken bool          `toml:"requireToken" mapstructure:"requireToken"`
	IdleTimeout  time.Duration `toml:"idleTimeout" mapstructure:"idleTimeout"`
}

// ClientConfig tunes the connection manager used by shopctl.
type ClientConfig struct {
	Addr           string        `toml:"addr" mapstructure:"addr"`
	ReadTimeout    time.Duration `toml:"readTimeout" mapstructure:"readTimeout"`
	KeepAlive      time.Duration `toml:"keepAlive" mapstructure:"keepAlive"`
	ReconnectDelay time.Duration `toml:"reconnectDelay" mapstructure:"reconnectDelay"`
}

// StorageConfig selects the database. DSN is a file path for sqlite and a
// connection URL for postgres.
type StorageConfig struct {
	Driver   string `toml:"driver" mapstructure:"driver"`
	DSN      string `toml:"dsn" mapstructure:"dsn"`
	MaxConns int32  `toml:"maxConns" mapstructure:"maxConns"`
}

type InventoryConfig struct {
	LowStockThreshold int64 `toml:"lowStockThreshold" mapstructure:"lowStockThreshold"`
}

// SessionConfig selects where login tokens live: "memory" or "redis".
type SessionConfig struct {
	Backend  string        `toml:"backend" mapstructure:"backend"`
	RedisURL string        `toml:"redisURL" mapstructure:"redisURL"`
	TTL      time.Duration `toml:"ttl" mapstructure:"ttl"`
}

// EventsConfig selects the event sink: "none" or "amqp".
type EventsConfig struct {
	Backend  string `toml:"backend" mapstructure:"backend"`
	AMQPURL  string `toml:"amqpURL" mapstructure:"amqpURL"`
	Exchange string `toml:"exchange" mapstructure:"exchange"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `toml:"addr" mapstructure:"addr"`
}

// TelemetryConfig exports traces over OTLP gRPC when Endpoint is set.
type TelemetryConfig struct {
	ServiceName string  `toml:"serviceName" mapstructure:"serviceName"`
	Endpoint    string  `toml:"endpoint" mapstructure:"endpoint"`
	Insecure    bool    `toml:"insecure" mapstructure:"insecure"`
	SampleRatio float64 `toml:"sampleRatio" mapstructure:"sampleRatio"`
}

// LoggingConfig defines basic logging knobs.
type LoggingConfig struct {
	Level    string `toml:"level" mapstructure:"level"`
	FilePath string `toml:"filePath" mapstructure:"filePath"`
}

// Config aggregates service configuration for a profile.
type Config struct {
	ProfileName string          `toml:"profileName" mapstructure:"profileName"`
	Server      ServerConfig    `toml:"server" mapstructure:"server"`
	Client      ClientConfig    `toml:"client" mapstructure:"client"`
	Storage     StorageConfig   `toml:"storage" mapstructure:"storage"`
	Inventory   InventoryConfig `toml:"inventory" mapstructure:"inventory"`
	Session     SessionConfig   `toml:"session" mapstructure:"session"`
	Events      EventsConfig    `toml:"events" mapstructure:"events"`
	Metrics     MetricsConfig   `toml:"metrics" mapstructure:"metrics"`
	Telemetry   TelemetryConfig `toml:"telemetry" mapstructure:"telemetry"`
	Logging     LoggingConfig   `toml:"logging" mapstructure:"logging"`
}

// Default returns a working single-machine profile.
func Default() *Config {
	return &Config{
		ProfileName: "default",
		Server:      ServerConfig{Addr: "127.0.0.1:8888", IdleTimeout: 5 * time.Minute},
		Client: ClientConfig{
			Addr:           "127.0.0.1:8888",
			ReadTimeout:    30 * time.Second,
			KeepAlive:      30 * time.Second,
			ReconnectDelay: 500 * time.Millisecond,
		},
		Storage:   StorageConfig{Driver: "sqlite", DSN: "data/motoshop.db", MaxConns: 10},
		Inventory: InventoryConfig{LowStockThreshold: 5},
		Session:   SessionConfig{Backend: "memory", TTL: 12 * time.Hour},
		Events:    EventsConfig{Backend: "none", Exchange: "motoshop.events"},
		Telemetry: TelemetryConfig{ServiceName: "motoshop", SampleRatio: 1},
		Logging:   LoggingConfig{Level: "info"},
	}
}

// Load reads config.toml from the provided path over the defaults, then
// applies environment overrides. An empty path uses defaults and environment only.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as TOML, creating the directory.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// applyEnv binds every key to its environment variable and decodes whatever
// is set on top of cfg.
func applyEnv(cfg *Config) error {
	v := viper.New()
	for _, key := range keys(reflect.TypeOf(*cfg), "") {
		env := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s: %w", env, err)
		}
	}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("decode environment overrides: %w", err)
	}
	return nil
}

// keys lists dotted toml keys of every leaf field.
func keys(t reflect.Type, prefix string) []string {
	var out []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := f.Tag.Get("toml")
		if name == "" {
			continue
		}
		if prefix != "" {
			name = prefix + "." + name
		}
		if f.Type.Kind() == reflect.Struct {
			out = append(out, keys(f.Type, name)...)
			continue
		}
		out = append(out, name)
	}
	return out
}

// Validate checks required fields and normalizes enumerations.
func (cfg *Config) Validate() error {
	if cfg.ProfileName == "" {
		return fmt.Errorf("profileName required")
	}
	if cfg.Server.Addr == "" {
		return fmt.Errorf("server.addr required")
	}
	cfg.Storage.Driver = strings.ToLower(cfg.Storage.Driver)
	switch cfg.Storage.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("storage.driver must be sqlite or postgres, got %q", cfg.Storage.Driver)
	}
	if cfg.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn required")
	}
	if cfg.Inventory.LowStockThreshold <= 0 {
		return fmt.Errorf("inventory.lowStockThreshold must be positive")
	}
	cfg.Session.Backend = strings.ToLower(cfg.Session.Backend)
	switch cfg.Session.Backend {
	case "memory":
	case "redis":
		if cfg.Session.RedisURL == "" {
			return fmt.Errorf("session.redisURL required for the redis backend")
		}
	default:
		return fmt.Errorf("session.backend must be memory or redis, got %q", cfg.Session.Backend)
	}
	cfg.Events.Backend = strings.ToLower(cfg.Events.Backend)
	switch cfg.Events.Backend {
	case "", "none":
		cfg.Events.Backend = "none"
	case "amqp":
		if cfg.Events.AMQPURL == "" {
			return fmt.Errorf("events.amqpURL required for the amqp backend")
		}
	default:
		return fmt.Errorf("events.backend must be none or amqp, got %q", cfg.Events.Backend)
	}
	if _, err := zapcore.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	return nil
}
