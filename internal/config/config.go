package config

import (
	"time"
)

// Config is the complete application configuration. Values are layered by
// viper: defaults, then the config file, then DOCGATE_* environment
// variables, then command flags.
type Config struct {
	Gate      GateConfig      `mapstructure:"gate"`
	Transport TransportConfig `mapstructure:"transport"`
	Store     StoreConfig     `mapstructure:"store"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Server    ServerConfig    `mapstructure:"server"`
	Inbound   InboundConfig   `mapstructure:"inbound"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`
}

// GateConfig sizes the admission window.
type GateConfig struct {
	// Period is a unit name (second, minute, hour, day) or a Go duration.
	Period string `mapstructure:"period"`

	// Limit is the number of submissions admitted per period.
	Limit int `mapstructure:"limit"`

	// MaxWait bounds how long a submission waits for quota. Zero waits forever.
	MaxWait time.Duration `mapstructure:"max_wait"`
}

// TransportConfig configures the outbound HTTP call.
type TransportConfig struct {
	Endpoint        string        `mapstructure:"endpoint"`
	Timeout         time.Duration `mapstructure:"timeout"`
	SignatureHeader string        `mapstructure:"signature_header"`
	UserAgent       string        `mapstructure:"user_agent"`
	TraceFile       string        `mapstructure:"trace_file"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// LedgerConfig controls receipt recording.
type LedgerConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Retention time.Duration `mapstructure:"retention"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

// InboundConfig throttles relay clients before they queue on the gate.
type InboundConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	Rate    float64 `mapstructure:"rate"`
	Burst   int     `mapstructure:"burst"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects SIMPLE (CLI) or STRUCTURED (server) output.
	Profile string `mapstructure:"profile"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}
