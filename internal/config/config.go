// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Backend names accepted by TABLE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendXLSX     = "xlsx"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Table    TableConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
	Realtime RealtimeConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0, websocket feeds stay open)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// DatabaseConfig holds database connection settings. Only the postgres
// backend connects.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string.
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 20)
	MaxConns int `env:"DB_MAX_CONNS" default:"20"`

	// MinConns is the minimum number of connections to keep open (default: 4)
	MinConns int `env:"DB_MIN_CONNS" default:"4"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// TableConfig selects the table definitions and where their rows live.
type TableConfig struct {
	// Definitions is the YAML file with the table definitions.
	Definitions string `env:"TABLE_DEFINITIONS" default:"definitions/products.yaml"`

	// Backend is one of memory, postgres or xlsx (default: memory)
	Backend string `env:"TABLE_BACKEND" default:"memory"`

	// Seed writes each definition's seed rows into an empty backend (default: true)
	Seed bool `env:"TABLE_SEED" default:"true"`

	// ManualPagination fetches one page at a time from the database (postgres only)
	ManualPagination bool `env:"TABLE_MANUAL_PAGINATION" default:"false"`

	// OperationTimeout bounds every save, add and delete call (default: 30s)
	OperationTimeout time.Duration `env:"TABLE_OPERATION_TIMEOUT" default:"30s"`

	// MemoryLatency delays every call of the memory backend (default: 0s)
	MemoryLatency time.Duration `env:"MEMORY_LATENCY" default:"0s"`

	// MemoryFailureRate is the chance in [0,1] that a memory backend call is rejected (default: 0)
	MemoryFailureRate float64 `env:"MEMORY_FAILURE_RATE" default:"0"`

	// XLSXPath is the workbook used by the xlsx backend
	XLSXPath string `env:"XLSX_PATH" default:"data/editgrid.xlsx"`

	// XLSXWatch reloads tables when the workbook changes on disk (default: true)
	XLSXWatch bool `env:"XLSX_WATCH" default:"true"`

	// XLSXDebounce is how long file events settle before reloading (default: 250ms)
	XLSXDebounce time.Duration `env:"XLSX_DEBOUNCE" default:"250ms"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey guards every mutating API call with X-API-Key (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// RealtimeConfig holds the websocket change feed settings.
type RealtimeConfig struct {
	// Enabled serves /ws/{table} (default: true)
	Enabled bool `env:"REALTIME_ENABLED" default:"true"`

	// SendBuffer is the per-client outbound queue length (default: 16)
	SendBuffer int `env:"REALTIME_SEND_BUFFER" default:"16"`

	// PongWait is how long a silent client is kept (default: 60s)
	PongWait time.Duration `env:"REALTIME_PONG_WAIT" default:"60s"`

	// PingInterval must be shorter than PongWait (default: 54s)
	PingInterval time.Duration `env:"REALTIME_PING_INTERVAL" default:"54s"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
