// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import "time"

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Upstream UpstreamConfig
	Database DatabaseConfig
	Table    TableConfig
	Export   ExportConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 2m for large exports)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"2m"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 60s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"60s"`
}

// UpstreamConfig holds settings for the remote JSON API that owns the records.
type UpstreamConfig struct {
	// BaseURL is the API root, e.g. https://api.example.com (required)
	// Supports both API_BASE_URL and UPSTREAM_URL env vars for compatibility
	BaseURL string `env:"API_BASE_URL" envAlt:"UPSTREAM_URL" required:"true"`

	// CookieName is the session cookie the API authenticates with (default: connect.sid)
	CookieName string `env:"API_COOKIE_NAME" default:"connect.sid"`

	// SessionToken is the session cookie value sent with every request
	SessionToken string `env:"API_SESSION_TOKEN"`

	// Timeout bounds a single API round-trip (default: 15s)
	Timeout time.Duration `env:"API_TIMEOUT" default:"15s"`

	// RequestsPerSecond is the client-side rate limit towards the API (default: 10)
	RequestsPerSecond float64 `env:"API_RATE_LIMIT" default:"10"`

	// Burst is the rate limiter bucket size (default: 20)
	Burst int `env:"API_RATE_BURST" default:"20"`
}

// DatabaseConfig holds settings for the optional audit database.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. Audit entries only go to the
	// log when it is empty.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 5)
	MaxConns int `env:"DB_MAX_CONNS" default:"5"`

	// MinConns is the minimum number of connections to keep open (default: 1)
	MinConns int `env:"DB_MIN_CONNS" default:"1"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// TableConfig holds settings for the table engine.
type TableConfig struct {
	// DefaultPageSize is used when a request does not ask for one (default: 10)
	DefaultPageSize int `env:"TABLE_PAGE_SIZE" default:"10"`

	// MaxPageSize caps the page size a client may request (default: 100)
	MaxPageSize int `env:"TABLE_MAX_PAGE_SIZE" default:"100"`

	// SearchDebounce coalesces refresh triggers fired in quick succession (default: 300ms)
	SearchDebounce time.Duration `env:"TABLE_SEARCH_DEBOUNCE" default:"300ms"`

	// RefreshInterval is how often cached records are re-fetched (default: 5m)
	RefreshInterval time.Duration `env:"TABLE_REFRESH_INTERVAL" default:"5m"`

	// SessionTTL is how long an idle column-visibility session is kept (default: 12h)
	SessionTTL time.Duration `env:"TABLE_SESSION_TTL" default:"12h"`

	// Locale drives number grouping in rendered cells (default: es-MX)
	Locale string `env:"TABLE_LOCALE" default:"es-MX"`

	// Timezone is used when formatting dates (default: UTC)
	Timezone string `env:"TABLE_TIMEZONE" default:"UTC"`

	// LegacyStringSort compares every column as lowercase strings (default: false)
	LegacyStringSort bool `env:"TABLE_LEGACY_STRING_SORT" default:"false"`

	// ConfigDir optionally points at extra YAML table definitions
	ConfigDir string `env:"TABLE_CONFIG_DIR"`
}

// ExportConfig holds export settings.
type ExportConfig struct {
	// MaxConcurrent is the maximum number of parallel exports (default: 4)
	MaxConcurrent int `env:"EXPORT_MAX_CONCURRENT" default:"4"`

	// MaxWaitTime is how long to wait for an export slot (default: 10s)
	MaxWaitTime time.Duration `env:"EXPORT_MAX_WAIT_TIME" default:"10s"`

	// Timeout is the maximum duration for a single export (default: 2m)
	Timeout time.Duration `env:"EXPORT_TIMEOUT" default:"2m"`

	// PDFMaxRows caps the rows of the printable report (default: 50)
	PDFMaxRows int `env:"EXPORT_PDF_MAX_ROWS" default:"50"`

	// PDFMaxColumns caps the columns of the printable report (default: 6)
	PDFMaxColumns int `env:"EXPORT_PDF_MAX_COLUMNS" default:"6"`

	// Brand is printed in the report header (default: Joyería)
	Brand string `env:"EXPORT_BRAND" default:"Joyería"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"100"`

	// ExportLimit is requests per minute for export endpoints (default: 10)
	ExportLimit int `env:"RATE_LIMIT_EXPORT" default:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey enforces X-API-Key on /api routes (default: false)
	RequireAPIKey bool `env:"REQUIRE_API_KEY" default:"false"`

	// APIKeys is a comma-separated list of accepted API keys
	APIKeys []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// AuditEnabled reports whether audit entries are persisted to Postgres.
func (c *DatabaseConfig) AuditEnabled() bool {
	return c.URL != ""
}

// itoa converts an int to string without importing strconv in this file.
func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
