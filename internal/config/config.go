package config

import (
	stderrors "errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"

	"cambi/internal/storage"
)

// Backends accepted by DATA_BACKEND.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

var validBackends = []string{BackendMemory, BackendFile, BackendSQLite, BackendRedis}

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

type Config struct {
	// HTTP Server
	Port string `env:"PORT" envDefault:"8081"`

	// Storage
	DataBackend         string `env:"DATA_BACKEND" envDefault:"file"`
	DataFile            string `env:"DATA_FILE" envDefault:"./data/entries.json"`
	SQLiteDBPath        string `env:"SQLITE_DB_PATH" envDefault:"./data/cambi.db"`
	RedisAddr           string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword       string `env:"REDIS_PASSWORD"`
	RedisDB             int    `env:"REDIS_DB" envDefault:"0"`
	StorageSlot         string `env:"STORAGE_SLOT" envDefault:"currencyEntries"`
	MalformedSlotPolicy string `env:"MALFORMED_SLOT_POLICY" envDefault:"fail"`

	// Summary page
	FilterYears       []int         `env:"FILTER_YEARS" envDefault:"2026,2025"`
	PrimaryCurrency   string        `env:"PRIMARY_CURRENCY" envDefault:"PLN"`
	SecondaryCurrency string        `env:"SECONDARY_CURRENCY" envDefault:"INR"`
	CacheTTL          time.Duration `env:"CACHE_TTL" envDefault:"5m"`

	// HTTP protection
	RateLimitPerMinute int      `env:"RATE_LIMIT_PER_MINUTE" envDefault:"60"`
	TrustedProxies     []string `env:"TRUSTED_PROXIES"`

	// AMQP
	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"cambi"`
	AMQPQueue    string `env:"AMQP_QUEUE" envDefault:"ledger_export"`

	// Google Sheets export
	GoogleSpreadsheetID       string        `env:"GOOGLE_SPREADSHEET_ID"`
	GoogleSheetName           string        `env:"GOOGLE_SHEET_NAME" envDefault:"Entries"`
	GoogleServiceAccountFile  string        `env:"GOOGLE_SERVICE_ACCOUNT_FILE"`
	GoogleServiceAccountJSON  string        `env:"GOOGLE_SERVICE_ACCOUNT_JSON"`
	ExportSchedule            string        `env:"EXPORT_SCHEDULE" envDefault:"@hourly"`
	ExportBreakerMaxFailures  uint32        `env:"EXPORT_BREAKER_MAX_FAILURES" envDefault:"3"`
	ExportBreakerOpenInterval time.Duration `env:"EXPORT_BREAKER_OPEN_INTERVAL" envDefault:"1m"`
	WorkerMetricsPort         string        `env:"WORKER_METRICS_PORT" envDefault:"9091"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// LoadFrom reads the configuration from vars instead of the process
// environment.
func LoadFrom(vars map[string]string) (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Environment: vars})
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}
	return &cfg, nil
}

// Validate validates the configuration and returns an error listing every
// problem found.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}
	switch c.DataBackend {
	case BackendFile:
		if c.DataFile == "" {
			errors = append(errors, "data file path cannot be empty when using file backend")
		}
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			errors = append(errors, "Redis address cannot be empty when using redis backend")
		}
		if c.RedisDB < 0 {
			errors = append(errors, fmt.Sprintf("invalid Redis DB %d: must not be negative", c.RedisDB))
		}
	}
	if strings.TrimSpace(c.StorageSlot) == "" {
		errors = append(errors, "storage slot name cannot be empty")
	}
	if err := storage.MalformedPolicy(c.MalformedSlotPolicy).Validate(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(c.FilterYears) == 0 {
		errors = append(errors, "at least one filter year is required")
	}
	for _, y := range c.FilterYears {
		if y < 1970 || y > 9999 {
			errors = append(errors, fmt.Sprintf("invalid filter year %d: must be between 1970 and 9999", y))
		}
	}
	if !currencyCode.MatchString(c.PrimaryCurrency) {
		errors = append(errors, fmt.Sprintf("invalid primary currency '%s': must be a 3-letter uppercase code", c.PrimaryCurrency))
	}
	if !currencyCode.MatchString(c.SecondaryCurrency) {
		errors = append(errors, fmt.Sprintf("invalid secondary currency '%s': must be a 3-letter uppercase code", c.SecondaryCurrency))
	}
	if c.CacheTTL < 0 {
		errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must not be negative", c.CacheTTL))
	}
	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	for _, p := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(p); err != nil && net.ParseIP(p) == nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be an IP address or CIDR", p))
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ErrProcessLocalBackend is returned when a process that does not own the
// ledger is configured with the in-process memory backend.
var ErrProcessLocalBackend = stderrors.New("memory backend is local to the cambi server process")

// ValidateSharedStore rejects backends another process cannot see.
func (c *Config) ValidateSharedStore() error {
	if c.DataBackend == BackendMemory {
		return fmt.Errorf("DATA_BACKEND=%s: %w; use file, sqlite or redis", c.DataBackend, ErrProcessLocalBackend)
	}
	return nil
}

// ValidateExport checks the settings only the export worker needs.
func (c *Config) ValidateExport() error {
	var errors []string

	if err := c.ValidateSharedStore(); err != nil {
		errors = append(errors, err.Error())
	}

	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required for the export worker")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "Google Sheet name is required for the export worker")
	}
	hasFile := c.GoogleServiceAccountFile != ""
	if !hasFile && c.GoogleServiceAccountJSON == "" {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided")
	}
	if hasFile {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	if _, err := cron.ParseStandard(c.ExportSchedule); err != nil {
		errors = append(errors, fmt.Sprintf("invalid export schedule '%s': %v", c.ExportSchedule, err))
	}
	if c.ExportBreakerMaxFailures < 1 {
		errors = append(errors, "export breaker max failures must be at least 1")
	}
	if port, err := strconv.Atoi(c.WorkerMetricsPort); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid worker metrics port '%s': must be between 1 and 65535", c.WorkerMetricsPort))
	}

	if len(errors) > 0 {
		return fmt.Errorf("export configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + c.Port
}
