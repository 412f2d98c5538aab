// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, storage backends, Stripe webhooks, the
// expiry sweeper, rate limiting, and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-deals-backend")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// RedisConfig points at the optional Redis used for the sweeper lock.
// An empty Addr disables Redis entirely.
type RedisConfig struct {
	Addr     string // REDIS_ADDR (e.g. "localhost:6379")
	Password string // REDIS_PASSWORD
	DB       int    // REDIS_DB
}

// ScannerConfig configures the cmd/scanner operator client.
type ScannerConfig struct {
	APIURL       string        // SCANNER_API_URL, base URL including API_BASE_PATH
	UserID       string        // SCANNER_USER_ID, sent as X-User-ID
	PollInterval time.Duration // SCANNER_POLL_INTERVAL
	Debounce     time.Duration // SCANNER_DEBOUNCE, ignore the same code within this window
	HistorySize  int           // SCANNER_HISTORY_SIZE
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Storage
	DBDriver      string // sqlite|postgres
	DBPath        string // SQLite path (DB_DRIVER=sqlite)
	DatabaseURL   string // Postgres DSN (DB_DRIVER=postgres, e.g. Supabase)
	LedgerBackend string // gorm|memory
	DealsSeedPath string // optional JSON file with the deal catalog

	// Redemption
	CouponTTL      time.Duration // validity window for newly issued coupons
	RecordNotFound bool          // persist unknown codes as "invalid" transactions
	SweepInterval  time.Duration // expiry sweeper period; 0 disables
	SweepBatch     int           // max coupons expired per sweep
	DevIssue       bool          // mount POST /coupons; never in release mode

	// Billing
	StripeWebhookSecret string // whsec_...; empty rejects every webhook

	Redis   RedisConfig
	Scanner ScannerConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables, applies defaults and
// validates the result. A variable that is set but cannot be parsed is an
// error rather than a silent fallback; every problem found is reported in a
// single joined error.
func Load() (Config, error) {
	e := &env{lookup: os.LookupEnv}

	cfg := Config{
		Port:              e.str("PORT", "8080"),
		ReadTimeout:       e.dur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: e.dur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      e.dur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       e.dur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    e.integer("MAX_HEADER_BYTES", 1<<20),
		GinMode:           e.oneOf("GIN_MODE", "release", "debug", "release", "test"),

		LogLevel:       e.str("LOG_LEVEL", "info"),
		LogPretty:      e.flag("LOG_PRETTY", false),
		SwaggerEnabled: e.flag("SWAGGER_ENABLED", false),
		APIBasePath:    basePath(e.str("API_BASE_PATH", "/api/v1")),

		DBDriver:      strings.ToLower(e.str("DB_DRIVER", "sqlite")),
		DBPath:        e.str("DB_PATH", "app.db"),
		DatabaseURL:   e.str("DATABASE_URL", ""),
		LedgerBackend: strings.ToLower(e.str("LEDGER_BACKEND", "gorm")),
		DealsSeedPath: e.str("DEALS_SEED_PATH", ""),

		CouponTTL:      e.dur("COUPON_TTL", 30*24*time.Hour),
		RecordNotFound: e.flag("REDEMPTION_RECORD_NOT_FOUND", false),
		SweepInterval:  e.dur("EXPIRY_SWEEP_INTERVAL", 5*time.Minute),
		SweepBatch:     e.integer("EXPIRY_SWEEP_BATCH", 500),
		DevIssue:       e.flag("DEV_ISSUE_ENABLED", false),

		StripeWebhookSecret: e.str("STRIPE_WEBHOOK_SECRET", ""),

		Redis: RedisConfig{
			Addr:     e.str("REDIS_ADDR", ""),
			Password: e.str("REDIS_PASSWORD", ""),
			DB:       e.integer("REDIS_DB", 0),
		},
		Scanner: ScannerConfig{
			APIURL:       strings.TrimRight(e.str("SCANNER_API_URL", "http://localhost:8080/api/v1"), "/"),
			UserID:       e.str("SCANNER_USER_ID", "demo-user"),
			PollInterval: e.dur("SCANNER_POLL_INTERVAL", 250*time.Millisecond),
			Debounce:     e.dur("SCANNER_DEBOUNCE", 3*time.Second),
			HistorySize:  e.integer("SCANNER_HISTORY_SIZE", 50),
		},

		RateRPS:   e.number("RATE_RPS", 5.0),
		RateBurst: e.integer("RATE_BURST", 10),

		CORS: CORSConfig{AllowedOrigins: e.list("CORS_ALLOWED_ORIGINS")},
		Security: SecurityConfig{
			EnableHSTS: e.flag("ENABLE_HSTS", false),
			HSTSMaxAge: e.dur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: e.dur("IDEMPOTENCY_TTL", 24*time.Hour),

		OTEL: OTELConfig{
			Enabled:     e.flag("OTEL_ENABLED", false),
			Endpoint:    e.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    e.flag("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: e.str("OTEL_SERVICE_NAME", "go-deals-backend"),
			SampleRatio: e.number("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}

	return cfg, errors.Join(append(e.errs, cfg.validate()...)...)
}

func (c Config) validate() []error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error, fatal, panic", c.LogLevel))
	}
	check(strings.TrimSpace(c.Port) != "", "PORT must not be empty")
	check(c.ReadTimeout > 0 && c.ReadHeaderTimeout > 0 && c.WriteTimeout > 0 && c.IdleTimeout > 0,
		"server timeouts must be positive")
	check(c.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")

	switch c.DBDriver {
	case "sqlite":
		check(strings.TrimSpace(c.DBPath) != "", "DB_PATH must not be empty")
	case "postgres":
		check(strings.TrimSpace(c.DatabaseURL) != "", "DATABASE_URL is required when DB_DRIVER=postgres")
	default:
		errs = append(errs, fmt.Errorf("DB_DRIVER %q is not one of sqlite, postgres", c.DBDriver))
	}
	if c.LedgerBackend != "gorm" && c.LedgerBackend != "memory" {
		errs = append(errs, fmt.Errorf("LEDGER_BACKEND %q is not one of gorm, memory", c.LedgerBackend))
	}

	check(c.CouponTTL > 0, "COUPON_TTL must be > 0")
	check(c.SweepInterval >= 0, "EXPIRY_SWEEP_INTERVAL must be >= 0")
	check(c.SweepBatch >= 1, "EXPIRY_SWEEP_BATCH must be >= 1")
	check(!c.DevIssue || c.GinMode != "release", "DEV_ISSUE_ENABLED requires GIN_MODE=debug or test")
	check(c.Scanner.PollInterval > 0, "SCANNER_POLL_INTERVAL must be > 0")
	check(c.Scanner.HistorySize >= 1, "SCANNER_HISTORY_SIZE must be >= 1")
	check(c.RateRPS >= 0, "RATE_RPS must be >= 0")
	check(c.RateBurst >= 1, "RATE_BURST must be >= 1")
	check(c.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(c.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(c.OTEL.SampleRatio >= 0 && c.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	return errs
}

// env reads typed values and remembers every variable it failed to parse.
// Unset and empty variables yield the default.
type env struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *env) raw(k string) (string, bool) {
	v, ok := e.lookup(k)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func (e *env) bad(k, v, want string) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q: want %s", k, v, want))
}

func (e *env) str(k, def string) string {
	if v, ok := e.raw(k); ok {
		return v
	}
	return def
}

func (e *env) integer(k string, def int) int {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		e.bad(k, v, "an integer")
		return def
	}
	return n
}

func (e *env) number(k string, def float64) float64 {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		e.bad(k, v, "a number")
		return def
	}
	return f
}

func (e *env) dur(k string, def time.Duration) time.Duration {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		e.bad(k, v, "a duration such as 30s or 5m")
		return def
	}
	return d
}

func (e *env) flag(k string, def bool) bool {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	e.bad(k, v, "a boolean")
	return def
}

// oneOf lowercases the value and falls back to def when it is not allowed.
// An unknown value yields def.
func (e *env) oneOf(k, def string, allowed ...string) string {
	v := strings.ToLower(strings.TrimSpace(e.str(k, def)))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return def
}

// list splits a comma-separated variable, dropping blank entries.
func (e *env) list(k string) []string {
	v, ok := e.raw(k)
	if !ok {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// basePath returns p with exactly one leading slash and no trailing slash.
// An empty path becomes "/".
func basePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
