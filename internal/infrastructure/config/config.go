package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig encapsulates all runtime configuration knobs.
type AppConfig struct {
	App        AppSettings
	HTTP       HTTPSettings
	Auth       AuthSettings
	Log        LogSettings
	Database   DatabaseSettings
	Audit      AuditSettings
	CRPT       CRPTSettings
	Submission SubmissionSettings
}

type AppSettings struct {
	Name        string
	Version     string
	Environment string
}

type HTTPSettings struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

type AuthSettings struct {
	Enabled       bool
	IssuerURI     string
	JWKSetURI     string
	ClockSkew     time.Duration
	BypassPaths   []string
	RequiredScope string // When set, tokens must carry it in "scope" or "scp"
}

type LogSettings struct {
	Level string
}

// DatabaseSettings describes the audit database. An empty Host disables it.
type DatabaseSettings struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuditSettings struct {
	Enabled         bool
	LogRequestBody  bool
	LogResponseBody bool
	MaxBodySize     int
	Retention       time.Duration // Zero keeps records forever
	PurgeInterval   time.Duration
}

// CRPTSettings configures the CRPT client. RequestLimit requests are allowed per TimeWindow,
// spaced evenly.
type CRPTSettings struct {
	BaseURL      string
	Token        string
	RequestLimit int
	TimeWindow   time.Duration
	APITimeout   time.Duration // Per request, starts once a rate limit slot is granted
	MaxConns     int           // Connections per host, independent of batch workers
}

type SubmissionSettings struct {
	Workers  int // Concurrent submissions inside one batch
	MaxBatch int
}

// Load resolves the application configuration from environment variables.
// It first attempts to load variables from a .env file if it exists.
// Environment variables set in the system take precedence over .env file values.
func Load() (AppConfig, error) {
	_ = godotenv.Load()

	cfg := AppConfig{
		App: AppSettings{
			Name:        getEnv("APP_NAME", "crptgateway"),
			Version:     getEnv("APP_VERSION", "0.1.0"),
			Environment: getEnv("APP_ENV", "local"),
		},
		HTTP: HTTPSettings{
			Port:            getEnvAsInt("APP_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvAsDuration("HTTP_WRITE_TIMEOUT", 2*time.Minute),
			IdleTimeout:     getEnvAsDuration("HTTP_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("HTTP_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Auth: AuthSettings{
			Enabled:       getEnvAsBool("AUTH_ENABLED", true),
			IssuerURI:     strings.TrimSpace(os.Getenv("JWT_ISSUER_URI")),
			JWKSetURI:     strings.TrimSpace(os.Getenv("JWT_JWK_SET_URI")),
			ClockSkew:     getEnvAsDuration("AUTH_CLOCK_SKEW", 2*time.Minute),
			BypassPaths:   getEnvAsCSV("AUTH_BYPASS_PATHS", []string{"/health", "/metrics"}),
			RequiredScope: strings.TrimSpace(os.Getenv("AUTH_REQUIRED_SCOPE")),
		},
		Log: LogSettings{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseSettings{
			Host:            strings.TrimSpace(os.Getenv("DB_HOST")),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Database:        getEnv("DB_NAME", "crptgateway"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Audit: AuditSettings{
			Enabled:         getEnvAsBool("AUDIT_ENABLED", true),
			LogRequestBody:  getEnvAsBool("AUDIT_LOG_REQUEST_BODY", false),
			LogResponseBody: getEnvAsBool("AUDIT_LOG_RESPONSE_BODY", true),
			MaxBodySize:     getEnvAsInt("AUDIT_MAX_BODY_SIZE", 102400),
			Retention:       getEnvAsDuration("AUDIT_RETENTION", 30*24*time.Hour),
			PurgeInterval:   getEnvAsDuration("AUDIT_PURGE_INTERVAL", time.Hour),
		},
		CRPT: CRPTSettings{
			BaseURL:      getEnv("CRPT_BASE_URL", "https://ismp.crpt.ru/api/v3/lk/documents/create"),
			Token:        strings.TrimSpace(os.Getenv("CRPT_TOKEN")),
			RequestLimit: getEnvAsInt("CRPT_REQUEST_LIMIT", 10),
			TimeWindow:   getEnvAsDuration("CRPT_TIME_WINDOW", time.Second),
			APITimeout:   getEnvAsDuration("CRPT_API_TIMEOUT", 30*time.Second),
			MaxConns:     getEnvAsInt("CRPT_MAX_CONNS_PER_HOST", 50),
		},
		Submission: SubmissionSettings{
			Workers:  getEnvAsInt("SUBMISSION_WORKERS", 4),
			MaxBatch: getEnvAsInt("SUBMISSION_MAX_BATCH", 100),
		},
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (cfg AppConfig) validate() error {
	if cfg.CRPT.Token == "" {
		return errors.New("invalid config: CRPT_TOKEN is required")
	}
	if cfg.CRPT.RequestLimit <= 0 {
		return errors.New("invalid config: CRPT_REQUEST_LIMIT must be greater than 0")
	}
	if cfg.CRPT.TimeWindow <= 0 {
		return errors.New("invalid config: CRPT_TIME_WINDOW must be greater than 0")
	}
	if cfg.CRPT.APITimeout <= 0 {
		return errors.New("invalid config: CRPT_API_TIMEOUT must be greater than 0")
	}
	if cfg.CRPT.MaxConns <= 0 {
		return errors.New("invalid config: CRPT_MAX_CONNS_PER_HOST must be greater than 0")
	}
	if cfg.Submission.Workers <= 0 {
		return errors.New("invalid config: SUBMISSION_WORKERS must be greater than 0")
	}
	if cfg.Audit.Retention < 0 {
		return errors.New("invalid config: AUDIT_RETENTION must not be negative")
	}
	if cfg.Submission.MaxBatch <= 0 {
		return errors.New("invalid config: SUBMISSION_MAX_BATCH must be greater than 0")
	}

	if cfg.Auth.Enabled {
		if cfg.Auth.IssuerURI == "" {
			return errors.New("invalid config: JWT_ISSUER_URI is required when AUTH_ENABLED=true")
		}
		if cfg.Auth.JWKSetURI == "" {
			return errors.New("invalid config: JWT_JWK_SET_URI is required when AUTH_ENABLED=true")
		}
	}
	return nil
}

// Address returns the HTTP listen address in host:port form.
func (h HTTPSettings) Address() string {
	return fmt.Sprintf(":%d", h.Port)
}

// Enabled reports whether an audit database is configured.
func (d DatabaseSettings) Enabled() bool {
	return d.Host != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsCSV(key string, fallback []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}

	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return fallback
	}
	return values
}
