package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"donorcrm/internal/rates"
)

var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")
	ErrMissingRateAPIKey  = errors.New("RATE_API_KEY is required when RATE_API_KEY_REQUIRED=true")
	ErrInvalidDatePolicy  = errors.New("RATE_DATE_POLICY must be record or current")
)

type Config struct {
	AppEnv         string
	Port           string
	DatabaseURL    string
	JWTSecret      string
	TokenTTL       time.Duration
	AllowedOrigins string
	LogLevel       string
	MigrationsDir  string

	RateAPIURL         string
	RateAPIKey         string
	RateAPIKeyRequired bool
	RateAPITimeout     time.Duration
	RateBaseCurrency   string
	RateFallbackXMLURL string
	RateStaleWindow    int
	RateDatePolicy     string

	ReportDir     string
	CheckSchedule string

	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	NotifyFrom   string
	NotifyTo     []string
}

// Load reads the environment. A missing DATABASE_URL is always an error;
// callers decide whether that is fatal.
func Load() (Config, error) {
	cfg := Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		JWTSecret:      getEnv("JWT_SECRET", "dev-secret-change-me"),
		TokenTTL:       getDuration("TOKEN_TTL_MINUTES", 60),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "*"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		MigrationsDir:  getEnv("MIGRATIONS_DIR", "migrations"),

		RateAPIURL:         getEnv("RATE_API_URL", "https://api.exchangerate.host"),
		RateAPIKey:         os.Getenv("RATE_API_KEY"),
		RateAPIKeyRequired: getBool("RATE_API_KEY_REQUIRED", false),
		RateAPITimeout:     time.Duration(getInt("RATE_API_TIMEOUT_SECONDS", 10)) * time.Second,
		RateBaseCurrency:   strings.ToUpper(getEnv("RATE_BASE_CURRENCY", "USD")),
		RateFallbackXMLURL: getEnv("RATE_FALLBACK_XML_URL", "https://www.ecb.europa.eu/stats/eurofxref/eurofxref-daily.xml"),
		RateStaleWindow:    getInt("RATE_STALE_WINDOW_DAYS", 30),
		RateDatePolicy:     strings.ToLower(getEnv("RATE_DATE_POLICY", rates.DatePolicyRecord)),

		ReportDir:     getEnv("REPORT_DIR", "reports"),
		CheckSchedule: getEnv("CHECK_SCHEDULE", "0 3 * * *"),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		NotifyFrom:   os.Getenv("NOTIFY_FROM"),
		NotifyTo:     splitList(os.Getenv("NOTIFY_TO")),
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return ErrMissingDatabaseURL
	}
	if c.RateAPIKeyRequired && c.RateAPIKey == "" {
		return ErrMissingRateAPIKey
	}
	if c.RateDatePolicy != rates.DatePolicyRecord && c.RateDatePolicy != rates.DatePolicyCurrent {
		return fmt.Errorf("%w: %q", ErrInvalidDatePolicy, c.RateDatePolicy)
	}
	return nil
}

// EmailEnabled reports whether run summaries can be mailed.
func (c Config) EmailEnabled() bool {
	return c.SMTPHost != "" && c.NotifyFrom != "" && len(c.NotifyTo) > 0
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getBool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func getDuration(key string, fallbackMinutes int) time.Duration {
	return time.Duration(getInt(key, fallbackMinutes)) * time.Minute
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
