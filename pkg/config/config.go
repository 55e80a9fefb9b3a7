package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Booking  BookingConfig
	Billing  BillingConfig
	Jobs     JobsConfig
	Email    EmailConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// BookingConfig tunes slot generation and booking rules.
type BookingConfig struct {
	SlotGranularity    time.Duration
	AdvanceHorizonDays int
	DefaultTimezone    string
	RateCardCacheTTL   time.Duration
	MinCancelNoticeHrs int
}

// BillingConfig controls the monthly invoice run.
type BillingConfig struct {
	Currency          string
	InvoiceDayOfMonth int
}

// JobsConfig tunes the background job runs.
type JobsConfig struct {
	MaterializeHorizonWeeks int
	HistoryDefaultLimit     int
	EmailWorkers            int
	EmailQueueSize          int
}

// EmailConfig configures the outbound SMTP sender.
type EmailConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Booking = BookingConfig{
		SlotGranularity:    parseDuration(v.GetString("BOOKING_SLOT_GRANULARITY"), 30*time.Minute),
		AdvanceHorizonDays: v.GetInt("BOOKING_ADVANCE_HORIZON_DAYS"),
		DefaultTimezone:    v.GetString("BOOKING_DEFAULT_TIMEZONE"),
		RateCardCacheTTL:   parseDuration(v.GetString("BOOKING_RATE_CARD_CACHE_TTL"), 5*time.Minute),
		MinCancelNoticeHrs: v.GetInt("BOOKING_MIN_CANCEL_NOTICE_HOURS"),
	}

	cfg.Billing = BillingConfig{
		Currency:          v.GetString("BILLING_CURRENCY"),
		InvoiceDayOfMonth: v.GetInt("BILLING_INVOICE_DAY_OF_MONTH"),
	}

	cfg.Jobs = JobsConfig{
		MaterializeHorizonWeeks: v.GetInt("JOBS_MATERIALIZE_HORIZON_WEEKS"),
		HistoryDefaultLimit:     v.GetInt("JOBS_HISTORY_DEFAULT_LIMIT"),
		EmailWorkers:            v.GetInt("JOBS_EMAIL_WORKERS"),
		EmailQueueSize:          v.GetInt("JOBS_EMAIL_QUEUE_SIZE"),
	}

	cfg.Email = EmailConfig{
		Enabled:  v.GetBool("EMAIL_ENABLED"),
		Host:     v.GetString("SMTP_HOST"),
		Port:     v.GetInt("SMTP_PORT"),
		Username: v.GetString("SMTP_USERNAME"),
		Password: v.GetString("SMTP_PASSWORD"),
		From:     v.GetString("EMAIL_FROM"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "clefbook")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("BOOKING_SLOT_GRANULARITY", "30m")
	v.SetDefault("BOOKING_ADVANCE_HORIZON_DAYS", 60)
	v.SetDefault("BOOKING_DEFAULT_TIMEZONE", "UTC")
	v.SetDefault("BOOKING_RATE_CARD_CACHE_TTL", "5m")
	v.SetDefault("BOOKING_MIN_CANCEL_NOTICE_HOURS", 24)

	v.SetDefault("BILLING_CURRENCY", "USD")
	v.SetDefault("BILLING_INVOICE_DAY_OF_MONTH", 1)

	v.SetDefault("JOBS_MATERIALIZE_HORIZON_WEEKS", 6)
	v.SetDefault("JOBS_HISTORY_DEFAULT_LIMIT", 20)
	v.SetDefault("JOBS_EMAIL_WORKERS", 2)
	v.SetDefault("JOBS_EMAIL_QUEUE_SIZE", 64)

	v.SetDefault("EMAIL_ENABLED", false)
	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("EMAIL_FROM", "no-reply@clefbook.io")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
