// Package config loads application configuration from environment
// variables, optionally seeded from a .env file.
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

// Storage backends selectable with STORAGE.
const (
	StorageMySQL  = "mysql"
	StorageMemory = "memory"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env               string         // APP_ENV (development, production, ...)
	Port              string         // APP_PORT
	Location          *time.Location // APP_TIMEZONE, decides what "today" is for reservations
	Storage           string         // STORAGE: mysql or memory
	DBUser            string         // DB_USER
	DBPass            string         // DB_PASS (empty allowed)
	DBHost            string         // DB_HOST
	DBPort            string         // DB_PORT
	DBName            string         // DB_NAME
	DBMaxOpenConns    int            // DB_MAX_OPEN_CONNS
	DBMaxIdleConns    int            // DB_MAX_IDLE_CONNS
	DBConnMaxLifetime time.Duration  // DB_CONN_MAX_LIFETIME, e.g. 30m
	JWTSecret         string         // JWT_SECRET
	AccessTTLMin      int            // ACCESS_TOKEN_TTL_MIN
	RefreshTTLDays    int            // REFRESH_TOKEN_TTL_DAYS
	BcryptCost        int            // BCRYPT_COST
	LogLevel          string         // LOG_LEVEL
	RabbitURL         string         // RABBITMQ_URL, empty disables events
	EventLogPath      string         // EVENT_LOG_PATH, file the event consumer appends to
	KakaoRestKey      string         // KAKAO_REST_KEY, empty disables geocoding
	RetentionDays     int            // RETENTION_DAYS, 0 disables purging cancelled reservations
	OtelEndpoint      string         // OTEL_EXPORTER_OTLP_ENDPOINT, empty disables tracing export
}

// LoadDotEnv loads .env style files into the environment without
// overriding variables that are already set.  Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration values from environment variables.  Every
// missing or malformed required variable is reported in the returned
// error.  Database variables are only required for the mysql backend.
func Load() (Config, error) {
	var l loader
	cfg := Config{
		Env:               envStr("APP_ENV", "development"),
		Port:              envStr("APP_PORT", "8080"),
		Storage:           strings.ToLower(envStr("STORAGE", StorageMySQL)),
		DBPass:            os.Getenv("DB_PASS"),
		DBMaxOpenConns:    envInt("DB_MAX_OPEN_CONNS", 25),
		DBMaxIdleConns:    envInt("DB_MAX_IDLE_CONNS", 25),
		DBConnMaxLifetime: envDur("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		JWTSecret:         l.must("JWT_SECRET"),
		AccessTTLMin:      l.mustInt("ACCESS_TOKEN_TTL_MIN"),
		RefreshTTLDays:    l.mustInt("REFRESH_TOKEN_TTL_DAYS"),
		BcryptCost:        envInt("BCRYPT_COST", 10),
		LogLevel:          envStr("LOG_LEVEL", "info"),
		RabbitURL:         os.Getenv("RABBITMQ_URL"),
		EventLogPath:      envStr("EVENT_LOG_PATH", "logs/reservation.log"),
		KakaoRestKey:      os.Getenv("KAKAO_REST_KEY"),
		RetentionDays:     envInt("RETENTION_DAYS", 0),
		OtelEndpoint:      os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	switch cfg.Storage {
	case StorageMySQL:
		cfg.DBUser = l.must("DB_USER")
		cfg.DBHost = l.must("DB_HOST")
		cfg.DBPort = l.must("DB_PORT")
		cfg.DBName = l.must("DB_NAME")
	case StorageMemory:
	default:
		l.errs = append(l.errs, fmt.Errorf("invalid STORAGE %q: want %s or %s", cfg.Storage, StorageMySQL, StorageMemory))
	}

	tz := envStr("APP_TIMEZONE", "Asia/Seoul")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid APP_TIMEZONE %q: %w", tz, err))
		loc = time.UTC
	}
	cfg.Location = loc

	return cfg, errors.Join(l.errs...)
}

// loader collects the failures of required variables so they are all
// reported at once.
type loader struct{ errs []error }

// must retrieves the value of a required environment variable.
func (l *loader) must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		l.errs = append(l.errs, fmt.Errorf("missing required env var: %s", key))
	}
	return v
}

// mustInt is like must but converts the value into an integer.
func (l *loader) mustInt(key string) int {
	s := l.must(key)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		l.errs = append(l.errs, fmt.Errorf("invalid int for %s: %q", key, s))
	}
	return n
}
