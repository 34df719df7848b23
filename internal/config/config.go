package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"
)

type Config struct {
	Addr     string
	LogLevel slog.Level

	Store         string
	SQLitePath    string
	MongoURI      string
	MongoDatabase string

	JWTSecret string
	JWTIssuer string
	JWTTTL    time.Duration

	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration

	TraceExporter string
	ServiceName   string
}

// Load reads .env (if present) without overriding variables already set,
// then builds the Config from the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv, applying defaults and collecting
// every invalid value into one error.
func FromEnv(getenv func(string) string) (Config, error) {
	p := parser{getenv: getenv}

	cfg := Config{
		Addr:     p.str("ADDR", ":8080"),
		LogLevel: p.level("LOG_LEVEL"),

		Store:         strings.ToLower(p.str("STORE", StoreSQLite)),
		SQLitePath:    p.str("SQLITE_PATH", "data/tasks.db"),
		MongoURI:      p.str("MONGO_URI", ""),
		MongoDatabase: p.str("MONGO_DATABASE", "tasktracker"),

		JWTSecret: p.str("JWT_SECRET", ""),
		JWTIssuer: p.str("JWT_ISSUER", "tasktracker"),
		JWTTTL:    p.duration("JWT_TTL", 24*time.Hour),

		CORSAllowedOrigins: p.list("CORS_ALLOWED_ORIGINS", []string{"*"}),
		RateLimitRPS:       p.number("RATE_LIMIT_RPS", 20),
		RateLimitBurst:     p.integer("RATE_LIMIT_BURST", 40),
		RequestTimeout:     p.duration("REQUEST_TIMEOUT", 15*time.Second),
		ShutdownTimeout:    p.duration("SHUTDOWN_TIMEOUT", 20*time.Second),

		TraceExporter: strings.ToLower(p.str("OTEL_TRACES_EXPORTER", "none")),
		ServiceName:   p.str("OTEL_SERVICE_NAME", "tasktracker"),
	}

	switch cfg.Store {
	case StoreMemory, StoreSQLite:
	case StoreMongo:
		if cfg.MongoURI == "" {
			p.fail("MONGO_URI is required when STORE=mongo")
		}
	default:
		p.fail(fmt.Sprintf("STORE must be one of memory, sqlite, mongo; got %q", cfg.Store))
	}
	if cfg.JWTSecret == "" {
		p.fail("JWT_SECRET is required")
	}
	switch cfg.TraceExporter {
	case "none", "stdout", "otlp":
	default:
		p.fail(fmt.Sprintf("OTEL_TRACES_EXPORTER must be one of none, stdout, otlp; got %q", cfg.TraceExporter))
	}

	if err := p.err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) fail(msg string) {
	p.errs = append(p.errs, errors.New(msg))
}

func (p *parser) err() error {
	return errors.Join(p.errs...)
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(p.getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) level(key string) slog.Level {
	switch strings.ToLower(p.str(key, "info")) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		p.fail(fmt.Sprintf("%s must be one of debug, info, warn, error", key))
		return slog.LevelInfo
	}
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		p.fail(fmt.Sprintf("%s must be a positive duration, got %q", key, v))
		return def
	}
	return d
}

func (p *parser) number(key string, def float64) float64 {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		p.fail(fmt.Sprintf("%s must be a non-negative number, got %q", key, v))
		return def
	}
	return f
}

func (p *parser) integer(key string, def int) int {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		p.fail(fmt.Sprintf("%s must be a non-negative integer, got %q", key, v))
		return def
	}
	return n
}

func (p *parser) list(key string, def []string) []string {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
