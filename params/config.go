package params

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Log struct {
	Level      string // zap level name: debug, info, warn, error
	File       string // optional; when set, logs are teed to this file
	CommandLog string // optional; console commands are appended here as JSON lines
}

type API struct {
	Enabled        bool
	Addr           string
	AllowedOrigins []string
}

type Feeder struct {
	Enabled   bool
	Interval  time.Duration
	BatchSize int
}

type Config struct {
	// Instruments lists the books created at startup. The first one is the
	// default for commands that do not name an instrument.
	Instruments []string

	// TradeTapeLimit caps the trades kept per instrument (0 keeps all).
	TradeTapeLimit int

	Log    Log
	API    API
	Feeder Feeder
}

func Default() Config {
	return Config{
		Instruments:    []string{"STOCK"},
		TradeTapeLimit: 1000,
		Log: Log{
			Level: "info",
		},
		API: API{
			Enabled:        false,
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Feeder: Feeder{
			Enabled:   false,
			Interval:  100 * time.Millisecond,
			BatchSize: 10,
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	if v := splitList(os.Getenv("INSTRUMENTS")); len(v) > 0 {
		cfg.Instruments = v
	}
	if n, ok := envInt("TRADE_TAPE_LIMIT"); ok && n >= 0 {
		cfg.TradeTapeLimit = n
	}

	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = getEnv("LOG_FILE", cfg.Log.File)
	cfg.Log.CommandLog = getEnv("COMMAND_LOG", cfg.Log.CommandLog)

	if v := os.Getenv("ENABLE_API"); v != "" {
		cfg.API.Enabled = v == "true"
	}
	cfg.API.Addr = getEnv("API_ADDR", cfg.API.Addr)
	if v := splitList(os.Getenv("CORS_ORIGINS")); len(v) > 0 {
		cfg.API.AllowedOrigins = v
	}

	if v := os.Getenv("ENABLE_TXGEN"); v != "" {
		cfg.Feeder.Enabled = v == "true"
	}
	if ms, ok := envInt("TXGEN_INTERVAL_MS"); ok && ms > 0 {
		cfg.Feeder.Interval = time.Duration(ms) * time.Millisecond
	}
	if n, ok := envInt("TXGEN_BATCH"); ok && n > 0 {
		cfg.Feeder.BatchSize = n
	}

	return cfg
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// splitList parses "a, b,,c" into [a b c].
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
