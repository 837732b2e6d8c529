package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration from environment variables.
type Config struct {
	Port      int
	DBPath    string
	InputDir  string // workbooks (and their grouping sidecars) to convert
	OutputDir string // where <name>.json records are written
	WriteJSON bool   // write records next to persisting them
	Sheet     string // schedule sheet inside each workbook
	Workers   int    // files converted in parallel
	SourceURL string // optional zip bundle of workbooks, checked daily
	Timezone  string // service-day timezone for feeds and the daily check
	LogLevel  slog.Level

	CORSOrigins []string
}

// Load reads configuration from environment variables with defaults.
// A .env file in the working directory is applied first when present;
// variables already set in the environment win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:        envInt("TRAINSHEET_PORT", 8080),
		DBPath:      envStr("TRAINSHEET_DB_PATH", "./trainsheet.db"),
		InputDir:    envStr("TRAINSHEET_INPUT_DIR", "./data/in"),
		OutputDir:   envStr("TRAINSHEET_OUTPUT_DIR", "./data/out"),
		WriteJSON:   envBool("TRAINSHEET_WRITE_JSON", true),
		Sheet:       envStr("TRAINSHEET_SHEET", "Sheet1"),
		Workers:     envInt("TRAINSHEET_WORKERS", 4),
		SourceURL:   envStr("TRAINSHEET_SOURCE_URL", ""),
		Timezone:    envStr("TRAINSHEET_TIMEZONE", "Europe/Prague"),
		LogLevel:    envLevel("TRAINSHEET_LOG_LEVEL", slog.LevelInfo),
		CORSOrigins: envList("TRAINSHEET_CORS_ORIGINS", []string{"*"}),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envLevel(key string, fallback slog.Level) slog.Level {
	if v := os.Getenv(key); v != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(v)); err == nil {
			return l
		}
	}
	return fallback
}

// envList splits a comma-separated value, dropping empty items.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
