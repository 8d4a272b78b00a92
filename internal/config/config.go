package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath string
	Addr   string
}

// Load reads .env from the working directory when present, then the
// environment. A missing .env is fine; the environment and defaults apply.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("could not read .env", "error", err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return &Config{
		DBPath: getEnv("ATTEND_DB", filepath.Join(home, ".attend", "attend.db")),
		Addr:   getEnv("ATTEND_ADDR", ":8080"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
