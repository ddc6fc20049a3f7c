package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// LoadEnv loads variables from the file named by ENV_FILE, or .env, into
// the process environment. Variables already set are left alone. A missing
// file is not an error.
func LoadEnv() error {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = ".env"
	}

	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("No env file found, using the process environment", "path", path)
			return nil
		}
		return err
	}
	return nil
}

// LogLevel parses LOG_LEVEL. Unknown or empty values mean info.
func LogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv("LOG_LEVEL"))); err != nil {
		return slog.LevelInfo
	}
	return level
}
