package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads .env and then .env.<ENV> from the working directory.
// Existing process variables win over .env; .env.<ENV> overrides .env.
// Missing files are not an error.
func LoadDotEnv() error {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	appEnv := os.Getenv("ENV")
	if appEnv == "" {
		return nil
	}
	envFile := ".env." + appEnv
	if err := godotenv.Overload(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", envFile, err)
	}
	return nil
}
