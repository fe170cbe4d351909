// Package envfile reads and writes ~/.murdev/.env.
package envfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Path returns the path to ~/.murdev/.env
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".murdev", ".env"), nil
}

// Load reads ~/.murdev/.env and sets environment variables.
// It does NOT override existing environment variables.
func Load() error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil // no .env file is fine
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Get reads a key from ~/.murdev/.env without setting env vars.
func Get(key string) string {
	path, err := Path()
	if err != nil {
		return ""
	}
	entries, err := godotenv.Read(path)
	if err != nil {
		return ""
	}
	return entries[key]
}

// Set writes or updates a key=value in ~/.murdev/.env.
// The file is kept at 0600 since it may hold server credentials.
func Set(key, value string) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	entries, err := godotenv.Read(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("read %s: %w", path, err)
		}
		entries = map[string]string{}
	}
	entries[key] = value

	if err := godotenv.Write(entries, path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return os.Chmod(path, 0600)
}
