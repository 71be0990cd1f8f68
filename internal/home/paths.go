// Package home resolves the paths of the courier data directory.
package home

import (
	"os"
	"path/filepath"
)

// envOverride lets tests and multi-account setups relocate the data dir.
const envOverride = "COURIER_HOME"

// Dir returns the courier data directory, ~/.courier by default.
func Dir() string {
	if dir := os.Getenv(envOverride); dir != "" {
		return dir
	}
	userHome, _ := os.UserHomeDir()
	return filepath.Join(userHome, ".courier")
}

// ConfigPath returns the config file path.
func ConfigPath() string {
	return filepath.Join(Dir(), "config.toml")
}

// DBPath returns the app-owned courier.db path.
func DBPath() string {
	return filepath.Join(Dir(), "courier.db")
}

// LogDir returns the log directory.
func LogDir() string {
	return filepath.Join(Dir(), "logs")
}

// LogPath returns the sync log file path.
func LogPath() string {
	return filepath.Join(LogDir(), "courier.log")
}

// EnsureDir creates the data directory tree with owner-only permissions.
func EnsureDir() error {
	for _, d := range []string{Dir(), LogDir()} {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
