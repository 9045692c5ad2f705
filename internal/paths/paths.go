// Package paths provides a single source of truth for maniplink file paths.
// All path helpers honor environment variable overrides for isolated testing.
//
// Path resolution precedence:
//  1. Specific env vars (MANIPLINK_LOG_PATH) take highest priority
//  2. MANIPLINK_DIR env var sets the base directory (derives log/config/trajectories)
//  3. Default behavior (~/.maniplink, ~/.config/maniplink) when no env vars are set
package paths

import (
	"os"
	"path/filepath"
)

// Environment variable names for path overrides.
const (
	// EnvDir is the base directory override (e.g., /tmp/maniplink-test).
	// When set, log, config, and trajectory paths derive from this directory.
	EnvDir = "MANIPLINK_DIR"

	// EnvLogPath overrides the log file path directly.
	EnvLogPath = "MANIPLINK_LOG_PATH"
)

// BaseDir returns the maniplink base directory (~/.maniplink by default).
// Honors MANIPLINK_DIR environment variable.
func BaseDir() (string, error) {
	if dir := os.Getenv(EnvDir); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".maniplink"), nil
}

// ConfigDir returns the maniplink config directory (~/.config/maniplink by default).
// When MANIPLINK_DIR is set, returns MANIPLINK_DIR/config instead.
func ConfigDir() (string, error) {
	if dir := os.Getenv(EnvDir); dir != "" {
		return filepath.Join(dir, "config"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "maniplink"), nil
}

// ConfigPath returns the path to the maniplink config file.
// (~/.config/maniplink/maniplink.toml by default, or MANIPLINK_DIR/config/maniplink.toml).
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "maniplink.toml"), nil
}

// LogPath returns the log file path.
// Precedence: MANIPLINK_LOG_PATH > MANIPLINK_DIR/maniplink.log > ~/.maniplink/maniplink.log
func LogPath() string {
	if path := os.Getenv(EnvLogPath); path != "" {
		return path
	}
	base, err := BaseDir()
	if err != nil {
		return "/tmp/maniplink.log"
	}
	return filepath.Join(base, "maniplink.log")
}

// TrajectoriesDir returns the saved trajectory directory
// (~/.maniplink/trajectories by default).
// When MANIPLINK_DIR is set, returns MANIPLINK_DIR/trajectories.
func TrajectoriesDir() (string, error) {
	base, err := BaseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "trajectories"), nil
}

// TrajectoryPath returns the path to a named waypoint file.
func TrajectoryPath(name string) (string, error) {
	dir, err := TrajectoriesDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name+".yaml"), nil
}
