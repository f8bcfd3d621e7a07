package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
)

const appName = "imbridge"

// PlatformDataDir returns the data directory holding user tables.
//
// Platform paths:
//   - Linux:  $XDG_DATA_HOME/imbridge or ~/.local/share/imbridge/
//   - macOS:  ~/Library/Application Support/imbridge/
//
// Falls back to ~/.imbridge elsewhere.
func PlatformDataDir() string {
	switch runtime.GOOS {
	case "linux":
		return xdgDir("XDG_DATA_HOME", ".local", "share")
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return fallbackDataDir()
	}
}

// PlatformConfigDir returns the configuration directory.
//
// Platform paths:
//   - Linux:  $XDG_CONFIG_HOME/imbridge or ~/.config/imbridge/
//   - macOS:  same as the data directory
func PlatformConfigDir() string {
	switch runtime.GOOS {
	case "linux":
		return xdgDir("XDG_CONFIG_HOME", ".config")
	case "darwin":
		return PlatformDataDir()
	default:
		return fallbackDataDir()
	}
}

// PlatformLogDir returns the log directory.
func PlatformLogDir() string {
	switch runtime.GOOS {
	case "linux":
		return filepath.Join(xdgDir("XDG_STATE_HOME", ".local", "state"), "logs")
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Logs", appName)
	default:
		return filepath.Join(fallbackDataDir(), "logs")
	}
}

// PlatformRuntimeDir returns the directory for the pid file.
func PlatformRuntimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(os.TempDir(), appName+"-"+strconv.Itoa(os.Getuid()))
}

// xdgDir returns $env/imbridge, or ~/<fallback...>/imbridge.
func xdgDir(env string, fallback ...string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(append(append([]string{home}, fallback...), appName)...)
}

func fallbackDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+appName)
}

// SupportedConfigFormats lists the config file extensions Load understands.
func SupportedConfigFormats() []string {
	return []string{"toml", "json", "yaml", "yml"}
}

// FindConfigFile searches for a config file in standard locations.
// Returns the path to the first found config file, or empty string if none found.
func FindConfigFile() string {
	for _, dir := range []string{".", PlatformConfigDir()} {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
