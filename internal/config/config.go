package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultOutputFolder   = "./output"
	defaultRequestTimeout = 30 * time.Second
	defaultCacheTTL       = 6 * time.Hour
	defaultLockTimeout    = 10 * time.Second
	defaultMaxWorkers     = 4

	minWorkers = 1
	maxWorkers = 16

	cacheDirName = "audiothek-downloader"
)

// DefaultOutputFolder returns the fallback output directory.
func DefaultOutputFolder() string {
	return defaultOutputFolder
}

// RequestTimeout returns the socket timeout applied to every outbound
// request. AUDIOTHEK_TIMEOUT_SECONDS overrides the 30s default.
func RequestTimeout() time.Duration {
	value := strings.TrimSpace(os.Getenv("AUDIOTHEK_TIMEOUT_SECONDS"))
	if value == "" {
		return defaultRequestTimeout
	}
	secs, err := strconv.Atoi(value)
	if err != nil || secs <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(secs) * time.Second
}

// CacheTTL returns how long cached GraphQL responses stay fresh.
func CacheTTL() time.Duration {
	return defaultCacheTTL
}

// LockTimeout returns the bounded wait for per-asset file locks.
func LockTimeout() time.Duration {
	return defaultLockTimeout
}

// CacheDisabled reports whether the response cache is switched off via
// AUDIOTHEK_DISABLE_CACHE (truthy values: 1, true, yes).
func CacheDisabled() bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv("AUDIOTHEK_DISABLE_CACHE")))
	switch value {
	case "1", "true", "yes":
		return true
	}
	return false
}

// ResolveCacheDir returns the directory for the GraphQL response cache:
// the explicit override when given, otherwise $XDG_CACHE_HOME, otherwise a
// dotfile cache directory under the user's home.
func ResolveCacheDir(override string) (string, error) {
	dir := strings.TrimSpace(override)
	if dir == "" {
		if xdg := strings.TrimSpace(os.Getenv("XDG_CACHE_HOME")); xdg != "" {
			dir = filepath.Join(xdg, cacheDirName)
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dir = filepath.Join(home, ".cache", cacheDirName)
		}
	}

	if strings.HasPrefix(dir, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			dir = filepath.Join(home, dir[1:])
		}
	}

	return filepath.Abs(dir)
}

// ClampWorkers bounds the worker-pool size to [1,16]; zero input falls back
// to the default of 4.
func ClampWorkers(workers int) int {
	if workers == 0 {
		workers = defaultMaxWorkers
	}
	if workers < minWorkers {
		return minWorkers
	}
	if workers > maxWorkers {
		return maxWorkers
	}
	return workers
}

// Settings represents the optional YAML settings file referenced by
// AUDIOTHEK_CONFIG. Flags take precedence over file values.
type Settings struct {
	Proxy    string `yaml:"proxy"`
	Folder   string `yaml:"folder"`
	Workers  int    `yaml:"workers"`
	CacheDir string `yaml:"cache_dir"`
}

// LoadSettings reads the YAML settings file when configured. A missing
// environment variable yields empty settings, not an error.
func LoadSettings() (Settings, error) {
	path := strings.TrimSpace(os.Getenv("AUDIOTHEK_CONFIG"))
	if path == "" {
		return Settings{}, nil
	}

	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[1:])
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}

	var settings Settings
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Settings{}, err
	}
	return settings, nil
}
