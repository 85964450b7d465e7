package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath names an explicit config file
	EnvConfigPath = "MESHSCOPE_CONFIG"
	// ConfigFileName is the file name used in every search location
	ConfigFileName = "meshscope.yaml"

	systemConfigPath = "/etc/meshscope/" + ConfigFileName
)

// SearchPaths lists the config file candidates in lookup order.
// The $MESHSCOPE_CONFIG entry is present only when the variable is set.
func SearchPaths() []string {
	var paths []string
	if path := os.Getenv(EnvConfigPath); path != "" {
		paths = append(paths, path)
	}
	paths = append(paths, ConfigFileName)
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "meshscope", ConfigFileName))
	}
	return append(paths, systemConfigPath)
}

// FindConfigPath returns the first existing candidate from SearchPaths as an
// absolute path, so the serve watcher follows the same file. It returns ""
// when there is none.
func FindConfigPath() string {
	for _, path := range SearchPaths() {
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
		return path
	}
	return ""
}

// DefaultConfigPath is where `config init` writes when no path is given:
// the per-user config directory, else the working directory.
func DefaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "meshscope", ConfigFileName)
	}
	return ConfigFileName
}
