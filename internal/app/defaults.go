package app

import (
	"fmt"
	"os"
	"path/filepath"
)

// Environment variables that relocate mcard's files.
const (
	EnvConfigPath = "MCARD_CONFIG_PATH"
	EnvHome       = "MCARD_HOME"
)

// GetDefaults returns application default paths, checking environment variables first.
// Environment variables:
//   - MCARD_CONFIG_PATH: config file location (default: ~/.config/mcard.toml)
//   - MCARD_HOME: base directory for stores, keys and logs (default: ~/.local/share/mcard)
func GetDefaults() (map[string]string, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	baseDir, err := getBaseDir()
	if err != nil {
		return nil, err
	}

	return map[string]string{
		"config_path": configPath,
		"base_dir":    baseDir,
		"log_dir":     filepath.Join(baseDir, "log"),
	}, nil
}

func getConfigPath() (string, error) {
	if path := os.Getenv(EnvConfigPath); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "mcard.toml"), nil
}

func getBaseDir() (string, error) {
	if path := os.Getenv(EnvHome); path != "" {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "mcard"), nil
}
