package database

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	AppDirName       = ".road-orienteer"
	SQLiteDBFileName = "data.db"
	ConfigFileName   = "config.hcl"
)

// GetAppDir returns ~/.road-orienteer, creating it if needed
func GetAppDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return ensureDir(filepath.Join(homeDir, AppDirName))
}

// ResolveDataDir returns dir, or the app directory when dir is empty. The
// directory is created if needed.
func ResolveDataDir(dir string) (string, error) {
	if dir == "" {
		return GetAppDir()
	}
	return ensureDir(dir)
}

// GetDBPath returns the SQLite database path inside dataDir
func GetDBPath(dataDir string) (string, error) {
	dir, err := ResolveDataDir(dataDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, SQLiteDBFileName), nil
}

// GetConfigFilePath returns ~/.road-orienteer/config.hcl
func GetConfigFilePath() (string, error) {
	appDir, err := GetAppDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(appDir, ConfigFileName), nil
}

func ensureDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return dir, nil
}
