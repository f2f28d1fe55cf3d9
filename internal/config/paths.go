package config

import (
	"os"
	"path/filepath"
)

const appDirName = ".tfcview"

// DataDir returns the base data directory for tfcview.
func DataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, appDirName), nil
}

func dataFile(name string) (string, error) {
	dataDir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dataDir, name), nil
}

// ConfigPath returns the path to the TOML configuration file.
func ConfigPath() (string, error) {
	return dataFile("config.toml")
}

// TokenPath returns the path to the API token file.
func TokenPath() (string, error) {
	return dataFile("token")
}

// StateDBPath returns the path to the bbolt session state database.
func StateDBPath() (string, error) {
	return dataFile("state.db")
}

// StatePath returns the path to the JSON session state file.
func StatePath() (string, error) {
	return dataFile("state.json")
}

// LogPath returns the path to the log file.
func LogPath() (string, error) {
	return dataFile("tfcview.log")
}
