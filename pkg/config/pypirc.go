package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"
)

// GetPyPIRCPath returns the path of the user's .pypirc
func GetPyPIRCPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".pypirc"), nil
}

// PyPIUserFromRC reads the username of the [pypi] section of a .pypirc file.
// A missing file or section yields an empty user.
func PyPIUserFromRC(path string) (string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", nil
	}

	cfg, err := ini.Load(path)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", path, err)
	}

	section, err := cfg.GetSection("pypi")
	if err != nil {
		return "", nil
	}
	return section.Key("username").String(), nil
}

// ResolvePyPIUser picks the PyPI user: an explicit value wins, then the config
// file, then ~/.pypirc.
func ResolvePyPIUser(explicit string, cfg *Config) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if cfg != nil && cfg.PyPI.User != "" {
		return cfg.PyPI.User, nil
	}

	path, err := GetPyPIRCPath()
	if err != nil {
		return "", err
	}
	user, err := PyPIUserFromRC(path)
	if err != nil {
		return "", err
	}
	if user == "" {
		return "", fmt.Errorf("no PyPI user: pass --user, set pypi.user in %s, or add a [pypi] section to ~/.pypirc", DisplayPath())
	}
	return user, nil
}
