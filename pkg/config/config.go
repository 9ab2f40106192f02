package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment variables overriding config keys,
// e.g. REPOFLEET_TRAVIS_TOKEN for travis.token.
const EnvPrefix = "REPOFLEET_"

const (
	DefaultTravisEndpoint = "https://api.travis-ci.com"
	DefaultPyPIEndpoint   = "https://pypi.org"
)

// Config represents the repofleet tool configuration
type Config struct {
	GitHub GitHubConfig `yaml:"github" koanf:"github"`
	Travis TravisConfig `yaml:"travis" koanf:"travis"`
	PyPI   PyPIConfig   `yaml:"pypi" koanf:"pypi"`
}

// GitHubConfig represents GitHub-specific configuration
type GitHubConfig struct {
	Token string `yaml:"token" koanf:"token"`
}

// TravisConfig represents Travis CI configuration
type TravisConfig struct {
	Token    string `yaml:"token" koanf:"token"`
	Endpoint string `yaml:"endpoint" koanf:"endpoint"`
}

// PyPIConfig represents package index configuration
type PyPIConfig struct {
	User     string `yaml:"user" koanf:"user"`
	Endpoint string `yaml:"endpoint" koanf:"endpoint"`
}

// DefaultConfig returns the configuration used when no file is present
func DefaultConfig() *Config {
	return &Config{
		Travis: TravisConfig{Endpoint: DefaultTravisEndpoint},
		PyPI:   PyPIConfig{Endpoint: DefaultPyPIEndpoint},
	}
}

// LoadConfig loads configuration from the default location
func LoadConfig() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}

	return LoadConfigFromPath(configPath)
}

// LoadConfigFromPath loads configuration from a specific path, then overlays
// REPOFLEET_* environment variables. A missing file yields the defaults.
func LoadConfigFromPath(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// envKey maps REPOFLEET_TRAVIS_TOKEN to travis.token. Only the first
// underscore separates the section from the key.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.Replace(key, "_", ".", 1)
}

// SaveConfig saves configuration to the default location
func (c *Config) SaveConfig() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	return c.SaveConfigToPath(configPath)
}

// SaveConfigToPath saves configuration to a specific path. The file holds
// tokens, so it is written readable by the owner only.
func (c *Config) SaveConfigToPath(path string) error {
	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	return filepath.Join(homeDir, ".repofleet", "config.yaml"), nil
}

// DisplayPath is the config path as shown in help and error messages
func DisplayPath() string {
	return "~/.repofleet/config.yaml"
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Travis.Endpoint != "" && !strings.HasPrefix(c.Travis.Endpoint, "http") {
		return fmt.Errorf("travis.endpoint must be an http(s) URL")
	}
	if c.PyPI.Endpoint != "" && !strings.HasPrefix(c.PyPI.Endpoint, "http") {
		return fmt.Errorf("pypi.endpoint must be an http(s) URL")
	}
	return nil
}
