package travis

import (
	"fmt"
	"os"
	"strings"

	"repofleet/pkg/config"
)

// GetToken resolves the Travis token: the flag value, then TRAVIS_TOKEN, then
// the config file.
func GetToken(flagValue string, cfg *config.Config) (string, error) {
	if token := strings.TrimSpace(flagValue); token != "" {
		return token, nil
	}

	if token := strings.TrimSpace(os.Getenv("TRAVIS_TOKEN")); token != "" {
		return token, nil
	}

	if cfg != nil && cfg.Travis.Token != "" {
		return strings.TrimSpace(cfg.Travis.Token), nil
	}

	return "", fmt.Errorf("no Travis token found: pass --token, set TRAVIS_TOKEN, or configure travis.token in %s", config.DisplayPath())
}
