package github

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"repofleet/pkg/config"
)

// RequiredScopes are the classic token scopes needed to manage repositories and teams
var RequiredScopes = []string{"repo", "admin:org"}

// ErrMissingScopes is returned when a classic token lacks a required scope
var ErrMissingScopes = errors.New("GitHub token missing required scopes")

// TokenInfo contains information about the authenticated token
type TokenInfo struct {
	User string `json:"user"`

	// Scopes is empty for fine-grained tokens, which do not report scopes.
	Scopes []string `json:"scopes"`
}

// GetToken resolves the GitHub token. An explicit flag value wins, then the
// GITHUB_TOKEN environment variable, then the config file.
func GetToken(flagValue string, cfg *config.Config) (string, error) {
	if token := strings.TrimSpace(flagValue); token != "" {
		return token, nil
	}

	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		return strings.TrimSpace(token), nil
	}

	if cfg != nil && cfg.GitHub.Token != "" {
		return strings.TrimSpace(cfg.GitHub.Token), nil
	}

	return "", fmt.Errorf("no GitHub token found: pass --token, set GITHUB_TOKEN, or configure github.token in %s", config.DisplayPath())
}

// ValidateToken checks the token by fetching the authenticated user and, for
// classic tokens, that the required scopes are granted.
func (c *Client) ValidateToken(ctx context.Context) (*TokenInfo, error) {
	user, resp, err := c.rest.Users.Get(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to validate GitHub token: %w", WrapAPIError(err, "authenticated user"))
	}

	info := &TokenInfo{User: user.GetLogin(), Scopes: []string{}}
	if header := resp.Header.Get("X-OAuth-Scopes"); header != "" {
		info.Scopes = strings.Split(strings.ReplaceAll(header, " ", ""), ",")
		if err := validateScopes(info.Scopes); err != nil {
			return info, err
		}
	}

	return info, nil
}

// validateScopes checks if the token has the required scopes. A broader scope
// covers its sub-scopes, e.g. admin:org covers write:org.
func validateScopes(scopes []string) error {
	granted := make(map[string]bool, len(scopes))
	for _, scope := range scopes {
		granted[scope] = true
	}

	var missing []string
	for _, required := range RequiredScopes {
		if !granted[required] {
			missing = append(missing, required)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s (required: %s)", ErrMissingScopes,
			strings.Join(missing, ", "), strings.Join(RequiredScopes, ", "))
	}
	return nil
}

// GetAuthInstructions returns instructions for setting up GitHub authentication
func GetAuthInstructions() string {
	return fmt.Sprintf(`GitHub authentication is required. Use one of the following:

1. Command line flag:
   repofleet github --token <token> ...

2. Environment variable:
   export GITHUB_TOKEN="your_personal_access_token"

3. Configuration file, %s:

   github:
     token: "your_personal_access_token"

The token needs the following scopes: %s`, config.DisplayPath(), strings.Join(RequiredScopes, ", "))
}
