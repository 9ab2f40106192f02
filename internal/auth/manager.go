package auth

import (
	"context"
	"fmt"
	"io"
	"strings"

	"repofleet/pkg/config"
	"repofleet/pkg/github"
)

// TokenDescription is the note pre-filled on the token creation page
const TokenDescription = "repofleet"

// Prompter reads a secret value from the user
type Prompter func(label string) (string, error)

// TokenValidator checks a GitHub token and reports who it belongs to
type TokenValidator func(ctx context.Context, token string) (*github.TokenInfo, error)

// Manager defines the interface for token login management
type Manager interface {
	// Login asks for tokens, validates them and stores them in the config file
	Login(ctx context.Context, opts LoginOptions) (*github.TokenInfo, error)

	// Status reports which tokens are configured and whether the GitHub one works
	Status(ctx context.Context, flagToken string) (*Status, error)

	// Logout removes stored tokens from the config file
	Logout() (bool, error)
}

// LoginOptions controls the login flow
type LoginOptions struct {
	// OpenBrowser opens the token creation page before prompting
	OpenBrowser bool
	// Travis also asks for a Travis CI token
	Travis bool
}

// Status describes the configured credentials
type Status struct {
	ConfigPath string

	GitHub      *github.TokenInfo
	GitHubError error

	TravisConfigured bool
	PyPIUser         string
}

// DefaultManager implements the Manager interface on top of the config file
type DefaultManager struct {
	configPath    string
	browserOpener BrowserOpener
	prompt        Prompter
	validate      TokenValidator
	out           io.Writer
}

// NewManager creates a login manager storing tokens in the default config file
func NewManager(validate TokenValidator, prompt Prompter, out io.Writer) (*DefaultManager, error) {
	configPath, err := config.GetConfigPath()
	if err != nil {
		return nil, err
	}

	return &DefaultManager{
		configPath:    configPath,
		browserOpener: NewBrowserOpener(),
		prompt:        prompt,
		validate:      validate,
		out:           out,
	}, nil
}

// WithBrowserOpener replaces the browser opener
func (m *DefaultManager) WithBrowserOpener(opener BrowserOpener) *DefaultManager {
	m.browserOpener = opener
	return m
}

// WithConfigPath stores tokens in path instead of the default config file
func (m *DefaultManager) WithConfigPath(path string) *DefaultManager {
	m.configPath = path
	return m
}

// Login runs the personal access token flow: it points the user at the token
// page, reads the token, validates it against GitHub and saves it. Nothing is
// saved when any step fails.
func (m *DefaultManager) Login(ctx context.Context, opts LoginOptions) (*github.TokenInfo, error) {
	cfg, err := config.LoadConfigFromPath(m.configPath)
	if err != nil {
		return nil, ClassifyError(err)
	}

	pageURL, err := TokenPageURL(TokenDescription, github.RequiredScopes)
	if err != nil {
		return nil, ClassifyError(err)
	}

	fmt.Fprintf(m.out, "🔑 Create a classic personal access token with the scopes %s:\n", strings.Join(github.RequiredScopes, ", "))
	fmt.Fprintf(m.out, "   %s\n", pageURL)
	if opts.OpenBrowser {
		if err := m.browserOpener.Open(pageURL); err != nil {
			fmt.Fprintf(m.out, "⚠️  Failed to open browser automatically: %v\n", err)
		} else {
			fmt.Fprintln(m.out, "✅ Browser opened automatically")
		}
	}

	token, err := m.readToken("GitHub token")
	if err != nil {
		return nil, err
	}

	info, err := m.validate(ctx, token)
	if err != nil {
		return nil, ClassifyError(err)
	}
	cfg.GitHub.Token = token

	if opts.Travis {
		travisToken, err := m.readToken("Travis CI token")
		if err != nil {
			return nil, err
		}
		cfg.Travis.Token = travisToken
	}

	if err := cfg.SaveConfigToPath(m.configPath); err != nil {
		return nil, ClassifyError(err)
	}
	return info, nil
}

func (m *DefaultManager) readToken(label string) (string, error) {
	token, err := m.prompt(label)
	if err != nil {
		return "", ClassifyError(err)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", &Error{
			Type:                 ErrorTypeInvalidToken,
			Message:              fmt.Sprintf("No %s entered", label),
			TroubleshootingSteps: []string{"Paste the token at the prompt"},
		}
	}
	return token, nil
}

// Status resolves the GitHub token the way commands do and validates it. A
// missing or rejected token is reported in the status, not as an error.
func (m *DefaultManager) Status(ctx context.Context, flagToken string) (*Status, error) {
	cfg, err := config.LoadConfigFromPath(m.configPath)
	if err != nil {
		return nil, ClassifyError(err)
	}

	status := &Status{
		ConfigPath:       m.configPath,
		TravisConfigured: cfg.Travis.Token != "",
		PyPIUser:         cfg.PyPI.User,
	}

	token, err := github.GetToken(flagToken, cfg)
	if err != nil {
		status.GitHubError = err
		return status, nil
	}

	info, err := m.validate(ctx, token)
	if err != nil {
		status.GitHubError = ClassifyError(err)
		return status, nil
	}
	status.GitHub = info
	return status, nil
}

// Logout clears the stored GitHub and Travis CI tokens. It reports whether
// there was anything to clear.
func (m *DefaultManager) Logout() (bool, error) {
	cfg, err := config.LoadConfigFromPath(m.configPath)
	if err != nil {
		return false, ClassifyError(err)
	}

	if cfg.GitHub.Token == "" && cfg.Travis.Token == "" {
		return false, nil
	}

	cfg.GitHub.Token = ""
	cfg.Travis.Token = ""
	if err := cfg.SaveConfigToPath(m.configPath); err != nil {
		return false, ClassifyError(err)
	}
	return true, nil
}

var _ Manager = (*DefaultManager)(nil)
