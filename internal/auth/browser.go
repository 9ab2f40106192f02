package auth

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/google/go-querystring/query"
)

// TokenPageBaseURL is the GitHub page for creating a classic personal access token
const TokenPageBaseURL = "https://github.com/settings/tokens/new"

// BrowserOpener defines the interface for opening URLs in the default browser
type BrowserOpener interface {
	Open(url string) error
}

// DefaultBrowserOpener implements cross-platform browser opening
type DefaultBrowserOpener struct{}

// NewBrowserOpener creates a new browser opener instance
func NewBrowserOpener() *DefaultBrowserOpener {
	return &DefaultBrowserOpener{}
}

// Open opens the specified URL in the default browser
func (b *DefaultBrowserOpener) Open(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	return nil
}

type tokenPageQuery struct {
	Description string `url:"description"`
	Scopes      string `url:"scopes"`
}

// TokenPageURL returns the token creation page with the description and
// scopes filled in.
func TokenPageURL(description string, scopes []string) (string, error) {
	values, err := query.Values(tokenPageQuery{
		Description: description,
		Scopes:      strings.Join(scopes, ","),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode token page query: %w", err)
	}
	return TokenPageBaseURL + "?" + values.Encode(), nil
}
