package manifest

import (
	"fmt"
	"regexp"
)

var (
	validRepositoryName = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	validLogin          = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9]|-[a-zA-Z0-9])*$`)
	validIntervals      = map[string]bool{"daily": true, "weekly": true, "monthly": true}
)

// validateRepositoryName follows GitHub's repository naming rules
func validateRepositoryName(name string) error {
	if name == "" {
		return fmt.Errorf("repository name is required")
	}
	if len(name) > 100 {
		return fmt.Errorf("repository name must be 100 characters or less")
	}
	if name == "." || name == ".." {
		return fmt.Errorf("repository name cannot be '.' or '..'")
	}
	if !validRepositoryName.MatchString(name) {
		return fmt.Errorf("repository name may only contain alphanumeric characters, hyphens, underscores, and periods")
	}
	return nil
}

// validateLogin validates a GitHub username.
// Logins contain alphanumerics or single hyphens and cannot start or end with a hyphen.
func validateLogin(login string) error {
	if login == "" {
		return fmt.Errorf("login cannot be empty")
	}
	if len(login) > 39 {
		return fmt.Errorf("login must be 39 characters or less")
	}
	if !validLogin.MatchString(login) {
		return fmt.Errorf("login may only contain alphanumeric characters or single hyphens, and cannot begin or end with a hyphen")
	}
	return nil
}

func validateInterval(interval string) error {
	if !validIntervals[interval] {
		return fmt.Errorf("interval must be one of: daily, weekly, monthly")
	}
	return nil
}
