package manifest

import (
	"slices"

	"github.com/bmatcuk/doublestar/v4"
)

// Selector narrows the repositories a command works on. Slugs take precedence
// over Types; an empty selector selects everything.
type Selector struct {
	// Slugs are "org/name" entries, optionally glob patterns such as "org/invenio-*".
	Slugs []string
	Types []string
}

// Empty reports whether the selector selects every repository
func (s Selector) Empty() bool {
	return len(s.Slugs) == 0 && len(s.Types) == 0
}

// Matches reports whether repo is selected
func (s Selector) Matches(repo *Repository) bool {
	if len(s.Slugs) > 0 {
		for _, pattern := range s.Slugs {
			if pattern == repo.Slug {
				return true
			}
			if ok, err := doublestar.Match(pattern, repo.Slug); err == nil && ok {
				return true
			}
		}
		return false
	}
	if len(s.Types) > 0 {
		return slices.Contains(s.Types, repo.Type)
	}
	return true
}

// Validate returns an error for the first malformed slug pattern
func (s Selector) Validate() error {
	for _, pattern := range s.Slugs {
		if !doublestar.ValidatePattern(pattern) {
			return malformed("invalid repository pattern %q", pattern)
		}
	}
	return nil
}
