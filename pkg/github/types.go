package github

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"repofleet/pkg/manifest"
)

// Team is a team as it currently exists on GitHub
type Team struct {
	ID   int64  `json:"id"`
	Org  string `json:"org"`
	Name string `json:"name"`
	Slug string `json:"slug"`

	// Members holds active member logins and logins with a pending invitation.
	Members []string `json:"members"`

	// Repositories is keyed by repository name.
	Repositories map[string]RepoGrant `json:"repositories"`
}

// RepoGrant is a team's access to one repository
type RepoGrant struct {
	Name       string              `json:"name"`
	FullName   string              `json:"full_name"`
	Permission manifest.Permission `json:"permission"`
}

// RemoteRepo is an organisation repository as listed by GitHub
type RemoteRepo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Archived    bool   `json:"archived"`
}

// Settings are the repository settings kept in sync with the manifest
type Settings struct {
	Description      string `json:"description"`
	Homepage         string `json:"homepage"`
	HasIssues        bool   `json:"has_issues"`
	HasWiki          bool   `json:"has_wiki"`
	DefaultBranch    string `json:"default_branch"`
	AllowMergeCommit bool   `json:"allow_merge_commit"`
	AllowRebaseMerge bool   `json:"allow_rebase_merge"`
	AllowSquashMerge bool   `json:"allow_squash_merge"`
}

// SettingsFor returns the declared settings of repo
func SettingsFor(repo *manifest.Repository) Settings {
	return Settings{
		Description:      repo.Description,
		Homepage:         repo.URL,
		HasIssues:        repo.HasIssues,
		HasWiki:          repo.HasWiki,
		DefaultBranch:    repo.DefaultBranch,
		AllowMergeCommit: repo.AllowMergeCommit,
		AllowRebaseMerge: repo.AllowRebaseMerge,
		AllowSquashMerge: repo.AllowSquashMerge,
	}
}

// Diff lists the settings that differ between s and other as "field: old -> new".
func (s Settings) Diff(other Settings) []string {
	var diffs []string
	add := func(field string, a, b any) {
		if a != b {
			diffs = append(diffs, fmt.Sprintf("%s: %v -> %v", field, a, b))
		}
	}
	add("description", s.Description, other.Description)
	add("homepage", s.Homepage, other.Homepage)
	add("has_issues", s.HasIssues, other.HasIssues)
	add("has_wiki", s.HasWiki, other.HasWiki)
	add("default_branch", s.DefaultBranch, other.DefaultBranch)
	add("allow_merge_commit", s.AllowMergeCommit, other.AllowMergeCommit)
	add("allow_rebase_merge", s.AllowRebaseMerge, other.AllowRebaseMerge)
	add("allow_squash_merge", s.AllowSquashMerge, other.AllowSquashMerge)
	return diffs
}

// BranchProtectionRule is the ruleset applied to each protected branch
type BranchProtectionRule struct {
	RequiredStatusChecks []string `json:"required_status_checks"`
	StrictStatusChecks   bool     `json:"strict_status_checks"`
	RequireLinearHistory bool     `json:"require_linear_history"`
	EnforceAdmins        bool     `json:"enforce_admins"`

	// PushTeams and DismissalTeams hold team slugs.
	PushTeams      []string `json:"push_teams"`
	DismissalTeams []string `json:"dismissal_teams"`
}

// ProtectionFor returns the declared branch protection ruleset of repo
func ProtectionFor(repo *manifest.Repository) BranchProtectionRule {
	rule := BranchProtectionRule{
		RequiredStatusChecks: slices.Clone(repo.RequiredStatusChecks),
		StrictStatusChecks:   true,
		RequireLinearHistory: true,
		EnforceAdmins:        false,
		PushTeams:            []string{},
		DismissalTeams:       []string{},
	}
	if repo.MaintainerTeam != nil {
		slug := TeamSlug(repo.MaintainerTeam.Name)
		rule.PushTeams = []string{slug}
		rule.DismissalTeams = []string{slug}
	}
	return rule
}

// File is a repository file's decoded content and blob SHA
type File struct {
	Path    string
	SHA     string
	Content []byte
}

var slugSeparators = regexp.MustCompile(`[^a-z0-9_]+`)

// TeamSlug approximates the URL slug GitHub assigns to a team name. It is
// only used when the live team is not known, such as during a dry run before
// the team exists.
func TeamSlug(name string) string {
	return strings.Trim(slugSeparators.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

// splitSlug splits "owner/name"
func splitSlug(slug string) (string, string, error) {
	owner, name, ok := strings.Cut(slug, "/")
	if !ok || owner == "" || name == "" {
		return "", "", fmt.Errorf("invalid repository slug %q: expected owner/name", slug)
	}
	return owner, name, nil
}
