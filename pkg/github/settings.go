package github

import (
	"bytes"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"repofleet/pkg/manifest"
)

const (
	MaintainersFilePath     = "MAINTAINERS"
	PullRequestTemplatePath = ".github/pull_request_template.md"
)

// RepositorySynchronizer keeps per-repository settings, branch protection,
// the maintainer team and managed files in line with the manifest.
type RepositorySynchronizer struct {
	client RepoClient
	teams  *TeamReconciler
	options
}

// NewRepositorySynchronizer creates a synchronizer. teams is used by SyncTeam
// and may be nil when SyncTeam is not called.
func NewRepositorySynchronizer(client RepoClient, teams *TeamReconciler, opts ...Option) *RepositorySynchronizer {
	return &RepositorySynchronizer{
		client:  client,
		teams:   teams,
		options: buildOptions(opts),
	}
}

// SyncSettings updates the repository settings in a single write when any of
// them differs from the manifest.
func (s *RepositorySynchronizer) SyncSettings(ctx context.Context, repo *manifest.Repository) (bool, error) {
	live, err := s.client.GetSettings(ctx, repo.Slug)
	if err != nil {
		return false, err
	}

	desired := SettingsFor(repo)
	if *live == desired {
		return false, nil
	}

	s.logger.WithFields(logrus.Fields{
		"repository": repo.Slug,
		"diff":       strings.Join(live.Diff(desired), ", "),
	}).Debug("Settings differ")

	if s.dryRun {
		return true, nil
	}
	if err := s.client.UpdateSettings(ctx, repo.Slug, desired); err != nil {
		return false, err
	}
	return true, nil
}

// SyncBranchProtection applies the declared ruleset to every protected branch.
// The ruleset is written without comparing it to the live one, so this always
// reports a change. With a team reconciler configured, the maintainer team is
// referenced by the slug GitHub assigned to it.
func (s *RepositorySynchronizer) SyncBranchProtection(ctx context.Context, repo *manifest.Repository) (bool, error) {
	rule := ProtectionFor(repo)
	if repo.MaintainerTeam != nil && s.teams != nil {
		slug, err := s.teams.liveSlug(ctx, repo.Org, repo.MaintainerTeam.Name)
		if err != nil {
			return false, err
		}
		if slug != "" {
			rule.PushTeams = []string{slug}
			rule.DismissalTeams = []string{slug}
		}
	}
	for _, branch := range repo.Branches {
		if s.dryRun {
			s.logger.WithFields(logrus.Fields{"repository": repo.Slug, "branch": branch}).Debug("Dry run, skipping branch protection")
			continue
		}
		if err := s.client.SetBranchProtection(ctx, repo.Slug, branch, rule); err != nil {
			return false, err
		}
	}
	return true, nil
}

// SyncTeam converges the repository's maintainer team without touching any
// other team of the organisation.
func (s *RepositorySynchronizer) SyncTeam(ctx context.Context, repo *manifest.Repository) (Report, error) {
	if repo.MaintainerTeam == nil {
		return Report{Org: repo.Org, DryRun: s.dryRun}, nil
	}
	if s.teams == nil {
		return Report{}, fmt.Errorf("no team reconciler configured")
	}
	return s.teams.ReconcileTeam(ctx, repo.Org, repo.MaintainerTeam)
}

// SyncMaintainersFile writes the sorted maintainer logins to MAINTAINERS unless
// the file already lists the same set.
func (s *RepositorySynchronizer) SyncMaintainersFile(ctx context.Context, repo *manifest.Repository) (bool, error) {
	file, err := s.client.GetFile(ctx, repo.Slug, MaintainersFilePath)
	if err != nil {
		return false, err
	}

	desired := slices.Compact(sortedCopy(repo.Maintainers))
	sha := ""
	if file != nil {
		if slices.Equal(ParseMaintainers(file.Content), desired) {
			return false, nil
		}
		sha = file.SHA
	}

	content := []byte(strings.Join(desired, "\n") + "\n")
	return s.put(ctx, repo, MaintainersFilePath, "global: maintainers update", content, sha)
}

// SyncPullRequestTemplate keeps the pull request template equal to template
func (s *RepositorySynchronizer) SyncPullRequestTemplate(ctx context.Context, repo *manifest.Repository, template []byte) (bool, error) {
	file, err := s.client.GetFile(ctx, repo.Slug, PullRequestTemplatePath)
	if err != nil {
		return false, err
	}

	sha := ""
	if file != nil {
		if bytes.Equal(file.Content, template) {
			return false, nil
		}
		sha = file.SHA
	}

	return s.put(ctx, repo, PullRequestTemplatePath, "global: pull request template update", template, sha)
}

func (s *RepositorySynchronizer) put(ctx context.Context, repo *manifest.Repository, path, message string, content []byte, sha string) (bool, error) {
	s.logger.WithFields(logrus.Fields{"repository": repo.Slug, "path": path, "update": sha != ""}).Debug("Writing file")
	if s.dryRun {
		return true, nil
	}
	if err := s.client.PutFile(ctx, repo.Slug, path, message, content, sha); err != nil {
		return false, err
	}
	return true, nil
}

// ParseMaintainers returns the sorted, de-duplicated logins listed one per
// line in a MAINTAINERS file.
func ParseMaintainers(content []byte) []string {
	var logins []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		logins = append(logins, line)
	}
	slices.Sort(logins)
	return slices.Compact(logins)
}
