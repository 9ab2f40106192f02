package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/go-github/v66/github"
	"github.com/sirupsen/logrus"
)

// repository returns the memoised repository for slug, fetching it on first use
func (c *Client) repository(ctx context.Context, slug string) (*github.Repository, error) {
	c.mu.Lock()
	repo, ok := c.repos[slug]
	c.mu.Unlock()
	if ok {
		return repo, nil
	}

	owner, name, err := splitSlug(slug)
	if err != nil {
		return nil, err
	}
	repo, _, err = c.rest.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, WrapAPIError(err, fmt.Sprintf("repository %s", slug))
	}

	c.mu.Lock()
	c.repos[slug] = repo
	c.mu.Unlock()
	return repo, nil
}

// GetSettings reads the live settings of a repository
func (c *Client) GetSettings(ctx context.Context, slug string) (*Settings, error) {
	repo, err := c.repository(ctx, slug)
	if err != nil {
		return nil, err
	}
	return &Settings{
		Description:      repo.GetDescription(),
		Homepage:         repo.GetHomepage(),
		HasIssues:        repo.GetHasIssues(),
		HasWiki:          repo.GetHasWiki(),
		DefaultBranch:    repo.GetDefaultBranch(),
		AllowMergeCommit: repo.GetAllowMergeCommit(),
		AllowRebaseMerge: repo.GetAllowRebaseMerge(),
		AllowSquashMerge: repo.GetAllowSquashMerge(),
	}, nil
}

// UpdateSettings writes all settings of a repository in one request
func (c *Client) UpdateSettings(ctx context.Context, slug string, settings Settings) error {
	owner, name, err := splitSlug(slug)
	if err != nil {
		return err
	}

	edit := &github.Repository{
		Name:             github.String(name),
		Description:      github.String(settings.Description),
		Homepage:         github.String(settings.Homepage),
		HasIssues:        github.Bool(settings.HasIssues),
		HasWiki:          github.Bool(settings.HasWiki),
		DefaultBranch:    github.String(settings.DefaultBranch),
		AllowMergeCommit: github.Bool(settings.AllowMergeCommit),
		AllowRebaseMerge: github.Bool(settings.AllowRebaseMerge),
		AllowSquashMerge: github.Bool(settings.AllowSquashMerge),
	}

	updated, _, err := c.rest.Repositories.Edit(ctx, owner, name, edit)
	if err != nil {
		return WrapAPIError(err, fmt.Sprintf("repository %s", slug))
	}

	c.mu.Lock()
	c.repos[slug] = updated
	c.mu.Unlock()
	return nil
}

// SetBranchProtection replaces the protection of branch with rule
func (c *Client) SetBranchProtection(ctx context.Context, slug, branch string, rule BranchProtectionRule) error {
	owner, name, err := splitSlug(slug)
	if err != nil {
		return err
	}

	_, _, err = c.rest.Repositories.UpdateBranchProtection(ctx, owner, name, branch, protectionRequest(rule))
	if err != nil {
		return WrapAPIError(err, fmt.Sprintf("branch protection %s:%s", slug, branch))
	}

	c.logger.WithFields(logrus.Fields{"repository": slug, "branch": branch}).Debug("Applied branch protection")
	return nil
}

func protectionRequest(rule BranchProtectionRule) *github.ProtectionRequest {
	contexts := rule.RequiredStatusChecks
	if contexts == nil {
		contexts = []string{}
	}

	req := &github.ProtectionRequest{
		RequiredStatusChecks: &github.RequiredStatusChecks{
			Strict:   rule.StrictStatusChecks,
			Contexts: &contexts,
		},
		EnforceAdmins:        rule.EnforceAdmins,
		RequireLinearHistory: github.Bool(rule.RequireLinearHistory),
	}

	if len(rule.PushTeams) > 0 {
		req.Restrictions = &github.BranchRestrictionsRequest{
			Users: []string{},
			Teams: rule.PushTeams,
		}
	}

	if len(rule.DismissalTeams) > 0 {
		users := []string{}
		teams := rule.DismissalTeams
		req.RequiredPullRequestReviews = &github.PullRequestReviewsEnforcementRequest{
			DismissalRestrictionsRequest: &github.DismissalRestrictionsRequest{
				Users: &users,
				Teams: &teams,
			},
		}
	}

	return req
}

// GetFile reads a file from the default branch. It returns nil when the file
// does not exist.
func (c *Client) GetFile(ctx context.Context, slug, path string) (*File, error) {
	owner, name, err := splitSlug(slug)
	if err != nil {
		return nil, err
	}

	content, _, _, err := c.rest.Repositories.GetContents(ctx, owner, name, path, nil)
	if err != nil {
		var respErr *github.ErrorResponse
		if errors.As(err, &respErr) && respErr.Response != nil && respErr.Response.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, WrapAPIError(err, fmt.Sprintf("file %s in repository %s", path, slug))
	}
	if content == nil {
		return nil, fmt.Errorf("%s in repository %s is a directory", path, slug)
	}

	decoded, err := content.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s in repository %s: %w", path, slug, err)
	}

	return &File{Path: path, SHA: content.GetSHA(), Content: []byte(decoded)}, nil
}

// PutFile creates path, or updates it when sha names the blob being replaced
func (c *Client) PutFile(ctx context.Context, slug, path, message string, content []byte, sha string) error {
	owner, name, err := splitSlug(slug)
	if err != nil {
		return err
	}

	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: content,
	}
	if sha == "" {
		_, _, err = c.rest.Repositories.CreateFile(ctx, owner, name, path, opts)
	} else {
		opts.SHA = github.String(sha)
		_, _, err = c.rest.Repositories.UpdateFile(ctx, owner, name, path, opts)
	}
	return WrapAPIError(err, fmt.Sprintf("file %s in repository %s", path, slug))
}
