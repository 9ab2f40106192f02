package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/google/go-github/v66/github"
	"github.com/shurcooL/githubv4"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"repofleet/pkg/manifest"
)

const perPage = 100

// Client implements OrgClient and RepoClient against the GitHub REST and
// GraphQL APIs. Repository lookups are memoised by slug for the lifetime of
// the client.
type Client struct {
	rest    *github.Client
	graphql *githubv4.Client
	logger  logrus.FieldLogger

	mu    sync.Mutex
	repos map[string]*github.Repository
}

// NewClient creates a new GitHub API client with the provided token
func NewClient(token string, logger logrus.FieldLogger) *Client {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	httpClient := oauth2.NewClient(context.Background(), ts)

	return newClient(github.NewClient(httpClient), githubv4.NewClient(httpClient), logger)
}

func newClient(rest *github.Client, graphql *githubv4.Client, logger logrus.FieldLogger) *Client {
	if logger == nil {
		logger = buildOptions(nil).logger
	}
	return &Client{
		rest:    rest,
		graphql: graphql,
		logger:  logger,
		repos:   make(map[string]*github.Repository),
	}
}

// AuthenticatedUser returns the login the token belongs to
func (c *Client) AuthenticatedUser(ctx context.Context) (string, error) {
	user, _, err := c.rest.Users.Get(ctx, "")
	if err != nil {
		return "", WrapAPIError(err, "authenticated user")
	}
	return user.GetLogin(), nil
}

// ListTeams lists the teams of org with their members, pending invitations
// and repository grants.
func (c *Client) ListTeams(ctx context.Context, org string) ([]*Team, error) {
	opts := &github.ListOptions{PerPage: perPage}
	var teams []*Team

	for {
		page, resp, err := c.rest.Teams.ListTeams(ctx, org, opts)
		if err != nil {
			return nil, WrapAPIError(err, fmt.Sprintf("teams of organisation %s", org))
		}

		for _, t := range page {
			team, err := c.teamDetails(ctx, org, t)
			if err != nil {
				return nil, err
			}
			teams = append(teams, team)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	c.logger.WithFields(logrus.Fields{"org": org, "teams": len(teams)}).Debug("Listed teams")
	return teams, nil
}

func (c *Client) teamDetails(ctx context.Context, org string, t *github.Team) (*Team, error) {
	team := &Team{
		ID:           t.GetID(),
		Org:          org,
		Name:         t.GetName(),
		Slug:         t.GetSlug(),
		Repositories: make(map[string]RepoGrant),
	}
	resource := fmt.Sprintf("team %s/%s", org, team.Slug)

	memberOpts := &github.TeamListTeamMembersOptions{ListOptions: github.ListOptions{PerPage: perPage}}
	for {
		users, resp, err := c.rest.Teams.ListTeamMembersBySlug(ctx, org, team.Slug, memberOpts)
		if err != nil {
			return nil, WrapAPIError(err, resource)
		}
		for _, u := range users {
			team.Members = append(team.Members, u.GetLogin())
		}
		if resp.NextPage == 0 {
			break
		}
		memberOpts.Page = resp.NextPage
	}

	inviteOpts := &github.ListOptions{PerPage: perPage}
	for {
		invites, resp, err := c.rest.Teams.ListPendingTeamInvitationsBySlug(ctx, org, team.Slug, inviteOpts)
		if err != nil {
			return nil, WrapAPIError(err, resource)
		}
		for _, inv := range invites {
			if login := inv.GetLogin(); login != "" {
				team.Members = append(team.Members, login)
			}
		}
		if resp.NextPage == 0 {
			break
		}
		inviteOpts.Page = resp.NextPage
	}

	grants, err := c.listTeamRepositories(ctx, org, team.Slug)
	if err != nil {
		return nil, WrapAPIError(err, resource)
	}
	for _, g := range grants {
		team.Repositories[g.Name] = g
	}

	return team, nil
}

// teamRepository is the subset of a team repository listing we read. The
// permissions map is the team's access, not the caller's.
type teamRepository struct {
	Name        string          `json:"name"`
	FullName    string          `json:"full_name"`
	Permissions map[string]bool `json:"permissions"`
}

func (c *Client) listTeamRepositories(ctx context.Context, org, slug string) ([]RepoGrant, error) {
	var grants []RepoGrant
	for page := 1; ; {
		u := fmt.Sprintf("orgs/%s/teams/%s/repos?per_page=%d&page=%d", url.PathEscape(org), url.PathEscape(slug), perPage, page)
		req, err := c.rest.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}

		var repos []teamRepository
		resp, err := c.rest.Do(ctx, req, &repos)
		if err != nil {
			return nil, err
		}
		for _, r := range repos {
			grants = append(grants, RepoGrant{
				Name:       r.Name,
				FullName:   r.FullName,
				Permission: highestPermission(r.Permissions),
			})
		}

		if resp.NextPage == 0 {
			break
		}
		page = resp.NextPage
	}
	return grants, nil
}

// highestPermission maps a GitHub permissions object to the highest tier it
// grants. Triage counts as read.
func highestPermission(perms map[string]bool) manifest.Permission {
	switch {
	case perms["admin"]:
		return manifest.PermissionAdmin
	case perms["maintain"]:
		return manifest.PermissionMaintain
	case perms["push"]:
		return manifest.PermissionWrite
	case perms["triage"], perms["pull"]:
		return manifest.PermissionRead
	default:
		return manifest.PermissionNone
	}
}

// orgRepositoriesQuery pages through an organisation's repositories
type orgRepositoriesQuery struct {
	Organization struct {
		Repositories struct {
			PageInfo struct {
				HasNextPage bool
				EndCursor   githubv4.String
			}
			Nodes []struct {
				Name        string
				Description string
				IsArchived  bool
			}
		} `graphql:"repositories(first: 100, after: $cursor, orderBy: {field: NAME, direction: ASC})"`
	} `graphql:"organization(login: $login)"`
}

// ListRepos lists the repositories of org through the GraphQL API
func (c *Client) ListRepos(ctx context.Context, org string) ([]RemoteRepo, error) {
	variables := map[string]interface{}{
		"login":  githubv4.String(org),
		"cursor": (*githubv4.String)(nil),
	}

	var repos []RemoteRepo
	for {
		var q orgRepositoriesQuery
		if err := c.graphql.Query(ctx, &q, variables); err != nil {
			return nil, WrapAPIError(err, fmt.Sprintf("repositories of organisation %s", org))
		}
		for _, n := range q.Organization.Repositories.Nodes {
			repos = append(repos, RemoteRepo{Name: n.Name, Description: n.Description, Archived: n.IsArchived})
		}
		if !q.Organization.Repositories.PageInfo.HasNextPage {
			break
		}
		variables["cursor"] = githubv4.NewString(q.Organization.Repositories.PageInfo.EndCursor)
	}

	c.logger.WithFields(logrus.Fields{"org": org, "repositories": len(repos)}).Debug("Listed repositories")
	return repos, nil
}

// CreateTeam creates a closed team with access to repoSlugs. GitHub only
// accepts pull or push at creation; higher tiers are granted afterwards.
func (c *Client) CreateTeam(ctx context.Context, org, name string, repoSlugs []string, permission manifest.Permission) (*Team, error) {
	newTeam := github.NewTeam{
		Name:      name,
		RepoNames: repoSlugs,
		Privacy:   github.String("closed"),
	}
	if permission <= manifest.PermissionWrite {
		newTeam.Permission = github.String(permission.APIName())
	}

	created, _, err := c.rest.Teams.CreateTeam(ctx, org, newTeam)
	if err != nil {
		return nil, WrapAPIError(err, fmt.Sprintf("team %s/%s", org, name))
	}
	return c.teamDetails(ctx, org, created)
}

// DeleteTeam deletes a team
func (c *Client) DeleteTeam(ctx context.Context, team *Team) error {
	_, err := c.rest.Teams.DeleteTeamBySlug(ctx, team.Org, team.Slug)
	return WrapAPIError(err, fmt.Sprintf("team %s/%s", team.Org, team.Slug))
}

// AddMember invites login to team as a regular member
func (c *Client) AddMember(ctx context.Context, team *Team, login string) error {
	opts := &github.TeamAddTeamMembershipOptions{Role: "member"}
	_, _, err := c.rest.Teams.AddTeamMembershipBySlug(ctx, team.Org, team.Slug, login, opts)
	return WrapAPIError(err, fmt.Sprintf("user %s in team %s/%s", login, team.Org, team.Slug))
}

// RemoveMember removes login from team, cancelling a pending invitation
func (c *Client) RemoveMember(ctx context.Context, team *Team, login string) error {
	_, err := c.rest.Teams.RemoveTeamMembershipBySlug(ctx, team.Org, team.Slug, login)
	return WrapAPIError(err, fmt.Sprintf("user %s in team %s/%s", login, team.Org, team.Slug))
}

// GrantRepo adds or updates team's access to a repository
func (c *Client) GrantRepo(ctx context.Context, team *Team, repoSlug string, permission manifest.Permission) error {
	owner, name, err := splitSlug(repoSlug)
	if err != nil {
		return err
	}
	opts := &github.TeamAddTeamRepoOptions{Permission: permission.APIName()}
	_, err = c.rest.Teams.AddTeamRepoBySlug(ctx, team.Org, team.Slug, owner, name, opts)
	return WrapAPIError(err, fmt.Sprintf("repository %s for team %s", repoSlug, team.Slug))
}

// RevokeRepo removes team's access to a repository
func (c *Client) RevokeRepo(ctx context.Context, team *Team, repoSlug string) error {
	owner, name, err := splitSlug(repoSlug)
	if err != nil {
		return err
	}
	_, err = c.rest.Teams.RemoveTeamRepoBySlug(ctx, team.Org, team.Slug, owner, name)
	return WrapAPIError(err, fmt.Sprintf("repository %s for team %s", repoSlug, team.Slug))
}
