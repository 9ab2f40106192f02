package github

import (
	"context"

	"repofleet/pkg/manifest"
)

// OrgClient is the organisation-level surface the team reconciler works against
type OrgClient interface {
	// Remote state
	ListTeams(ctx context.Context, org string) ([]*Team, error)
	ListRepos(ctx context.Context, org string) ([]RemoteRepo, error)

	// Team operations
	CreateTeam(ctx context.Context, org, name string, repoSlugs []string, permission manifest.Permission) (*Team, error)
	DeleteTeam(ctx context.Context, team *Team) error

	// Membership operations
	AddMember(ctx context.Context, team *Team, login string) error
	RemoveMember(ctx context.Context, team *Team, login string) error

	// Repository grant operations
	GrantRepo(ctx context.Context, team *Team, repoSlug string, permission manifest.Permission) error
	RevokeRepo(ctx context.Context, team *Team, repoSlug string) error
}

// RepoClient is the per-repository surface the settings synchronizer works against
type RepoClient interface {
	GetSettings(ctx context.Context, slug string) (*Settings, error)
	UpdateSettings(ctx context.Context, slug string, settings Settings) error

	SetBranchProtection(ctx context.Context, slug, branch string, rule BranchProtectionRule) error

	// GetFile returns nil without error when the file does not exist.
	GetFile(ctx context.Context, slug, path string) (*File, error)
	PutFile(ctx context.Context, slug, path, message string, content []byte, sha string) error
}

// ChangeType represents the type of change applied to a remote resource
type ChangeType string

const (
	ChangeTypeCreate ChangeType = "create"
	ChangeTypeUpdate ChangeType = "update"
	ChangeTypeDelete ChangeType = "delete"
)

// ResourceType names what a change applies to
type ResourceType string

const (
	ResourceTeam       ResourceType = "team"
	ResourceMember     ResourceType = "member"
	ResourceRepository ResourceType = "repository"
)
