package github

import (
	"context"
	"slices"
	"strings"

	"github.com/stretchr/testify/mock"

	"repofleet/pkg/manifest"
)

// MockOrgClient is a mock implementation of OrgClient for testing
type MockOrgClient struct {
	mock.Mock
}

func (m *MockOrgClient) ListTeams(ctx context.Context, org string) ([]*Team, error) {
	args := m.Called(ctx, org)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Team), args.Error(1)
}

func (m *MockOrgClient) ListRepos(ctx context.Context, org string) ([]RemoteRepo, error) {
	args := m.Called(ctx, org)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]RemoteRepo), args.Error(1)
}

func (m *MockOrgClient) CreateTeam(ctx context.Context, org, name string, repoSlugs []string, permission manifest.Permission) (*Team, error) {
	args := m.Called(ctx, org, name, repoSlugs, permission)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Team), args.Error(1)
}

func (m *MockOrgClient) DeleteTeam(ctx context.Context, team *Team) error {
	args := m.Called(ctx, team)
	return args.Error(0)
}

func (m *MockOrgClient) AddMember(ctx context.Context, team *Team, login string) error {
	args := m.Called(ctx, team, login)
	return args.Error(0)
}

func (m *MockOrgClient) RemoveMember(ctx context.Context, team *Team, login string) error {
	args := m.Called(ctx, team, login)
	return args.Error(0)
}

func (m *MockOrgClient) GrantRepo(ctx context.Context, team *Team, repoSlug string, permission manifest.Permission) error {
	args := m.Called(ctx, team, repoSlug, permission)
	return args.Error(0)
}

func (m *MockOrgClient) RevokeRepo(ctx context.Context, team *Team, repoSlug string) error {
	args := m.Called(ctx, team, repoSlug)
	return args.Error(0)
}

// MockRepoClient is a mock implementation of RepoClient for testing
type MockRepoClient struct {
	mock.Mock
}

func (m *MockRepoClient) GetSettings(ctx context.Context, slug string) (*Settings, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Settings), args.Error(1)
}

func (m *MockRepoClient) UpdateSettings(ctx context.Context, slug string, settings Settings) error {
	args := m.Called(ctx, slug, settings)
	return args.Error(0)
}

func (m *MockRepoClient) SetBranchProtection(ctx context.Context, slug, branch string, rule BranchProtectionRule) error {
	args := m.Called(ctx, slug, branch, rule)
	return args.Error(0)
}

func (m *MockRepoClient) GetFile(ctx context.Context, slug, path string) (*File, error) {
	args := m.Called(ctx, slug, path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*File), args.Error(1)
}

func (m *MockRepoClient) PutFile(ctx context.Context, slug, path, message string, content []byte, sha string) error {
	args := m.Called(ctx, slug, path, message, content, sha)
	return args.Error(0)
}

// fakeOrg is an in-memory organisation that applies writes to its own state,
// so a second reconcile sees the result of the first.
type fakeOrg struct {
	teams  map[string]*Team
	writes int
	nextID int64

	// failOn makes the write with this 1-based index fail.
	failOn int
	err    error
}

func newFakeOrg(teams ...*Team) *fakeOrg {
	f := &fakeOrg{teams: make(map[string]*Team)}
	for _, t := range teams {
		if t.Repositories == nil {
			t.Repositories = make(map[string]RepoGrant)
		}
		f.teams[t.Name] = t
	}
	return f
}

func (f *fakeOrg) write() error {
	f.writes++
	if f.failOn > 0 && f.writes == f.failOn {
		return f.err
	}
	return nil
}

func (f *fakeOrg) ListTeams(_ context.Context, org string) ([]*Team, error) {
	names := make([]string, 0, len(f.teams))
	for name := range f.teams {
		names = append(names, name)
	}
	slices.Sort(names)

	teams := make([]*Team, 0, len(names))
	for _, name := range names {
		t := f.teams[name]
		clone := &Team{ID: t.ID, Org: org, Name: t.Name, Slug: t.Slug, Members: slices.Clone(t.Members), Repositories: make(map[string]RepoGrant)}
		for k, v := range t.Repositories {
			clone.Repositories[k] = v
		}
		teams = append(teams, clone)
	}
	return teams, nil
}

func (f *fakeOrg) ListRepos(context.Context, string) ([]RemoteRepo, error) {
	return nil, nil
}

func (f *fakeOrg) CreateTeam(_ context.Context, org, name string, repoSlugs []string, permission manifest.Permission) (*Team, error) {
	if err := f.write(); err != nil {
		return nil, err
	}
	f.nextID++
	t := &Team{ID: f.nextID, Org: org, Name: name, Slug: TeamSlug(name), Repositories: make(map[string]RepoGrant)}
	for _, slug := range repoSlugs {
		_, repo, _ := strings.Cut(slug, "/")
		t.Repositories[repo] = RepoGrant{Name: repo, FullName: slug, Permission: min(permission, manifest.PermissionWrite)}
	}
	f.teams[name] = t
	return t, nil
}

func (f *fakeOrg) DeleteTeam(_ context.Context, team *Team) error {
	if err := f.write(); err != nil {
		return err
	}
	delete(f.teams, team.Name)
	return nil
}

func (f *fakeOrg) AddMember(_ context.Context, team *Team, login string) error {
	if err := f.write(); err != nil {
		return err
	}
	t := f.teams[team.Name]
	t.Members = append(t.Members, login)
	return nil
}

func (f *fakeOrg) RemoveMember(_ context.Context, team *Team, login string) error {
	if err := f.write(); err != nil {
		return err
	}
	t := f.teams[team.Name]
	t.Members = slices.DeleteFunc(t.Members, func(m string) bool { return m == login })
	return nil
}

func (f *fakeOrg) GrantRepo(_ context.Context, team *Team, repoSlug string, permission manifest.Permission) error {
	if err := f.write(); err != nil {
		return err
	}
	_, repo, _ := strings.Cut(repoSlug, "/")
	f.teams[team.Name].Repositories[repo] = RepoGrant{Name: repo, FullName: repoSlug, Permission: permission}
	return nil
}

func (f *fakeOrg) RevokeRepo(_ context.Context, team *Team, repoSlug string) error {
	if err := f.write(); err != nil {
		return err
	}
	_, repo, _ := strings.Cut(repoSlug, "/")
	delete(f.teams[team.Name].Repositories, repo)
	return nil
}
