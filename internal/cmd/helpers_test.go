package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"repofleet/pkg/github"
	"repofleet/pkg/manifest"
)

// fakeGitHub is an in-memory organisation store recording every call
type fakeGitHub struct {
	mu sync.Mutex

	user     string
	teams    map[string][]*github.Team
	repos    map[string][]github.RemoteRepo
	settings map[string]github.Settings
	files    map[string]*github.File

	// failOrg makes every call for that organisation fail
	failOrg string
	// failWrite makes the write with this prefix fail, e.g. "AddMember"
	failWrite string

	calls  []string
	nextID int64
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{
		user:     "octocat",
		teams:    make(map[string][]*github.Team),
		repos:    make(map[string][]github.RemoteRepo),
		settings: make(map[string]github.Settings),
		files:    make(map[string]*github.File),
	}
}

func (f *fakeGitHub) record(format string, args ...any) string {
	call := fmt.Sprintf(format, args...)
	f.calls = append(f.calls, call)
	return call
}

func (f *fakeGitHub) fail(call, org string) error {
	if f.failOrg != "" && org == f.failOrg {
		return &github.APIError{Type: github.ErrorTypeNetwork, Message: "connection refused", Resource: org}
	}
	if f.failWrite != "" && strings.HasPrefix(call, f.failWrite) {
		return &github.APIError{Type: github.ErrorTypePermission, Message: "forbidden", Resource: call}
	}
	return nil
}

// writes returns the recorded calls that modify state
func (f *fakeGitHub) writes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if !strings.HasPrefix(c, "List") && !strings.HasPrefix(c, "Get") && !strings.HasPrefix(c, "ValidateToken") {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeGitHub) addTeam(org, name string, members []string, grants map[string]manifest.Permission) {
	f.nextID++
	team := &github.Team{
		ID:           f.nextID,
		Org:          org,
		Name:         name,
		Slug:         github.TeamSlug(name),
		Members:      members,
		Repositories: make(map[string]github.RepoGrant),
	}
	for repo, perm := range grants {
		team.Repositories[repo] = github.RepoGrant{Name: repo, FullName: org + "/" + repo, Permission: perm}
	}
	f.teams[org] = append(f.teams[org], team)
}

func (f *fakeGitHub) findTeam(team *github.Team) *github.Team {
	for _, t := range f.teams[team.Org] {
		if t.Name == team.Name {
			return t
		}
	}
	return nil
}

func (f *fakeGitHub) ValidateToken(context.Context) (*github.TokenInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("ValidateToken")
	return &github.TokenInfo{User: f.user}, nil
}

func (f *fakeGitHub) ListTeams(_ context.Context, org string) ([]*github.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(f.record("ListTeams %s", org), org); err != nil {
		return nil, err
	}

	out := make([]*github.Team, 0, len(f.teams[org]))
	for _, t := range f.teams[org] {
		clone := *t
		clone.Members = slices.Clone(t.Members)
		clone.Repositories = make(map[string]github.RepoGrant, len(t.Repositories))
		for k, v := range t.Repositories {
			clone.Repositories[k] = v
		}
		out = append(out, &clone)
	}
	return out, nil
}

func (f *fakeGitHub) ListRepos(_ context.Context, org string) ([]github.RemoteRepo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(f.record("ListRepos %s", org), org); err != nil {
		return nil, err
	}
	return slices.Clone(f.repos[org]), nil
}

func (f *fakeGitHub) CreateTeam(_ context.Context, org, name string, repoSlugs []string, permission manifest.Permission) (*github.Team, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(f.record("CreateTeam %s/%s %v", org, name, repoSlugs), org); err != nil {
		return nil, err
	}

	grants := make(map[string]manifest.Permission, len(repoSlugs))
	for _, slug := range repoSlugs {
		grants[strings.TrimPrefix(slug, org+"/")] = permission
	}
	f.addTeam(org, name, []string{}, grants)
	created := f.teams[org][len(f.teams[org])-1]
	clone := *created
	return &clone, nil
}

func (f *fakeGitHub) DeleteTeam(_ context.Context, team *github.Team) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(f.record("DeleteTeam %s/%s", team.Org, team.Name), team.Org); err != nil {
		return err
	}
	f.teams[team.Org] = slices.DeleteFunc(f.teams[team.Org], func(t *github.Team) bool { return t.Name == team.Name })
	return nil
}

func (f *fakeGitHub) AddMember(_ context.Context, team *github.Team, login string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(f.record("AddMember %s %s", team.Name, login), team.Org); err != nil {
		return err
	}
	if t := f.findTeam(team); t != nil {
		t.Members = append(t.Members, login)
	}
	return nil
}

func (f *fakeGitHub) RemoveMember(_ context.Context, team *github.Team, login string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(f.record("RemoveMember %s %s", team.Name, login), team.Org); err != nil {
		return err
	}
	if t := f.findTeam(team); t != nil {
		t.Members = slices.DeleteFunc(t.Members, func(m string) bool { return strings.EqualFold(m, login) })
	}
	return nil
}

func (f *fakeGitHub) GrantRepo(_ context.Context, team *github.Team, repoSlug string, permission manifest.Permission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(f.record("GrantRepo %s %s %s", team.Name, repoSlug, permission), team.Org); err != nil {
		return err
	}
	if t := f.findTeam(team); t != nil {
		name := strings.TrimPrefix(repoSlug, team.Org+"/")
		t.Repositories[name] = github.RepoGrant{Name: name, FullName: repoSlug, Permission: permission}
	}
	return nil
}

func (f *fakeGitHub) RevokeRepo(_ context.Context, team *github.Team, repoSlug string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(f.record("RevokeRepo %s %s", team.Name, repoSlug), team.Org); err != nil {
		return err
	}
	if t := f.findTeam(team); t != nil {
		delete(t.Repositories, strings.TrimPrefix(repoSlug, team.Org+"/"))
	}
	return nil
}

func orgOf(slug string) string {
	org, _, _ := strings.Cut(slug, "/")
	return org
}

func (f *fakeGitHub) GetSettings(_ context.Context, slug string) (*github.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(f.record("GetSettings %s", slug), orgOf(slug)); err != nil {
		return nil, err
	}
	s, ok := f.settings[slug]
	if !ok {
		return nil, &github.APIError{Type: github.ErrorTypeNotFound, Message: "Not Found", Resource: "repository " + slug}
	}
	return &s, nil
}

func (f *fakeGitHub) UpdateSettings(_ context.Context, slug string, settings github.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(f.record("UpdateSettings %s", slug), orgOf(slug)); err != nil {
		return err
	}
	f.settings[slug] = settings
	return nil
}

func (f *fakeGitHub) SetBranchProtection(_ context.Context, slug, branch string, _ github.BranchProtectionRule) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fail(f.record("SetBranchProtection %s %s", slug, branch), orgOf(slug))
}

func (f *fakeGitHub) GetFile(_ context.Context, slug, path string) (*github.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(f.record("GetFile %s %s", slug, path), orgOf(slug)); err != nil {
		return nil, err
	}
	return f.files[slug+"/"+path], nil
}

func (f *fakeGitHub) PutFile(_ context.Context, slug, path, _ string, content []byte, sha string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fail(f.record("PutFile %s %s %s", slug, path, sha), orgOf(slug)); err != nil {
		return err
	}
	f.files[slug+"/"+path] = &github.File{Path: path, SHA: "new", Content: content}
	return nil
}

var _ githubAPI = (*fakeGitHub)(nil)

// loadTestManifest parses doc with an empty selector
func loadTestManifest(t *testing.T, doc string) *manifest.Manifest {
	t.Helper()
	m, err := manifest.Load([]byte(doc), manifest.Selector{})
	require.NoError(t, err)
	return m
}

// writeManifest stores doc in a temporary file and returns its path
func writeManifest(t *testing.T, doc string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "repositories.yml")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0600))
	return path
}

// isolateHome points the config file at an empty temporary home and clears
// token variables.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("TRAVIS_TOKEN", "")
	return home
}

// executeCommand runs the root command with args after resetting the flag
// variables shared between runs. It returns stdout and stderr.
func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	manifestPath, repositorySlugs, repositoryTypes, pickRepos, verbose = "", nil, nil, false, false
	githubToken, travisToken = "", ""
	reposDryRun, withMaintainersFile, prTemplatePath = false, false, ""
	teamsDryRun, teamsJobs = false, 1
	buildBranch, buildAllBranches, buildRepoNames, encryptValue, deployUser = "", false, nil, "", ""
	templateOutput, initForce = "", false
	loginNoBrowser, loginTravis, statusToken = false, false, ""

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// useFakeGitHub makes the commands talk to fake and returns a pointer to the
// number of clients created.
func useFakeGitHub(t *testing.T, fake *fakeGitHub) *int {
	t.Helper()
	created := 0
	previous := newGitHubClient
	newGitHubClient = func(string) githubAPI {
		created++
		return fake
	}
	t.Cleanup(func() { newGitHubClient = previous })
	return &created
}

// noPrompts makes every prompt fail as if stdin was not a terminal
func noPrompts(t *testing.T) {
	t.Helper()
	previous := promptSecret
	promptSecret = func(label string) (string, error) {
		return "", fmt.Errorf("%s required but stdin is not a terminal", label)
	}
	t.Cleanup(func() { promptSecret = previous })
}
