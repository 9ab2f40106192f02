package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repofleet/pkg/github"
	"repofleet/pkg/manifest"
)

const freshTeamManifest = `
orgs:
  o:
    repositories:
      r1: {}
    teams:
      devs:
        members: [a, b]
        repositories: [r1]
        permission: write
`

func TestSyncTeams_Converges(t *testing.T) {
	tests := []struct {
		name           string
		doc            string
		setup          func(f *fakeGitHub)
		expectedWrites []string
		expectedOutput []string
	}{
		{
			name: "fresh team is created then populated",
			doc:  freshTeamManifest,
			expectedWrites: []string{
				"CreateTeam o/devs [o/r1]",
				"AddMember devs a",
				"AddMember devs b",
			},
			expectedOutput: []string{
				"👥 Configuring o teams",
				"✓ create team devs",
				"✓ add b to team devs",
			},
		},
		{
			name: "stale team is deleted",
			doc:  "orgs:\n  o:\n    repositories:\n      r1: {}\n",
			setup: func(f *fakeGitHub) {
				f.addTeam("o", "old", []string{"x"}, map[string]manifest.Permission{"r1": manifest.PermissionRead})
			},
			expectedWrites: []string{"DeleteTeam o/old"},
			expectedOutput: []string{"✓ delete team old"},
		},
		{
			name: "maintainer team membership converges",
			doc:  "orgs:\n  o:\n    repositories:\n      r1:\n        maintainers: [a, b]\n",
			setup: func(f *fakeGitHub) {
				f.addTeam("o", "r1-maintainers", []string{"a", "c"}, map[string]manifest.Permission{"r1": manifest.PermissionMaintain})
			},
			expectedWrites: []string{
				"AddMember r1-maintainers b",
				"RemoveMember r1-maintainers c",
			},
			expectedOutput: []string{
				"✓ add b to team r1-maintainers",
				"✓ remove c from team r1-maintainers",
			},
		},
		{
			name: "converged organisation",
			doc:  "orgs:\n  o:\n    repositories:\n      r1:\n        maintainers: [a]\n",
			setup: func(f *fakeGitHub) {
				f.addTeam("o", "r1-maintainers", []string{"A"}, map[string]manifest.Permission{"r1": manifest.PermissionAdmin})
			},
			expectedOutput: []string{"✓ 1 team(s) already in sync"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeGitHub()
			if tt.setup != nil {
				tt.setup(fake)
			}
			m := loadTestManifest(t, tt.doc)
			var out bytes.Buffer

			err := syncTeams(context.Background(), &out, github.NewTeamReconciler(fake), m, 1)
			require.NoError(t, err)

			assert.Equal(t, tt.expectedWrites, fake.writes())
			for _, expected := range tt.expectedOutput {
				assert.Contains(t, out.String(), expected)
			}
		})
	}
}

func TestSyncTeams_Idempotent(t *testing.T) {
	fake := newFakeGitHub()
	m := loadTestManifest(t, freshTeamManifest)
	reconciler := github.NewTeamReconciler(fake)

	require.NoError(t, syncTeams(context.Background(), &bytes.Buffer{}, reconciler, m, 1))
	first := len(fake.writes())
	require.NotZero(t, first)

	var out bytes.Buffer
	require.NoError(t, syncTeams(context.Background(), &out, reconciler, m, 1))
	assert.Len(t, fake.writes(), first, "second run should not write")
	assert.Contains(t, out.String(), "already in sync")
}

func TestSyncTeams_DryRun(t *testing.T) {
	fake := newFakeGitHub()
	m := loadTestManifest(t, freshTeamManifest)
	var out bytes.Buffer

	err := syncTeams(context.Background(), &out, github.NewTeamReconciler(fake, github.WithDryRun(true)), m, 1)
	require.NoError(t, err)

	assert.Empty(t, fake.writes())
	assert.Contains(t, out.String(), "🔍 would create team devs")
	assert.Contains(t, out.String(), "🔍 would add a to team devs")
}

func TestSyncTeams_FailingOrganisationDoesNotStopOthers(t *testing.T) {
	doc := `
orgs:
  broken:
    teams:
      devs:
        members: [a]
  o:
    teams:
      devs:
        members: [a]
`
	fake := newFakeGitHub()
	fake.failOrg = "broken"
	m := loadTestManifest(t, doc)
	var out bytes.Buffer

	err := syncTeams(context.Background(), &out, github.NewTeamReconciler(fake), m, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.NotContains(t, err.Error(), ", o")

	assert.Equal(t, []string{"CreateTeam o/devs []", "AddMember devs a"}, fake.writes())

	output := out.String()
	assert.Contains(t, output, "❌ broken:")
	assert.Less(t, bytes.Index(out.Bytes(), []byte("Configuring broken teams")), bytes.Index(out.Bytes(), []byte("Configuring o teams")),
		"organisations should be reported in declared order")
}

func TestSyncTeams_PartialApplyListsAppliedChanges(t *testing.T) {
	fake := newFakeGitHub()
	fake.failWrite = "AddMember devs b"
	m := loadTestManifest(t, freshTeamManifest)
	var out bytes.Buffer

	err := syncTeams(context.Background(), &out, github.NewTeamReconciler(fake), m, 1)
	require.Error(t, err)

	assert.Contains(t, out.String(), "Changes applied before the failure:")
	assert.Contains(t, out.String(), "- create team devs")
	assert.Contains(t, out.String(), "- add a to team devs")
}

func TestTeamsSyncCommand_EmptyManifest(t *testing.T) {
	isolateHome(t)
	fake := newFakeGitHub()
	created := useFakeGitHub(t, fake)
	path := writeManifest(t, "")

	stdout, _, err := executeCommand(t, "github", "teams-sync", "-c", path)
	require.NoError(t, err)

	assert.Contains(t, stdout, "No organisations declared")
	assert.Zero(t, *created, "no client should be created")
	assert.Empty(t, fake.calls)
}

func TestTeamsSyncCommand_MalformedManifest(t *testing.T) {
	isolateHome(t)
	fake := newFakeGitHub()
	created := useFakeGitHub(t, fake)
	path := writeManifest(t, "orgs:\n  o:\n    teams:\n      devs:\n        permission: owner\n")

	_, _, err := executeCommand(t, "github", "teams-sync", "-c", path)
	require.Error(t, err)

	var malformed *manifest.MalformedConfigError
	assert.ErrorAs(t, err, &malformed)
	assert.Zero(t, *created)
}

func TestTeamsSyncCommand(t *testing.T) {
	isolateHome(t)
	t.Setenv("GITHUB_TOKEN", "ghp_test")
	fake := newFakeGitHub()
	useFakeGitHub(t, fake)
	path := writeManifest(t, freshTeamManifest)

	stdout, _, err := executeCommand(t, "github", "teams-sync", "-c", path, "--dry-run")
	require.NoError(t, err)

	assert.Contains(t, stdout, "✓ Authenticated as octocat")
	assert.Contains(t, stdout, "🔍 Dry-run mode")
	assert.Contains(t, stdout, "🔍 would create team devs")
	assert.Empty(t, fake.writes())
}

func TestTeamsSyncCommand_NoToken(t *testing.T) {
	isolateHome(t)
	noPrompts(t)
	created := useFakeGitHub(t, newFakeGitHub())
	path := writeManifest(t, freshTeamManifest)

	_, stderr, err := executeCommand(t, "github", "teams-sync", "-c", path)
	require.Error(t, err)

	assert.Contains(t, err.Error(), "no GitHub token found")
	assert.Contains(t, stderr, "GitHub authentication is required")
	assert.Zero(t, *created)
}
