package github

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"repofleet/pkg/manifest"
)

func remoteTeam(name string, members []string, grants ...RepoGrant) *Team {
	t := &Team{Org: "o", Name: name, Slug: TeamSlug(name), Members: members, Repositories: make(map[string]RepoGrant)}
	for _, g := range grants {
		t.Repositories[g.Name] = g
	}
	return t
}

func grant(name string, perm manifest.Permission) RepoGrant {
	return RepoGrant{Name: name, FullName: "o/" + name, Permission: perm}
}

func TestTeamReconciler_CreatesMissingTeam(t *testing.T) {
	client := new(MockOrgClient)
	created := remoteTeam("devs", nil, grant("r1", manifest.PermissionWrite))

	client.On("ListTeams", mock.Anything, "o").Return([]*Team{}, nil)
	client.On("CreateTeam", mock.Anything, "o", "devs", []string{"o/r1"}, manifest.PermissionWrite).Return(created, nil)
	client.On("AddMember", mock.Anything, created, "a").Return(nil)
	client.On("AddMember", mock.Anything, created, "b").Return(nil)

	declared := []*manifest.Team{{Name: "devs", Members: []string{"a", "b"}, Repositories: []string{"r1"}, Permission: manifest.PermissionWrite}}

	report, err := NewTeamReconciler(client).Reconcile(context.Background(), "o", declared)
	require.NoError(t, err)

	assert.True(t, report.Changed())
	assert.Len(t, report.Changes, 3)
	client.AssertExpectations(t)
	client.AssertNumberOfCalls(t, "CreateTeam", 1)
	client.AssertNumberOfCalls(t, "AddMember", 2)
	client.AssertNotCalled(t, "GrantRepo", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	client.AssertNotCalled(t, "DeleteTeam", mock.Anything, mock.Anything)
}

func TestTeamReconciler_DeletesStaleTeam(t *testing.T) {
	client := new(MockOrgClient)
	old := remoteTeam("old", []string{"x"}, grant("r1", manifest.PermissionRead))

	client.On("ListTeams", mock.Anything, "o").Return([]*Team{old}, nil)
	client.On("DeleteTeam", mock.Anything, old).Return(nil)

	report, err := NewTeamReconciler(client).Reconcile(context.Background(), "o", nil)
	require.NoError(t, err)

	assert.Equal(t, []Change{{Type: ChangeTypeDelete, Resource: ResourceTeam, Team: "old"}}, report.Changes)
	client.AssertExpectations(t)
	client.AssertNotCalled(t, "RemoveMember", mock.Anything, mock.Anything, mock.Anything)
	client.AssertNotCalled(t, "RevokeRepo", mock.Anything, mock.Anything, mock.Anything)
}

func TestTeamReconciler_ConvergesMembership(t *testing.T) {
	client := new(MockOrgClient)
	live := remoteTeam("r1-maintainers", []string{"a", "c"}, grant("r1", manifest.PermissionMaintain))

	client.On("ListTeams", mock.Anything, "o").Return([]*Team{live}, nil)
	client.On("AddMember", mock.Anything, live, "b").Return(nil)
	client.On("RemoveMember", mock.Anything, live, "c").Return(nil)

	declared := []*manifest.Team{{
		Name:         "r1-maintainers",
		Members:      []string{"a", "b"},
		Repositories: []string{"r1"},
		Permission:   manifest.PermissionMaintain,
		Implicit:     true,
	}}

	report, err := NewTeamReconciler(client).Reconcile(context.Background(), "o", declared)
	require.NoError(t, err)

	assert.Equal(t, []Change{
		{Type: ChangeTypeCreate, Resource: ResourceMember, Team: "r1-maintainers", Target: "b"},
		{Type: ChangeTypeDelete, Resource: ResourceMember, Team: "r1-maintainers", Target: "c"},
	}, report.Changes)
	client.AssertExpectations(t)
	client.AssertNumberOfCalls(t, "AddMember", 1)
	client.AssertNumberOfCalls(t, "RemoveMember", 1)
	client.AssertNotCalled(t, "GrantRepo", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTeamReconciler_MembershipIgnoresLoginCase(t *testing.T) {
	client := new(MockOrgClient)
	live := remoteTeam("devs", []string{"Alice"})

	client.On("ListTeams", mock.Anything, "o").Return([]*Team{live}, nil)

	declared := []*manifest.Team{{Name: "devs", Members: []string{"alice"}, Permission: manifest.PermissionRead}}

	report, err := NewTeamReconciler(client).Reconcile(context.Background(), "o", declared)
	require.NoError(t, err)
	assert.False(t, report.Changed())
	client.AssertExpectations(t)
}

func TestTeamReconciler_RepositoryGrantsIgnoreNameCase(t *testing.T) {
	client := new(MockOrgClient)
	live := remoteTeam("devs", nil, grant("invenio-foo", manifest.PermissionWrite))

	client.On("ListTeams", mock.Anything, "o").Return([]*Team{live}, nil)

	declared := []*manifest.Team{{Name: "devs", Members: []string{}, Repositories: []string{"Invenio-Foo"}, Permission: manifest.PermissionWrite}}

	report, err := NewTeamReconciler(client).Reconcile(context.Background(), "o", declared)
	require.NoError(t, err)
	assert.False(t, report.Changed())
	client.AssertNotCalled(t, "RevokeRepo", mock.Anything, mock.Anything, mock.Anything)
	client.AssertNotCalled(t, "GrantRepo", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTeamReconciler_RepositoryGrants(t *testing.T) {
	tests := []struct {
		name     string
		live     []RepoGrant
		declared []string
		perm     manifest.Permission
		setup    func(client *MockOrgClient, live *Team)
		want     []Change
	}{
		{
			name:     "grants missing repository",
			declared: []string{"r1"},
			perm:     manifest.PermissionWrite,
			setup: func(client *MockOrgClient, live *Team) {
				client.On("GrantRepo", mock.Anything, live, "o/r1", manifest.PermissionWrite).Return(nil)
			},
			want: []Change{{Type: ChangeTypeCreate, Resource: ResourceRepository, Team: "devs", Target: "o/r1", Permission: manifest.PermissionWrite}},
		},
		{
			name:     "revokes undeclared repository",
			live:     []RepoGrant{grant("r1", manifest.PermissionWrite), grant("r2", manifest.PermissionRead)},
			declared: []string{"r1"},
			perm:     manifest.PermissionWrite,
			setup: func(client *MockOrgClient, live *Team) {
				client.On("RevokeRepo", mock.Anything, live, "o/r2").Return(nil)
			},
			want: []Change{{Type: ChangeTypeDelete, Resource: ResourceRepository, Team: "devs", Target: "o/r2"}},
		},
		{
			name:     "upgrades lower permission",
			live:     []RepoGrant{grant("r1", manifest.PermissionRead)},
			declared: []string{"r1"},
			perm:     manifest.PermissionMaintain,
			setup: func(client *MockOrgClient, live *Team) {
				client.On("GrantRepo", mock.Anything, live, "o/r1", manifest.PermissionMaintain).Return(nil)
			},
			want: []Change{{Type: ChangeTypeUpdate, Resource: ResourceRepository, Team: "devs", Target: "o/r1", Permission: manifest.PermissionMaintain}},
		},
		{
			name:     "never downgrades higher permission",
			live:     []RepoGrant{grant("r1", manifest.PermissionAdmin)},
			declared: []string{"r1"},
			perm:     manifest.PermissionWrite,
			setup:    func(*MockOrgClient, *Team) {},
		},
		{
			name:     "equal permission is left alone",
			live:     []RepoGrant{grant("r1", manifest.PermissionWrite)},
			declared: []string{"r1"},
			perm:     manifest.PermissionWrite,
			setup:    func(*MockOrgClient, *Team) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(MockOrgClient)
			live := remoteTeam("devs", nil, tt.live...)
			client.On("ListTeams", mock.Anything, "o").Return([]*Team{live}, nil)
			tt.setup(client, live)

			declared := []*manifest.Team{{Name: "devs", Repositories: tt.declared, Permission: tt.perm}}
			report, err := NewTeamReconciler(client).Reconcile(context.Background(), "o", declared)
			require.NoError(t, err)

			assert.Equal(t, tt.want, report.Changes)
			assert.Equal(t, len(tt.want) > 0, report.Changed())
			client.AssertExpectations(t)
		})
	}
}

func TestTeamReconciler_ListFailure(t *testing.T) {
	client := new(MockOrgClient)
	client.On("ListTeams", mock.Anything, "o").Return(nil, &APIError{Type: ErrorTypeAuth, Message: "bad credentials"})

	report, err := NewTeamReconciler(client).Reconcile(context.Background(), "o", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRemoteUnavailable))
	assert.False(t, report.Changed())
	client.AssertNotCalled(t, "DeleteTeam", mock.Anything, mock.Anything)
}

func TestTeamReconciler_FirstWriteFails(t *testing.T) {
	client := new(MockOrgClient)
	old := remoteTeam("old", nil)
	client.On("ListTeams", mock.Anything, "o").Return([]*Team{old}, nil)
	client.On("DeleteTeam", mock.Anything, old).Return(&APIError{Type: ErrorTypePermission, Message: "forbidden"})

	_, err := NewTeamReconciler(client).Reconcile(context.Background(), "o", nil)
	require.Error(t, err)

	var partial *PartialApplyError
	assert.False(t, errors.As(err, &partial))
	assert.True(t, errors.Is(err, ErrRemoteUnavailable))
	assert.Contains(t, err.Error(), "delete team old")
}

func TestTeamReconciler_PartialApply(t *testing.T) {
	fake := newFakeOrg(remoteTeam("devs", []string{"a"}))
	fake.failOn = 2
	fake.err = &APIError{Type: ErrorTypeNetwork, Message: "unavailable"}

	declared := []*manifest.Team{{Name: "devs", Members: []string{"b", "c"}, Permission: manifest.PermissionRead}}

	report, err := NewTeamReconciler(fake).Reconcile(context.Background(), "o", declared)
	require.Error(t, err)

	var partial *PartialApplyError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, []string{"add b to team devs"}, partial.AppliedOperations())
	assert.Equal(t, "c", partial.Failed.Target)
	assert.True(t, errors.Is(err, ErrRemoteUnavailable))
	assert.Len(t, report.Changes, 1)

	// Nothing is rolled back
	assert.Equal(t, []string{"a", "b"}, fake.teams["devs"].Members)
}

func TestTeamReconciler_Idempotent(t *testing.T) {
	fake := newFakeOrg(
		remoteTeam("stale", []string{"z"}),
		remoteTeam("devs", []string{"a", "x"}, grant("r1", manifest.PermissionRead), grant("r9", manifest.PermissionRead)),
		remoteTeam("admins", []string{"root"}, grant("r1", manifest.PermissionAdmin)),
	)

	declared := []*manifest.Team{
		{Name: "devs", Members: []string{"a", "b"}, Repositories: []string{"r1", "r2"}, Permission: manifest.PermissionWrite},
		{Name: "admins", Members: []string{"root"}, Repositories: []string{"r1"}, Permission: manifest.PermissionWrite},
		{Name: "r3-maintainers", Members: []string{"m"}, Repositories: []string{"r3"}, Permission: manifest.PermissionMaintain, Implicit: true},
	}

	reconciler := NewTeamReconciler(fake)

	first, err := reconciler.Reconcile(context.Background(), "o", declared)
	require.NoError(t, err)
	assert.True(t, first.Changed())
	assert.Equal(t, len(first.Changes), fake.writes)

	writes := fake.writes
	second, err := reconciler.Reconcile(context.Background(), "o", declared)
	require.NoError(t, err)
	assert.False(t, second.Changed())
	assert.Equal(t, writes, fake.writes)

	// Converged state
	assert.NotContains(t, fake.teams, "stale")
	assert.ElementsMatch(t, []string{"a", "b"}, fake.teams["devs"].Members)
	assert.Equal(t, manifest.PermissionWrite, fake.teams["devs"].Repositories["r1"].Permission)
	assert.Equal(t, manifest.PermissionWrite, fake.teams["devs"].Repositories["r2"].Permission)
	assert.NotContains(t, fake.teams["devs"].Repositories, "r9")
	assert.Equal(t, manifest.PermissionAdmin, fake.teams["admins"].Repositories["r1"].Permission)
	assert.Equal(t, manifest.PermissionMaintain, fake.teams["r3-maintainers"].Repositories["r3"].Permission)
	assert.Equal(t, []string{"m"}, fake.teams["r3-maintainers"].Members)
}

func TestTeamReconciler_DryRun(t *testing.T) {
	declared := []*manifest.Team{
		{Name: "devs", Members: []string{"a", "b"}, Repositories: []string{"r1"}, Permission: manifest.PermissionWrite},
	}

	dry := newFakeOrg(remoteTeam("stale", nil))
	planned, err := NewTeamReconciler(dry, WithDryRun(true)).Reconcile(context.Background(), "o", declared)
	require.NoError(t, err)
	assert.True(t, planned.DryRun)
	assert.Zero(t, dry.writes)
	assert.Contains(t, dry.teams, "stale")

	real := newFakeOrg(remoteTeam("stale", nil))
	applied, err := NewTeamReconciler(real).Reconcile(context.Background(), "o", declared)
	require.NoError(t, err)

	assert.Equal(t, applied.Changes, planned.Changes)
}

func TestTeamReconciler_ReconcileTeamLeavesOthers(t *testing.T) {
	fake := newFakeOrg(
		remoteTeam("other", []string{"x"}),
		remoteTeam("r1-maintainers", []string{"a"}, grant("r1", manifest.PermissionMaintain)),
	)

	team := &manifest.Team{Name: "r1-maintainers", Members: []string{"a", "b"}, Repositories: []string{"r1"}, Permission: manifest.PermissionMaintain}

	report, err := NewTeamReconciler(fake).ReconcileTeam(context.Background(), "o", team)
	require.NoError(t, err)

	assert.Equal(t, []Change{{Type: ChangeTypeCreate, Resource: ResourceMember, Team: "r1-maintainers", Target: "b"}}, report.Changes)
	assert.Contains(t, fake.teams, "other")
}

func TestChange_String(t *testing.T) {
	tests := []struct {
		change Change
		want   string
	}{
		{Change{Type: ChangeTypeCreate, Resource: ResourceTeam, Team: "devs"}, "create team devs"},
		{Change{Type: ChangeTypeDelete, Resource: ResourceTeam, Team: "old"}, "delete team old"},
		{Change{Type: ChangeTypeCreate, Resource: ResourceMember, Team: "devs", Target: "a"}, "add a to team devs"},
		{Change{Type: ChangeTypeDelete, Resource: ResourceMember, Team: "devs", Target: "a"}, "remove a from team devs"},
		{Change{Type: ChangeTypeCreate, Resource: ResourceRepository, Team: "devs", Target: "o/r1", Permission: manifest.PermissionWrite}, "grant team devs write access to o/r1"},
		{Change{Type: ChangeTypeUpdate, Resource: ResourceRepository, Team: "devs", Target: "o/r1", Permission: manifest.PermissionAdmin}, "upgrade team devs to admin access on o/r1"},
		{Change{Type: ChangeTypeDelete, Resource: ResourceRepository, Team: "devs", Target: "o/r1"}, "revoke team devs access to o/r1"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.change.String())
	}
}
