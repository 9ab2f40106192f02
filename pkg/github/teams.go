package github

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"repofleet/pkg/manifest"
)

// Change describes one write the team reconciler issued (or, in dry-run mode,
// would have issued).
type Change struct {
	Type       ChangeType          `json:"type"`
	Resource   ResourceType        `json:"resource"`
	Team       string              `json:"team"`
	Target     string              `json:"target,omitempty"`
	Permission manifest.Permission `json:"permission,omitempty"`
}

// String renders the change as a single status line
func (c Change) String() string {
	switch c.Resource {
	case ResourceTeam:
		return fmt.Sprintf("%s team %s", c.Type, c.Team)
	case ResourceMember:
		if c.Type == ChangeTypeCreate {
			return fmt.Sprintf("add %s to team %s", c.Target, c.Team)
		}
		return fmt.Sprintf("remove %s from team %s", c.Target, c.Team)
	case ResourceRepository:
		switch c.Type {
		case ChangeTypeCreate:
			return fmt.Sprintf("grant team %s %s access to %s", c.Team, c.Permission, c.Target)
		case ChangeTypeUpdate:
			return fmt.Sprintf("upgrade team %s to %s access on %s", c.Team, c.Permission, c.Target)
		default:
			return fmt.Sprintf("revoke team %s access to %s", c.Team, c.Target)
		}
	}
	return fmt.Sprintf("%s %s %s", c.Type, c.Resource, c.Team)
}

// Report lists the changes a reconcile applied, in the order they were issued
type Report struct {
	Org     string
	DryRun  bool
	Changes []Change
}

// Changed reports whether any write was issued
func (r Report) Changed() bool {
	return len(r.Changes) > 0
}

// Option configures a TeamReconciler or a RepositorySynchronizer
type Option func(*options)

type options struct {
	logger logrus.FieldLogger
	dryRun bool
}

// WithLogger sets the logger used for operation-level diagnostics
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDryRun computes and reports changes without writing them
func WithDryRun(dryRun bool) Option {
	return func(o *options) {
		o.dryRun = dryRun
	}
}

func buildOptions(opts []Option) options {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	o := options{logger: discard}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// TeamReconciler brings the teams of an organisation in line with the manifest
type TeamReconciler struct {
	client OrgClient
	options
}

// NewTeamReconciler creates a new team reconciler
func NewTeamReconciler(client OrgClient, opts ...Option) *TeamReconciler {
	return &TeamReconciler{
		client:  client,
		options: buildOptions(opts),
	}
}

// Reconcile deletes teams that are not declared, creates declared teams that
// are missing, and converges membership and repository grants of every
// declared team. Grants are upgraded but never downgraded.
func (r *TeamReconciler) Reconcile(ctx context.Context, org string, declared []*manifest.Team) (Report, error) {
	remote, err := r.client.ListTeams(ctx, org)
	if err != nil {
		return Report{Org: org, DryRun: r.dryRun}, fmt.Errorf("failed to list teams of %s: %w", org, err)
	}
	return r.reconcile(ctx, org, remote, declared, true)
}

// ReconcileTeam converges a single declared team, leaving every other team of
// the organisation untouched.
func (r *TeamReconciler) ReconcileTeam(ctx context.Context, org string, team *manifest.Team) (Report, error) {
	remote, err := r.client.ListTeams(ctx, org)
	if err != nil {
		return Report{Org: org, DryRun: r.dryRun}, fmt.Errorf("failed to list teams of %s: %w", org, err)
	}
	remote = slices.DeleteFunc(remote, func(t *Team) bool { return t.Name != team.Name })
	return r.reconcile(ctx, org, remote, []*manifest.Team{team}, false)
}

// reconcilePass holds the state of one reconcile call
type reconcilePass struct {
	*TeamReconciler
	org    string
	report Report
	logger logrus.FieldLogger
}

// liveSlug returns the slug of the live team called name, or "" when the
// organisation has no such team yet.
func (r *TeamReconciler) liveSlug(ctx context.Context, org, name string) (string, error) {
	teams, err := r.client.ListTeams(ctx, org)
	if err != nil {
		return "", err
	}
	for _, t := range teams {
		if strings.EqualFold(t.Name, name) {
			return t.Slug, nil
		}
	}
	return "", nil
}

func (r *TeamReconciler) reconcile(ctx context.Context, org string, remote []*Team, declared []*manifest.Team, prune bool) (Report, error) {
	p := &reconcilePass{
		TeamReconciler: r,
		org:            org,
		report:         Report{Org: org, DryRun: r.dryRun},
		logger:         r.logger.WithField("org", org),
	}

	current := make(map[string]*Team, len(remote))
	for _, t := range remote {
		current[t.Name] = t
	}
	expected := make(map[string]*manifest.Team, len(declared))
	for _, t := range declared {
		expected[t.Name] = t
	}

	if prune {
		for _, t := range remote {
			if _, ok := expected[t.Name]; ok {
				continue
			}
			change := Change{Type: ChangeTypeDelete, Resource: ResourceTeam, Team: t.Name}
			if err := p.apply(change, func() error { return p.client.DeleteTeam(ctx, t) }); err != nil {
				return p.report, err
			}
		}
	}

	for _, t := range declared {
		if _, ok := current[t.Name]; ok {
			continue
		}
		created, err := p.createTeam(ctx, t)
		if err != nil {
			return p.report, err
		}
		current[t.Name] = created
	}

	for _, t := range declared {
		live := current[t.Name]
		if err := p.syncMembers(ctx, live, t); err != nil {
			return p.report, err
		}
		if err := p.syncRepositories(ctx, live, t); err != nil {
			return p.report, err
		}
	}

	return p.report, nil
}

func (p *reconcilePass) createTeam(ctx context.Context, t *manifest.Team) (*Team, error) {
	slugs := make([]string, 0, len(t.Repositories))
	for _, name := range t.Repositories {
		slugs = append(slugs, p.org+"/"+name)
	}

	var created *Team
	change := Change{Type: ChangeTypeCreate, Resource: ResourceTeam, Team: t.Name, Permission: t.Permission}
	err := p.apply(change, func() error {
		var err error
		created, err = p.client.CreateTeam(ctx, p.org, t.Name, slugs, t.Permission)
		return err
	})
	if err != nil {
		return nil, err
	}

	if created == nil {
		// Dry run: assume creation grants the declared repositories.
		created = &Team{
			Org:          p.org,
			Name:         t.Name,
			Slug:         TeamSlug(t.Name),
			Repositories: make(map[string]RepoGrant, len(t.Repositories)),
		}
		for _, name := range t.Repositories {
			created.Repositories[name] = RepoGrant{Name: name, FullName: p.org + "/" + name, Permission: t.Permission}
		}
	}
	return created, nil
}

func (p *reconcilePass) syncMembers(ctx context.Context, live *Team, t *manifest.Team) error {
	current := loginSet(live.Members)
	expected := loginSet(t.Members)

	for _, login := range t.Members {
		if _, ok := current[strings.ToLower(login)]; ok {
			continue
		}
		change := Change{Type: ChangeTypeCreate, Resource: ResourceMember, Team: t.Name, Target: login}
		if err := p.apply(change, func() error { return p.client.AddMember(ctx, live, login) }); err != nil {
			return err
		}
		current[strings.ToLower(login)] = struct{}{}
	}

	for _, login := range sortedCopy(live.Members) {
		if _, ok := expected[strings.ToLower(login)]; ok {
			continue
		}
		change := Change{Type: ChangeTypeDelete, Resource: ResourceMember, Team: t.Name, Target: login}
		if err := p.apply(change, func() error { return p.client.RemoveMember(ctx, live, login) }); err != nil {
			return err
		}
	}
	return nil
}

func (p *reconcilePass) syncRepositories(ctx context.Context, live *Team, t *manifest.Team) error {
	// GitHub repository names are case-insensitive.
	expected := make(map[string]bool, len(t.Repositories))
	for _, name := range t.Repositories {
		expected[strings.ToLower(name)] = true
	}
	granted := make(map[string]RepoGrant, len(live.Repositories))
	for name, grant := range live.Repositories {
		granted[strings.ToLower(name)] = grant
	}

	stale := make([]string, 0)
	for name := range live.Repositories {
		if !expected[strings.ToLower(name)] {
			stale = append(stale, name)
		}
	}
	slices.Sort(stale)

	for _, name := range stale {
		grant := live.Repositories[name]
		change := Change{Type: ChangeTypeDelete, Resource: ResourceRepository, Team: t.Name, Target: grant.FullName}
		if err := p.apply(change, func() error { return p.client.RevokeRepo(ctx, live, grant.FullName) }); err != nil {
			return err
		}
	}

	for _, name := range t.Repositories {
		slug := p.org + "/" + name
		grant, ok := granted[strings.ToLower(name)]

		changeType := ChangeTypeCreate
		if ok {
			if grant.Permission.Includes(t.Permission) {
				if grant.Permission != t.Permission {
					p.logger.WithFields(logrus.Fields{
						"team":       t.Name,
						"repository": slug,
						"live":       grant.Permission.String(),
						"declared":   t.Permission.String(),
					}).Debug("Live permission is higher than declared, not downgrading")
				}
				continue
			}
			changeType = ChangeTypeUpdate
		}

		change := Change{Type: changeType, Resource: ResourceRepository, Team: t.Name, Target: slug, Permission: t.Permission}
		if err := p.apply(change, func() error { return p.client.GrantRepo(ctx, live, slug, t.Permission) }); err != nil {
			return err
		}
	}
	return nil
}

// apply issues one write, records it, and turns a failure into a
// PartialApplyError when earlier writes already went through.
func (p *reconcilePass) apply(change Change, write func() error) error {
	logger := p.logger.WithField("change", change.String())

	if p.dryRun {
		logger.Debug("Dry run, skipping write")
		p.report.Changes = append(p.report.Changes, change)
		return nil
	}

	if err := write(); err != nil {
		logger.WithError(err).Debug("Write failed")
		if len(p.report.Changes) == 0 {
			return fmt.Errorf("%s: %w", change, err)
		}
		return &PartialApplyError{
			Applied: slices.Clone(p.report.Changes),
			Failed:  change,
			Err:     err,
		}
	}

	logger.Debug("Applied")
	p.report.Changes = append(p.report.Changes, change)
	return nil
}

func loginSet(logins []string) map[string]struct{} {
	set := make(map[string]struct{}, len(logins))
	for _, login := range logins {
		set[strings.ToLower(login)] = struct{}{}
	}
	return set
}

func sortedCopy(s []string) []string {
	out := slices.Clone(s)
	slices.Sort(out)
	return out
}
