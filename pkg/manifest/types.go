package manifest

import (
	"fmt"
	"strings"
)

// Permission is a team's access tier on a repository. Tiers are ordered so a
// higher tier includes every lower one.
type Permission int

const (
	PermissionNone Permission = iota
	PermissionRead
	PermissionWrite
	PermissionMaintain
	PermissionAdmin
)

// ParsePermission accepts both the manifest names (read, write) and the
// GitHub API names (pull, push).
func ParsePermission(s string) (Permission, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "read", "pull":
		return PermissionRead, nil
	case "write", "push":
		return PermissionWrite, nil
	case "maintain":
		return PermissionMaintain, nil
	case "admin":
		return PermissionAdmin, nil
	default:
		return PermissionNone, fmt.Errorf("unknown permission %q: must be one of read, write, maintain, admin", s)
	}
}

// String returns the manifest name of the permission
func (p Permission) String() string {
	switch p {
	case PermissionRead:
		return "read"
	case PermissionWrite:
		return "write"
	case PermissionMaintain:
		return "maintain"
	case PermissionAdmin:
		return "admin"
	default:
		return "none"
	}
}

// APIName returns the name the GitHub REST API uses for the permission
func (p Permission) APIName() string {
	switch p {
	case PermissionRead:
		return "pull"
	case PermissionWrite:
		return "push"
	case PermissionMaintain:
		return "maintain"
	case PermissionAdmin:
		return "admin"
	default:
		return ""
	}
}

// Includes reports whether p grants at least the access of other.
func (p Permission) Includes(other Permission) bool {
	return p >= other
}

// Organisation is one entry of the top-level orgs mapping.
type Organisation struct {
	Name string

	// Repositories in declared order.
	Repositories []*Repository

	// Teams holds the explicit teams from the teams section, in declared order.
	Teams []*Team

	// MaintainerTeams holds the implicit one-per-repository teams.
	MaintainerTeams []*Team

	byName map[string]*Repository
}

// Repository looks up a declared repository by name
func (o *Organisation) Repository(name string) (*Repository, bool) {
	r, ok := o.byName[name]
	return r, ok
}

// AllTeams returns the explicit teams followed by the implicit maintainer teams.
func (o *Organisation) AllTeams() []*Team {
	teams := make([]*Team, 0, len(o.Teams)+len(o.MaintainerTeams))
	teams = append(teams, o.Teams...)
	teams = append(teams, o.MaintainerTeams...)
	return teams
}

// Repository is a fully defaulted repository record.
type Repository struct {
	Org  string
	Name string
	Slug string

	Type        string
	State       string
	Description string
	URL         string

	DefaultBranch string
	Branches      []string

	HasIssues        bool
	HasWiki          bool
	AllowMergeCommit bool
	AllowRebaseMerge bool
	AllowSquashMerge bool

	Maintainers []string
	Team        string

	RequiredStatusChecks []string

	PyPI   bool
	I18N   bool
	Travis TravisSettings

	// MaintainerTeam is the team governing this repository: the explicit team
	// named Team if one is declared, otherwise the synthesised one. Nil when the
	// repository has no maintainers and no explicit team.
	MaintainerTeam *Team
}

// TravisSettings is the per-repository CI policy.
type TravisSettings struct {
	Active     bool
	Crons      []Cron
	PyPIDeploy map[string]any
}

// Cron is a periodic CI build of one branch.
type Cron struct {
	Branch   string
	Interval string
}

// Team is a declared team.
type Team struct {
	Name         string
	Members      []string
	Repositories []string
	Permission   Permission

	// Implicit is set for teams synthesised from a repository's maintainers.
	Implicit bool
}
