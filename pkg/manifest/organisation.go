package manifest

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Wildcard in a team's repositories expands to every repository of the organisation.
const Wildcard = "*"

type rawRepository struct {
	Type                 string    `yaml:"type"`
	State                string    `yaml:"state"`
	Description          string    `yaml:"description"`
	URL                  *string   `yaml:"url"`
	DefaultBranch        *string   `yaml:"default_branch"`
	Branches             *[]string `yaml:"branches"`
	HasIssues            *bool     `yaml:"has_issues"`
	HasWiki              *bool     `yaml:"has_wiki"`
	AllowMergeCommit     *bool     `yaml:"allow_merge_commit"`
	AllowRebaseMerge     *bool     `yaml:"allow_rebase_merge"`
	AllowSquashMerge     *bool     `yaml:"allow_squash_merge"`
	Maintainers          []string  `yaml:"maintainers"`
	Team                 *string   `yaml:"team"`
	RequiredStatusChecks *[]string `yaml:"required_status_checks"`
	PyPI                 *bool     `yaml:"pypi"`
	I18N                 *bool     `yaml:"i18n"`
	Travis               rawTravis `yaml:"travis"`
}

type rawTravis struct {
	Active     *bool          `yaml:"active"`
	Crons      yaml.Node      `yaml:"crons"`
	PyPIDeploy map[string]any `yaml:"pypideploy"`
}

type rawTeam struct {
	Members      []string  `yaml:"members"`
	Repositories yaml.Node `yaml:"repositories"`
	Permission   string    `yaml:"permission"`
}

func loadOrganisation(name string, body *yaml.Node, errs *FieldErrors) (*Organisation, error) {
	org := &Organisation{Name: name, byName: make(map[string]*Repository)}
	if isNull(body) {
		return org, nil
	}

	repos := mappingValue(body, "repositories")
	if !isNull(repos) {
		if repos.Kind != yaml.MappingNode {
			return nil, malformed("line %d: %s.repositories must be a mapping", repos.Line, name)
		}
		for i := 0; i+1 < len(repos.Content); i += 2 {
			key, value := repos.Content[i], repos.Content[i+1]
			repo, err := loadRepository(name, key.Value, value, errs)
			if err != nil {
				return nil, err
			}
			if _, dup := org.byName[repo.Name]; dup {
				errs.Add(fieldPath(name, "repositories", repo.Name), "", "repository declared more than once")
				continue
			}
			org.Repositories = append(org.Repositories, repo)
			org.byName[repo.Name] = repo
		}
	}

	teams := mappingValue(body, "teams")
	if !isNull(teams) {
		if teams.Kind != yaml.MappingNode {
			return nil, malformed("line %d: %s.teams must be a mapping", teams.Line, name)
		}
		seen := make(map[string]bool)
		for i := 0; i+1 < len(teams.Content); i += 2 {
			key, value := teams.Content[i], teams.Content[i+1]
			team, err := loadTeam(org, key.Value, value, errs)
			if err != nil {
				return nil, err
			}
			if seen[team.Name] {
				errs.Add(fieldPath(name, "teams", team.Name), "", "team declared more than once")
				continue
			}
			seen[team.Name] = true
			org.Teams = append(org.Teams, team)
		}
	}

	linkMaintainerTeams(org, errs)
	return org, nil
}

func loadRepository(org, name string, node *yaml.Node, errs *FieldErrors) (*Repository, error) {
	field := fieldPath(org, "repositories", name)
	if err := validateRepositoryName(name); err != nil {
		errs.Add(field, name, err.Error())
	}

	var raw rawRepository
	if !isNull(node) {
		if node.Kind != yaml.MappingNode {
			return nil, malformed("line %d: repository %s must be a mapping", node.Line, name)
		}
		if err := node.Decode(&raw); err != nil {
			return nil, &MalformedConfigError{Err: fmt.Errorf("repository %s: %w", name, err)}
		}
	}

	repo := &Repository{
		Org:                  org,
		Name:                 name,
		Slug:                 org + "/" + name,
		Type:                 raw.Type,
		State:                raw.State,
		Description:          raw.Description,
		URL:                  stringOr(raw.URL, fmt.Sprintf("https://%s.readthedocs.io", name)),
		DefaultBranch:        stringOr(raw.DefaultBranch, DefaultBranch),
		Branches:             listOr(raw.Branches, []string{DefaultBranch}),
		HasIssues:            boolOr(raw.HasIssues, true),
		HasWiki:              boolOr(raw.HasWiki, false),
		AllowMergeCommit:     boolOr(raw.AllowMergeCommit, false),
		AllowRebaseMerge:     boolOr(raw.AllowRebaseMerge, true),
		AllowSquashMerge:     boolOr(raw.AllowSquashMerge, true),
		Maintainers:          raw.Maintainers,
		Team:                 stringOr(raw.Team, name+"-maintainers"),
		RequiredStatusChecks: listOr(raw.RequiredStatusChecks, []string{DefaultStatusCheck}),
		PyPI:                 boolOr(raw.PyPI, true),
		I18N:                 boolOr(raw.I18N, true),
		Travis: TravisSettings{
			Active:     boolOr(raw.Travis.Active, true),
			PyPIDeploy: raw.Travis.PyPIDeploy,
		},
	}
	if repo.Maintainers == nil {
		repo.Maintainers = []string{}
	}

	for _, login := range repo.Maintainers {
		if err := validateLogin(login); err != nil {
			errs.Add(field+".maintainers", login, err.Error())
		}
	}
	if repo.Team == "" {
		errs.Add(field+".team", "", "team name cannot be empty")
	}

	crons := &raw.Travis.Crons
	if crons.Kind != 0 && !isNull(crons) {
		if crons.Kind != yaml.MappingNode {
			return nil, malformed("line %d: %s.travis.crons must be a mapping of branch to interval", crons.Line, name)
		}
		for i := 0; i+1 < len(crons.Content); i += 2 {
			cron := Cron{Branch: crons.Content[i].Value, Interval: crons.Content[i+1].Value}
			if err := validateInterval(cron.Interval); err != nil {
				errs.Add(field+".travis.crons."+cron.Branch, cron.Interval, err.Error())
			}
			repo.Travis.Crons = append(repo.Travis.Crons, cron)
		}
	}

	return repo, nil
}

func loadTeam(org *Organisation, name string, node *yaml.Node, errs *FieldErrors) (*Team, error) {
	field := fieldPath(org.Name, "teams", name)

	var raw rawTeam
	if !isNull(node) {
		if node.Kind != yaml.MappingNode {
			return nil, malformed("line %d: team %s must be a mapping", node.Line, name)
		}
		if err := node.Decode(&raw); err != nil {
			return nil, &MalformedConfigError{Err: fmt.Errorf("team %s: %w", name, err)}
		}
	}

	team := &Team{Name: name, Members: raw.Members, Permission: PermissionRead}
	if team.Members == nil {
		team.Members = []string{}
	}
	if name == "" {
		errs.Add(field, "", "team name cannot be empty")
	}

	if raw.Permission != "" {
		perm, err := ParsePermission(raw.Permission)
		if err != nil {
			errs.Add(field+".permission", raw.Permission, err.Error())
		}
		team.Permission = perm
	}

	for _, login := range team.Members {
		if err := validateLogin(login); err != nil {
			errs.Add(field+".members", login, err.Error())
		}
	}

	repos, err := teamRepositories(&raw.Repositories)
	if err != nil {
		return nil, malformed("team %s: %v", name, err)
	}
	if len(repos) == 1 && repos[0] == Wildcard {
		repos = make([]string, 0, len(org.Repositories))
		for _, r := range org.Repositories {
			repos = append(repos, r.Name)
		}
	} else {
		for _, r := range repos {
			if _, ok := org.byName[r]; !ok {
				errs.Add(field+".repositories", r, "repository is not declared in this organisation")
			}
		}
	}
	team.Repositories = repos

	return team, nil
}

// teamRepositories accepts either the wildcard scalar or a list of names.
func teamRepositories(node *yaml.Node) ([]string, error) {
	switch {
	case node.Kind == 0 || isNull(node):
		return []string{}, nil
	case node.Kind == yaml.ScalarNode:
		if node.Value != Wildcard {
			return nil, fmt.Errorf("line %d: repositories must be %q or a list", node.Line, Wildcard)
		}
		return []string{Wildcard}, nil
	case node.Kind == yaml.SequenceNode:
		var repos []string
		if err := node.Decode(&repos); err != nil {
			return nil, err
		}
		return repos, nil
	default:
		return nil, fmt.Errorf("line %d: repositories must be %q or a list", node.Line, Wildcard)
	}
}

// linkMaintainerTeams synthesises the implicit per-repository teams and points
// every repository at the team that governs it.
func linkMaintainerTeams(org *Organisation, errs *FieldErrors) {
	explicit := make(map[string]*Team, len(org.Teams))
	for _, t := range org.Teams {
		explicit[t.Name] = t
	}

	implicit := make(map[string]string)
	for _, repo := range org.Repositories {
		if t, ok := explicit[repo.Team]; ok {
			repo.MaintainerTeam = t
			continue
		}
		if len(repo.Maintainers) == 0 {
			continue
		}
		if other, dup := implicit[repo.Team]; dup {
			errs.Add(fieldPath(org.Name, "repositories", repo.Name)+".team", repo.Team,
				fmt.Sprintf("team is already the maintainer team of %s", other))
			continue
		}
		implicit[repo.Team] = repo.Name

		team := &Team{
			Name:         repo.Team,
			Members:      repo.Maintainers,
			Repositories: []string{repo.Name},
			Permission:   PermissionMaintain,
			Implicit:     true,
		}
		org.MaintainerTeams = append(org.MaintainerTeams, team)
		repo.MaintainerTeam = team
	}
}

func fieldPath(org, section, name string) string {
	return fmt.Sprintf("orgs.%s.%s.%s", org, section, name)
}

func stringOr(v *string, def string) string {
	if v == nil {
		return def
	}
	return *v
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func listOr(v *[]string, def []string) []string {
	if v == nil {
		return def
	}
	if *v == nil {
		return []string{}
	}
	return *v
}
