package manifest

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// RepositoryTemplate is the skeleton entry written for a live repository
type RepositoryTemplate struct {
	Type        string   `yaml:"type"`
	State       string   `yaml:"state"`
	Description string   `yaml:"description"`
	Maintainers []string `yaml:"maintainers"`
}

// OrganisationTemplate is the skeleton written for a live organisation
type OrganisationTemplate struct {
	Repositories map[string]RepositoryTemplate `yaml:"repositories"`
	Teams        map[string]any                `yaml:"teams"`
}

// Template is a manifest skeleton generated from live organisations.
type Template struct {
	Orgs map[string]OrganisationTemplate `yaml:"orgs"`
}

// NewTemplate returns an empty template
func NewTemplate() *Template {
	return &Template{Orgs: make(map[string]OrganisationTemplate)}
}

// AddOrganisation registers an organisation with no repositories
func (t *Template) AddOrganisation(org string) OrganisationTemplate {
	o, ok := t.Orgs[org]
	if !ok {
		o = OrganisationTemplate{
			Repositories: make(map[string]RepositoryTemplate),
			Teams:        make(map[string]any),
		}
		t.Orgs[org] = o
	}
	return o
}

// AddRepository records a repository under org
func (t *Template) AddRepository(org, name string, repo RepositoryTemplate) {
	if repo.Maintainers == nil {
		repo.Maintainers = []string{}
	}
	t.AddOrganisation(org).Repositories[name] = repo
}

// Marshal renders the template as YAML with two-space indentation. Mapping keys are sorted.
func (t *Template) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return nil, fmt.Errorf("failed to encode template: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode template: %w", err)
	}
	return buf.Bytes(), nil
}
