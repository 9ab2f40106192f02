// Package manifest loads the declarative description of an organisation fleet:
// repositories, their settings and CI policy, and the teams that govern them.
package manifest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBranch      = "master"
	DefaultStatusCheck = "continuous-integration/travis-ci"
)

// Manifest is the loaded, defaulted and validated model. It is not modified
// after Load returns.
type Manifest struct {
	Organisations []*Organisation
	selector      Selector
}

// Repositories returns the selected repositories of every organisation in
// declared order.
func (m *Manifest) Repositories() []*Repository {
	var repos []*Repository
	for _, org := range m.Organisations {
		for _, repo := range org.Repositories {
			if m.selector.Matches(repo) {
				repos = append(repos, repo)
			}
		}
	}
	return repos
}

// Teams returns the explicit teams followed by the implicit maintainer teams of
// org. The selector does not apply.
func (m *Manifest) Teams(org *Organisation) []*Team {
	return org.AllTeams()
}

// Organisation looks up an organisation by name
func (m *Manifest) Organisation(name string) (*Organisation, bool) {
	for _, org := range m.Organisations {
		if org.Name == name {
			return org, true
		}
	}
	return nil, false
}

// Selector returns the selector the manifest was loaded with
func (m *Manifest) Selector() Selector {
	return m.selector
}

// LoadFile reads and loads the manifest at path
func LoadFile(path string, sel Selector) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}
	return Load(data, sel)
}

// Load parses a manifest document. An empty document yields a manifest with no
// organisations.
func Load(data []byte, sel Selector) (*Manifest, error) {
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &MalformedConfigError{Err: err}
	}

	m := &Manifest{selector: sel}

	root := documentRoot(&doc)
	if isNull(root) {
		return m, nil
	}
	if root.Kind != yaml.MappingNode {
		return nil, malformed("line %d: document must be a mapping", root.Line)
	}

	orgs := mappingValue(root, "orgs")
	if isNull(orgs) {
		return m, nil
	}
	if orgs.Kind != yaml.MappingNode {
		return nil, malformed("line %d: orgs must be a mapping", orgs.Line)
	}

	var errs FieldErrors
	seen := make(map[string]bool)
	for i := 0; i+1 < len(orgs.Content); i += 2 {
		name, body := orgs.Content[i], orgs.Content[i+1]
		if !isNull(body) && body.Kind != yaml.MappingNode {
			return nil, malformed("line %d: organisation %q must be a mapping", body.Line, name.Value)
		}
		org, err := loadOrganisation(name.Value, body, &errs)
		if err != nil {
			return nil, err
		}
		if seen[org.Name] {
			errs.Add("orgs."+org.Name, "", "organisation declared more than once")
			continue
		}
		seen[org.Name] = true
		m.Organisations = append(m.Organisations, org)
	}

	if errs.HasErrors() {
		return nil, &MalformedConfigError{Fields: errs}
	}
	return m, nil
}

func documentRoot(doc *yaml.Node) *yaml.Node {
	if doc.Kind == yaml.DocumentNode {
		if len(doc.Content) == 0 {
			return nil
		}
		return doc.Content[0]
	}
	if doc.Kind == 0 {
		return nil
	}
	return doc
}

func isNull(n *yaml.Node) bool {
	return n == nil || (n.Kind == yaml.ScalarNode && n.Tag == "!!null")
}

// mappingValue returns the value node for key in a mapping node, or nil.
func mappingValue(n *yaml.Node, key string) *yaml.Node {
	if n == nil || n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}
