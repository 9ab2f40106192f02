package travis

import (
	"fmt"

	"github.com/mitchellh/copystructure"
)

const (
	distributions     = "sdist bdist_wheel"
	i18nDistributions = "compile_catalog sdist bdist_wheel"
)

// PyPIDeploySection builds the deploy section of .travis.yml for a repository
// from its template. The template is not modified.
func PyPIDeploySection(template map[string]any, user, securePassword string, i18n bool) (map[string]any, error) {
	copied, err := copystructure.Copy(template)
	if err != nil {
		return nil, fmt.Errorf("failed to copy deploy template: %w", err)
	}
	section, _ := copied.(map[string]any)
	if section == nil {
		section = make(map[string]any)
	}

	section["user"] = user
	section["password"] = map[string]any{"secure": securePassword}
	if i18n {
		section["distributions"] = i18nDistributions
	} else {
		section["distributions"] = distributions
	}
	return section, nil
}
