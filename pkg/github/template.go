package github

import (
	"context"

	"repofleet/pkg/manifest"
)

// TemplateSource is the read-only surface needed to build a manifest skeleton
type TemplateSource interface {
	ListRepos(ctx context.Context, org string) ([]RemoteRepo, error)
	GetFile(ctx context.Context, slug, path string) (*File, error)
}

// TemplateBuilder generates a manifest skeleton from live organisations
type TemplateBuilder struct {
	source TemplateSource

	// OnListed is called with the number of repositories found in an organisation.
	OnListed func(org string, total int)
	// OnRepository is called after each repository has been read.
	OnRepository func(slug string)
}

// NewTemplateBuilder creates a template builder reading from source
func NewTemplateBuilder(source TemplateSource) *TemplateBuilder {
	return &TemplateBuilder{source: source}
}

// Build lists the repositories of every org and records their description and
// the logins of their MAINTAINERS file. Archived repositories are skipped.
func (b *TemplateBuilder) Build(ctx context.Context, orgs []string) (*manifest.Template, error) {
	tmpl := manifest.NewTemplate()

	for _, org := range orgs {
		tmpl.AddOrganisation(org)

		repos, err := b.source.ListRepos(ctx, org)
		if err != nil {
			return nil, err
		}

		active := make([]RemoteRepo, 0, len(repos))
		for _, r := range repos {
			if !r.Archived {
				active = append(active, r)
			}
		}
		if b.OnListed != nil {
			b.OnListed(org, len(active))
		}

		for _, r := range active {
			slug := org + "/" + r.Name
			file, err := b.source.GetFile(ctx, slug, MaintainersFilePath)
			if err != nil {
				return nil, err
			}

			entry := manifest.RepositoryTemplate{Description: r.Description}
			if file != nil {
				entry.Maintainers = ParseMaintainers(file.Content)
			}
			tmpl.AddRepository(org, r.Name, entry)

			if b.OnRepository != nil {
				b.OnRepository(slug)
			}
		}
	}

	return tmpl, nil
}
