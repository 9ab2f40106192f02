// Package github converges GitHub organisations with a repofleet manifest.
//
// The package includes:
// - Client, a REST and GraphQL client for the organisation, team and repository calls
// - TeamReconciler, which creates, deletes and updates teams to match the manifest
// - RepositorySynchronizer, which applies settings, branch protection and files
// - TemplateBuilder, which produces a manifest skeleton from live organisations
package github
