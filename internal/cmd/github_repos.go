package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"repofleet/pkg/github"
	"repofleet/pkg/manifest"
)

var (
	withMaintainersFile bool
	prTemplatePath      string
	reposDryRun         bool
)

var reposConfigureCmd = &cobra.Command{
	Use:   "repos-configure",
	Short: "Apply settings, maintainer team and branch protection to repositories",
	Long: `Bring every selected repository in line with the manifest:

  1. repository settings (description, homepage, issues, wiki, default branch,
     merge strategies), written in a single update when any differs
  2. the repository's maintainer team, without touching other teams
  3. branch protection on every declared branch
  4. optionally the MAINTAINERS file and the pull request template

A failing repository is reported and the others are still configured.

Examples:
  repofleet github repos-configure -c repositories.yml
  repofleet github repos-configure -c repositories.yml -r 'inveniosoftware/invenio-*' --dry-run
  repofleet github repos-configure -c repositories.yml --with-maintainers-file --pr-template template.md`,
	Args: cobra.NoArgs,
	RunE: runReposConfigure,
}

var reposConfCheckCmd = &cobra.Command{
	Use:   "repos-conf-check",
	Short: "Compare the repositories of each organisation with the manifest",
	Long: `List, per organisation, the live repositories missing from the manifest and
the declared repositories that no longer exist on GitHub. The comparison uses
every repository the organisation declares, regardless of --repository.`,
	Args: cobra.NoArgs,
	RunE: runReposConfCheck,
}

func init() {
	reposConfigureCmd.Flags().BoolVar(&withMaintainersFile, "with-maintainers-file", false, "Also keep the MAINTAINERS file in sync")
	reposConfigureCmd.Flags().StringVar(&prTemplatePath, "pr-template", "", "Keep .github/pull_request_template.md equal to this local file")
	reposConfigureCmd.Flags().BoolVar(&reposDryRun, "dry-run", false, "Report the changes without applying them")

	githubCmd.AddCommand(reposConfigureCmd)
	githubCmd.AddCommand(reposConfCheckCmd)
}

type repoConfigureOptions struct {
	maintainersFile bool
	prTemplate      []byte
	dryRun          bool
}

func runReposConfigure(cmd *cobra.Command, _ []string) error {
	m, err := loadManifest()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	repos := m.Repositories()
	if len(repos) == 0 {
		fmt.Fprintln(out, "No repositories selected")
		return nil
	}

	opts := repoConfigureOptions{maintainersFile: withMaintainersFile, dryRun: reposDryRun}
	if prTemplatePath != "" {
		if opts.prTemplate, err = os.ReadFile(prTemplatePath); err != nil {
			return fmt.Errorf("failed to read pull request template: %w", err)
		}
	}

	client, err := githubClient(cmd)
	if err != nil {
		return err
	}

	engineOpts := []github.Option{github.WithLogger(logger), github.WithDryRun(reposDryRun)}
	sync := github.NewRepositorySynchronizer(client, github.NewTeamReconciler(client, engineOpts...), engineOpts...)

	if reposDryRun {
		fmt.Fprintln(out, "🔍 Dry-run mode: no changes will be written")
	}
	return configureRepositories(cmd.Context(), out, sync, repos, opts)
}

func configureRepositories(ctx context.Context, out io.Writer, sync *github.RepositorySynchronizer, repos []*manifest.Repository, opts repoConfigureOptions) error {
	return forEachRepository(ctx, out, repos, func(repo *manifest.Repository) error {
		fmt.Fprintf(out, "🔧 Configuring %s\n", repo.Slug)
		return configureRepository(ctx, out, sync, repo, opts)
	})
}

func configureRepository(ctx context.Context, out io.Writer, sync *github.RepositorySynchronizer, repo *manifest.Repository, opts repoConfigureOptions) error {
	changed, err := sync.SyncSettings(ctx, repo)
	if err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	printStep(out, "settings", changed, opts.dryRun)

	report, err := sync.SyncTeam(ctx, repo)
	if err != nil {
		return fmt.Errorf("maintainer team: %w", err)
	}
	if repo.MaintainerTeam != nil {
		printStep(out, "team "+repo.MaintainerTeam.Name, report.Changed(), opts.dryRun)
		printChanges(out, report)
	}

	if len(repo.Branches) > 0 {
		if _, err := sync.SyncBranchProtection(ctx, repo); err != nil {
			return fmt.Errorf("branch protection: %w", err)
		}
		printStep(out, "branch protection on "+strings.Join(repo.Branches, ", "), true, opts.dryRun)
	}

	if opts.maintainersFile {
		changed, err := sync.SyncMaintainersFile(ctx, repo)
		if err != nil {
			return fmt.Errorf("%s file: %w", github.MaintainersFilePath, err)
		}
		printStep(out, github.MaintainersFilePath+" file", changed, opts.dryRun)
	}

	if opts.prTemplate != nil {
		changed, err := sync.SyncPullRequestTemplate(ctx, repo, opts.prTemplate)
		if err != nil {
			return fmt.Errorf("pull request template: %w", err)
		}
		printStep(out, "pull request template", changed, opts.dryRun)
	}
	return nil
}

func printStep(out io.Writer, what string, changed, dryRun bool) {
	switch {
	case !changed:
		fmt.Fprintf(out, "   ✓ %s up to date\n", what)
	case dryRun:
		fmt.Fprintf(out, "   🔍 would update %s\n", what)
	default:
		fmt.Fprintf(out, "   ✅ updated %s\n", what)
	}
}

func runReposConfCheck(cmd *cobra.Command, _ []string) error {
	m, err := loadManifest()
	if err != nil {
		return err
	}
	if len(m.Organisations) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No organisations declared")
		return nil
	}

	client, err := githubClient(cmd)
	if err != nil {
		return err
	}
	return checkRepositories(cmd.Context(), cmd.OutOrStdout(), client, m.Organisations)
}

// repoDrift is the difference between declared and live repository names
type repoDrift struct {
	Missing []string
	Removed []string
}

func (d repoDrift) inSync() bool {
	return len(d.Missing) == 0 && len(d.Removed) == 0
}

// diffRepositories compares the declared repositories of org with the live
// list, ignoring case. Archived repositories count as live.
func diffRepositories(org *manifest.Organisation, live []github.RemoteRepo) repoDrift {
	declared := make(map[string]bool, len(org.Repositories))
	for _, repo := range org.Repositories {
		declared[strings.ToLower(repo.Name)] = true
	}

	var drift repoDrift
	seen := make(map[string]bool, len(live))
	for _, repo := range live {
		seen[strings.ToLower(repo.Name)] = true
		if !declared[strings.ToLower(repo.Name)] {
			drift.Missing = append(drift.Missing, repo.Name)
		}
	}
	for _, repo := range org.Repositories {
		if !seen[strings.ToLower(repo.Name)] {
			drift.Removed = append(drift.Removed, repo.Name)
		}
	}

	slices.Sort(drift.Missing)
	slices.Sort(drift.Removed)
	return drift
}

func checkRepositories(ctx context.Context, out io.Writer, client github.OrgClient, orgs []*manifest.Organisation) error {
	failures := newUnitFailures(out)
	for _, org := range orgs {
		live, err := client.ListRepos(ctx, org.Name)
		if err != nil {
			failures.add(org.Name, err)
			continue
		}

		drift := diffRepositories(org, live)
		if drift.inSync() {
			fmt.Fprintf(out, "✅ Configuration for %s in sync\n", org.Name)
			continue
		}

		fmt.Fprintf(out, "⚠️  Configuration for %s out of sync: %d missing, %d removed\n", org.Name, len(drift.Missing), len(drift.Removed))
		renderDrift(out, drift)
	}
	return failures.err()
}

func renderDrift(out io.Writer, drift repoDrift) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Repository", "Status"})
	for _, name := range drift.Missing {
		t.AppendRow(table.Row{name, "missing from manifest"})
	}
	for _, name := range drift.Removed {
		t.AppendRow(table.Row{name, "removed from GitHub"})
	}
	t.Render()
}
