package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"repofleet/pkg/config"
	"repofleet/pkg/manifest"
	"repofleet/pkg/pypi"
)

var pypiCmd = &cobra.Command{
	Use:   "pypi",
	Short: "Python package index commands",
}

var pypiLatestReleaseCmd = &cobra.Command{
	Use:   "latest-release",
	Short: "Show the latest PyPI release of each repository",
	Long: `Show the latest release published on PyPI for every selected repository
declared with pypi: true, with its development status and release date. The
package name is the repository name.`,
	Args: cobra.NoArgs,
	RunE: runPyPILatestRelease,
}

func init() {
	pypiCmd.AddCommand(pypiLatestReleaseCmd)
}

// releaseSource looks up the latest release of a package
type releaseSource interface {
	LatestRelease(ctx context.Context, name string) (*pypi.Release, error)
}

func runPyPILatestRelease(cmd *cobra.Command, _ []string) error {
	m, err := loadManifest()
	if err != nil {
		return err
	}

	var repos []*manifest.Repository
	for _, repo := range m.Repositories() {
		if repo.PyPI {
			repos = append(repos, repo)
		}
	}
	if len(repos) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No selected repository is published on PyPI")
		return nil
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load repofleet config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid repofleet config: %w", err)
	}

	return latestReleases(cmd.Context(), cmd.OutOrStdout(), pypi.NewClient(cfg.PyPI.Endpoint), repos)
}

// latestReleases renders one table row per repository. Lookup failures are
// reported after the table.
func latestReleases(ctx context.Context, out io.Writer, source releaseSource, repos []*manifest.Repository) error {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Repository", "Version", "Status", "Released"})

	type failure struct {
		slug string
		err  error
	}
	var failed []failure

	for _, repo := range repos {
		if err := ctx.Err(); err != nil {
			return err
		}

		release, err := source.LatestRelease(ctx, repo.Name)
		if err != nil {
			failed = append(failed, failure{repo.Slug, err})
			t.AppendRow(table.Row{repo.Slug, "failed", "", ""})
			continue
		}
		if release == nil {
			t.AppendRow(table.Row{repo.Slug, "not published", "", ""})
			continue
		}
		t.AppendRow(table.Row{repo.Slug, releaseVersion(release), release.DevelopmentStatus, releaseDate(release)})
	}
	t.Render()

	failures := newUnitFailures(out)
	for _, f := range failed {
		failures.add(f.slug, f.err)
	}
	return failures.err()
}

func releaseVersion(release *pypi.Release) string {
	if release.PreRelease {
		return release.Version + " (pre-release)"
	}
	return release.Version
}

func releaseDate(release *pypi.Release) string {
	if release.UploadTime.IsZero() {
		return "unknown"
	}
	return fmt.Sprintf("%s (%s)", release.UploadTime.Format("2006-01-02"), humanize.Time(release.UploadTime))
}
