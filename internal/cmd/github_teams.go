package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"repofleet/pkg/github"
	"repofleet/pkg/manifest"
)

var (
	teamsJobs   int
	teamsDryRun bool
)

var teamsSyncCmd = &cobra.Command{
	Use:   "teams-sync",
	Short: "Converge the teams of each organisation",
	Long: `Bring the teams of every declared organisation in line with the manifest.

Teams that are not declared are deleted, missing teams are created, and the
membership and repository grants of every declared team are converged. A
repository grant is upgraded when the declared permission is higher than the
live one, and is never downgraded.

Organisations are processed one at a time unless --jobs is given. A failing
organisation is reported and the others are still processed.`,
	Args: cobra.NoArgs,
	RunE: runTeamsSync,
}

func init() {
	teamsSyncCmd.Flags().IntVarP(&teamsJobs, "jobs", "j", 1, "Number of organisations processed concurrently")
	teamsSyncCmd.Flags().BoolVar(&teamsDryRun, "dry-run", false, "Report the changes without applying them")

	githubCmd.AddCommand(teamsSyncCmd)
}

func runTeamsSync(cmd *cobra.Command, _ []string) error {
	m, err := loadManifest()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(m.Organisations) == 0 {
		fmt.Fprintln(out, "No organisations declared")
		return nil
	}

	client, err := githubClient(cmd)
	if err != nil {
		return err
	}

	reconciler := github.NewTeamReconciler(client, github.WithLogger(logger), github.WithDryRun(teamsDryRun))
	if teamsDryRun {
		fmt.Fprintln(out, "🔍 Dry-run mode: no changes will be written")
	}
	return syncTeams(cmd.Context(), out, reconciler, m, teamsJobs)
}

type orgResult struct {
	output bytes.Buffer
	err    error
}

// syncTeams reconciles every organisation, up to jobs at a time. Each
// organisation writes to its own buffer; the buffers are printed in declared
// order once all are done.
func syncTeams(ctx context.Context, out io.Writer, reconciler *github.TeamReconciler, m *manifest.Manifest, jobs int) error {
	results := make([]*orgResult, len(m.Organisations))

	var g errgroup.Group
	g.SetLimit(max(jobs, 1))
	for i, org := range m.Organisations {
		results[i] = &orgResult{}
		g.Go(func() error {
			results[i].err = syncOrganisationTeams(ctx, &results[i].output, reconciler, org, m.Teams(org))
			return nil
		})
	}
	_ = g.Wait()

	failures := newUnitFailures(out)
	for i, org := range m.Organisations {
		_, _ = results[i].output.WriteTo(out)
		if results[i].err != nil {
			failures.add(org.Name, results[i].err)
		}
	}
	return failures.err()
}

func syncOrganisationTeams(ctx context.Context, out io.Writer, reconciler *github.TeamReconciler, org *manifest.Organisation, teams []*manifest.Team) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fmt.Fprintf(out, "👥 Configuring %s teams\n", org.Name)
	report, err := reconciler.Reconcile(ctx, org.Name, teams)
	if err != nil {
		return err
	}

	if !report.Changed() {
		fmt.Fprintf(out, "   ✓ %d team(s) already in sync\n", len(teams))
		return nil
	}
	printChanges(out, report)
	return nil
}
