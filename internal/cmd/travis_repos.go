package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"repofleet/pkg/manifest"
	"repofleet/pkg/travis"
)

var travisStateSetCmd = &cobra.Command{
	Use:   "state-set",
	Short: "Activate or deactivate builds according to travis.active",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		repos, client, _, err := travisSetup(cmd)
		if err != nil || client == nil {
			return err
		}
		out := cmd.OutOrStdout()
		return forEachRepository(cmd.Context(), out, repos, func(repo *manifest.Repository) error {
			if repo.Travis.Active {
				if err := client.Enable(cmd.Context(), repo.Slug); err != nil {
					return err
				}
				fmt.Fprintf(out, "✅ Enabled %s\n", repo.Slug)
				return nil
			}
			if err := client.Disable(cmd.Context(), repo.Slug); err != nil {
				return err
			}
			fmt.Fprintf(out, "✅ Disabled %s\n", repo.Slug)
			return nil
		})
	},
}

var travisCronListCmd = &cobra.Command{
	Use:   "cron-list",
	Short: "List the cron jobs of each repository",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		repos, client, _, err := travisSetup(cmd)
		if err != nil || client == nil {
			return err
		}
		out := cmd.OutOrStdout()
		return forEachRepository(cmd.Context(), out, repos, func(repo *manifest.Repository) error {
			crons, err := client.Crons(cmd.Context(), repo.Slug)
			if err != nil {
				return err
			}
			if len(crons) == 0 {
				fmt.Fprintf(out, "⚠️  No crons for %s\n", repo.Slug)
				return nil
			}
			fmt.Fprintf(out, "📅 Crons for %s\n", repo.Slug)
			for _, cron := range crons {
				fmt.Fprintf(out, "   %s (%s)\n", cron.Branch.Name, cron.Interval)
			}
			return nil
		})
	},
}

var travisCronEnableCmd = &cobra.Command{
	Use:   "cron-enable",
	Short: "Create the cron jobs declared in travis.crons",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		repos, client, _, err := travisSetup(cmd)
		if err != nil || client == nil {
			return err
		}
		out := cmd.OutOrStdout()
		return forEachRepository(cmd.Context(), out, repos, func(repo *manifest.Repository) error {
			return enableCrons(cmd.Context(), out, client, repo)
		})
	},
}

// enableCrons creates every declared cron of repo. A failing cron does not
// stop the others.
func enableCrons(ctx context.Context, out io.Writer, client *travis.Client, repo *manifest.Repository) error {
	var errs []error
	for _, cron := range repo.Travis.Crons {
		if _, err := client.EnableCron(ctx, repo.Slug, cron.Branch, cron.Interval); err != nil {
			errs = append(errs, fmt.Errorf("%s cron on %s: %w", cron.Interval, cron.Branch, err))
			continue
		}
		fmt.Fprintf(out, "✅ Enabled %s cron for %s@%s\n", cron.Interval, repo.Slug, cron.Branch)
	}
	return errors.Join(errs...)
}

var travisCronDisableCmd = &cobra.Command{
	Use:   "cron-disable",
	Short: "Delete the cron jobs of inactive repositories",
	Long: `Delete every cron job of the selected repositories whose travis.active is
false. Active repositories are left untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		repos, client, _, err := travisSetup(cmd)
		if err != nil || client == nil {
			return err
		}
		out := cmd.OutOrStdout()
		return forEachRepository(cmd.Context(), out, repos, func(repo *manifest.Repository) error {
			if repo.Travis.Active {
				logger.WithField("repository", repo.Slug).Debug("Active, keeping crons")
				return nil
			}
			if err := client.DisableCrons(cmd.Context(), repo.Slug); err != nil {
				return err
			}
			fmt.Fprintf(out, "✅ Disabled crons for %s\n", repo.Slug)
			return nil
		})
	},
}

var travisGHSyncCmd = &cobra.Command{
	Use:   "ghsync",
	Short: "Refresh the list of GitHub repositories known to Travis CI",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		client, _, err := travisClient()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "🔄 Synchronizing the list of GitHub repositories")
		if err := client.SyncGitHub(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(out, "✅ Synchronization started")
		return nil
	},
}

func init() {
	travisCmd.AddCommand(travisStateSetCmd)
	travisCmd.AddCommand(travisCronListCmd)
	travisCmd.AddCommand(travisCronEnableCmd)
	travisCmd.AddCommand(travisCronDisableCmd)
	travisCmd.AddCommand(travisGHSyncCmd)
}
