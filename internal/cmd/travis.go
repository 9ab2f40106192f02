package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"repofleet/pkg/config"
	"repofleet/pkg/manifest"
	"repofleet/pkg/travis"
)

var travisToken string

var travisCmd = &cobra.Command{
	Use:   "travis",
	Short: "Travis CI management commands",
	Long: `Commands managing the Travis CI side of the selected repositories.

Available commands:
  state-set      - Activate or deactivate builds according to travis.active
  cron-list      - List the cron jobs of each repository
  cron-enable    - Create the cron jobs declared in travis.crons
  cron-disable   - Delete the cron jobs of inactive repositories
  ghsync         - Refresh the list of GitHub repositories known to Travis CI
  build-status   - Show the latest build of each branch
  build-request  - Request a build
  encrypt        - Encrypt a secret with each repository's public key
  pypi           - Generate the PyPI deploy section of .travis.yml

The token is taken from --token, then TRAVIS_TOKEN, then travis.token in the
config file. When none is set and stdin is a terminal it is prompted for.`,
}

func init() {
	travisCmd.PersistentFlags().StringVar(&travisToken, "token", "", "Travis CI token")
}

func userAgent() string {
	return "repofleet/" + Version
}

// travisClient creates a client for the configured endpoint
func travisClient() (*travis.Client, *config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load repofleet config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid repofleet config: %w", err)
	}

	token, err := travis.GetToken(travisToken, cfg)
	if err != nil {
		prompted, promptErr := promptSecret("Travis CI token")
		if promptErr != nil {
			return nil, nil, err
		}
		token = prompted
	}
	return travis.NewClient(cfg.Travis.Endpoint, token, userAgent(), logger), cfg, nil
}

// travisSetup loads the selected repositories and, when there are any, a
// client. A nil client means there is nothing to do.
func travisSetup(cmd *cobra.Command) ([]*manifest.Repository, *travis.Client, *config.Config, error) {
	m, err := loadManifest()
	if err != nil {
		return nil, nil, nil, err
	}

	repos := m.Repositories()
	if len(repos) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No repositories selected")
		return nil, nil, nil, nil
	}

	client, cfg, err := travisClient()
	if err != nil {
		return nil, nil, nil, err
	}
	return repos, client, cfg, nil
}
