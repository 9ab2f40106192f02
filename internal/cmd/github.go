package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"repofleet/pkg/config"
	"repofleet/pkg/github"
)

var githubToken string

var githubCmd = &cobra.Command{
	Use:   "github",
	Short: "GitHub organisation and repository management commands",
	Long: `Commands keeping GitHub in line with the manifest.

Available commands:
  repos-configure   - Apply settings, maintainer team and branch protection to repositories
  repos-conf-check  - Compare the repositories of each organisation with the manifest
  teams-sync        - Converge the teams of each organisation
  yaml-template     - Generate a manifest skeleton from the live organisations

The token is taken from --token, then GITHUB_TOKEN, then github.token in the
config file. When none is set and stdin is a terminal it is prompted for.`,
}

// githubAPI is the part of the GitHub client the commands use
type githubAPI interface {
	github.OrgClient
	github.RepoClient
	ValidateToken(ctx context.Context) (*github.TokenInfo, error)
}

var newGitHubClient = func(token string) githubAPI {
	return github.NewClient(token, logger)
}

func init() {
	githubCmd.PersistentFlags().StringVar(&githubToken, "token", "", "GitHub token")
}

// githubClient resolves the token, creates a client and checks the token
// works before any command issues a write.
func githubClient(cmd *cobra.Command) (githubAPI, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load repofleet config: %w", err)
	}

	token, err := github.GetToken(githubToken, cfg)
	if err != nil {
		prompted, promptErr := promptSecret("GitHub token")
		if promptErr != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s\n\n", github.GetAuthInstructions())
			return nil, err
		}
		token = prompted
	}

	client := newGitHubClient(token)
	info, err := client.ValidateToken(cmd.Context())
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Authentication failed: %v\n\n%s\n", err, github.GetAuthInstructions())
		return nil, err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Authenticated as %s\n", info.User)
	return client, nil
}
