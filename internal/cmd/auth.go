package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"repofleet/internal/auth"
	"repofleet/pkg/github"
)

var (
	loginNoBrowser bool
	loginTravis    bool
	statusToken    string
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authentication commands",
	Long:  "Commands managing the GitHub and Travis CI tokens stored in the repofleet config file",
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a GitHub personal access token",
	Long: `Open the GitHub token creation page, read the token you created, check it
against GitHub and store it in the config file.

Examples:
  repofleet auth login
  repofleet auth login --travis --no-browser`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which tokens are configured and whether they work",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored tokens from the config file",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogout,
}

func init() {
	authLoginCmd.Flags().BoolVar(&loginNoBrowser, "no-browser", false, "Print the token page URL without opening a browser")
	authLoginCmd.Flags().BoolVar(&loginTravis, "travis", false, "Also store a Travis CI token")
	authStatusCmd.Flags().StringVar(&statusToken, "token", "", "Check this GitHub token instead of the configured one")

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authLogoutCmd)
}

// newAuthManager is replaced in tests
var newAuthManager = func(cmd *cobra.Command) (auth.Manager, error) {
	validate := func(ctx context.Context, token string) (*github.TokenInfo, error) {
		return newGitHubClient(token).ValidateToken(ctx)
	}
	return auth.NewManager(validate, promptSecret, cmd.OutOrStdout())
}

func runAuthLogin(cmd *cobra.Command, _ []string) error {
	manager, err := newAuthManager(cmd)
	if err != nil {
		return fmt.Errorf("failed to create authentication manager: %w", err)
	}

	info, err := manager.Login(cmd.Context(), auth.LoginOptions{OpenBrowser: !loginNoBrowser, Travis: loginTravis})
	if err != nil {
		return authFailure(cmd, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✅ Logged in to GitHub as %s\n", info.User)
	return nil
}

func runAuthStatus(cmd *cobra.Command, _ []string) error {
	manager, err := newAuthManager(cmd)
	if err != nil {
		return fmt.Errorf("failed to create authentication manager: %w", err)
	}

	status, err := manager.Status(cmd.Context(), statusToken)
	if err != nil {
		return authFailure(cmd, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "📍 Config file: %s\n", status.ConfigPath)
	if status.GitHub != nil {
		fmt.Fprintf(out, "✅ GitHub: authenticated as %s\n", status.GitHub.User)
	} else {
		fmt.Fprintf(out, "❌ GitHub: %v\n", status.GitHubError)
	}
	if status.TravisConfigured {
		fmt.Fprintln(out, "✅ Travis CI: token configured")
	} else {
		fmt.Fprintln(out, "⚠️  Travis CI: no token configured")
	}
	if status.PyPIUser != "" {
		fmt.Fprintf(out, "✅ PyPI: user %s\n", status.PyPIUser)
	}

	if status.GitHub == nil {
		return errors.New("not authenticated with GitHub")
	}
	return nil
}

func runAuthLogout(cmd *cobra.Command, _ []string) error {
	manager, err := newAuthManager(cmd)
	if err != nil {
		return fmt.Errorf("failed to create authentication manager: %w", err)
	}

	cleared, err := manager.Logout()
	if err != nil {
		return authFailure(cmd, err)
	}
	if !cleared {
		fmt.Fprintln(cmd.OutOrStdout(), "No stored tokens")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "✅ Stored tokens removed")
	return nil
}

func authFailure(cmd *cobra.Command, err error) error {
	var authErr *auth.Error
	if errors.As(err, &authErr) {
		fmt.Fprintf(cmd.OutOrStdout(), "❌ %s%s\n", authErr.Message, authErr.GetTroubleshootingMessage())
		return fmt.Errorf("authentication failed: %s", authErr.Type)
	}
	return err
}
