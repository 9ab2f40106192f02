package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"repofleet/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize repofleet configuration",
	Long: fmt.Sprintf(`Create a default configuration file at %s.

The file holds the Travis CI and PyPI endpoints and, once you log in with
'repofleet auth login' or edit it, the GitHub and Travis CI tokens.`, config.DisplayPath()),
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing configuration file without asking")
}

func runInit(cmd *cobra.Command, _ []string) error {
	configPath, err := config.GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return initConfig(cmd, configPath)
}

func initConfig(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	if _, err := os.Stat(configPath); err == nil && !initForce {
		fmt.Fprintf(out, "⚠️  Configuration file already exists at: %s\n", configPath)
		if !confirm("Overwrite it") {
			fmt.Fprintln(out, "Configuration initialization cancelled.")
			return nil
		}
	}

	if err := config.DefaultConfig().SaveConfigToPath(configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintf(out, "✅ Configuration file created at: %s\n", configPath)
	fmt.Fprintln(out, "📝 Run 'repofleet auth login' to store your tokens.")
	return nil
}
