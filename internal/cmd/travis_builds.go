package cmd

import (
	"bytes"
	"fmt"
	"io"
	"slices"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"repofleet/pkg/config"
	"repofleet/pkg/manifest"
	"repofleet/pkg/travis"
)

var (
	buildBranch      string
	buildAllBranches bool
	buildRepoNames   []string
	encryptValue     string
	deployUser       string
)

var travisBuildStatusCmd = &cobra.Command{
	Use:   "build-status",
	Short: "Show the latest build of each branch",
	Long: `Show the latest build of the default branch of each selected repository,
of the branch given with --branch, or of every declared branch with --all.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		repos, client, _, err := travisSetup(cmd)
		if err != nil || client == nil {
			return err
		}
		out := cmd.OutOrStdout()
		return forEachRepository(cmd.Context(), out, repos, func(repo *manifest.Repository) error {
			if !repo.Travis.Active {
				fmt.Fprintf(out, "%s: disabled\n", repo.Slug)
				return nil
			}
			for _, branch := range statusBranches(repo, buildBranch, buildAllBranches) {
				build, err := client.LatestBuild(cmd.Context(), repo.Slug, branch)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, formatBuild(repo.Slug, branch, build))
			}
			return nil
		})
	},
}

// statusBranches picks the branches to report on: every declared branch, the
// requested one, or the default branch.
func statusBranches(repo *manifest.Repository, branch string, all bool) []string {
	switch {
	case all:
		branches := slices.Clone(repo.Branches)
		if !slices.Contains(branches, repo.DefaultBranch) {
			branches = append([]string{repo.DefaultBranch}, branches...)
		}
		return branches
	case branch != "":
		return []string{branch}
	default:
		return []string{repo.DefaultBranch}
	}
}

func formatBuild(slug, branch string, build *travis.Build) string {
	if build == nil {
		return fmt.Sprintf("%s@%s: no build", slug, branch)
	}

	started := "not started"
	if build.StartedAt != nil {
		started = build.StartedAt.Local().Format("2006-01-02 15:04")
	}
	return fmt.Sprintf("%s@%s: %s (%s)", slug, branch, buildStateColors(build.State).Sprint(build.State), started)
}

func buildStateColors(state string) text.Colors {
	switch state {
	case "passed":
		return text.Colors{text.FgGreen}
	case "failed", "errored":
		return text.Colors{text.FgRed}
	case "canceled":
		return text.Colors{text.FgHiBlack}
	default:
		return text.Colors{text.FgYellow}
	}
}

var travisBuildRequestCmd = &cobra.Command{
	Use:   "build-request",
	Short: "Request a build",
	Long: `Request a build of the default branch, or of the branch given with --branch,
of every selected active repository. --repos narrows the selection to the
given repository names.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		repos, client, _, err := travisSetup(cmd)
		if err != nil || client == nil {
			return err
		}
		if len(buildRepoNames) > 0 {
			repos = slices.DeleteFunc(repos, func(r *manifest.Repository) bool {
				return !slices.Contains(buildRepoNames, r.Name)
			})
		}

		out := cmd.OutOrStdout()
		return forEachRepository(cmd.Context(), out, repos, func(repo *manifest.Repository) error {
			if !repo.Travis.Active {
				fmt.Fprintf(out, "%s: disabled\n", repo.Slug)
				return nil
			}
			branch := buildBranch
			if branch == "" {
				branch = repo.DefaultBranch
			}
			if err := client.RequestBuild(cmd.Context(), repo.Slug, branch); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s@%s: %s\n", repo.Slug, branch, text.FgGreen.Sprint("requested"))
			return nil
		})
	},
}

var travisEncryptCmd = &cobra.Command{
	Use:   "encrypt",
	Short: "Encrypt a secret with each repository's public key",
	Long: `Encrypt a value for use as a secure variable in .travis.yml. Every active
repository has its own key pair, so the output holds one value per repository.
The value is prompted for unless --value is given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		repos, client, _, err := travisSetup(cmd)
		if err != nil || client == nil {
			return err
		}

		value := encryptValue
		if value == "" {
			if value, err = promptSecret("Value to encrypt"); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		return forEachRepository(cmd.Context(), out, repos, func(repo *manifest.Repository) error {
			if !repo.Travis.Active {
				logger.WithField("repository", repo.Slug).Debug("Inactive, skipping encryption")
				return nil
			}
			secure, err := client.Encrypt(cmd.Context(), repo.Slug, value)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: %s\n", repo.Slug, secure)
			return nil
		})
	},
}

var travisPyPICmd = &cobra.Command{
	Use:   "pypi",
	Short: "Generate the PyPI deploy section of .travis.yml",
	Long: `Print the deploy section of .travis.yml for every selected repository that
declares travis.pypideploy. The PyPI password is prompted for and encrypted with
each repository's public key. The user comes from --user, then pypi.user in the
config file, then the [pypi] section of ~/.pypirc.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		repos, client, cfg, err := travisSetup(cmd)
		if err != nil || client == nil {
			return err
		}
		repos = slices.DeleteFunc(repos, func(r *manifest.Repository) bool { return r.Travis.PyPIDeploy == nil })
		if len(repos) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No selected repository declares travis.pypideploy")
			return nil
		}

		user, err := config.ResolvePyPIUser(deployUser, cfg)
		if err != nil {
			return err
		}
		password, err := promptSecret("PyPI password")
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		return forEachRepository(cmd.Context(), out, repos, func(repo *manifest.Repository) error {
			secure, err := client.Encrypt(cmd.Context(), repo.Slug, password)
			if err != nil {
				return err
			}
			section, err := travis.PyPIDeploySection(repo.Travis.PyPIDeploy, user, secure, repo.I18N)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "📦 Deploy section for %s\n", repo.Slug)
			return writeYAML(out, map[string]any{"deploy": section})
		})
	},
}

func writeYAML(out io.Writer, v any) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to render YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to render YAML: %w", err)
	}
	_, err := buf.WriteTo(out)
	return err
}

func init() {
	travisBuildStatusCmd.Flags().StringVarP(&buildBranch, "branch", "b", "", "Branch to report on instead of the default branch")
	travisBuildStatusCmd.Flags().BoolVarP(&buildAllBranches, "all", "a", false, "Report on every declared branch")
	travisBuildRequestCmd.Flags().StringVarP(&buildBranch, "branch", "b", "", "Branch to build instead of the default branch")
	travisBuildRequestCmd.Flags().StringSliceVar(&buildRepoNames, "repos", nil, "Only request builds of these repository names")
	travisEncryptCmd.Flags().StringVar(&encryptValue, "value", "", "Value to encrypt (prompted for when omitted)")
	travisPyPICmd.Flags().StringVarP(&deployUser, "user", "u", "", "PyPI user")

	travisCmd.AddCommand(travisBuildStatusCmd)
	travisCmd.AddCommand(travisBuildRequestCmd)
	travisCmd.AddCommand(travisEncryptCmd)
	travisCmd.AddCommand(travisPyPICmd)
}
