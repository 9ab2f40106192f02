package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"repofleet/pkg/fuzzy"
	"repofleet/pkg/manifest"
)

// Version is set at build time with -ldflags "-X repofleet/internal/cmd.Version=..."
var Version = "dev"

var (
	manifestPath    string
	repositorySlugs []string
	repositoryTypes []string
	pickRepos       bool
	verbose         bool
)

// logger carries operation-level diagnostics. Command results go to the
// command's output writer.
var logger = logrus.New()

// picker is used by --pick
var picker fuzzy.Picker = fuzzy.NewFzf()

var rootCmd = &cobra.Command{
	Use:   "repofleet",
	Short: "Manage a fleet of GitHub repositories from a YAML manifest",
	Long: `Repofleet keeps the GitHub organisations, teams and repositories declared in
a YAML manifest in line with what actually exists. It also manages the Travis CI
side of those repositories and reports on their PyPI releases.

Most commands read the manifest given with --config and operate on the
repositories selected with --repository and --repository-type.`,
	Version:           Version,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
}

// Execute runs the root command until it finishes or the process is interrupted
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&manifestPath, "config", "c", "", "Path to the repositories manifest (YAML)")
	flags.StringSliceVarP(&repositorySlugs, "repository", "r", nil, "Only operate on repositories matching this org/name pattern (repeatable, glob allowed)")
	flags.StringSliceVarP(&repositoryTypes, "repository-type", "t", nil, "Only operate on repositories of this type (repeatable)")
	flags.BoolVar(&pickRepos, "pick", false, "Interactively pick among the selected repositories")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log API calls and decisions to stderr")

	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(githubCmd)
	rootCmd.AddCommand(travisCmd)
	rootCmd.AddCommand(pypiCmd)
	rootCmd.AddCommand(confCmd)
}

func setupLogging(cmd *cobra.Command, _ []string) error {
	logger.SetOutput(cmd.ErrOrStderr())
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logger.SetLevel(logrus.WarnLevel)
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	if !isTerminal(cmd.OutOrStdout()) {
		text.DisableColors()
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// loadManifest reads the manifest given with --config, restricted to the
// repositories selected on the command line. With --pick the user then
// narrows the selection interactively.
func loadManifest() (*manifest.Manifest, error) {
	if manifestPath == "" {
		return nil, errors.New("no manifest given: pass --config PATH")
	}

	sel := manifest.Selector{Slugs: repositorySlugs, Types: repositoryTypes}
	m, err := manifest.LoadFile(manifestPath, sel)
	if err != nil {
		return nil, err
	}
	if !pickRepos {
		return m, nil
	}

	repos := m.Repositories()
	if len(repos) == 0 {
		return m, nil
	}

	options := make([]fuzzy.Option, 0, len(repos))
	for _, repo := range repos {
		options = append(options, fuzzy.Option{Value: repo.Slug, Description: repo.Description})
	}

	picked, err := picker.Pick("Repositories>", options)
	if err != nil {
		return nil, fmt.Errorf("failed to pick repositories: %w", err)
	}
	if len(picked) == 0 {
		return nil, fuzzy.ErrCancelled
	}

	logger.WithField("repositories", picked).Debug("Picked repositories")
	return manifest.LoadFile(manifestPath, manifest.Selector{Slugs: picked})
}
