package cmd

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"repofleet/pkg/manifest"
)

var confCmd = &cobra.Command{
	Use:   "conf",
	Short: "Inspect the manifest",
	Long:  "Commands reporting on the manifest itself. They do not talk to any remote service.",
}

var confRepoOverviewCmd = &cobra.Command{
	Use:   "repo-overview",
	Short: "Print a CSV of repositories and their maintainers",
	Long: `Print one CSV row per selected repository with its type, state and number of
maintainers, followed by one column per maintainer marked with an x.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		m, err := loadManifest()
		if err != nil {
			return err
		}
		renderRepoOverview(cmd.OutOrStdout(), m.Repositories())
		return nil
	},
}

var confTeamsCmd = &cobra.Command{
	Use:   "teams",
	Short: "Show the teams of each organisation as a tree",
	Long: `Show every team the manifest declares, including the maintainer team
derived from each repository, with its permission, members and repositories.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		m, err := loadManifest()
		if err != nil {
			return err
		}
		_, err = io.WriteString(cmd.OutOrStdout(), teamsTree(m).String())
		return err
	},
}

var confValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the manifest for errors",
	Long: `Load the manifest and report every invalid value it holds: unknown
permissions, cron intervals and team repositories, duplicate names and values of
the wrong type. Nothing is sent to GitHub or Travis CI.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "🔍 Validating manifest: %s\n", manifestPath)

		m, err := loadManifest()
		var malformedErr *manifest.MalformedConfigError
		if errors.As(err, &malformedErr) && len(malformedErr.Fields) > 0 {
			fmt.Fprintf(out, "❌ %d invalid value(s):\n", len(malformedErr.Fields))
			for _, field := range malformedErr.Fields {
				fmt.Fprintf(out, "   • %s\n", field.Error())
			}
			return errors.New("manifest validation failed")
		}
		if err != nil {
			return err
		}

		teams := 0
		for _, org := range m.Organisations {
			teams += len(m.Teams(org))
		}
		fmt.Fprintln(out, "✅ Manifest is valid")
		fmt.Fprintf(out, "📋 %d organisation(s), %d repositories, %d teams\n", len(m.Organisations), len(m.Repositories()), teams)
		return nil
	},
}

func init() {
	confCmd.AddCommand(confRepoOverviewCmd)
	confCmd.AddCommand(confTeamsCmd)
	confCmd.AddCommand(confValidateCmd)
}

func renderRepoOverview(out io.Writer, repos []*manifest.Repository) {
	var maintainers []string
	for _, repo := range repos {
		maintainers = append(maintainers, repo.Maintainers...)
	}
	slices.Sort(maintainers)
	maintainers = slices.Compact(maintainers)

	header := table.Row{"Name", "Type", "State", "# Maintainers"}
	for _, login := range maintainers {
		header = append(header, login)
	}

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.AppendHeader(header)
	for _, repo := range repos {
		row := table.Row{repo.Slug, repo.Type, repo.State, len(repo.Maintainers)}
		for _, login := range maintainers {
			mark := ""
			if slices.Contains(repo.Maintainers, login) {
				mark = "x"
			}
			row = append(row, mark)
		}
		t.AppendRow(row)
	}
	t.RenderCSV()
}

func teamsTree(m *manifest.Manifest) treeprint.Tree {
	tree := treeprint.New()
	tree.SetValue("teams")

	for _, org := range m.Organisations {
		orgBranch := tree.AddBranch(org.Name)
		for _, team := range m.Teams(org) {
			label := fmt.Sprintf("%s (%s)", team.Name, team.Permission)
			if team.Implicit {
				label += " [maintainers]"
			}
			teamBranch := orgBranch.AddBranch(label)

			members := teamBranch.AddBranch(fmt.Sprintf("members: %d", len(team.Members)))
			for _, login := range team.Members {
				members.AddNode(login)
			}
			repos := teamBranch.AddBranch(fmt.Sprintf("repositories: %d", len(team.Repositories)))
			for _, name := range team.Repositories {
				repos.AddNode(strings.Join([]string{org.Name, name}, "/"))
			}
		}
	}
	return tree
}
