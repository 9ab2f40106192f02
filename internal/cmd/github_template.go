package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"repofleet/pkg/github"
)

var templateOutput string

var yamlTemplateCmd = &cobra.Command{
	Use:   "yaml-template [org...]",
	Short: "Generate a manifest skeleton from the live organisations",
	Long: `Read every repository of the given organisations (by default the ones the
manifest declares) and write a manifest skeleton with their description and
the logins listed in their MAINTAINERS file. Archived repositories are skipped.

Examples:
  repofleet github yaml-template inveniosoftware > repositories.yml
  repofleet github yaml-template -c repositories.yml --output fresh.yml`,
	RunE: runYAMLTemplate,
}

func init() {
	yamlTemplateCmd.Flags().StringVarP(&templateOutput, "output", "o", "", "Write the skeleton to this file instead of stdout")
	githubCmd.AddCommand(yamlTemplateCmd)
}

func runYAMLTemplate(cmd *cobra.Command, args []string) error {
	orgs := args
	if len(orgs) == 0 {
		m, err := loadManifest()
		if err != nil {
			return err
		}
		for _, org := range m.Organisations {
			orgs = append(orgs, org.Name)
		}
	}
	if len(orgs) == 0 {
		return fmt.Errorf("no organisations: pass them as arguments or declare them in the manifest")
	}

	client, err := githubClient(cmd)
	if err != nil {
		return err
	}

	builder := github.NewTemplateBuilder(client)
	finish := attachProgress(builder, cmd.ErrOrStderr())

	tmpl, err := builder.Build(cmd.Context(), orgs)
	finish()
	if err != nil {
		return err
	}
	data, err := tmpl.Marshal()
	if err != nil {
		return err
	}

	if templateOutput == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(templateOutput, data, 0644); err != nil {
		return fmt.Errorf("failed to write template: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✅ Template written to %s\n", templateOutput)
	return nil
}

// attachProgress shows one progress bar per organisation on terminals and a
// debug log line per repository elsewhere. The returned func clears the last bar.
func attachProgress(builder *github.TemplateBuilder, w io.Writer) func() {
	if !isTerminal(w) {
		builder.OnRepository = func(slug string) {
			logger.WithField("repository", slug).Debug("Read repository")
		}
		return func() {}
	}

	var bar *progressbar.ProgressBar
	builder.OnListed = func(org string, total int) {
		if bar != nil {
			_ = bar.Finish()
		}
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(fmt.Sprintf("Reading %s", org)),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	builder.OnRepository = func(string) {
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	return func() {
		if bar != nil {
			_ = bar.Finish()
		}
	}
}
