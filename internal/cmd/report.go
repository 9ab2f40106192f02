package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"repofleet/pkg/github"
	"repofleet/pkg/manifest"
)

// unitFailures collects the repositories or organisations a command could not
// process. One failing unit does not stop the others; the command fails at the
// end when any did.
type unitFailures struct {
	out   io.Writer
	units []string
}

func newUnitFailures(out io.Writer) *unitFailures {
	return &unitFailures{out: out}
}

// add reports the failure of unit and records it
func (f *unitFailures) add(unit string, err error) {
	fmt.Fprintf(f.out, "❌ %s: %v\n", unit, err)

	var partial *github.PartialApplyError
	if errors.As(err, &partial) {
		fmt.Fprintf(f.out, "   Changes applied before the failure:\n")
		for _, op := range partial.AppliedOperations() {
			fmt.Fprintf(f.out, "     - %s\n", op)
		}
	}

	logger.WithError(err).WithField("unit", unit).Debug("Unit failed")
	f.units = append(f.units, unit)
}

// err returns nil when every unit succeeded
func (f *unitFailures) err() error {
	if len(f.units) == 0 {
		return nil
	}
	return fmt.Errorf("%d failed: %s", len(f.units), strings.Join(f.units, ", "))
}

// printChanges lists the changes of a reconcile, indented under the unit line
func printChanges(out io.Writer, report github.Report) {
	verb := "✓"
	if report.DryRun {
		verb = "🔍 would"
	}
	for _, change := range report.Changes {
		fmt.Fprintf(out, "   %s %s\n", verb, change)
	}
}

// forEachRepository calls fn for every repository, recording failures, until
// all are done or ctx is cancelled.
func forEachRepository(ctx context.Context, out io.Writer, repos []*manifest.Repository, fn func(repo *manifest.Repository) error) error {
	failures := newUnitFailures(out)
	for _, repo := range repos {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(repo); err != nil {
			failures.add(repo.Slug, err)
		}
	}
	return failures.err()
}
