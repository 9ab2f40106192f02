package fuzzy

import (
	"fmt"
	"strings"

	fzf "github.com/junegunn/fzf/src"
)

const descriptionSeparator = "  │  "

// FzfRunner defines the interface for running fzf
type FzfRunner interface {
	Run(opts *fzf.Options) (int, error)
}

// DefaultFzfRunner implements the FzfRunner interface using the real fzf library
type DefaultFzfRunner struct{}

// Run executes fzf with the given options
func (r *DefaultFzfRunner) Run(opts *fzf.Options) (int, error) {
	return fzf.Run(opts)
}

// FzfPicker is a multi-select picker backed by the fzf library. When fzf
// cannot run it falls back to another picker.
type FzfPicker struct {
	runner   FzfRunner
	fallback Picker
}

// NewFzf creates an fzf picker falling back to the line based finder
func NewFzf() *FzfPicker {
	return &FzfPicker{runner: &DefaultFzfRunner{}, fallback: New()}
}

// NewFzfWithRunner creates an fzf picker with a custom runner and fallback (for testing)
func NewFzfWithRunner(runner FzfRunner, fallback Picker) *FzfPicker {
	return &FzfPicker{runner: runner, fallback: fallback}
}

// Pick runs fzf in multi-select mode and returns the selected values in the
// order fzf reports them.
func (p *FzfPicker) Pick(prompt string, options []Option) ([]string, error) {
	if len(options) == 0 {
		return nil, fmt.Errorf("no options available")
	}

	args := []string{
		"--prompt=" + prompt + " ",
		"--height=40%",
		"--layout=reverse",
		"--multi",
		"--cycle",
		"--extended",
		"--algo=v2",
		"--tiebreak=length",
		"--no-mouse",
		"--border=none",
		"--header=TAB to select, ENTER to confirm",
	}
	opts, err := fzf.ParseOptions(true, args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fzf options: %w", err)
	}

	input := make(chan string, len(options))
	for _, option := range options {
		input <- displayText(option)
	}
	close(input)
	opts.Input = input

	output := make(chan string)
	opts.Output = output

	done := make(chan []string)
	go func() {
		var lines []string
		for line := range output {
			lines = append(lines, line)
		}
		done <- lines
	}()

	exitCode, runErr := p.runner.Run(opts)
	close(output)
	lines := <-done

	if runErr != nil {
		if p.fallback == nil {
			return nil, fmt.Errorf("fzf failed: %w", runErr)
		}
		return p.fallback.Pick(prompt, options)
	}
	if exitCode != fzf.ExitOk {
		return nil, ErrCancelled
	}

	selected := make([]string, 0, len(lines))
	for _, line := range lines {
		value, _, _ := strings.Cut(line, descriptionSeparator)
		if value = strings.TrimSpace(value); value != "" {
			selected = append(selected, value)
		}
	}
	return selected, nil
}

func displayText(option Option) string {
	if option.Description == "" {
		return option.Value
	}
	return option.Value + descriptionSeparator + option.Description
}

var (
	_ Picker = (*FzfPicker)(nil)
	_ Picker = (*Finder)(nil)
)
