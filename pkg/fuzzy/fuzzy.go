package fuzzy

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
)

// ErrCancelled is returned when the user aborts a selection
var ErrCancelled = errors.New("selection cancelled")

// Option represents a selectable option in the fuzzy finder
type Option struct {
	Value       string
	Description string
}

// Picker selects any number of options
type Picker interface {
	Pick(prompt string, options []Option) ([]string, error)
}

// Finder is a line based picker: it lists the options with a number and reads
// a selection such as "1,3-5", "all" or a filter text.
type Finder struct {
	in  io.Reader
	out io.Writer
}

// New creates a line based finder on stdin and stdout
func New() *Finder {
	return &Finder{in: os.Stdin, out: os.Stdout}
}

// NewWithIO creates a line based finder on the given reader and writer
func NewWithIO(in io.Reader, out io.Writer) *Finder {
	return &Finder{in: in, out: out}
}

// Pick lists options and returns the values the user selected, in option order
func (f *Finder) Pick(prompt string, options []Option) ([]string, error) {
	if len(options) == 0 {
		return nil, fmt.Errorf("no options available")
	}

	reader := bufio.NewReader(f.in)
	visible := options

	for {
		fmt.Fprintln(f.out, prompt)
		fmt.Fprintln(f.out, strings.Repeat("-", len(prompt)))
		for i, option := range visible {
			fmt.Fprintf(f.out, "%d. %s", i+1, option.Value)
			if option.Description != "" {
				fmt.Fprintf(f.out, " - %s", option.Description)
			}
			fmt.Fprintln(f.out)
		}
		fmt.Fprint(f.out, "\nSelect (e.g. 1,3-5 or all), or type to filter: ")

		input, err := reader.ReadString('\n')
		input = strings.TrimSpace(input)
		if err != nil && (!errors.Is(err, io.EOF) || input == "") {
			return nil, ErrCancelled
		}

		switch {
		case input == "":
			visible = options
			continue
		case strings.EqualFold(input, "all"):
			return values(visible), nil
		}

		if indexes, ok := parseSelection(input, len(visible)); ok {
			selected := make([]string, 0, len(indexes))
			for _, i := range indexes {
				selected = append(selected, visible[i].Value)
			}
			return selected, nil
		}

		filtered := filterOptions(options, input)
		if len(filtered) == 0 {
			fmt.Fprintf(f.out, "No options match filter: %s\n\n", input)
			visible = options
		} else {
			visible = filtered
		}
		if errors.Is(err, io.EOF) {
			return nil, ErrCancelled
		}
	}
}

// parseSelection parses comma separated 1-based indexes and ranges. It
// returns sorted, distinct 0-based indexes.
func parseSelection(input string, n int) ([]int, bool) {
	var indexes []int
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		lo, hi, isRange := strings.Cut(part, "-")

		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, false
		}
		end := start
		if isRange {
			if end, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
				return nil, false
			}
		}
		if start < 1 || end > n || start > end {
			return nil, false
		}
		for i := start; i <= end; i++ {
			indexes = append(indexes, i-1)
		}
	}
	slices.Sort(indexes)
	return slices.Compact(indexes), true
}

// filterOptions returns the options whose value or description contains filter
func filterOptions(options []Option, filter string) []Option {
	filter = strings.ToLower(filter)
	var filtered []Option

	for _, option := range options {
		if strings.Contains(strings.ToLower(option.Value), filter) ||
			strings.Contains(strings.ToLower(option.Description), filter) {
			filtered = append(filtered, option)
		}
	}

	return filtered
}

func values(options []Option) []string {
	out := make([]string, 0, len(options))
	for _, o := range options {
		out = append(out, o.Value)
	}
	return out
}
