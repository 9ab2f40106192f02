package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

// stdinIsTerminal reports whether prompts can be shown
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// promptSecret reads a masked value from the terminal
var promptSecret = func(label string) (string, error) {
	if !stdinIsTerminal() {
		return "", fmt.Errorf("%s required but stdin is not a terminal", label)
	}

	prompt := promptui.Prompt{
		Label: label,
		Mask:  '*',
		Validate: func(input string) error {
			if strings.TrimSpace(input) == "" {
				return errors.New("value cannot be empty")
			}
			return nil
		},
	}
	value, err := prompt.Run()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

// confirm asks a yes/no question. Anything but an explicit yes is a no.
var confirm = func(label string) bool {
	if !stdinIsTerminal() {
		return false
	}
	prompt := promptui.Prompt{Label: label, IsConfirm: true}
	_, err := prompt.Run()
	return err == nil
}
