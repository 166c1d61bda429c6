package main

import (
	"os"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// Prompter asks for values missing from the command line.
type Prompter interface {
	Select(title string, options []string, value *string) error
	Input(title string, value *string) error
	Confirm(title string) (bool, error)
}

// huhPrompter prompts with [huh] forms.
type huhPrompter struct{}

func (huhPrompter) Select(title string, options []string, value *string) error {
	opts := make([]huh.Option[string], len(options))
	for i, o := range options {
		opts[i] = huh.NewOption(o, o)
	}
	return huh.NewSelect[string]().
		Title(title).
		Options(opts...).
		Value(value).
		Run()
}

func (huhPrompter) Input(title string, value *string) error {
	return huh.NewInput().
		Title(title).
		Value(value).
		Run()
}

func (huhPrompter) Confirm(title string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	return ok, err
}

// isTerminal reports whether both stdin and stdout are attached to a terminal.
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
