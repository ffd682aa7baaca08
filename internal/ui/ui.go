// Package ui provides the interactive prompts used by the CLI.
// Items are rendered as plain text; nothing from remote data is evaluated.
package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
)

// ErrCancelled is returned when the user aborts a prompt.
var ErrCancelled = errors.New("selection cancelled")

// maxHeight bounds the visible rows of a select list.
const maxHeight = 15

// Select presents items and returns the chosen index.
func Select(prompt string, items []string) (int, error) {
	if len(items) == 0 {
		return -1, fmt.Errorf("no items to select from")
	}

	var idx int
	menu := huh.NewSelect[int]().
		Title(prompt).
		Options(options(items)...).
		Height(min(len(items)+2, maxHeight)).
		Filtering(true).
		Value(&idx)

	if err := menu.Run(); err != nil {
		return -1, wrapAbort(err)
	}
	if idx < 0 || idx >= len(items) {
		return -1, fmt.Errorf("selection index %d out of range", idx)
	}
	return idx, nil
}

// options numbers items so duplicate labels stay distinguishable.
func options(items []string) []huh.Option[int] {
	opts := make([]huh.Option[int], len(items))
	for i, item := range items {
		label := strings.TrimSpace(item)
		if label == "" {
			label = "(untitled)"
		}
		opts[i] = huh.NewOption(fmt.Sprintf("%d. %s", i+1, label), i)
	}
	return opts
}

// Confirm asks a yes/no question.
func Confirm(prompt string) (bool, error) {
	var ok bool
	c := huh.NewConfirm().
		Title(prompt).
		Affirmative("Yes").
		Negative("No").
		Value(&ok)

	if err := c.Run(); err != nil {
		return false, wrapAbort(err)
	}
	return ok, nil
}

// Input prompts for free text. Blank input is an error.
func Input(prompt string) (string, error) {
	var value string
	in := huh.NewInput().
		Title(prompt).
		Validate(notBlank).
		Value(&value)

	if err := in.Run(); err != nil {
		return "", wrapAbort(err)
	}
	return strings.TrimSpace(value), nil
}

func notBlank(s string) error {
	if strings.TrimSpace(s) == "" {
		return errors.New("no input provided")
	}
	return nil
}

func wrapAbort(err error) error {
	if errors.Is(err, huh.ErrUserAborted) {
		return ErrCancelled
	}
	return fmt.Errorf("prompt failed: %w", err)
}
