// Package realprompter provides a terminal PasswordPrompter using charmbracelet/huh.
package realprompter

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/acolita/telnet-shell-mcp/internal/ports"
)

// ErrEmpty is returned when the user submits an empty secret.
var ErrEmpty = errors.New("empty password")

// Prompter reads secrets from the controlling terminal without echo.
type Prompter struct {
	accessible bool
}

var _ ports.PasswordPrompter = (*Prompter)(nil)

// New returns a terminal prompter. Accessible mode drops the TUI and
// reads from a plain line prompt, for screen readers and dumb terminals.
func New(accessible bool) *Prompter {
	return &Prompter{accessible: accessible}
}

// Password asks for a secret with masked echo.
func (p *Prompter) Password(title, description string) (string, error) {
	var value string

	input := huh.NewInput().
		Title(title).
		Description(description).
		EchoMode(huh.EchoModePassword).
		Validate(func(s string) error {
			if s == "" {
				return ErrEmpty
			}
			return nil
		}).
		Value(&value)

	form := huh.NewForm(huh.NewGroup(input)).WithAccessible(p.accessible)
	if err := form.Run(); err != nil {
		return "", fmt.Errorf("password prompt: %w", err)
	}
	return value, nil
}

// Confirm asks a yes/no question.
func (p *Prompter) Confirm(title string) (bool, error) {
	var ok bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title(title).Value(&ok),
	)).WithAccessible(p.accessible)
	if err := form.Run(); err != nil {
		return false, fmt.Errorf("confirm prompt: %w", err)
	}
	return ok, nil
}
