package expect

import (
	"fmt"
	"log/slog"

	"github.com/acolita/telnet-shell-mcp/internal/ports"
)

// Conversation is the side of a session a script drives.
type Conversation interface {
	// SetRegexPrompt sets the pattern the next WaitPrompt waits for.
	SetRegexPrompt(pattern string) error

	// WaitPrompt reads until the current prompt matches.
	WaitPrompt() error

	// Send writes text, optionally followed by end-of-line. Masked text is
	// kept out of logs and recordings.
	Send(text string, newline, masked bool) error
}

// StepError reports which step of a script failed.
type StepError struct {
	Script string
	Step   string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("script %s, step %s: %v", e.Script, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Runner executes scripts against a conversation.
type Runner struct {
	clock  ports.Clock
	logger *slog.Logger
}

// NewRunner creates a runner. Delays are slept on clock.
func NewRunner(clock ports.Clock, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{clock: clock, logger: logger}
}

// Run executes every step of script in order and stops at the first failure.
func (r *Runner) Run(conv Conversation, script *Script) error {
	started := r.clock.Now()

	for i := range script.Steps {
		step := &script.Steps[i]

		if step.Expect != "" {
			if err := conv.SetRegexPrompt(step.Expect); err != nil {
				return &StepError{Script: script.Name, Step: step.Name, Err: err}
			}
			if err := conv.WaitPrompt(); err != nil {
				return &StepError{Script: script.Name, Step: step.Name, Err: err}
			}
		}

		if step.Action != ActionNone {
			if err := conv.Send(step.Response, step.Action == ActionSend, step.Masked); err != nil {
				return &StepError{Script: script.Name, Step: step.Name, Err: err}
			}
		}

		if step.Delay > 0 {
			r.clock.Sleep(step.Delay)
		}

		r.logger.Debug("expect step completed",
			slog.String("script", script.Name),
			slog.String("step", step.Name),
		)
	}

	r.logger.Debug("expect script completed",
		slog.String("script", script.Name),
		slog.Duration("duration", r.clock.Now().Sub(started)),
	)
	return nil
}
