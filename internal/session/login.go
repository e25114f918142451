package session

import (
	"errors"
	"log/slog"

	"github.com/acolita/telnet-shell-mcp/internal/expect"
	"github.com/acolita/telnet-shell-mcp/internal/telnet"
)

// Login runs the login conversation of the named host profile. An empty
// name selects the profile the catalog's host rules give for this host.
// On success the profile's prompt is left active and its setup commands
// have run.
func (s *Session) Login(username, password, profileName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if profileName == "" {
		profileName = s.catalog.ForHost(s.Host)
	}
	p, err := s.catalog.Lookup(profileName)
	if err != nil {
		return err
	}

	s.delay = p.Delay
	logger := s.logger.With(slog.String("profile", p.Name), slog.String("user", username))
	logger.Info("login started")

	runner := expect.NewRunner(s.clock, s.logger)
	if err := runner.Run(conversation{s}, p.LoginScript(username, password)); err != nil {
		step := ""
		var se *expect.StepError
		if errors.As(err, &se) {
			step = se.Step
			err = se.Err
		}
		logger.Warn("login failed", slog.String("step", step), slog.String("error", err.Error()))
		return &telnet.LoginError{Profile: p.Name, Step: step, Err: err}
	}

	for _, cmd := range p.Setup {
		if _, err := s.exec(cmd, true); err != nil {
			logger.Warn("login setup failed", slog.String("command", cmd), slog.String("error", err.Error()))
			return &telnet.LoginError{Profile: p.Name, Step: "setup", Err: err}
		}
	}

	s.profileName = p.Name
	logger.Info("login succeeded")
	return nil
}

// RunScript drives the session through script. The prompt that was active
// beforehand is restored afterwards.
func (s *Session) RunScript(script *expect.Script) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prompt, source := s.prompt, s.promptSource
	defer func() { s.prompt, s.promptSource = prompt, source }()

	runner := expect.NewRunner(s.clock, s.logger)
	return runner.Run(conversation{s}, script)
}

// conversation lets the expect runner drive a session whose lock the
// caller already holds.
type conversation struct {
	s *Session
}

func (c conversation) SetRegexPrompt(pattern string) error { return c.s.setRegexPrompt(pattern) }

func (c conversation) WaitPrompt() error { return c.s.waitPrompt() }

func (c conversation) Send(text string, newline, masked bool) error {
	return c.s.write(text, newline, masked)
}
