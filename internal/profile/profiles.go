// Package profile provides the catalog of host profiles: the login prompt
// templates and timing a device family needs.
package profile

import (
	"fmt"
	"regexp"
	"time"

	"github.com/acolita/telnet-shell-mcp/internal/expect"
	"github.com/acolita/telnet-shell-mcp/internal/telnet"
)

// Default is the profile used when none is given.
const Default = "linux"

// Profile describes how to log in to one family of devices.
type Profile struct {
	Name string

	// UsernamePrompt and PasswordPrompt are literal strings.
	UsernamePrompt string
	PasswordPrompt string

	// PromptRegex matches the prompt shown after a successful login.
	PromptRegex string

	// Delay is slept after the password is sent and before every
	// negotiation reply, for devices that drop fast input.
	Delay time.Duration

	// Setup commands are executed once after login.
	Setup []string
}

// Builtin returns the built-in profiles keyed by name.
func Builtin() map[string]Profile {
	return map[string]Profile{
		"linux": {
			Name:           "linux",
			UsernamePrompt: "login:",
			PasswordPrompt: "Password:",
			PromptRegex:    `\$`,
		},
		"ios": {
			Name:           "ios",
			UsernamePrompt: "Username:",
			PasswordPrompt: "Password:",
			PromptRegex:    `[>#]`,
		},
		"eoc-master": {
			Name:           "eoc-master",
			UsernamePrompt: "Login:",
			PasswordPrompt: "Password:",
			PromptRegex:    `(>|:|\)#)`,
		},
		"eoc-modem": {
			Name:           "eoc-modem",
			UsernamePrompt: "login:",
			PasswordPrompt: "Password:",
			PromptRegex:    `#`,
			Delay:          100 * time.Millisecond,
		},
		"junos": {
			Name:           "junos",
			UsernamePrompt: "login:",
			PasswordPrompt: "Password:",
			PromptRegex:    `[%>#]`,
		},
		"alaxala": {
			Name:           "alaxala",
			UsernamePrompt: "login:",
			PasswordPrompt: "Password:",
			PromptRegex:    `[>#]`,
		},
	}
}

// Validate checks that the profile is usable for a login.
func (p Profile) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: profile has no name", telnet.ErrConfiguration)
	}
	if p.UsernamePrompt == "" || p.PasswordPrompt == "" || p.PromptRegex == "" {
		return fmt.Errorf("%w: profile %q needs username, password and prompt patterns", telnet.ErrConfiguration, p.Name)
	}
	if _, err := regexp.Compile(p.PromptRegex); err != nil {
		return fmt.Errorf("%w: profile %q prompt: %v", telnet.ErrConfiguration, p.Name, err)
	}
	if p.Delay < 0 {
		return fmt.Errorf("%w: profile %q has a negative delay", telnet.ErrConfiguration, p.Name)
	}
	return nil
}

// trailingBlanks lets login prompts end in the customary space.
const trailingBlanks = `[ \t]*`

// LoginScript builds the username/password/prompt conversation for this
// profile. The password step is masked. The username step also accepts a
// generic "login:", which terminal servers print in front of most devices.
func (p Profile) LoginScript(username, password string) *expect.Script {
	script := &expect.Script{
		Name:        "login-" + p.Name,
		Description: "log in to a " + p.Name + " device",
		Steps: []expect.Step{
			{
				Name:     "username",
				Expect:   `(?i:` + regexp.QuoteMeta(p.UsernamePrompt) + `|login:)` + trailingBlanks,
				Response: username,
			},
			{
				Name:     "password",
				Expect:   regexp.QuoteMeta(p.PasswordPrompt) + trailingBlanks,
				Response: password,
				Masked:   true,
				Delay:    p.Delay,
			},
			{
				Name:   "prompt",
				Expect: PromptPattern(p.PromptRegex),
				Action: expect.ActionNone,
			},
		},
	}
	// Prompts are quoted or validated, so Compile cannot fail here.
	_ = script.Compile()
	return script
}

// PromptPattern returns the pattern a session waits for after login:
// regex, optionally followed by blanks.
func PromptPattern(regex string) string {
	return `(?:` + regex + `)` + trailingBlanks
}
