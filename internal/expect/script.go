// Package expect provides expect-like scripting: ordered steps that each
// wait for a prompt pattern and then send a response.
package expect

import (
	"fmt"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Action defines what a step sends once its pattern has matched.
type Action int

const (
	// ActionSend sends the response followed by the session end-of-line.
	ActionSend Action = iota
	// ActionSendRaw sends the response without end-of-line.
	ActionSendRaw
	// ActionNone sends nothing; the step only waits for its pattern.
	ActionNone
)

var actionNames = map[string]Action{
	"send":     ActionSend,
	"send_raw": ActionSendRaw,
	"none":     ActionNone,
}

// UnmarshalYAML accepts the action by name ("send", "send_raw", "none").
func (a *Action) UnmarshalYAML(value *yaml.Node) error {
	var name string
	if err := value.Decode(&name); err != nil {
		return err
	}
	if name == "" {
		*a = ActionSend
		return nil
	}
	act, ok := actionNames[name]
	if !ok {
		return fmt.Errorf("unknown action %q", name)
	}
	*a = act
	return nil
}

// MarshalYAML writes the action by name.
func (a Action) MarshalYAML() (interface{}, error) {
	for name, act := range actionNames {
		if act == a {
			return name, nil
		}
	}
	return nil, fmt.Errorf("unknown action %d", int(a))
}

// Step defines a single expect step in a script.
type Step struct {
	// Name is a human-readable identifier for this step.
	Name string `yaml:"name" json:"name"`

	// Expect is the regex that must match at the end of the received output
	// before the response is sent. Empty means send immediately.
	Expect string `yaml:"expect" json:"expect"`

	// CompiledExpect is the compiled regex (set automatically).
	CompiledExpect *regexp.Regexp `yaml:"-" json:"-"`

	// Response is the text to send once Expect has matched.
	Response string `yaml:"response" json:"response"`

	// Action defines how to send the response (default: ActionSend).
	Action Action `yaml:"action" json:"action"`

	// Masked keeps the response out of logs and recordings.
	Masked bool `yaml:"masked" json:"masked"`

	// Delay is a pause after the response has been sent.
	Delay time.Duration `yaml:"delay" json:"delay"`
}

// Script defines an ordered conversation with a device.
type Script struct {
	// Name is the script identifier.
	Name string `yaml:"name" json:"name"`

	// Description explains what this script does.
	Description string `yaml:"description" json:"description"`

	// Steps are the expect steps to execute in order.
	Steps []Step `yaml:"steps" json:"steps"`
}

// Compile compiles all regex patterns in the script.
func (s *Script) Compile() error {
	for i := range s.Steps {
		if s.Steps[i].Expect == "" {
			s.Steps[i].CompiledExpect = nil
			continue
		}
		re, err := regexp.Compile(s.Steps[i].Expect)
		if err != nil {
			return fmt.Errorf("step %q: %w", s.Steps[i].Name, err)
		}
		s.Steps[i].CompiledExpect = re
	}
	return nil
}

// Parse decodes and compiles a list of scripts from YAML.
func Parse(data []byte) ([]*Script, error) {
	var scripts []*Script
	if err := yaml.Unmarshal(data, &scripts); err != nil {
		return nil, fmt.Errorf("parse scripts: %w", err)
	}
	for _, s := range scripts {
		if err := s.Compile(); err != nil {
			return nil, fmt.Errorf("script %q: %w", s.Name, err)
		}
	}
	return scripts, nil
}
