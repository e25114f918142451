// Package recovery recognizes CLI error messages in device output and
// suggests what to try next.
package recovery

import (
	"regexp"
	"sort"
)

// Suggestion represents a recovery suggestion for an error.
type Suggestion struct {
	Error       string   `json:"error"`              // Description of the detected error
	Category    string   `json:"category"`           // syntax, privilege, paging, network
	Commands    []string `json:"commands,omitempty"` // Suggested follow-up commands
	Explanation string   `json:"explanation"`
	Confidence  float64  `json:"confidence"`
	Risky       bool     `json:"risky,omitempty"` // If true, review before running
}

// Analyzer detects device CLI errors and suggests recovery actions.
type Analyzer struct {
	rules []recoveryRule
}

type recoveryRule struct {
	name    string
	pattern *regexp.Regexp
	suggest func(command string, matches []string) *Suggestion
}

// NewAnalyzer creates a new error analyzer with default rules.
func NewAnalyzer() *Analyzer {
	return &Analyzer{rules: defaultRules()}
}

// Analyze examines the output of command and returns suggestions, most
// confident first. Clean output yields nil.
func (a *Analyzer) Analyze(command, output string) []*Suggestion {
	var suggestions []*Suggestion
	for _, rule := range a.rules {
		if matches := rule.pattern.FindStringSubmatch(output); matches != nil {
			if s := rule.suggest(command, matches); s != nil {
				suggestions = append(suggestions, s)
			}
		}
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].Confidence > suggestions[j].Confidence
	})
	return suggestions
}

func defaultRules() []recoveryRule {
	return []recoveryRule{
		// IOS, NX-OS, EOS
		{
			name:    "invalid_input",
			pattern: regexp.MustCompile(`% Invalid (input|command) detected`),
			suggest: func(command string, _ []string) *Suggestion {
				return &Suggestion{
					Error:       "Invalid input",
					Category:    "syntax",
					Commands:    []string{firstWord(command) + " ?"},
					Explanation: "The device did not accept the command at the '^' marker. List the valid keywords with '?'.",
					Confidence:  0.8,
				}
			},
		},
		{
			name:    "incomplete",
			pattern: regexp.MustCompile(`% Incomplete command`),
			suggest: func(command string, _ []string) *Suggestion {
				return &Suggestion{
					Error:       "Incomplete command",
					Category:    "syntax",
					Commands:    []string{command + " ?"},
					Explanation: "The command needs more arguments.",
					Confidence:  0.85,
				}
			},
		},
		{
			name:    "ambiguous",
			pattern: regexp.MustCompile(`% Ambiguous command:\s*"?([^"\r\n]*)"?`),
			suggest: func(_ string, m []string) *Suggestion {
				return &Suggestion{
					Error:       "Ambiguous command: " + m[1],
					Category:    "syntax",
					Commands:    []string{m[1] + "?"},
					Explanation: "The abbreviation matches more than one keyword. Spell it out further.",
					Confidence:  0.85,
				}
			},
		},
		{
			name:    "unknown_command",
			pattern: regexp.MustCompile(`(?i)% ?Unknown command`),
			suggest: func(command string, _ []string) *Suggestion {
				return &Suggestion{
					Error:       "Unknown command: " + firstWord(command),
					Category:    "syntax",
					Commands:    []string{"?"},
					Explanation: "The command does not exist in this mode or on this platform.",
					Confidence:  0.7,
				}
			},
		},
		{
			name:    "privilege",
			pattern: regexp.MustCompile(`(?i)(% Authorization failed|% Access denied|insufficient privilege|permission denied)`),
			suggest: func(_ string, _ []string) *Suggestion {
				return &Suggestion{
					Error:       "Insufficient privilege",
					Category:    "privilege",
					Commands:    []string{"enable"},
					Explanation: "The command needs a higher privilege level. Entering enable mode asks for the enable secret.",
					Confidence:  0.75,
					Risky:       true,
				}
			},
		},

		// Junos
		{
			name:    "junos_syntax",
			pattern: regexp.MustCompile(`(?m)^\s*(syntax error|unknown command)\.?\s*$`),
			suggest: func(command string, _ []string) *Suggestion {
				return &Suggestion{
					Error:       "Syntax error",
					Category:    "syntax",
					Commands:    []string{"help apropos " + firstWord(command)},
					Explanation: "Junos rejected the command. Search the help for the keyword.",
					Confidence:  0.75,
				}
			},
		},

		// Paging left on
		{
			name:    "pager",
			pattern: regexp.MustCompile(`(?i)--\s*More\s*--|---\(more( \d+%)?\)---`),
			suggest: func(_ string, _ []string) *Suggestion {
				return &Suggestion{
					Error:       "Output paused by pager",
					Category:    "paging",
					Commands:    []string{"terminal length 0", "set cli screen-length 0", "screen-length 0 temporary"},
					Explanation: "The device paginates output. Disable paging for the session and rerun the command.",
					Confidence:  0.9,
				}
			},
		},

		// Unix hosts
		{
			name:    "command_not_found",
			pattern: regexp.MustCompile(`(\S+): (command )?not found`),
			suggest: func(_ string, m []string) *Suggestion {
				return &Suggestion{
					Error:       "Command not found: " + m[1],
					Category:    "syntax",
					Commands:    []string{"which " + m[1], "echo $PATH"},
					Explanation: "The shell could not find the program.",
					Confidence:  0.7,
				}
			},
		},

		// Reverse telnet and jump hosts
		{
			name:    "connection_refused",
			pattern: regexp.MustCompile(`(?i)(% Connection refused by remote host|connection refused)`),
			suggest: func(_ string, _ []string) *Suggestion {
				return &Suggestion{
					Error:       "Connection refused",
					Category:    "network",
					Commands:    []string{"ping <host>", "show line"},
					Explanation: "The next hop refused the connection. Check the address and that the line or service is free.",
					Confidence:  0.6,
				}
			},
		},
	}
}

func firstWord(command string) string {
	for i, r := range command {
		if r == ' ' || r == '\t' {
			return command[:i]
		}
	}
	return command
}
