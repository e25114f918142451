// Package security provides command filtering, credential storage and
// login throttling for telnet sessions.
package security

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// CommandFilter filters commands based on blocklist/allowlist patterns.
// It satisfies session.CommandPolicy.
type CommandFilter struct {
	mu        sync.RWMutex
	blocklist []*regexp.Regexp
	allowlist []*regexp.Regexp
}

// NewCommandFilter creates a new command filter with the given patterns.
func NewCommandFilter(blocklist, allowlist []string) (*CommandFilter, error) {
	cf := &CommandFilter{}
	if err := cf.Update(blocklist, allowlist); err != nil {
		return nil, err
	}
	return cf, nil
}

// Update replaces both pattern lists. On error the filter is unchanged.
func (cf *CommandFilter) Update(blocklist, allowlist []string) error {
	block, err := compileAll("blocklist", blocklist)
	if err != nil {
		return err
	}
	allow, err := compileAll("allowlist", allowlist)
	if err != nil {
		return err
	}

	cf.mu.Lock()
	cf.blocklist = block
	cf.allowlist = allow
	cf.mu.Unlock()
	return nil
}

func compileAll(kind string, patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, pattern := range patterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid %s pattern %q: %w", kind, pattern, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// IsAllowed checks if a command is allowed to execute.
// Returns (allowed, reason).
func (cf *CommandFilter) IsAllowed(command string) (bool, string) {
	cf.mu.RLock()
	defer cf.mu.RUnlock()

	command = strings.TrimSpace(command)

	// Blocklist wins over allowlist
	for _, re := range cf.blocklist {
		if re.MatchString(command) {
			return false, fmt.Sprintf("command blocked by pattern: %s", re.String())
		}
	}

	if len(cf.allowlist) > 0 {
		for _, re := range cf.allowlist {
			if re.MatchString(command) {
				return true, ""
			}
		}
		return false, "command not in allowlist"
	}

	return true, ""
}

// HasBlocklist returns true if any blocklist patterns are configured.
func (cf *CommandFilter) HasBlocklist() bool {
	cf.mu.RLock()
	defer cf.mu.RUnlock()
	return len(cf.blocklist) > 0
}

// HasAllowlist returns true if any allowlist patterns are configured.
func (cf *CommandFilter) HasAllowlist() bool {
	cf.mu.RLock()
	defer cf.mu.RUnlock()
	return len(cf.allowlist) > 0
}

// DefaultBlocklist returns patterns for commands that reboot, wipe or
// reformat a network device or host.
func DefaultBlocklist() []string {
	return []string{
		// IOS and NX-OS
		`(?i)^reload\b`,
		`(?i)^write\s+erase\b`,
		`(?i)^erase\s+(startup-config|nvram:)`,
		`(?i)^format\s+\S+:`,
		`(?i)^delete\s+/force\b`,
		// Junos
		`(?i)^request\s+system\s+(reboot|halt|power-off|zeroize)\b`,
		// unix hosts
		`(?i)^(reboot|shutdown|halt|poweroff)\b`,
		`rm\s+-rf\s+/\s*$`,
		`mkfs\.`,
	}
}
