package profile

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/acolita/telnet-shell-mcp/internal/telnet"
)

// Rule assigns a profile to every host whose name matches Pattern.
type Rule struct {
	Pattern string
	Profile string
}

// Catalog is the set of known profiles plus host-matching rules.
// Custom profiles take precedence over built-ins of the same name.
type Catalog struct {
	mu       sync.RWMutex
	builtin  map[string]Profile
	custom   map[string]Profile
	rules    []Rule
	fallback string
}

// NewCatalog creates a catalog holding the built-in profiles.
func NewCatalog() *Catalog {
	return &Catalog{
		builtin:  Builtin(),
		custom:   make(map[string]Profile),
		fallback: Default,
	}
}

// Add registers a custom profile.
func (c *Catalog) Add(p Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.custom[p.Name] = p
	return nil
}

// Lookup returns the named profile.
func (c *Catalog) Lookup(name string) (Profile, error) {
	if name == "" {
		name = Default
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if p, ok := c.custom[name]; ok {
		return p, nil
	}
	if p, ok := c.builtin[name]; ok {
		return p, nil
	}
	return Profile{}, fmt.Errorf("%w: unknown host profile %q", telnet.ErrConfiguration, name)
}

// Names returns every known profile name, sorted.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	seen := make(map[string]bool, len(c.builtin)+len(c.custom))
	for name := range c.builtin {
		seen[name] = true
	}
	for name := range c.custom {
		seen[name] = true
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddRule appends a host rule. Rules are tried in the order they were added.
func (c *Catalog) AddRule(pattern, profileName string) error {
	if !doublestar.ValidatePattern(pattern) {
		return fmt.Errorf("%w: invalid host pattern %q", telnet.ErrConfiguration, pattern)
	}
	if _, err := c.Lookup(profileName); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rules = append(c.rules, Rule{Pattern: strings.ToLower(pattern), Profile: profileName})
	return nil
}

// ForHost returns the profile name of the first rule matching host, or
// the default profile. Host names match case-insensitively.
func (c *Catalog) ForHost(host string) string {
	host = strings.ToLower(host)

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, r := range c.rules {
		if ok, _ := doublestar.Match(r.Pattern, host); ok {
			return r.Profile
		}
	}
	return c.fallback
}
