// Package config handles configuration parsing for telnet-shell-mcp.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/acolita/telnet-shell-mcp/internal/expect"
	"github.com/acolita/telnet-shell-mcp/internal/ports"
	"github.com/acolita/telnet-shell-mcp/internal/profile"
	"github.com/acolita/telnet-shell-mcp/internal/telnet"
)

// DefaultConfigPath returns the default config file path:
// $XDG_CONFIG_HOME/telnet-shell-mcp/config.yaml or ~/.config/telnet-shell-mcp/config.yaml
func DefaultConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "telnet-shell-mcp", "config.yaml")
}

// Config represents the top-level configuration.
type Config struct {
	Telnet       TelnetConfig     `yaml:"telnet"`
	Devices      []DeviceConfig   `yaml:"devices"`
	Profiles     []ProfileConfig  `yaml:"profiles"`
	ProfileRules []RuleConfig     `yaml:"profile_rules"`
	Scripts      []*expect.Script `yaml:"scripts"`
	Security     SecurityConfig   `yaml:"security"`
	Logging      LoggingConfig    `yaml:"logging"`
	Recording    RecordingConfig  `yaml:"recording"`
}

// TelnetConfig holds the session defaults.
type TelnetConfig struct {
	Port           int           `yaml:"port"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	CommandTimeout time.Duration `yaml:"command_timeout"` // defaults to connect_timeout
	StreamTimeout  time.Duration `yaml:"stream_timeout"`
	EOL            string        `yaml:"eol"`
	StripPrompt    bool          `yaml:"strip_prompt"`
	Charset        string        `yaml:"charset"` // IANA name, empty for raw bytes
}

// DeviceConfig names a device so tools can refer to it.
type DeviceConfig struct {
	Name        string `yaml:"name"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port,omitempty"`
	Profile     string `yaml:"profile,omitempty"`
	User        string `yaml:"user,omitempty"`
	PasswordEnv string `yaml:"password_env,omitempty"` // env var containing the login password
	Charset     string `yaml:"charset,omitempty"`
	EOL         string `yaml:"eol,omitempty"`
}

// ProfileConfig defines a custom host profile.
type ProfileConfig struct {
	Name           string        `yaml:"name"`
	UsernamePrompt string        `yaml:"username_prompt"`
	PasswordPrompt string        `yaml:"password_prompt"`
	PromptRegex    string        `yaml:"prompt_regex"`
	Delay          time.Duration `yaml:"delay,omitempty"`
	Setup          []string      `yaml:"setup,omitempty"`
}

// RuleConfig maps a host glob to a profile.
type RuleConfig struct {
	Pattern string `yaml:"pattern"`
	Profile string `yaml:"profile"`
}

// SecurityConfig defines security settings.
type SecurityConfig struct {
	MaxSessions         int           `yaml:"max_sessions"`
	CommandBlocklist    []string      `yaml:"command_blocklist"`     // Regex patterns for blocked commands
	CommandAllowlist    []string      `yaml:"command_allowlist"`     // If set, only these patterns allowed
	DefaultBlocklist    bool          `yaml:"default_blocklist"`     // Block destructive device commands
	MaxAuthFailures     int           `yaml:"max_auth_failures"`     // Max failed logins before lockout
	AuthLockoutDuration time.Duration `yaml:"auth_lockout_duration"` // Duration of login lockout
	UseKeyring          bool          `yaml:"use_keyring"`           // Use OS keyring for device passwords
}

// LoggingConfig defines logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level"`    // "debug", "info", "warn", "error"
	Sanitize bool   `yaml:"sanitize"` // sanitize sensitive data from logs
}

// RecordingConfig defines session recording settings.
type RecordingConfig struct {
	Enabled bool   `yaml:"enabled"` // enable session recording
	Path    string `yaml:"path"`    // directory to store recordings, default under the temp dir
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Telnet: TelnetConfig{
			Port:           23,
			ConnectTimeout: 10 * time.Second,
			StreamTimeout:  time.Second,
			EOL:            "\r\n",
			StripPrompt:    true,
		},
		Security: SecurityConfig{
			MaxSessions:         10,
			DefaultBlocklist:    true,
			MaxAuthFailures:     5,
			AuthLockoutDuration: 15 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Sanitize: true,
		},
	}
}

// Load loads configuration from a YAML file.
// An optional FileSystem can be passed for testing; if omitted, the real OS is used.
func Load(path string, fsys ...ports.FileSystem) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	var data []byte
	var err error
	if len(fsys) > 0 && fsys[0] != nil {
		data, err = fsys[0].ReadFile(path)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		if os.IsNotExist(err) {
			// A missing file means defaults; AddDevice and Save create it.
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration and fills in derived defaults.
func (c *Config) Validate() error {
	if c.Security.MaxSessions <= 0 {
		c.Security.MaxSessions = 10
	}
	if c.Telnet.Port == 0 {
		c.Telnet.Port = 23
	}
	if c.Telnet.ConnectTimeout <= 0 || c.Telnet.StreamTimeout <= 0 || c.Telnet.CommandTimeout < 0 {
		return fmt.Errorf("%w: telnet timeouts must be positive", telnet.ErrConfiguration)
	}
	if c.Telnet.CommandTimeout == 0 {
		c.Telnet.CommandTimeout = c.Telnet.ConnectTimeout
	}

	catalog, err := c.Catalog()
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(c.Devices))
	for _, d := range c.Devices {
		if d.Name == "" || d.Host == "" {
			return fmt.Errorf("%w: device needs a name and a host", telnet.ErrConfiguration)
		}
		if seen[d.Name] {
			return fmt.Errorf("%w: duplicate device %q", telnet.ErrConfiguration, d.Name)
		}
		seen[d.Name] = true

		if d.Profile != "" {
			if _, err := catalog.Lookup(d.Profile); err != nil {
				return fmt.Errorf("device %q: %w", d.Name, err)
			}
		}
	}

	for _, pattern := range append(append([]string(nil), c.Security.CommandBlocklist...), c.Security.CommandAllowlist...) {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("%w: command pattern %q: %v", telnet.ErrConfiguration, pattern, err)
		}
	}

	for _, s := range c.Scripts {
		if s == nil || s.Name == "" {
			return fmt.Errorf("%w: script has no name", telnet.ErrConfiguration)
		}
		if err := s.Compile(); err != nil {
			return fmt.Errorf("%w: script %q: %v", telnet.ErrConfiguration, s.Name, err)
		}
	}

	return nil
}

// Catalog builds the profile catalog: the built-in profiles, the custom
// ones and the host rules.
func (c *Config) Catalog() (*profile.Catalog, error) {
	catalog := profile.NewCatalog()

	for _, p := range c.Profiles {
		if err := catalog.Add(profile.Profile{
			Name:           p.Name,
			UsernamePrompt: p.UsernamePrompt,
			PasswordPrompt: p.PasswordPrompt,
			PromptRegex:    p.PromptRegex,
			Delay:          p.Delay,
			Setup:          p.Setup,
		}); err != nil {
			return nil, err
		}
	}

	for _, r := range c.ProfileRules {
		if err := catalog.AddRule(r.Pattern, r.Profile); err != nil {
			return nil, err
		}
	}

	return catalog, nil
}

// Device returns the device with the given name.
func (c *Config) Device(name string) (DeviceConfig, bool) {
	for _, d := range c.Devices {
		if d.Name == name {
			return d, true
		}
	}
	return DeviceConfig{}, false
}

// Script returns the script with the given name.
func (c *Config) Script(name string) (*expect.Script, bool) {
	for _, s := range c.Scripts {
		if s != nil && s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// AddDevice adds a device to the configuration.
// Returns an error if a device with the same name already exists.
func (c *Config) AddDevice(device DeviceConfig) error {
	if _, ok := c.Device(device.Name); ok {
		return fmt.Errorf("device %q already exists", device.Name)
	}
	c.Devices = append(c.Devices, device)
	return nil
}

// Save writes the configuration to a YAML file.
// An optional FileSystem can be passed for testing; if omitted, the real OS is used.
func Save(cfg *Config, path string, fsys ...ports.FileSystem) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if len(fsys) > 0 && fsys[0] != nil {
		if err := fsys[0].MkdirAll(filepath.Dir(path), 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
		return fsys[0].WriteFile(path, data, 0644)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
