package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/acolita/telnet-shell-mcp/internal/adapters/realprompter"
	"github.com/acolita/telnet-shell-mcp/internal/config"
	"github.com/acolita/telnet-shell-mcp/internal/logging"
	"github.com/acolita/telnet-shell-mcp/internal/ports"
	"github.com/acolita/telnet-shell-mcp/internal/security"
)

// keyringStore is the keyring surface telnetctl uses.
type keyringStore interface {
	IsEnabled() bool
	StoreDevicePassword(host, user string, password []byte) error
	GetDevicePassword(host, user string) ([]byte, error)
	DeleteDevicePassword(host, user string) error
}

// deps are created lazily so tests can replace them.
var deps struct {
	keyring  keyringStore
	prompter ports.PasswordPrompter
	getenv   func(string) string
}

var (
	configPath string
	logLevel   string
	accessible bool
)

var rootCmd = &cobra.Command{
	Use:          "telnetctl",
	Short:        "drive telnet devices from the command line",
	Long:         `telnetctl logs in to telnet devices with host profiles and runs commands on them.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		slog.SetDefault(logging.New(cmd.ErrOrStderr(), logLevel, true))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultConfigPath(), "configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&accessible, "accessible", false, "plain prompts instead of the TUI")
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func keyring() keyringStore {
	if deps.keyring == nil {
		deps.keyring = security.NewKeyringStore()
	}
	return deps.keyring
}

func prompter() ports.PasswordPrompter {
	if deps.prompter == nil {
		deps.prompter = realprompter.New(accessible)
	}
	return deps.prompter
}

func getenv(key string) string {
	if deps.getenv != nil {
		return deps.getenv(key)
	}
	return os.Getenv(key)
}

// target resolves a device name or a bare host against the config.
func target(cfg *config.Config, arg string, port int, user string) config.DeviceConfig {
	device, ok := cfg.Device(arg)
	if !ok {
		device = config.DeviceConfig{Name: arg, Host: arg}
	}
	if port != 0 {
		device.Port = port
	}
	if user != "" {
		device.User = user
	}
	return device
}

// password finds the login password: the device's env variable, then the
// keyring, then an interactive prompt.
func password(device config.DeviceConfig) ([]byte, error) {
	if device.PasswordEnv != "" {
		if v := getenv(device.PasswordEnv); v != "" {
			return []byte(v), nil
		}
	}

	ks := keyring()
	if ks.IsEnabled() {
		pw, err := ks.GetDevicePassword(device.Host, device.User)
		if err != nil {
			slog.Debug("keyring lookup failed", slog.String("error", err.Error()))
		} else if pw != nil {
			return pw, nil
		}
	}

	pw, err := prompter().Password(
		fmt.Sprintf("Password for %s", security.Account(device.Host, device.User)),
		"",
	)
	if err != nil {
		return nil, err
	}
	return []byte(pw), nil
}
