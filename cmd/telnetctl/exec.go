package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/acolita/telnet-shell-mcp/internal/config"
	"github.com/acolita/telnet-shell-mcp/internal/recovery"
	"github.com/acolita/telnet-shell-mcp/internal/security"
	"github.com/acolita/telnet-shell-mcp/internal/session"
)

var (
	execPort    int
	execUser    string
	execProfile string
	execFile    string
	execRaw     bool
)

var execCmd = &cobra.Command{
	Use:   "exec <device|host> [command...]",
	Short: "log in and run commands",
	Long: `exec logs in to a device and runs each command in turn, printing its
output. Commands can also be read from a file, one per line.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		commands := args[1:]
		if execFile != "" {
			more, err := readCommands(execFile)
			if err != nil {
				return err
			}
			commands = append(commands, more...)
		}

		sess, err := loginTo(cmd.Context(), args[0], execPort, execUser, execProfile)
		if err != nil {
			return err
		}
		defer sess.Close()

		out := cmd.OutOrStdout()
		analyzer := recovery.NewAnalyzer()
		for _, c := range commands {
			output, err := sess.Exec(c, true)
			if err != nil {
				return fmt.Errorf("%s: %w", c, err)
			}
			if execRaw {
				out.Write(sess.RawBuffer())
			} else {
				fmt.Fprintln(out, output)
			}
			printHints(cmd.ErrOrStderr(), analyzer.Analyze(c, output))
		}
		return nil
	},
}

var loginTestCmd = &cobra.Command{
	Use:   "login-test <device|host>",
	Short: "check that a device accepts the configured login",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := loginTo(cmd.Context(), args[0], execPort, execUser, execProfile)
		if err != nil {
			return err
		}
		defer sess.Close()

		st := sess.Status()
		fmt.Fprintf(cmd.OutOrStdout(), "ok: %s:%d profile=%s prompt=%q\n", st.Host, st.Port, st.Profile, st.Prompt)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{execCmd, loginTestCmd} {
		c.Flags().IntVarP(&execPort, "port", "p", 0, "TCP port (default from config)")
		c.Flags().StringVarP(&execUser, "user", "u", "", "login name (default: the device's user)")
		c.Flags().StringVar(&execProfile, "profile", "", "host profile (default: the device's or chosen by host rules)")
		rootCmd.AddCommand(c)
	}
	execCmd.Flags().StringVarP(&execFile, "file", "f", "", "read commands from file, one per line")
	execCmd.Flags().BoolVar(&execRaw, "raw", false, "print raw device output including the prompt")
}

func printHints(w io.Writer, suggestions []*recovery.Suggestion) {
	for _, sg := range suggestions {
		fmt.Fprintf(w, "hint: %s. %s\n", sg.Error, sg.Explanation)
		for _, c := range sg.Commands {
			fmt.Fprintf(w, "  try: %s\n", c)
		}
	}
}

func readCommands(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseCommands(f)
}

// parseCommands returns the non-blank lines of r. Lines starting with #
// are comments.
func parseCommands(r io.Reader) ([]string, error) {
	var commands []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		commands = append(commands, line)
	}
	return commands, sc.Err()
}

func loginTo(ctx context.Context, arg string, port int, user, profileName string) (*session.Session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	device := target(cfg, arg, port, user)
	if device.User == "" {
		return nil, fmt.Errorf("no user for %s: pass --user", arg)
	}
	if profileName != "" {
		device.Profile = profileName
	}

	sess, err := openSession(ctx, cfg, device)
	if err != nil {
		return nil, err
	}

	pw, err := password(device)
	if err != nil {
		sess.Close()
		return nil, err
	}
	defer security.WipeBytes(pw)

	if err := sess.Login(device.User, string(pw), device.Profile); err != nil {
		sess.Close()
		return nil, err
	}
	return sess, nil
}

func openSession(ctx context.Context, cfg *config.Config, device config.DeviceConfig) (*session.Session, error) {
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}
	policy, err := security.NewCommandFilter(commandBlocklist(cfg), cfg.Security.CommandAllowlist)
	if err != nil {
		return nil, err
	}

	opts := session.Options{
		ID:             "cli",
		Host:           device.Host,
		Port:           cfg.Telnet.Port,
		ConnectTimeout: cfg.Telnet.ConnectTimeout,
		CommandTimeout: cfg.Telnet.CommandTimeout,
		StreamTimeout:  cfg.Telnet.StreamTimeout,
		EOL:            cfg.Telnet.EOL,
		KeepPrompt:     !cfg.Telnet.StripPrompt,
		Charset:        cfg.Telnet.Charset,
		Catalog:        catalog,
		Policy:         policy,
	}
	if device.Port != 0 {
		opts.Port = device.Port
	}
	if device.EOL != "" {
		opts.EOL = device.EOL
	}
	if device.Charset != "" {
		opts.Charset = device.Charset
	}

	sess, err := session.New(opts)
	if err != nil {
		return nil, err
	}
	if err := sess.Connect(ctx); err != nil {
		sess.Close()
		return nil, err
	}
	return sess, nil
}

func commandBlocklist(cfg *config.Config) []string {
	var patterns []string
	if cfg.Security.DefaultBlocklist {
		patterns = append(patterns, security.DefaultBlocklist()...)
	}
	return append(patterns, cfg.Security.CommandBlocklist...)
}
