package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/acolita/telnet-shell-mcp/internal/config"
	"github.com/acolita/telnet-shell-mcp/internal/testing/fakes/fakeprompter"
	"github.com/acolita/telnet-shell-mcp/internal/testing/mocktelnet"
)

type memKeyring struct {
	enabled   bool
	passwords map[string]string
}

func (k *memKeyring) IsEnabled() bool { return k.enabled }

func (k *memKeyring) StoreDevicePassword(host, user string, password []byte) error {
	k.passwords[user+"@"+host] = string(password)
	return nil
}

func (k *memKeyring) GetDevicePassword(host, user string) ([]byte, error) {
	if pw, ok := k.passwords[user+"@"+host]; ok {
		return []byte(pw), nil
	}
	return nil, nil
}

func (k *memKeyring) DeleteDevicePassword(host, user string) error {
	delete(k.passwords, user+"@"+host)
	return nil
}

// setup writes a config naming the mock device and installs fakes.
func setup(t *testing.T, server *mocktelnet.Server) (*memKeyring, *fakeprompter.Prompter) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Telnet.ConnectTimeout = 2 * time.Second
	cfg.Telnet.StreamTimeout = 300 * time.Millisecond
	if server != nil {
		cfg.Devices = []config.DeviceConfig{{
			Name:        "core-1",
			Host:        server.Host(),
			Port:        server.Port(),
			Profile:     "ios",
			User:        "admin",
			PasswordEnv: "CORE1_PASSWORD",
		}}
	}
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := config.Save(cfg, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	kr := &memKeyring{enabled: true, passwords: map[string]string{}}
	pr := fakeprompter.New("secret")
	deps.keyring = kr
	deps.prompter = pr
	deps.getenv = func(string) string { return "" }

	configPath = path
	execPort, execUser, execProfile, execFile, execRaw = 0, "", "", "", false
	passwordUser, passwordYes = "", false

	t.Cleanup(func() {
		deps.keyring, deps.prompter, deps.getenv = nil, nil, nil
	})
	return kr, pr
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&logs)
	rootCmd.SetArgs(append([]string{"--config", configPath}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func startDevice(t *testing.T) *mocktelnet.Server {
	t.Helper()
	server, err := mocktelnet.New(
		mocktelnet.WithLogin("Username: ", "Password: "),
		mocktelnet.WithUser("admin", "secret"),
		mocktelnet.WithReply("show clock", "12:00:00 UTC\r\n"),
		mocktelnet.WithReply("show users", "admin vty0\r\n"),
	)
	if err != nil {
		t.Fatalf("mocktelnet.New() error = %v", err)
	}
	t.Cleanup(func() { server.Close() })
	return server
}

func TestExec(t *testing.T) {
	server := startDevice(t)
	_, pr := setup(t, server)

	out, err := run(t, "exec", "core-1", "show clock", "show users")
	if err != nil {
		t.Fatalf("exec error = %v (%s)", err, out)
	}
	if out != "show clock\n12:00:00 UTC\nshow users\nadmin vty0\n" {
		t.Errorf("output = %q", out)
	}
	if len(pr.Titles()) != 1 {
		t.Errorf("prompted %d times, want once", len(pr.Titles()))
	}
}

func TestExec_PasswordSources(t *testing.T) {
	server := startDevice(t)

	t.Run("env", func(t *testing.T) {
		_, pr := setup(t, server)
		deps.getenv = func(key string) string {
			if key == "CORE1_PASSWORD" {
				return "secret"
			}
			return ""
		}
		if out, err := run(t, "login-test", "core-1"); err != nil || !strings.HasPrefix(out, "ok: ") {
			t.Fatalf("login-test = %q, %v", out, err)
		}
		if len(pr.Titles()) != 0 {
			t.Error("prompted despite env password")
		}
	})

	t.Run("keyring", func(t *testing.T) {
		kr, pr := setup(t, server)
		kr.passwords["admin@"+server.Host()] = "secret"
		pr.Err = errors.New("must not prompt")
		if out, err := run(t, "login-test", "core-1"); err != nil {
			t.Fatalf("login-test = %q, %v", out, err)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, pr := setup(t, server)
		pr.Answer = "wrong"
		if _, err := run(t, "login-test", "core-1"); err == nil {
			t.Fatal("login-test with a wrong password should fail")
		}
	})
}

func TestExec_Hints(t *testing.T) {
	server := startDevice(t)
	setup(t, server)

	var out, stderr bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{"--config", configPath, "exec", "core-1", "show clokc"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("exec error = %v", err)
	}
	if !strings.Contains(out.String(), "% Unknown command: show clokc") {
		t.Errorf("output = %q", out.String())
	}
	if !strings.Contains(stderr.String(), "hint: Unknown command: show") {
		t.Errorf("stderr = %q, want a hint", stderr.String())
	}
}

func TestExec_Blocked(t *testing.T) {
	server := startDevice(t)
	setup(t, server)

	if _, err := run(t, "exec", "core-1", "reload"); err == nil || !strings.Contains(err.Error(), "blocked") {
		t.Fatalf("expected blocked error, got %v", err)
	}
}

func TestExec_NoUser(t *testing.T) {
	setup(t, nil)
	if _, err := run(t, "exec", "10.0.0.1", "show clock"); err == nil || !strings.Contains(err.Error(), "--user") {
		t.Fatalf("expected missing user error, got %v", err)
	}
}

func TestProfiles(t *testing.T) {
	server := startDevice(t)
	setup(t, server)

	out, err := run(t, "profiles")
	if err != nil {
		t.Fatalf("profiles error = %v", err)
	}
	for _, want := range []string{"PROFILE", "ios", "junos", "linux", "DEVICE", "core-1"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPasswordSetDelete(t *testing.T) {
	kr, pr := setup(t, nil)
	pr.Answer = "hunter2"

	out, err := run(t, "password", "set", "10.0.0.1", "--user", "ops")
	if err != nil {
		t.Fatalf("password set error = %v", err)
	}
	if !strings.Contains(out, "ops@10.0.0.1") || kr.passwords["ops@10.0.0.1"] != "hunter2" {
		t.Errorf("set: out=%q keyring=%v", out, kr.passwords)
	}

	pr.Confirmed = false
	out, _ = run(t, "password", "delete", "10.0.0.1", "--user", "ops")
	if !strings.Contains(out, "cancelled") || kr.passwords["ops@10.0.0.1"] == "" {
		t.Errorf("declined delete removed the password: %q", out)
	}

	if _, err := run(t, "password", "delete", "10.0.0.1", "--user", "ops", "--yes"); err != nil {
		t.Fatalf("password delete error = %v", err)
	}
	if _, ok := kr.passwords["ops@10.0.0.1"]; ok {
		t.Error("password survived delete")
	}
}

func TestPasswordSet_KeyringUnavailable(t *testing.T) {
	kr, _ := setup(t, nil)
	kr.enabled = false

	if _, err := run(t, "password", "set", "h", "--user", "u"); err == nil {
		t.Fatal("expected keyring error")
	}
}

func TestParseCommands(t *testing.T) {
	in := "show clock\n\n  # comment\n  show users  \n"
	got, err := parseCommands(strings.NewReader(in))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != "show clock" || got[1] != "show users" {
		t.Errorf("parseCommands() = %q", got)
	}
}
