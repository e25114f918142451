package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/acolita/telnet-shell-mcp/internal/config"
	"github.com/acolita/telnet-shell-mcp/internal/expect"
	"github.com/acolita/telnet-shell-mcp/internal/session"
	"github.com/acolita/telnet-shell-mcp/internal/testing/fakes/fakeclock"
	"github.com/acolita/telnet-shell-mcp/internal/testing/fakes/fakefs"
	"github.com/acolita/telnet-shell-mcp/internal/testing/fakes/fakesessionmgr"
	"github.com/acolita/telnet-shell-mcp/internal/testing/mocktelnet"
)

// --- Test helpers ---

type handler func(context.Context, mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error)

type fakeKeyring struct {
	passwords map[string]string
	err       error
	calls     int
}

func (k *fakeKeyring) GetDevicePassword(host, user string) ([]byte, error) {
	k.calls++
	if k.err != nil {
		return nil, k.err
	}
	if pw, ok := k.passwords[user+"@"+host]; ok {
		return []byte(pw), nil
	}
	return nil, nil
}

func startDevice(t *testing.T, opts ...mocktelnet.Option) *mocktelnet.Server {
	t.Helper()
	opts = append([]mocktelnet.Option{
		mocktelnet.WithLogin("Username: ", "Password: "),
		mocktelnet.WithUser("admin", "secret"),
		mocktelnet.WithReply("show clock", "12:00:00 UTC\r\n"),
	}, opts...)
	server, err := mocktelnet.New(opts...)
	if err != nil {
		t.Fatalf("mocktelnet.New() error = %v", err)
	}
	t.Cleanup(func() { server.Close() })
	return server
}

func testConfig(t *testing.T, server *mocktelnet.Server, configure func(*config.Config)) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Telnet.ConnectTimeout = 2 * time.Second
	cfg.Telnet.StreamTimeout = 300 * time.Millisecond
	cfg.Devices = []config.DeviceConfig{{
		Name:        "core-1",
		Host:        server.Host(),
		Port:        server.Port(),
		Profile:     "ios",
		User:        "admin",
		PasswordEnv: "CORE1_PASSWORD",
	}}
	cfg.Scripts = []*expect.Script{{
		Name: "clock",
		Steps: []expect.Step{
			{Name: "ask", Response: "show clock", Action: expect.ActionSend},
			{Name: "prompt", Expect: "router#", Action: expect.ActionNone},
		},
	}}
	if configure != nil {
		configure(cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config, opts ...ServerOption) (*Server, *fakefs.FS) {
	t.Helper()
	fs := fakefs.New()
	opts = append([]ServerOption{
		WithFileSystem(fs),
		WithClock(fakeclock.New(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))),
	}, opts...)
	srv, err := NewServer(cfg, opts...)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	t.Cleanup(func() { srv.Shutdown() })
	return srv, fs
}

func makeRequest(args map[string]any) mcpgo.CallToolRequest {
	return mcpgo.CallToolRequest{
		Params: mcpgo.CallToolParams{
			Arguments: args,
		},
	}
}

func resultText(result *mcpgo.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	tc, ok := mcpgo.AsTextContent(result.Content[0])
	if !ok {
		return ""
	}
	return tc.Text
}

func call(t *testing.T, h handler, args map[string]any) *mcpgo.CallToolResult {
	t.Helper()
	result, err := h(t.Context(), makeRequest(args))
	if err != nil {
		t.Fatalf("handler returned protocol error: %v", err)
	}
	return result
}

func callOK(t *testing.T, h handler, args map[string]any) map[string]any {
	t.Helper()
	result := call(t, h, args)
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(result))
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(resultText(result)), &m); err != nil {
		t.Fatalf("failed to parse result JSON: %v (text: %s)", err, resultText(result))
	}
	return m
}

func callErr(t *testing.T, h handler, args map[string]any, want string) {
	t.Helper()
	result := call(t, h, args)
	if !result.IsError {
		t.Fatalf("expected error result, got: %s", resultText(result))
	}
	if !strings.Contains(resultText(result), want) {
		t.Errorf("error = %q, want it to contain %q", resultText(result), want)
	}
}

func openDevice(t *testing.T, srv *Server) string {
	t.Helper()
	m := callOK(t, srv.handleSessionCreate, map[string]any{"device": "core-1"})
	return m["session_id"].(string)
}

// --- telnet_session_create ---

func TestSessionCreate_Validation(t *testing.T) {
	server := startDevice(t)
	srv, _ := newTestServer(t, testConfig(t, server, nil))

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"nothing given", map[string]any{}, "device or host is required"},
		{"unknown device", map[string]any{"device": "edge-9"}, "unknown device: edge-9"},
		{"bad eol", map[string]any{"host": "127.0.0.1", "eol": "crcr"}, "unknown eol"},
		{"bad charset", map[string]any{"host": "127.0.0.1", "charset": "klingon"}, "charset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			callErr(t, srv.handleSessionCreate, tt.args, tt.want)
		})
	}

	if n := len(srv.sessions.List()); n != 0 {
		t.Errorf("%d sessions left behind", n)
	}
}

func TestSessionCreate_ConnectFailureForgetsSession(t *testing.T) {
	server := startDevice(t)
	port := server.Port()
	server.Close()

	srv, _ := newTestServer(t, testConfig(t, server, nil))
	callErr(t, srv.handleSessionCreate, map[string]any{"host": "127.0.0.1", "port": port}, "")

	if n := len(srv.sessions.List()); n != 0 {
		t.Errorf("failed connect left %d sessions", n)
	}
}

// --- full flow ---

func TestWithSessionManager(t *testing.T) {
	server := startDevice(t)
	fake := fakesessionmgr.New()
	srv, _ := newTestServer(t, testConfig(t, server, nil), WithSessionManager(fake))

	fake.CreateFunc = func(session.CreateOptions) (*session.Session, error) {
		return nil, errors.New("max sessions reached (1)")
	}
	callErr(t, srv.handleSessionCreate, map[string]any{"device": "core-1"}, "max sessions reached")

	fake.CreateFunc = func(opts session.CreateOptions) (*session.Session, error) {
		return session.New(session.Options{ID: "tel_fake", Host: opts.Host, Port: opts.Port})
	}
	m := callOK(t, srv.handleSessionCreate, map[string]any{"device": "core-1"})
	if m["session_id"] != "tel_fake" {
		t.Errorf("session_id = %v", m["session_id"])
	}
	if m = callOK(t, srv.handleSessionList, map[string]any{}); m["count"] != float64(1) {
		t.Errorf("count = %v", m["count"])
	}

	fake.CloseAllErr = errors.New("close failed")
	if err := srv.Shutdown(); err == nil {
		t.Error("Shutdown() should report the close error")
	}
	if fake.CloseAllCalls() != 1 || !fake.WasClosed("tel_fake") {
		t.Errorf("CloseAll calls = %d, closed = %v", fake.CloseAllCalls(), fake.WasClosed("tel_fake"))
	}
	fake.CloseAllErr = nil
}

func TestLoginExecBufferClose(t *testing.T) {
	server := startDevice(t)
	srv, _ := newTestServer(t, testConfig(t, server, nil))

	id := openDevice(t, srv)

	m := callOK(t, srv.handleLogin, map[string]any{"session_id": id, "password": "secret"})
	if m["profile"] != "ios" || m["password_source"] != "argument" {
		t.Errorf("login result = %v", m)
	}

	m = callOK(t, srv.handleExec, map[string]any{"session_id": id, "command": "show clock"})
	if m["output"] != "show clock\n12:00:00 UTC" {
		t.Errorf("output = %q", m["output"])
	}

	buf := call(t, srv.handleBuffer, map[string]any{"session_id": id})
	if resultText(buf) != "show clock\n12:00:00 UTC" {
		t.Errorf("buffer = %q", resultText(buf))
	}

	global := resultText(call(t, srv.handleBuffer, map[string]any{"session_id": id, "global": true}))
	for _, want := range []string{"Username: ", "admin", "show clock", "12:00:00 UTC"} {
		if !strings.Contains(global, want) {
			t.Errorf("global buffer missing %q: %q", want, global)
		}
	}
	if strings.Contains(global, "secret") {
		t.Error("global buffer leaks the password")
	}

	list := callOK(t, srv.handleSessionList, nil)
	if list["count"] != float64(1) {
		t.Errorf("count = %v", list["count"])
	}

	if text := resultText(call(t, srv.handleSessionClose, map[string]any{"session_id": id})); text != "Session closed" {
		t.Errorf("close = %q", text)
	}
	callErr(t, srv.handleExec, map[string]any{"session_id": id, "command": "show clock"}, "not found")
}

// --- telnet_login ---

func TestLogin_PasswordSources(t *testing.T) {
	server := startDevice(t)

	t.Run("env", func(t *testing.T) {
		srv, fs := newTestServer(t, testConfig(t, server, nil))
		fs.SetEnv("CORE1_PASSWORD", "secret")

		m := callOK(t, srv.handleLogin, map[string]any{"session_id": openDevice(t, srv)})
		if m["password_source"] != "env" {
			t.Errorf("password_source = %v", m["password_source"])
		}

		// A second session reuses the password that just worked
		fs.SetEnv("CORE1_PASSWORD", "")
		m = callOK(t, srv.handleLogin, map[string]any{"session_id": openDevice(t, srv)})
		if m["password_source"] != "cache" {
			t.Errorf("password_source = %v", m["password_source"])
		}
	})

	t.Run("keyring", func(t *testing.T) {
		cfg := testConfig(t, server, func(c *config.Config) { c.Security.UseKeyring = true })
		kr := &fakeKeyring{passwords: map[string]string{"admin@" + server.Host(): "secret"}}
		srv, _ := newTestServer(t, cfg, WithKeyring(kr))

		m := callOK(t, srv.handleLogin, map[string]any{"session_id": openDevice(t, srv)})
		if m["password_source"] != "keyring" {
			t.Errorf("password_source = %v", m["password_source"])
		}
	})

	t.Run("keyring disabled in config", func(t *testing.T) {
		kr := &fakeKeyring{passwords: map[string]string{"admin@" + server.Host(): "secret"}}
		srv, _ := newTestServer(t, testConfig(t, server, nil), WithKeyring(kr))

		callErr(t, srv.handleLogin, map[string]any{"session_id": openDevice(t, srv)}, "no password available for admin@")
		if kr.calls != 0 {
			t.Errorf("keyring consulted %d times", kr.calls)
		}
	})

	t.Run("keyring error", func(t *testing.T) {
		cfg := testConfig(t, server, func(c *config.Config) { c.Security.UseKeyring = true })
		srv, _ := newTestServer(t, cfg, WithKeyring(&fakeKeyring{err: errors.New("locked")}))

		callErr(t, srv.handleLogin, map[string]any{"session_id": openDevice(t, srv)}, "no password available")
	})
}

func TestLogin_Validation(t *testing.T) {
	server := startDevice(t)
	srv, _ := newTestServer(t, testConfig(t, server, nil))

	callErr(t, srv.handleLogin, map[string]any{}, errSessionIDRequired)
	callErr(t, srv.handleLogin, map[string]any{"session_id": "tel_missing"}, "session not found")

	// Ad-hoc hosts have no default user
	m := callOK(t, srv.handleSessionCreate, map[string]any{"host": server.Host(), "port": server.Port()})
	callErr(t, srv.handleLogin, map[string]any{"session_id": m["session_id"]}, "user is required")

	callErr(t, srv.handleLogin, map[string]any{
		"session_id": openDevice(t, srv),
		"password":   "secret",
		"profile":    "no-such-profile",
	}, "no-such-profile")
}

func TestLogin_RateLimited(t *testing.T) {
	server := startDevice(t)
	cfg := testConfig(t, server, func(c *config.Config) { c.Security.MaxAuthFailures = 1 })
	srv, _ := newTestServer(t, cfg)

	callErr(t, srv.handleLogin, map[string]any{"session_id": openDevice(t, srv), "password": "wrong"}, `step "prompt"`)

	callErr(t, srv.handleLogin, map[string]any{"session_id": openDevice(t, srv), "password": "secret"}, "locked")
	if got := len(server.Lines()); got != 2 {
		t.Errorf("device saw %d lines, want only the failed attempt", got)
	}
}

// --- telnet_exec ---

func TestExec_Errors(t *testing.T) {
	server := startDevice(t, mocktelnet.WithSilence("show tech"))
	srv, _ := newTestServer(t, testConfig(t, server, nil))
	id := openDevice(t, srv)
	callOK(t, srv.handleLogin, map[string]any{"session_id": id, "password": "secret"})

	callErr(t, srv.handleExec, map[string]any{"session_id": id, "newline": false}, "command is required")
	callErr(t, srv.handleExec, map[string]any{"session_id": id, "command": "reload"}, "blocked")
	callErr(t, srv.handleExec, map[string]any{
		"session_id": id,
		"command":    "show tech",
		"timeout_ms": 300,
	}, "partial output:\nshow tech")

	for _, line := range server.Lines() {
		if line == "reload" {
			t.Error("blocked command reached the device")
		}
	}
}

// --- telnet_set_prompt and telnet_run_script ---

func TestExec_Suggestions(t *testing.T) {
	server := startDevice(t)
	srv, _ := newTestServer(t, testConfig(t, server, nil))
	id := openDevice(t, srv)
	callOK(t, srv.handleLogin, map[string]any{"session_id": id, "password": "secret"})

	res := callOK(t, srv.handleExec, map[string]any{"session_id": id, "command": "show clock"})
	if _, ok := res["suggestions"]; ok {
		t.Errorf("clean output carries suggestions: %v", res["suggestions"])
	}

	res = callOK(t, srv.handleExec, map[string]any{"session_id": id, "command": "frobnicate"})
	suggestions, ok := res["suggestions"].([]any)
	if !ok || len(suggestions) == 0 {
		t.Fatalf("suggestions = %v", res["suggestions"])
	}
	first := suggestions[0].(map[string]any)
	if first["category"] != "syntax" {
		t.Errorf("category = %v, want syntax", first["category"])
	}

	// An empty command sends a bare line terminator.
	callOK(t, srv.handleExec, map[string]any{"session_id": id})
}

func TestSetPromptAndRunScript(t *testing.T) {
	server := startDevice(t)
	srv, _ := newTestServer(t, testConfig(t, server, nil))
	id := openDevice(t, srv)
	callOK(t, srv.handleLogin, map[string]any{"session_id": id, "password": "secret"})

	m := callOK(t, srv.handleSetPrompt, map[string]any{"session_id": id, "prompt": "router#"})
	if m["prompt"] != `router#` {
		t.Errorf("prompt = %v", m["prompt"])
	}
	callErr(t, srv.handleSetPrompt, map[string]any{"session_id": id, "prompt": "([", "regex": true}, "")
	callErr(t, srv.handleSetPrompt, map[string]any{"session_id": id}, "prompt is required")

	m = callOK(t, srv.handleRunScript, map[string]any{"session_id": id, "script": "clock"})
	if m["output"] != "show clock\n12:00:00 UTC" || m["steps"] != float64(2) {
		t.Errorf("run_script result = %v", m)
	}
	callErr(t, srv.handleRunScript, map[string]any{"session_id": id, "script": "nope"}, "unknown script")
}

// --- telnet_profiles ---

func TestProfiles(t *testing.T) {
	server := startDevice(t)
	cfg := testConfig(t, server, func(c *config.Config) {
		c.Devices = append(c.Devices, config.DeviceConfig{Name: "edge", Host: "edge.example.net"})
		c.ProfileRules = []config.RuleConfig{{Pattern: "*.example.net", Profile: "junos"}}
	})
	srv, _ := newTestServer(t, cfg)

	m := callOK(t, srv.handleProfiles, nil)

	names := map[string]bool{}
	for _, p := range m["profiles"].([]any) {
		names[p.(map[string]any)["name"].(string)] = true
	}
	for _, want := range []string{"ios", "junos", "linux"} {
		if !names[want] {
			t.Errorf("profile %s missing from %v", want, names)
		}
	}

	devices := m["devices"].([]any)
	if len(devices) != 2 || devices[1].(map[string]any)["profile"] != "junos" {
		t.Errorf("devices = %v", devices)
	}
	if scripts := m["scripts"].([]any); len(scripts) != 1 || scripts[0] != "clock" {
		t.Errorf("scripts = %v", scripts)
	}
}

// --- telnet_device_add ---

func TestDeviceAdd(t *testing.T) {
	server := startDevice(t)

	t.Run("no config path", func(t *testing.T) {
		srv, _ := newTestServer(t, testConfig(t, server, nil))
		callErr(t, srv.handleDeviceAdd, map[string]any{"name": "x", "host": "y"}, "--config")
	})

	srv, fs := newTestServer(t, testConfig(t, server, nil), WithConfigPath("/etc/telnet-shell-mcp/config.yaml"))

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{"missing name", map[string]any{"host": "h"}, "name is required"},
		{"missing host", map[string]any{"name": "n"}, "host is required"},
		{"duplicate", map[string]any{"name": "core-1", "host": "h"}, "already exists"},
		{"unknown profile", map[string]any{"name": "n", "host": "h", "profile": "nope"}, "nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			callErr(t, srv.handleDeviceAdd, tt.args, tt.want)
		})
	}

	callOK(t, srv.handleDeviceAdd, map[string]any{
		"name":         "edge-1",
		"host":         "10.0.0.9",
		"profile":      "junos",
		"user":         "ops",
		"password_env": "EDGE_PW",
	})

	saved, err := config.Load("/etc/telnet-shell-mcp/config.yaml", fs)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	d, ok := saved.Device("edge-1")
	if !ok || d.Profile != "junos" || d.PasswordEnv != "EDGE_PW" {
		t.Errorf("saved device = %+v, %v", d, ok)
	}

	cfg, _ := srv.currentConfig()
	if _, ok := cfg.Device("edge-1"); !ok {
		t.Error("running config not updated")
	}
}

// --- hot reload ---

func TestUpdateConfig(t *testing.T) {
	server := startDevice(t)
	srv, _ := newTestServer(t, testConfig(t, server, nil))

	next := testConfig(t, server, func(c *config.Config) {
		c.Devices[0].Name = "core-renamed"
		c.Security.CommandBlocklist = []string{`^show\s+clock`}
	})
	srv.UpdateConfig(next)

	callErr(t, srv.handleSessionCreate, map[string]any{"device": "core-1"}, "unknown device")

	m := callOK(t, srv.handleSessionCreate, map[string]any{"device": "core-renamed"})
	id := m["session_id"].(string)
	callOK(t, srv.handleLogin, map[string]any{"session_id": id, "password": "secret"})
	callErr(t, srv.handleExec, map[string]any{"session_id": id, "command": "show clock"}, "blocked")
}

// --- recording ---

func TestRecordingEnabled(t *testing.T) {
	server := startDevice(t)
	cfg := testConfig(t, server, func(c *config.Config) {
		c.Recording.Enabled = true
		c.Recording.Path = "/rec"
	})
	srv, fs := newTestServer(t, cfg)

	id := openDevice(t, srv)
	callOK(t, srv.handleLogin, map[string]any{"session_id": id, "password": "secret"})

	path := srv.recordingManager.Path(id)
	if !strings.HasPrefix(path, "/rec/"+id+"_") {
		t.Fatalf("recording path = %q", path)
	}
	data, err := fs.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if strings.Contains(string(data), "secret") {
		t.Error("recording contains the password")
	}
	if !strings.Contains(string(data), "******") {
		t.Error("recording lacks the masked password")
	}
}

// --- helpers ---

func TestParseEOL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "", false},
		{"crlf", "\r\n", false},
		{"cr", "\r", false},
		{"lf", "\n", false},
		{"crnul", "\r\x00", false},
		{"CRLF", "", true},
	}
	for _, tt := range tests {
		got, err := parseEOL(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseEOL(%q) = (%q, %v)", tt.in, got, err)
		}
	}
}
