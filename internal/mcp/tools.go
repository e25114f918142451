package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/acolita/telnet-shell-mcp/internal/config"
	"github.com/acolita/telnet-shell-mcp/internal/security"
	"github.com/acolita/telnet-shell-mcp/internal/session"
	"github.com/acolita/telnet-shell-mcp/internal/telnet"
)

// registerTools registers all MCP tools with the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTool(telnetSessionCreateTool(), s.handleSessionCreate)
	s.mcpServer.AddTool(telnetLoginTool(), s.handleLogin)
	s.mcpServer.AddTool(telnetExecTool(), s.handleExec)
	s.mcpServer.AddTool(telnetSetPromptTool(), s.handleSetPrompt)
	s.mcpServer.AddTool(telnetBufferTool(), s.handleBuffer)
	s.mcpServer.AddTool(telnetRunScriptTool(), s.handleRunScript)
	s.mcpServer.AddTool(telnetSessionListTool(), s.handleSessionList)
	s.mcpServer.AddTool(telnetSessionCloseTool(), s.handleSessionClose)
	s.mcpServer.AddTool(telnetProfilesTool(), s.handleProfiles)
	s.registerDeviceTools()
}

// Tool definitions

func telnetSessionCreateTool() mcp.Tool {
	return mcp.NewTool("telnet_session_create",
		mcp.WithDescription("Open a telnet connection to a device. Give either a configured device name or a host."),
		mcp.WithString("device",
			mcp.Description("Name of a device from the config file"),
		),
		mcp.WithString("host",
			mcp.Description("Host name or IP address (when no device is given)"),
		),
		mcp.WithNumber("port",
			mcp.Description("TCP port (default: 23)"),
		),
		mcp.WithString("charset",
			mcp.Description("IANA charset of the device output, e.g. ISO-8859-1"),
		),
		mcp.WithString("eol",
			mcp.Description("Line terminator sent after commands: crlf (default), cr or lf"),
		),
	)
}

func telnetLoginTool() mcp.Tool {
	return mcp.NewTool("telnet_login",
		mcp.WithDescription(`Log in using a host profile (username prompt, password prompt, shell prompt).

The password is taken, in order, from the password argument, a recent
successful login to the same user@host, the device's password_env
variable, or the OS keyring. Prefer leaving it out.`),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description(descSessionID),
		),
		mcp.WithString("user",
			mcp.Description("Login name (default: the device's user)"),
		),
		mcp.WithString("password",
			mcp.Description("Login password"),
		),
		mcp.WithString("profile",
			mcp.Description("Host profile name, e.g. ios, junos, linux (default: chosen by host rules)"),
		),
	)
}

func telnetExecTool() mcp.Tool {
	return mcp.NewTool("telnet_exec",
		mcp.WithDescription("Send a command and return its output once the prompt comes back"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description(descSessionID),
		),
		mcp.WithString("command",
			mcp.Required(),
			mcp.Description("The command to send"),
		),
		mcp.WithBoolean("newline",
			mcp.Description("Append the session's line terminator (default: true)"),
		),
		mcp.WithNumber("timeout_ms",
			mcp.Description("Command timeout in milliseconds for this and later commands"),
		),
	)
}

func telnetSetPromptTool() mcp.Tool {
	return mcp.NewTool("telnet_set_prompt",
		mcp.WithDescription("Change the prompt that marks the end of command output. The pattern is anchored at the end of the output."),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description(descSessionID),
		),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("Prompt text, or a regular expression when regex is true"),
		),
		mcp.WithBoolean("regex",
			mcp.Description("Treat prompt as a regular expression (default: false)"),
		),
	)
}

func telnetBufferTool() mcp.Tool {
	return mcp.NewTool("telnet_buffer",
		mcp.WithDescription("Return the output of the last command, or the whole session transcript"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description(descSessionID),
		),
		mcp.WithBoolean("global",
			mcp.Description("Return the full transcript instead of the last command's output"),
		),
	)
}

func telnetRunScriptTool() mcp.Tool {
	return mcp.NewTool("telnet_run_script",
		mcp.WithDescription("Run a named expect script from the config on a session"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description(descSessionID),
		),
		mcp.WithString("script",
			mcp.Required(),
			mcp.Description("Script name"),
		),
	)
}

func telnetSessionListTool() mcp.Tool {
	return mcp.NewTool("telnet_session_list",
		mcp.WithDescription("List open telnet sessions"),
	)
}

func telnetSessionCloseTool() mcp.Tool {
	return mcp.NewTool("telnet_session_close",
		mcp.WithDescription("Disconnect and forget a telnet session"),
		mcp.WithString("session_id",
			mcp.Required(),
			mcp.Description(descSessionID),
		),
	)
}

func telnetProfilesTool() mcp.Tool {
	return mcp.NewTool("telnet_profiles",
		mcp.WithDescription("List host profiles, configured devices and scripts"),
	)
}

// Tool handlers

func (s *Server) handleSessionCreate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	deviceName := mcp.ParseString(req, "device", "")
	cfg, _ := s.currentConfig()

	var device config.DeviceConfig
	if deviceName != "" {
		d, ok := cfg.Device(deviceName)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown device: %s", deviceName)), nil
		}
		device = d
	}

	host := mcp.ParseString(req, "host", device.Host)
	if host == "" {
		return mcp.NewToolResultError("device or host is required"), nil
	}
	eol, err := parseEOL(mcp.ParseString(req, "eol", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if eol == "" {
		eol = device.EOL
	}

	sess, err := s.sessions.Create(session.CreateOptions{
		Host:    host,
		Port:    mcp.ParseInt(req, "port", device.Port),
		EOL:     eol,
		Charset: mcp.ParseString(req, "charset", device.Charset),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := sess.Connect(ctx); err != nil {
		_ = s.sessions.Close(sess.ID)
		return mcp.NewToolResultError(err.Error()), nil
	}

	if deviceName != "" {
		s.mu.Lock()
		s.devices[sess.ID] = device
		s.mu.Unlock()
	}

	result := map[string]any{
		"session_id": sess.ID,
		"host":       sess.Host,
		"port":       sess.Port,
		"status":     string(sess.State()),
	}
	if deviceName != "" {
		result["device"] = deviceName
	}
	return jsonResult(result)
}

func (s *Server) handleLogin(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := mcp.ParseString(req, "session_id", "")
	sess, device, errResult := s.lookup(sessionID)
	if errResult != nil {
		return errResult, nil
	}

	host := sess.Status().Host
	user := mcp.ParseString(req, "user", device.User)
	if user == "" {
		return mcp.NewToolResultError("user is required"), nil
	}
	profileName := mcp.ParseString(req, "profile", device.Profile)

	if locked, remaining := s.authRateLimiter.IsLocked(host, user); locked {
		return mcp.NewToolResultError(fmt.Sprintf(
			"login for %s is locked after repeated failures; retry in %s",
			security.Account(host, user), remaining.Round(time.Second),
		)), nil
	}

	password, source, err := s.resolvePassword(host, user, mcp.ParseString(req, "password", ""), device.PasswordEnv)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	defer security.WipeBytes(password)

	s.logger.Info("logging in",
		slog.String("session_id", sessionID),
		slog.String("account", security.Account(host, user)),
		slog.String("password_source", string(source)),
	)

	if err := sess.Login(user, string(password), profileName); err != nil {
		if errors.Is(err, telnet.ErrLogin) {
			s.authRateLimiter.RecordFailure(host, user)
			s.credentials.Forget(host, user)
		}
		return mcp.NewToolResultError(describeError(err)), nil
	}

	s.authRateLimiter.RecordSuccess(host, user)
	s.credentials.Set(host, user, password)

	st := sess.Status()
	return jsonResult(map[string]any{
		"session_id":      sessionID,
		"status":          "logged_in",
		"profile":         st.Profile,
		"prompt":          st.Prompt,
		"password_source": string(source),
	})
}

func (s *Server) handleExec(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := mcp.ParseString(req, "session_id", "")
	command := mcp.ParseString(req, "command", "")
	newline := mcp.ParseBoolean(req, "newline", true)
	timeoutMs := mcp.ParseInt(req, "timeout_ms", 0)

	if command == "" && !newline {
		return mcp.NewToolResultError("command is required"), nil
	}

	sess, _, errResult := s.lookup(sessionID)
	if errResult != nil {
		return errResult, nil
	}

	if timeoutMs > 0 {
		sess.SetCommandTimeout(time.Duration(timeoutMs) * time.Millisecond)
	}

	s.logger.Info("executing command",
		slog.String("session_id", sessionID),
		slog.String("command", command),
	)

	output, err := sess.Exec(command, newline)
	if err != nil {
		return mcp.NewToolResultError(describeError(err)), nil
	}

	result := map[string]any{
		"session_id": sessionID,
		"output":     output,
	}
	if suggestions := s.analyzer.Analyze(command, output); len(suggestions) > 0 {
		result["suggestions"] = suggestions
	}
	return jsonResult(result)
}

func (s *Server) handleSetPrompt(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := mcp.ParseString(req, "session_id", "")
	prompt := mcp.ParseString(req, "prompt", "")
	regex := mcp.ParseBoolean(req, "regex", false)

	if prompt == "" {
		return mcp.NewToolResultError("prompt is required"), nil
	}

	sess, _, errResult := s.lookup(sessionID)
	if errResult != nil {
		return errResult, nil
	}

	if regex {
		if err := sess.SetRegexPrompt(prompt); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	} else {
		sess.SetPrompt(prompt)
	}

	return jsonResult(map[string]any{
		"session_id": sessionID,
		"prompt":     sess.Status().Prompt,
	})
}

func (s *Server) handleBuffer(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := mcp.ParseString(req, "session_id", "")
	global := mcp.ParseBoolean(req, "global", false)

	sess, _, errResult := s.lookup(sessionID)
	if errResult != nil {
		return errResult, nil
	}

	if global {
		return mcp.NewToolResultText(sess.GlobalBuffer()), nil
	}
	return mcp.NewToolResultText(sess.Buffer()), nil
}

func (s *Server) handleRunScript(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := mcp.ParseString(req, "session_id", "")
	name := mcp.ParseString(req, "script", "")

	if name == "" {
		return mcp.NewToolResultError("script is required"), nil
	}

	sess, _, errResult := s.lookup(sessionID)
	if errResult != nil {
		return errResult, nil
	}

	cfg, _ := s.currentConfig()
	script, ok := cfg.Script(name)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown script: %s", name)), nil
	}

	s.logger.Info("running script",
		slog.String("session_id", sessionID),
		slog.String("script", name),
	)

	if err := sess.RunScript(script); err != nil {
		return mcp.NewToolResultError(describeError(err)), nil
	}

	return jsonResult(map[string]any{
		"session_id": sessionID,
		"script":     name,
		"steps":      len(script.Steps),
		"output":     sess.Buffer(),
	})
}

func (s *Server) handleSessionList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessions := s.sessions.List()
	return jsonResult(map[string]any{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

func (s *Server) handleSessionClose(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := mcp.ParseString(req, "session_id", "")
	if sessionID == "" {
		return mcp.NewToolResultError(errSessionIDRequired), nil
	}

	s.logger.Info("closing session", slog.String("session_id", sessionID))

	s.mu.Lock()
	delete(s.devices, sessionID)
	s.mu.Unlock()

	if err := s.sessions.Close(sessionID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText("Session closed"), nil
}

type profileInfo struct {
	Name           string   `json:"name"`
	UsernamePrompt string   `json:"username_prompt"`
	PasswordPrompt string   `json:"password_prompt"`
	PromptRegex    string   `json:"prompt_regex"`
	DelayMs        int64    `json:"delay_ms,omitempty"`
	Setup          []string `json:"setup,omitempty"`
}

type deviceInfo struct {
	Name    string `json:"name"`
	Host    string `json:"host"`
	Port    int    `json:"port,omitempty"`
	Profile string `json:"profile"`
	User    string `json:"user,omitempty"`
}

func (s *Server) handleProfiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, catalog := s.currentConfig()

	profiles := make([]profileInfo, 0)
	for _, name := range catalog.Names() {
		p, err := catalog.Lookup(name)
		if err != nil {
			continue
		}
		profiles = append(profiles, profileInfo{
			Name:           p.Name,
			UsernamePrompt: p.UsernamePrompt,
			PasswordPrompt: p.PasswordPrompt,
			PromptRegex:    p.PromptRegex,
			DelayMs:        p.Delay.Milliseconds(),
			Setup:          p.Setup,
		})
	}

	devices := make([]deviceInfo, 0, len(cfg.Devices))
	for _, d := range cfg.Devices {
		profileName := d.Profile
		if profileName == "" {
			profileName = catalog.ForHost(d.Host)
		}
		devices = append(devices, deviceInfo{
			Name:    d.Name,
			Host:    d.Host,
			Port:    d.Port,
			Profile: profileName,
			User:    d.User,
		})
	}

	scripts := make([]string, 0, len(cfg.Scripts))
	for _, sc := range cfg.Scripts {
		scripts = append(scripts, sc.Name)
	}

	return jsonResult(map[string]any{
		"profiles": profiles,
		"devices":  devices,
		"scripts":  scripts,
	})
}

// lookup resolves a session and the device it was opened for. A non-nil
// result is an error to hand back to the client.
func (s *Server) lookup(sessionID string) (managedSession, config.DeviceConfig, *mcp.CallToolResult) {
	if sessionID == "" {
		return nil, config.DeviceConfig{}, mcp.NewToolResultError(errSessionIDRequired)
	}
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, config.DeviceConfig{}, mcp.NewToolResultError(err.Error())
	}

	s.mu.RLock()
	device := s.devices[sessionID]
	s.mu.RUnlock()
	return sess, device, nil
}

// describeError renders an engine error for the client. Login failures
// name the step; timeouts include whatever arrived before the deadline.
func describeError(err error) string {
	msg := err.Error()
	var le *telnet.LoginError
	if errors.As(err, &le) && le.Step != "" {
		msg = fmt.Sprintf("%s at step %q", msg, le.Step)
	}
	var te *telnet.TimeoutError
	if errors.As(err, &te) && len(te.Partial) > 0 {
		msg = fmt.Sprintf("%s\npartial output:\n%s", msg, te.Partial)
	}
	return msg
}

func parseEOL(name string) (string, error) {
	switch name {
	case "":
		return "", nil
	case "crlf":
		return "\r\n", nil
	case "cr":
		return "\r", nil
	case "lf":
		return "\n", nil
	case "crnul":
		return "\r\x00", nil
	default:
		return "", fmt.Errorf("unknown eol %q: use crlf, cr, lf or crnul", name)
	}
}

// jsonResult converts a value to a JSON tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
