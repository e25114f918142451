package mcp

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/acolita/telnet-shell-mcp/internal/config"
)

func (s *Server) registerDeviceTools() {
	s.mcpServer.AddTool(telnetDeviceAddTool(), s.handleDeviceAdd)
}

func telnetDeviceAddTool() mcp.Tool {
	return mcp.NewTool("telnet_device_add",
		mcp.WithDescription(`Add a device to the config file so sessions can refer to it by name.

Passwords are never stored in the config. Name an environment variable
with password_env, or store the password in the OS keyring with
"telnetctl password set".

Requires a config file path (--config flag at startup).`),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Short name for the device (e.g., 'core-1')"),
		),
		mcp.WithString("host",
			mcp.Required(),
			mcp.Description("Host name or IP address"),
		),
		mcp.WithNumber("port",
			mcp.Description("TCP port (default: 23)"),
		),
		mcp.WithString("profile",
			mcp.Description("Host profile name (default: chosen by host rules)"),
		),
		mcp.WithString("user",
			mcp.Description("Default login name"),
		),
		mcp.WithString("password_env",
			mcp.Description("Environment variable holding the login password"),
		),
	)
}

func (s *Server) handleDeviceAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.configPath == "" {
		return mcp.NewToolResultError(errNoConfigPath), nil
	}

	device := config.DeviceConfig{
		Name:        mcp.ParseString(req, "name", ""),
		Host:        mcp.ParseString(req, "host", ""),
		Port:        mcp.ParseInt(req, "port", 0),
		Profile:     mcp.ParseString(req, "profile", ""),
		User:        mcp.ParseString(req, "user", ""),
		PasswordEnv: mcp.ParseString(req, "password_env", ""),
	}
	if device.Name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}
	if device.Host == "" {
		return mcp.NewToolResultError("host is required"), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if device.Profile != "" {
		if _, err := s.catalog.Lookup(device.Profile); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	// A failed save leaves the running config alone.
	next := *s.config
	next.Devices = append([]config.DeviceConfig(nil), s.config.Devices...)
	if err := next.AddDevice(device); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("add device: %v", err)), nil
	}
	if err := config.Save(&next, s.configPath, s.fs); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("save config: %v", err)), nil
	}
	s.config = &next

	s.logger.Info("device saved",
		slog.String("device", device.Name),
		slog.String("host", device.Host),
		slog.String("config_path", s.configPath),
	)

	return jsonResult(map[string]any{
		"status":      "saved",
		"device":      device.Name,
		"host":        device.Host,
		"config_path": s.configPath,
	})
}
