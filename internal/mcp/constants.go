package mcp

// Common error messages and descriptions used across MCP tools.
const (
	descSessionID = "The session ID returned by telnet_session_create"

	errSessionIDRequired = "session_id is required"
	errNoConfigPath      = "no config file path set; start the server with --config to enable device management"
)
