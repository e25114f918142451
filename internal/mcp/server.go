// Package mcp implements the MCP protocol server for telnet-shell-mcp.
package mcp

import (
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/acolita/telnet-shell-mcp/internal/adapters/realclock"
	"github.com/acolita/telnet-shell-mcp/internal/adapters/realfs"
	"github.com/acolita/telnet-shell-mcp/internal/config"
	"github.com/acolita/telnet-shell-mcp/internal/ports"
	"github.com/acolita/telnet-shell-mcp/internal/profile"
	"github.com/acolita/telnet-shell-mcp/internal/recording"
	"github.com/acolita/telnet-shell-mcp/internal/recovery"
	"github.com/acolita/telnet-shell-mcp/internal/security"
	"github.com/acolita/telnet-shell-mcp/internal/session"
)

const (
	serverName    = "telnet-shell-mcp"
	serverVersion = "0.3.0"
)

// Server wraps the MCP server implementation.
type Server struct {
	mcpServer *server.MCPServer
	sessions  sessionManager

	mu         sync.RWMutex
	config     *config.Config
	catalog    *profile.Catalog
	configPath string
	devices    map[string]config.DeviceConfig // session_id -> device it was opened for

	commandFilter    *security.CommandFilter
	authRateLimiter  *security.AuthRateLimiter
	credentials      *security.CredentialCache
	keyring          passwordStore
	recordingManager *recording.Manager
	analyzer         *recovery.Analyzer

	fs     ports.FileSystem
	clock  ports.Clock
	logger *slog.Logger
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithSessionManager replaces the session manager built from the config.
func WithSessionManager(sm sessionManager) ServerOption {
	return func(s *Server) {
		s.sessions = sm
	}
}

// WithFileSystem sets the filesystem used by Server.
func WithFileSystem(fs ports.FileSystem) ServerOption {
	return func(s *Server) {
		s.fs = fs
	}
}

// WithClock sets the clock used for login throttling and credential expiry.
func WithClock(clock ports.Clock) ServerOption {
	return func(s *Server) {
		s.clock = clock
	}
}

// WithKeyring enables keyring lookups for device passwords.
func WithKeyring(store passwordStore) ServerOption {
	return func(s *Server) {
		s.keyring = store
	}
}

// WithConfigPath enables telnet_device_add by naming the file it writes.
func WithConfigPath(path string) ServerOption {
	return func(s *Server) {
		s.configPath = path
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP server with the given configuration.
// The configuration must already be validated.
func NewServer(cfg *config.Config, opts ...ServerOption) (*Server, error) {
	s := &Server{
		config:   cfg,
		devices:  make(map[string]config.DeviceConfig),
		analyzer: recovery.NewAnalyzer(),
		fs:       realfs.New(),
		clock:    realclock.New(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}
	s.catalog = catalog

	filter, err := security.NewCommandFilter(blocklist(cfg), cfg.Security.CommandAllowlist)
	if err != nil {
		return nil, err
	}
	s.commandFilter = filter
	s.authRateLimiter = security.NewAuthRateLimiter(
		cfg.Security.MaxAuthFailures,
		cfg.Security.AuthLockoutDuration,
		s.clock,
	)
	s.credentials = security.NewCredentialCache(security.DefaultCredentialTTL, s.clock)

	if s.sessions == nil {
		s.sessions = session.NewManager(s.managerOptions(cfg))
	}

	s.mcpServer = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)
	s.registerTools()

	return s, nil
}

func (s *Server) managerOptions(cfg *config.Config) session.ManagerOptions {
	opts := session.ManagerOptions{
		MaxSessions: cfg.Security.MaxSessions,
		Defaults:    s.sessionDefaults(cfg),
		Logger:      s.logger,
	}

	if cfg.Recording.Enabled {
		dir := cfg.Recording.Path
		if dir == "" {
			dir = recording.DefaultDir(s.fs)
		}
		s.recordingManager = recording.NewManager(dir, s.fs, s.clock)
		opts.NewRecorder = func(sessionID, host string) (session.Recorder, error) {
			rec, err := s.recordingManager.Open(sessionID, host)
			if err != nil {
				return nil, err
			}
			return rec, nil
		}
	}
	return opts
}

func (s *Server) sessionDefaults(cfg *config.Config) session.Options {
	return session.Options{
		Port:           cfg.Telnet.Port,
		ConnectTimeout: cfg.Telnet.ConnectTimeout,
		CommandTimeout: cfg.Telnet.CommandTimeout,
		StreamTimeout:  cfg.Telnet.StreamTimeout,
		EOL:            cfg.Telnet.EOL,
		KeepPrompt:     !cfg.Telnet.StripPrompt,
		Charset:        cfg.Telnet.Charset,
		Catalog:        s.catalog,
		Policy:         s.commandFilter,
		Logger:         s.logger,
	}
}

func blocklist(cfg *config.Config) []string {
	var patterns []string
	if cfg.Security.DefaultBlocklist {
		patterns = append(patterns, security.DefaultBlocklist()...)
	}
	return append(patterns, cfg.Security.CommandBlocklist...)
}

// Run starts the MCP server on stdio transport.
func (s *Server) Run() error {
	s.logger.Info("starting MCP server on stdio transport")
	return server.ServeStdio(s.mcpServer)
}

// Shutdown closes every session and recording.
func (s *Server) Shutdown() error {
	err := s.sessions.CloseAll()
	if s.recordingManager != nil {
		s.recordingManager.CloseAll()
	}
	s.credentials.ClearAll()
	return err
}

// UpdateConfig applies a new configuration at runtime. Devices, profiles,
// scripts, command filters and session defaults are picked up; existing
// sessions keep their settings. Recording and the session limit require
// a restart.
func (s *Server) UpdateConfig(cfg *config.Config) {
	catalog, err := cfg.Catalog()
	if err != nil {
		s.logger.Warn("config update rejected", slog.String("error", err.Error()))
		return
	}

	if err := s.commandFilter.Update(blocklist(cfg), cfg.Security.CommandAllowlist); err != nil {
		s.logger.Warn("failed to update command filter, keeping previous",
			slog.String("error", err.Error()),
		)
	}

	s.mu.Lock()
	s.config = cfg
	s.catalog = catalog
	defaults := s.sessionDefaults(cfg)
	s.mu.Unlock()

	if m, ok := s.sessions.(interface{ SetDefaults(session.Options) }); ok {
		m.SetDefaults(defaults)
	}

	s.logger.Info("configuration hot-reloaded",
		slog.Int("devices", len(cfg.Devices)),
		slog.Int("profiles", len(cfg.Profiles)),
	)
}

func (s *Server) currentConfig() (*config.Config, *profile.Catalog) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config, s.catalog
}
