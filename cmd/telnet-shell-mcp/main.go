// telnet-shell-mcp is an MCP server providing persistent telnet sessions to
// network devices and hosts.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/acolita/telnet-shell-mcp/internal/config"
	"github.com/acolita/telnet-shell-mcp/internal/logging"
	"github.com/acolita/telnet-shell-mcp/internal/mcp"
	"github.com/acolita/telnet-shell-mcp/internal/security"
)

// Version information - set at build time.
var (
	Version   = "0.3.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	var (
		configPath  string
		showVersion bool
		debug       bool
	)

	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&debug, "debug", false, "Enable debug logging, including protocol negotiation")
	flag.Parse()

	if showVersion {
		fmt.Printf("telnet-shell-mcp version %s\n", Version)
		fmt.Printf("  Build time: %s\n", BuildTime)
		fmt.Printf("  Git commit: %s\n", GitCommit)
		os.Exit(0)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if debug {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Sanitize)
	logger.Info("starting telnet-shell-mcp",
		slog.String("version", Version),
		slog.Int("devices", len(cfg.Devices)),
	)

	opts := []mcp.ServerOption{mcp.WithLogger(logger)}
	if configPath != "" {
		opts = append(opts, mcp.WithConfigPath(configPath))
	}
	if cfg.Security.UseKeyring {
		opts = append(opts, mcp.WithKeyring(security.NewKeyringStore()))
	}

	server, err := mcp.NewServer(cfg, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating server: %v\n", err)
		os.Exit(1)
	}

	var configWatcher *config.Watcher
	if configPath != "" {
		var watcherErr error
		configWatcher, watcherErr = config.NewWatcher(configPath, func(newCfg *config.Config) {
			if debug {
				newCfg.Logging.Level = "debug"
			}
			server.UpdateConfig(newCfg)
		}, logger)
		if watcherErr != nil {
			logger.Warn("config hot-reload disabled",
				slog.String("error", watcherErr.Error()),
			)
		} else {
			logger.Info("config hot-reload enabled",
				slog.String("path", configPath),
			)
		}
	}

	shutdown := func() {
		if configWatcher != nil {
			configWatcher.Close()
		}
		if err := server.Shutdown(); err != nil {
			logger.Warn("shutdown", slog.String("error", err.Error()))
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		shutdown()
		os.Exit(0)
	}()

	if err := server.Run(); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		shutdown()
		os.Exit(1)
	}
	shutdown()
}
