package mcp

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/acolita/telnet-shell-mcp/internal/security"
)

// errNoPassword is returned when no source yields a login password.
var errNoPassword = errors.New("no password available")

// passwordSource names where a login password came from, for logs and results.
type passwordSource string

const (
	sourceArgument passwordSource = "argument"
	sourceCache    passwordSource = "cache"
	sourceEnv      passwordSource = "env"
	sourceKeyring  passwordSource = "keyring"
)

// resolvePassword picks the login password for user@host. Sources are
// tried in order: the explicit argument, the in-memory cache of recent
// successful logins, the device's password_env variable, then the OS
// keyring when use_keyring is set.
func (s *Server) resolvePassword(host, user, explicit, passwordEnv string) ([]byte, passwordSource, error) {
	if explicit != "" {
		return []byte(explicit), sourceArgument, nil
	}
	if pw := s.credentials.Get(host, user); pw != nil {
		return pw, sourceCache, nil
	}
	if passwordEnv != "" {
		if v := s.fs.Getenv(passwordEnv); v != "" {
			return []byte(v), sourceEnv, nil
		}
	}

	cfg, _ := s.currentConfig()
	if cfg.Security.UseKeyring && s.keyring != nil {
		pw, err := s.keyring.GetDevicePassword(host, user)
		switch {
		case err != nil:
			s.logger.Debug("keyring lookup failed",
				slog.String("account", security.Account(host, user)),
				slog.String("error", err.Error()),
			)
		case pw != nil:
			return pw, sourceKeyring, nil
		}
	}

	return nil, "", fmt.Errorf("%w for %s", errNoPassword, security.Account(host, user))
}
