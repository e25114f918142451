package security

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zalando/go-keyring"
)

// KeyringService is the service name used for keyring entries.
const KeyringService = "telnet-shell-mcp"

// ErrKeyringUnavailable is returned when the system keyring cannot be used.
var ErrKeyringUnavailable = errors.New("keyring not available")

const probeKey = "__telnet_shell_mcp_probe__"

// KeyringStore keeps device login passwords in the OS keyring
// (macOS Keychain, Linux Secret Service, Windows Credential Manager).
// Entries are keyed by "device:user@host".
type KeyringStore struct {
	mu      sync.RWMutex
	enabled bool
}

// NewKeyringStore creates a keyring store. If the system keyring is not
// available the store is disabled and every call returns ErrKeyringUnavailable.
func NewKeyringStore() *KeyringStore {
	ks := &KeyringStore{enabled: true}

	if err := keyring.Set(KeyringService, probeKey, "probe"); err != nil {
		slog.Debug("keyring not available", slog.String("error", err.Error()))
		ks.enabled = false
		return ks
	}
	_ = keyring.Delete(KeyringService, probeKey)

	slog.Debug("keyring storage enabled")
	return ks
}

// IsEnabled returns true if the keyring is available and enabled.
func (ks *KeyringStore) IsEnabled() bool {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return ks.enabled
}

// SetEnabled allows enabling/disabling keyring usage.
func (ks *KeyringStore) SetEnabled(enabled bool) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.enabled = enabled
}

func deviceKey(host, user string) string {
	return "device:" + Account(host, user)
}

// StoreDevicePassword stores the login password for user@host.
func (ks *KeyringStore) StoreDevicePassword(host, user string, password []byte) error {
	if !ks.IsEnabled() {
		return ErrKeyringUnavailable
	}

	encoded := base64.StdEncoding.EncodeToString(password)
	if err := keyring.Set(KeyringService, deviceKey(host, user), encoded); err != nil {
		return fmt.Errorf("failed to store device password: %w", err)
	}

	slog.Debug("stored device password in keyring",
		slog.String("user", user),
		slog.String("host", host),
	)
	return nil
}

// GetDevicePassword retrieves the login password for user@host.
// A missing entry returns (nil, nil).
func (ks *KeyringStore) GetDevicePassword(host, user string) ([]byte, error) {
	if !ks.IsEnabled() {
		return nil, ErrKeyringUnavailable
	}

	encoded, err := keyring.Get(KeyringService, deviceKey(host, user))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get device password: %w", err)
	}

	password, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode device password: %w", err)
	}
	return password, nil
}

// DeleteDevicePassword removes the login password for user@host.
// Deleting a missing entry is not an error.
func (ks *KeyringStore) DeleteDevicePassword(host, user string) error {
	if !ks.IsEnabled() {
		return ErrKeyringUnavailable
	}

	if err := keyring.Delete(KeyringService, deviceKey(host, user)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete device password: %w", err)
	}
	return nil
}
