// Package device assigns and persists the stable identity of this client
// installation. The device id tags every change for provenance and breaks
// ties in last-write-wins conflict resolution.
package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iudanet/fitsync/internal/client/storage"
	"github.com/iudanet/fitsync/internal/clock"
)

const identityKey = "identity"

// Классы платформ
const (
	PlatformDesktop = "desktop"
	PlatformMobile  = "mobile"
	PlatformServer  = "server"
	PlatformOther   = "other"
)

// MaxDisplayNameLength ограничивает длину отображаемого имени
const MaxDisplayNameLength = 64

// ErrInvalidName is returned by Rename for an empty or too long name.
var ErrInvalidName = errors.New("invalid device name")

// Identity stable identity and metadata of the device
type Identity struct {
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
	DeviceID    string    `json:"device_id" yaml:"device_id"`
	DisplayName string    `json:"display_name" yaml:"display_name"`
	Platform    string    `json:"platform" yaml:"platform"`
}

// Registry holds the device identity. It is read-mostly: the identity is
// generated once on first run and afterwards only the display name changes.
type Registry struct {
	medium   storage.Medium
	logger   *slog.Logger
	identity Identity
	mu       sync.RWMutex
}

// Open loads the device identity from the medium, generating and persisting
// a new one on first run.
func Open(ctx context.Context, medium storage.Medium, clk clock.Clock, logger *slog.Logger) (*Registry, error) {
	r := &Registry{medium: medium, logger: logger}

	raw, err := medium.Read(ctx, storage.BucketDeviceIdentity, identityKey)
	switch {
	case err == nil:
		if err := json.Unmarshal(raw, &r.identity); err != nil {
			// Новый id разорвал бы связь с уже отправленными изменениями
			return nil, fmt.Errorf("failed to decode device identity: %w", err)
		}
		if r.identity.DeviceID == "" {
			return nil, errors.New("stored device identity has empty device id")
		}
		return r, nil
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("failed to read device identity: %w", err)
	}

	id := uuid.New().String()
	r.identity = Identity{
		CreatedAt:   clk.Now().UTC(),
		DeviceID:    id,
		DisplayName: defaultDisplayName(id),
		Platform:    platformClass(runtime.GOOS),
	}
	if err := r.save(ctx, r.identity); err != nil {
		return nil, err
	}

	logger.Info("Device identity created",
		"device_id", r.identity.DeviceID,
		"display_name", r.identity.DisplayName,
		"platform", r.identity.Platform,
	)
	return r, nil
}

// DeviceID returns the stable device id.
func (r *Registry) DeviceID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.identity.DeviceID
}

// Identity returns a copy of the device identity.
func (r *Registry) Identity() Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.identity
}

// Rename changes the display name. The device id never changes.
func (r *Registry) Rename(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: must not be empty", ErrInvalidName)
	}
	if len([]rune(name)) > MaxDisplayNameLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidName, MaxDisplayNameLength)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	updated := r.identity
	updated.DisplayName = name
	if err := r.save(ctx, updated); err != nil {
		return err
	}
	r.identity = updated

	r.logger.Info("Device renamed", "device_id", updated.DeviceID, "display_name", name)
	return nil
}

func (r *Registry) save(ctx context.Context, identity Identity) error {
	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("failed to marshal device identity: %w", err)
	}
	if err := r.medium.Write(ctx, storage.BucketDeviceIdentity, identityKey, data); err != nil {
		return fmt.Errorf("failed to save device identity: %w", err)
	}
	return nil
}

func defaultDisplayName(deviceID string) string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "fitsync-" + deviceID[:8]
}

func platformClass(goos string) string {
	switch goos {
	case "android", "ios":
		return PlatformMobile
	case "darwin", "windows":
		return PlatformDesktop
	case "linux", "freebsd", "openbsd", "netbsd":
		// Без дисплея считаем установку серверной
		if os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
			return PlatformServer
		}
		return PlatformDesktop
	default:
		return PlatformOther
	}
}
