package syncer

import (
	"errors"
	"fmt"

	"github.com/iudanet/fitsync/internal/models"
)

var (
	// ErrNotFound indicates that the remote store has no such record
	ErrNotFound = errors.New("record not found")

	// ErrTerminal is matched by every TerminalSyncError via errors.Is
	ErrTerminal = errors.New("change exhausted retry budget")

	// ErrOffline indicates that the engine is offline
	ErrOffline = errors.New("engine is offline")
)

// VersionConflictError is returned by the remote store when the stored
// version is newer than the one the write was authored against.
// It is routed to the conflict resolver and never surfaced as a failure.
type VersionConflictError struct {
	Remote *models.Record
}

func (e *VersionConflictError) Error() string {
	if e.Remote == nil {
		return "version conflict"
	}
	return fmt.Sprintf("version conflict: remote %s/%s is at version %d",
		e.Remote.EntityType, e.Remote.ID, e.Remote.Version)
}

// TerminalSyncError reports a change removed from the log after its retry
// budget was exhausted.
type TerminalSyncError struct {
	ChangeID   string
	EntityType string
	EntityID   string
	LastError  string
	RetryCount int
}

func (e *TerminalSyncError) Error() string {
	return fmt.Sprintf("change %s (%s/%s) failed after %d attempts: %s",
		e.ChangeID, e.EntityType, e.EntityID, e.RetryCount, e.LastError)
}

// Is позволяет использовать errors.Is(err, ErrTerminal)
func (e *TerminalSyncError) Is(target error) bool {
	return target == ErrTerminal
}

// IsTransient reports whether a remote failure should be retried with backoff.
// Everything except a version conflict and a missing record is transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var conflictErr *VersionConflictError
	if errors.As(err, &conflictErr) {
		return false
	}
	return !errors.Is(err, ErrNotFound)
}
