package storage

import (
	"errors"
	"fmt"
)

// Common client storage errors
var (
	// ErrNotFound indicates that the key is absent in the bucket
	ErrNotFound = errors.New("key not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")

	// ErrMedium is matched by every MediumError via errors.Is
	ErrMedium = errors.New("storage medium failure")

	// ErrLocked indicates that another process holds the database file
	ErrLocked = errors.New("database is locked by another fitsync process")
)

// MediumError describes a failure of the durable medium itself.
// Such failures are environment faults: they are propagated, never retried.
type MediumError struct {
	Err    error
	Op     string
	Bucket string
	Key    string
}

// NewMediumError оборачивает ошибку носителя с контекстом операции
func NewMediumError(op, bucket, key string, err error) *MediumError {
	return &MediumError{Op: op, Bucket: bucket, Key: key, Err: err}
}

func (e *MediumError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("storage %s %s: %v", e.Op, e.Bucket, e.Err)
	}
	return fmt.Sprintf("storage %s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
}

func (e *MediumError) Unwrap() error {
	return e.Err
}

// Is позволяет использовать errors.Is(err, ErrMedium)
func (e *MediumError) Is(target error) bool {
	return target == ErrMedium
}
