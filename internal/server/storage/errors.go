package storage

import (
	"errors"
	"fmt"

	"github.com/iudanet/fitsync/internal/models"
)

// Common storage errors
var (
	// ErrRecordNotFound indicates that record was not found in storage
	ErrRecordNotFound = errors.New("record not found")

	// ErrVersionConflict indicates that stored version is not older than the written one
	ErrVersionConflict = errors.New("version conflict")
)

// ConflictError несет текущую сохраненную версию записи,
// которая не дала применить изменение
type ConflictError struct {
	Current *models.Record
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("version conflict: stored version %d", e.Current.Version)
}

// Unwrap позволяет проверять конфликт через errors.Is(err, ErrVersionConflict)
func (e *ConflictError) Unwrap() error {
	return ErrVersionConflict
}
