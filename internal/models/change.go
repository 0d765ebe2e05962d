package models

import (
	"errors"
	"fmt"
	"time"
)

// ChangeKind тип локальной мутации
type ChangeKind string

const (
	ChangeCreate ChangeKind = "create"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// Priority определяет, какой сущности диспетчер уделит внимание первой
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Rank returns the dispatch rank of the priority: lower ranks are drained first.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 3
	}
}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	return p.Rank() < 3
}

// ParsePriority converts user input into a Priority.
func ParsePriority(s string) (Priority, error) {
	p := Priority(s)
	if !p.Valid() {
		return "", &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", s)}
	}
	return p, nil
}

// ErrValidation is matched by every ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

// ValidationError описывает некорректный Change, отклонённый при добавлении в журнал
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid change: %s: %s", e.Field, e.Reason)
}

// Is позволяет использовать errors.Is(err, ErrValidation)
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Change представляет намерение изменить Record, ещё не подтверждённое сервером.
// Жизненный цикл: создан -> в журнале -> отправлен -> удалён при успехе;
// при ошибке RetryCount растёт и планируется NextRetryAt;
// при RetryCount >= MaxRetries изменение удаляется с терминальной ошибкой.
type Change struct {
	CreatedAt   time.Time  `json:"created_at"`              // CreatedAt время создания изменения
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"` // NextRetryAt время следующей попытки (nil - сразу)
	Record      *Record    `json:"record"`                  // Record снимок записи на момент изменения
	ChangeID    string     `json:"change_id"`               // ChangeID уникальный идентификатор
	Kind        ChangeKind `json:"kind"`                    // Kind create/update/delete
	EntityType  string     `json:"entity_type"`             // EntityType тип сущности
	DeviceID    string     `json:"device_id"`               // DeviceID устройство-автор
	Priority    Priority   `json:"priority"`                // Priority high/medium/low
	LastError   string     `json:"last_error,omitempty"`    // LastError текст последней ошибки отправки
	BaseVersion int64      `json:"base_version"`            // BaseVersion версия, от которой сделано изменение
	Seq         int64      `json:"seq"`                     // Seq порядковый номер в журнале (FIFO при равном CreatedAt)
	RetryCount  int        `json:"retry_count"`             // RetryCount количество неудачных попыток
	MaxRetries  int        `json:"max_retries"`             // MaxRetries бюджет попыток
}

// EntityID returns the id of the record the change targets.
func (c *Change) EntityID() string {
	if c.Record == nil {
		return ""
	}
	return c.Record.ID
}

// IsDue reports whether the change may be dispatched at now.
func (c *Change) IsDue(now time.Time) bool {
	return c.NextRetryAt == nil || !c.NextRetryAt.After(now)
}

// Validate проверяет структуру изменения перед добавлением в журнал
func (c *Change) Validate() error {
	switch c.Kind {
	case ChangeCreate, ChangeUpdate, ChangeDelete:
	default:
		return &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", c.Kind)}
	}

	if c.Priority != "" && !c.Priority.Valid() {
		return &ValidationError{Field: "priority", Reason: fmt.Sprintf("unknown priority %q", c.Priority)}
	}
	if c.Record == nil {
		return &ValidationError{Field: "record", Reason: "record snapshot is required"}
	}
	if c.Record.ID == "" {
		return &ValidationError{Field: "record.id", Reason: "must not be empty"}
	}
	if c.Record.OwnerID == "" {
		return &ValidationError{Field: "record.owner_id", Reason: "must not be empty"}
	}
	if c.EntityType == "" {
		return &ValidationError{Field: "entity_type", Reason: "must not be empty"}
	}
	if c.Record.EntityType != "" && c.Record.EntityType != c.EntityType {
		return &ValidationError{
			Field:  "entity_type",
			Reason: fmt.Sprintf("change is %q but record is %q", c.EntityType, c.Record.EntityType),
		}
	}
	if c.MaxRetries < 0 {
		return &ValidationError{Field: "max_retries", Reason: "must not be negative"}
	}
	if c.BaseVersion < 0 {
		return &ValidationError{Field: "base_version", Reason: "must not be negative"}
	}

	// Для create/update запись должна быть новее базовой версии
	if c.Kind != ChangeDelete && c.Record.Version <= c.BaseVersion {
		return &ValidationError{
			Field:  "record.version",
			Reason: fmt.Sprintf("version %d must be greater than base version %d", c.Record.Version, c.BaseVersion),
		}
	}

	return nil
}

// Clone создает глубокую копию изменения
func (c *Change) Clone() *Change {
	if c == nil {
		return nil
	}

	clone := *c
	clone.Record = c.Record.Clone()
	if c.NextRetryAt != nil {
		next := *c.NextRetryAt
		clone.NextRetryAt = &next
	}

	return &clone
}
