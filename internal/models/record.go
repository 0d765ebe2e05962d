package models

import (
	"bytes"
	"encoding/json"
	"time"
)

// Типы синхронизируемых сущностей
const (
	EntityTypeSession     = "session"     // тренировочная сессия
	EntityTypeCheckIn     = "checkin"     // ежедневный check-in (самочувствие, вес, сон)
	EntityTypeAchievement = "achievement" // разблокированные достижения (аддитивный тип)
	EntityTypeProgress    = "progress"    // дельты прогресса (аддитивный тип)
	EntityTypePreference  = "preference"  // пользовательские настройки
)

// AdditiveEntityTypes перечисляет типы, изменения которых коммутативны:
// объединение разблокированных элементов и сумма дельт.
var AdditiveEntityTypes = []string{EntityTypeAchievement, EntityTypeProgress}

// IsAdditive reports whether records of the entity type merge instead of competing.
func IsAdditive(entityType string) bool {
	for _, t := range AdditiveEntityTypes {
		if t == entityType {
			return true
		}
	}
	return false
}

// Record представляет синхронизируемую доменную запись
// (сессия, check-in, достижение, настройка).
// Version строго возрастает с каждой успешной записью, локальной или удалённой.
type Record struct {
	UpdatedAt  time.Time       `json:"updated_at"`  // UpdatedAt время последнего изменения (для LWW)
	ID         string          `json:"id"`          // ID стабильный UUID записи
	OwnerID    string          `json:"owner_id"`    // OwnerID владелец записи
	EntityType string          `json:"entity_type"` // EntityType тип сущности
	DeviceID   string          `json:"device_id"`   // DeviceID устройство, записавшее эту версию
	Payload    json.RawMessage `json:"payload"`     // Payload непрозрачные доменные данные (JSON)
	Version    int64           `json:"version"`     // Version монотонная версия записи
}

// IsNewerThan сравнивает две версии записи по правилу Last-Write-Wins:
// 1. Больший UpdatedAt выигрывает
// 2. При равных UpdatedAt сравнивается DeviceID (лексикографически)
func (r *Record) IsNewerThan(other *Record) bool {
	if r.UpdatedAt.After(other.UpdatedAt) {
		return true
	}
	if r.UpdatedAt.Before(other.UpdatedAt) {
		return false
	}
	// Время совпадает - DeviceID даёт детерминированный порядок
	return r.DeviceID > other.DeviceID
}

// Equal reports whether both records carry the same version of the same data.
func (r *Record) Equal(other *Record) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.ID == other.ID &&
		r.OwnerID == other.OwnerID &&
		r.EntityType == other.EntityType &&
		r.DeviceID == other.DeviceID &&
		r.Version == other.Version &&
		r.UpdatedAt.Equal(other.UpdatedAt) &&
		bytes.Equal(r.Payload, other.Payload)
}

// Clone создает глубокую копию записи
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}

	var payload json.RawMessage
	if r.Payload != nil {
		payload = make(json.RawMessage, len(r.Payload))
		copy(payload, r.Payload)
	}

	return &Record{
		UpdatedAt:  r.UpdatedAt,
		ID:         r.ID,
		OwnerID:    r.OwnerID,
		EntityType: r.EntityType,
		DeviceID:   r.DeviceID,
		Payload:    payload,
		Version:    r.Version,
	}
}
