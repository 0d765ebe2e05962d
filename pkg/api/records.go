package api

import (
	"encoding/json"
	"time"
)

// Record представляет синхронизируемую запись на проводе
type Record struct {
	UpdatedAt  time.Time       `json:"updated_at"`  // время последнего изменения
	ID         string          `json:"id"`          // UUID записи
	OwnerID    string          `json:"owner_id"`    // владелец записи
	EntityType string          `json:"entity_type"` // тип сущности
	DeviceID   string          `json:"device_id"`   // устройство, записавшее версию
	Payload    json.RawMessage `json:"payload"`     // доменные данные
	Version    int64           `json:"version"`     // монотонная версия
}

// ConflictResponse возвращается с кодом 409, когда сохранённая версия новее
// версии, от которой сделано изменение
type ConflictResponse struct {
	Current *Record `json:"current"` // текущая серверная версия записи
	Error   string  `json:"error"`
	Message string  `json:"message,omitempty"`
}

// HealthResponse представляет ответ проверки доступности
type HealthResponse struct {
	Time   time.Time `json:"time"`
	Status string    `json:"status"`
}

// TokenResponse представляет выданный токен доступа
type TokenResponse struct {
	AccessToken string `json:"access_token"` // JWT access token
	OwnerID     string `json:"owner_id"`     // владелец, для которого выдан токен
	ExpiresIn   int64  `json:"expires_in"`   // время жизни токена в секундах
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Error   string `json:"error"`             // описание ошибки
	Message string `json:"message,omitempty"` // дополнительное сообщение
}
