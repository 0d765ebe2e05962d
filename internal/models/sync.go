package models

import "time"

// Strategy стратегия разрешения конфликта
type Strategy string

const (
	StrategyLastWriteWins Strategy = "last-write-wins"
	StrategyFieldMerge    Strategy = "field-merge"
	StrategyManual        Strategy = "manual"
)

// Winner указывает, чья версия легла в основу разрешённой записи
type Winner string

const (
	WinnerLocal  Winner = "local"
	WinnerRemote Winner = "remote"
	WinnerMerged Winner = "merged"
)

// ConflictResolution запись аудита разрешения конфликта.
// Создаётся один раз и никогда не изменяется.
type ConflictResolution struct {
	ResolvedAt     time.Time `json:"resolved_at"`
	LocalRecord    *Record   `json:"local_record"`
	RemoteRecord   *Record   `json:"remote_record"`
	ResolvedRecord *Record   `json:"resolved_record"`
	ChangeID       string    `json:"change_id"`
	Strategy       Strategy  `json:"strategy"`
	Winner         Winner    `json:"winner"`
	Reason         string    `json:"reason"`
}

// Clone returns a deep copy so trail readers cannot alter audited records.
func (r ConflictResolution) Clone() ConflictResolution {
	r.LocalRecord = r.LocalRecord.Clone()
	r.RemoteRecord = r.RemoteRecord.Clone()
	r.ResolvedRecord = r.ResolvedRecord.Clone()
	return r
}

// Connectivity состояние сети
type Connectivity string

const (
	Online  Connectivity = "online"
	Offline Connectivity = "offline"
)

// SyncStatus состояние синхронизации на время сессии.
// Изменяется только диспетчером и монитором сети, читается кем угодно.
type SyncStatus struct {
	LastSyncAt   time.Time    `json:"last_sync_at" yaml:"last_sync_at"`
	Connectivity Connectivity `json:"connectivity" yaml:"connectivity"`
	LastError    string       `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	PendingCount int          `json:"pending_count" yaml:"pending_count"`
	InProgress   bool         `json:"in_progress" yaml:"in_progress"`
}

// SyncCheckpoint часть SyncStatus, которая переживает перезапуск клиента
type SyncCheckpoint struct {
	LastSyncAt time.Time `json:"last_sync_at"`
	LastError  string    `json:"last_error,omitempty"`
}
