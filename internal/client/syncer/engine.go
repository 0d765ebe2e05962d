// Package syncer implements the dispatcher: it drains the pending change log
// into the remote store in priority order, retries transient failures with
// backoff, routes version conflicts to the resolver and keeps SyncStatus.
package syncer

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iudanet/fitsync/internal/client/cache"
	"github.com/iudanet/fitsync/internal/client/changelog"
	"github.com/iudanet/fitsync/internal/client/events"
	"github.com/iudanet/fitsync/internal/client/storage"
	"github.com/iudanet/fitsync/internal/clock"
	"github.com/iudanet/fitsync/internal/conflict"
	"github.com/iudanet/fitsync/internal/models"
)

// Значения по умолчанию
const (
	DefaultSyncInterval  = 30 * time.Second
	DefaultRemoteTimeout = 15 * time.Second
)

// Config настройки диспетчера
type Config struct {
	SyncInterval  time.Duration // период планового цикла drain
	RemoteTimeout time.Duration // таймаут одного вызова удалённого хранилища
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		SyncInterval:  DefaultSyncInterval,
		RemoteTimeout: DefaultRemoteTimeout,
	}
}

// Deps collaborators of the engine
type Deps struct {
	Remote      RemoteStore
	Log         *changelog.Log
	Cache       *cache.Cache
	Resolver    *conflict.Resolver
	Trail       *conflict.Trail
	Publisher   events.Publisher
	Clock       clock.Clock
	Checkpoints storage.CheckpointStorage // опционально: состояние синхронизации между запусками
	Logger      *slog.Logger
}

// Engine is the sync dispatcher. It is the only writer of the pending change
// log and of SyncStatus. At most one drain cycle runs at a time; triggers that
// arrive during a cycle are coalesced into one follow-up cycle.
type Engine struct {
	remote      RemoteStore
	log         *changelog.Log
	cache       *cache.Cache
	resolver    *conflict.Resolver
	trail       *conflict.Trail
	publisher   events.Publisher
	clock       clock.Clock
	checkpoints storage.CheckpointStorage
	logger      *slog.Logger
	trigger     chan struct{}
	notified    map[string]struct{} // changeId с уже отправленным терминальным уведомлением
	status      models.SyncStatus
	cfg         Config
	statusMu    sync.RWMutex
	drainMu     sync.Mutex // single-flight
	rerun       atomic.Bool
}


// New creates an engine. The engine starts offline; call OnOnline once the
// connectivity monitor reports a stable connection.
func New(deps Deps, cfg Config) *Engine {
	if cfg.SyncInterval <= 0 {
		cfg.SyncInterval = DefaultSyncInterval
	}
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = DefaultRemoteTimeout
	}
	if deps.Trail == nil {
		deps.Trail = conflict.NewTrail()
	}

	return &Engine{
		remote:      deps.Remote,
		log:         deps.Log,
		cache:       deps.Cache,
		resolver:    deps.Resolver,
		trail:       deps.Trail,
		publisher:   deps.Publisher,
		clock:       deps.Clock,
		checkpoints: deps.Checkpoints,
		logger:      deps.Logger,
		trigger:     make(chan struct{}, 1),
		notified:    make(map[string]struct{}),
		status:      models.SyncStatus{Connectivity: models.Offline},
		cfg:         cfg,
	}
}

// Start restores the last sync time and the last terminal error saved by a
// previous run.
func (e *Engine) Start(ctx context.Context) error {
	if e.checkpoints == nil {
		return nil
	}

	cp, err := e.checkpoints.LoadCheckpoint(ctx)
	if err != nil {
		// Не критично: контрольная точка нужна только для отображения статуса
		e.logger.Warn("Failed to load sync checkpoint", "error", err)
		return nil
	}

	e.statusMu.Lock()
	e.status.LastSyncAt = cp.LastSyncAt
	e.status.LastError = cp.LastError
	e.statusMu.Unlock()
	return nil
}

// Run drives periodic and triggered drain cycles until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	ticker := e.clock.NewTicker(e.cfg.SyncInterval)
	defer ticker.Stop()

	e.logger.Info("Sync engine started", "interval", e.cfg.SyncInterval.String())

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Sync engine stopped")
			return nil
		case <-ticker.C():
		case <-e.trigger:
		}

		if _, err := e.Drain(ctx); err != nil && ctx.Err() == nil {
			e.logger.Error("Drain cycle failed", "error", err)
		}
	}
}

// Trigger requests a drain cycle from Run without blocking.
func (e *Engine) Trigger() {
	select {
	case e.trigger <- struct{}{}:
	default:
		// Запрос уже ожидает обработки
	}
}

// ForceSync runs a drain cycle now. If a cycle is already running, the
// request is coalesced into a follow-up cycle run by the current one.
func (e *Engine) ForceSync(ctx context.Context) (DrainResult, error) {
	if !e.IsOnline() {
		return DrainResult{}, ErrOffline
	}
	return e.Drain(ctx)
}

// Enqueue appends a local change to the pending log. A high-priority change
// appended while online triggers a drain cycle.
func (e *Engine) Enqueue(ctx context.Context, change *models.Change) (*models.Change, error) {
	stored, err := e.log.Append(ctx, change)
	if err != nil {
		return nil, err
	}

	e.statusMu.Lock()
	e.status.PendingCount = e.log.Len()
	online := e.status.Connectivity == models.Online
	e.statusMu.Unlock()

	if stored.Priority == models.PriorityHigh && online {
		e.Trigger()
	}
	return stored, nil
}

// OnOnline marks the engine online and triggers a drain cycle.
func (e *Engine) OnOnline() {
	e.statusMu.Lock()
	e.status.Connectivity = models.Online
	e.statusMu.Unlock()

	e.logger.Info("Engine online")
	e.Trigger()
}

// OnOffline marks the engine offline. A running cycle stops after the
// in-flight change completes.
func (e *Engine) OnOffline() {
	e.statusMu.Lock()
	e.status.Connectivity = models.Offline
	e.statusMu.Unlock()

	e.logger.Info("Engine offline")
}

// IsOnline reports the connectivity the engine currently acts on.
func (e *Engine) IsOnline() bool {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.status.Connectivity == models.Online
}

// Status returns a snapshot of the sync status.
func (e *Engine) Status() models.SyncStatus {
	e.statusMu.RLock()
	status := e.status
	e.statusMu.RUnlock()

	status.PendingCount = e.log.Len()
	return status
}

// Pending returns the queued changes in dispatch priority order.
func (e *Engine) Pending() []*models.Change {
	return e.log.ListByPriority()
}

// HasPending reports whether the record has changes waiting for dispatch.
func (e *Engine) HasPending(entityType, id string) bool {
	return e.log.HasPending(entityType, id)
}

// Trail returns the conflict audit trail of the session.
func (e *Engine) Trail() *conflict.Trail {
	return e.trail
}

func (e *Engine) publish(ev events.Event) {
	if e.publisher == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = e.clock.Now()
	}
	e.publisher.Publish(ev)
}

func (e *Engine) setInProgress(v bool) {
	e.statusMu.Lock()
	e.status.InProgress = v
	e.statusMu.Unlock()
}

func (e *Engine) setLastError(msg string) {
	e.statusMu.Lock()
	e.status.LastError = msg
	e.statusMu.Unlock()
}

func (e *Engine) markSynced(ctx context.Context, at time.Time) {
	e.statusMu.Lock()
	e.status.LastSyncAt = at
	e.statusMu.Unlock()

	e.saveCheckpoint(ctx)
}

// saveCheckpoint сохраняет текущий статус; ошибка не прерывает синхронизацию
func (e *Engine) saveCheckpoint(ctx context.Context) {
	if e.checkpoints == nil {
		return
	}

	e.statusMu.Lock()
	cp := models.SyncCheckpoint{
		LastSyncAt: e.status.LastSyncAt,
		LastError:  e.status.LastError,
	}
	e.statusMu.Unlock()

	if err := e.checkpoints.SaveCheckpoint(ctx, cp); err != nil {
		e.logger.Warn("Failed to save sync checkpoint", "error", err)
	}
}
