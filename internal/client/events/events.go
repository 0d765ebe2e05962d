// Package events is the observer sink of the sync engine: a small typed
// publish/subscribe bus with a closed, enumerable set of event types.
package events

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/iudanet/fitsync/internal/models"
)

// Type имя события
type Type string

const (
	SyncStart           Type = "syncStart"           // начало цикла drain
	SyncComplete        Type = "syncComplete"        // цикл drain завершён
	SyncError           Type = "syncError"           // терминальная ошибка изменения или ошибка носителя
	ConflictResolved    Type = "conflictResolved"    // конфликт версий разрешён
	ConnectivityChanged Type = "connectivityChanged" // стабильное состояние сети изменилось
	CacheEvicted        Type = "cacheEvicted"        // запись вытеснена из кеша
	ChangeApplied       Type = "changeApplied"       // изменение подтверждено удалённым хранилищем
)

// Types returns every event type the engine can emit.
func Types() []Type {
	return []Type{
		SyncStart,
		SyncComplete,
		SyncError,
		ConflictResolved,
		ConnectivityChanged,
		CacheEvicted,
		ChangeApplied,
	}
}

// Event is a single notification. Only the fields relevant to Type are set.
type Event struct {
	At           time.Time
	Err          error                      // SyncError
	Resolution   *models.ConflictResolution // ConflictResolved
	Record       *models.Record             // ChangeApplied: подтверждённая сервером запись
	Type         Type
	ChangeID     string
	EntityType   string
	EntityID     string
	Connectivity models.Connectivity // ConnectivityChanged
	Key          string              // CacheEvicted
	Reason       string              // CacheEvicted: ttl, capacity
	Applied      int                 // SyncComplete
	Failed       int                 // SyncComplete
	Pending      int                 // SyncStart, SyncComplete
}

// Publisher accepts events. Components depend on it instead of on *Bus.
type Publisher interface {
	Publish(e Event)
}

// Handler receives published events.
type Handler func(e Event)

type subscription struct {
	handler Handler
	types   map[Type]struct{}
}

// Bus delivers events synchronously to subscribers in subscription order.
type Bus struct {
	subs   map[uint64]*subscription
	logger *slog.Logger
	nextID uint64
	mu     sync.RWMutex
}

var _ Publisher = (*Bus)(nil)

// NewBus creates an empty bus
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		subs:   make(map[uint64]*subscription),
		logger: logger,
	}
}

// Subscribe registers h for the given types, or for all types if none given.
// The returned function removes the subscription; calling it twice is safe.
func (b *Bus) Subscribe(h Handler, types ...Type) func() {
	sub := &subscription{handler: h}
	if len(types) > 0 {
		sub.types = make(map[Type]struct{}, len(types))
		for _, t := range types {
			sub.types[t] = struct{}{}
		}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[id] = sub
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// Publish delivers e to every matching subscriber before returning.
// Handlers run outside the bus lock, so they may subscribe or publish themselves.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	ids := make([]uint64, 0, len(b.subs))
	for id, sub := range b.subs {
		if sub.matches(e.Type) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, b.subs[id].handler)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(h, e)
	}
}

// Count returns the number of active subscriptions.
func (b *Bus) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// deliver вызывает обработчик; паника подписчика не должна ронять диспетчер
func (b *Bus) deliver(h Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event handler panicked",
				"event", string(e.Type),
				"panic", r,
			)
		}
	}()
	h(e)
}

func (s *subscription) matches(t Type) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[t]
	return ok
}
