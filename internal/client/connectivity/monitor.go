// Package connectivity tracks online/offline transitions. Raw signals from
// the platform or the health prober are debounced before the sync engine and
// observers hear about them.
package connectivity

import (
	"log/slog"
	"sync"
	"time"

	"github.com/iudanet/fitsync/internal/client/events"
	"github.com/iudanet/fitsync/internal/clock"
	"github.com/iudanet/fitsync/internal/models"
)

// DefaultDebounce минимальная длительность нового состояния сети
const DefaultDebounce = 2 * time.Second

// Listener is notified of stable connectivity transitions.
// *syncer.Engine satisfies it.
type Listener interface {
	OnOnline()
	OnOffline()
}

// Monitor debounces raw connectivity reports. A new state is confirmed only
// after it has been observed continuously for the debounce interval; a flip
// that reverts sooner is dropped. The monitor starts offline.
type Monitor struct {
	clock     clock.Clock
	listener  Listener
	publisher events.Publisher
	logger    *slog.Logger
	timer     clock.Timer
	state     models.Connectivity // подтверждённое состояние
	observed  models.Connectivity // последний сырой сигнал
	debounce  time.Duration
	gen       uint64 // поколение таймера: отбрасывает устаревшие срабатывания
	mu        sync.Mutex
}

// NewMonitor creates a monitor. listener and publisher may be nil.
func NewMonitor(clk clock.Clock, listener Listener, publisher events.Publisher, debounce time.Duration, logger *slog.Logger) *Monitor {
	if debounce < 0 {
		debounce = DefaultDebounce
	}

	return &Monitor{
		clock:     clk,
		listener:  listener,
		publisher: publisher,
		logger:    logger,
		state:     models.Offline,
		observed:  models.Offline,
		debounce:  debounce,
	}
}

// Report records a raw connectivity signal.
func (m *Monitor) Report(online bool) {
	next := models.Offline
	if online {
		next = models.Online
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if next == m.observed {
		return
	}
	m.observed = next
	m.gen++

	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}

	if next == m.state {
		// Кратковременный сбой закончился раньше debounce
		m.logger.Debug("Connectivity flap ignored", "state", string(next))
		return
	}

	gen := m.gen
	m.timer = m.clock.AfterFunc(m.debounce, func() { m.confirm(gen) })
}

// State returns the confirmed connectivity.
func (m *Monitor) State() models.Connectivity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stop cancels a pending confirmation.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Monitor) confirm(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.observed == m.state {
		m.mu.Unlock()
		return
	}
	m.state = m.observed
	m.timer = nil
	state := m.state
	m.mu.Unlock()

	m.logger.Info("Connectivity changed", "state", string(state))

	// Уведомляем вне блокировки: обработчики могут обращаться к монитору
	if m.publisher != nil {
		m.publisher.Publish(events.Event{
			Type:         events.ConnectivityChanged,
			At:           m.clock.Now(),
			Connectivity: state,
		})
	}
	if m.listener == nil {
		return
	}
	if state == models.Online {
		m.listener.OnOnline()
	} else {
		m.listener.OnOffline()
	}
}
