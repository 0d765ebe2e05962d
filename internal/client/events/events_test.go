package events

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus() *Bus {
	return NewBus(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBus_SubscribeFiltersByType(t *testing.T) {
	bus := newTestBus()

	var all, errs []Type
	bus.Subscribe(func(e Event) { all = append(all, e.Type) })
	bus.Subscribe(func(e Event) { errs = append(errs, e.Type) }, SyncError)

	bus.Publish(Event{Type: SyncStart})
	bus.Publish(Event{Type: SyncError})
	bus.Publish(Event{Type: SyncComplete})

	assert.Equal(t, []Type{SyncStart, SyncError, SyncComplete}, all)
	assert.Equal(t, []Type{SyncError}, errs)
}

func TestBus_DeliveryOrder(t *testing.T) {
	bus := newTestBus()

	var order []int
	for i := 0; i < 5; i++ {
		bus.Subscribe(func(e Event) { order = append(order, i) })
	}

	bus.Publish(Event{Type: CacheEvicted})
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := newTestBus()

	calls := 0
	unsubscribe := bus.Subscribe(func(e Event) { calls++ })
	require.Equal(t, 1, bus.Count())

	bus.Publish(Event{Type: SyncStart})
	unsubscribe()
	unsubscribe()
	bus.Publish(Event{Type: SyncStart})

	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, bus.Count())
}

func TestBus_HandlerPanicIsContained(t *testing.T) {
	bus := newTestBus()

	delivered := false
	bus.Subscribe(func(e Event) { panic("boom") })
	bus.Subscribe(func(e Event) { delivered = true })

	assert.NotPanics(t, func() {
		bus.Publish(Event{Type: ConflictResolved})
	})
	assert.True(t, delivered)
}

func TestBus_HandlerMayPublish(t *testing.T) {
	bus := newTestBus()

	var seen []Type
	bus.Subscribe(func(e Event) {
		seen = append(seen, e.Type)
		if e.Type == SyncStart {
			bus.Publish(Event{Type: SyncComplete})
		}
	})

	bus.Publish(Event{Type: SyncStart})
	assert.Equal(t, []Type{SyncStart, SyncComplete}, seen)
}

func TestTypes(t *testing.T) {
	types := Types()
	assert.Len(t, types, 7)
	assert.Contains(t, types, ConnectivityChanged)
	assert.Contains(t, types, ChangeApplied)
}
