package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced clock for deterministic tests.
//
// Timers fire and tickers tick only inside Advance, in deadline order.
// AfterFunc callbacks run synchronously on the goroutine calling Advance.
type Fake struct {
	now     time.Time
	waiters []*fakeWaiter
	mu      sync.Mutex
}

type fakeWaiter struct {
	at      time.Time
	fn      func()
	ch      chan time.Time
	clock   *Fake
	period  time.Duration
	stopped bool
}

// NewFake создает фиктивные часы, начинающие с start
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now returns the current virtual time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// NewTicker creates a ticker that ticks every d of virtual time.
func (f *Fake) NewTicker(d time.Duration) Ticker {
	if d <= 0 {
		panic("clock: non-positive ticker interval")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	w := &fakeWaiter{
		at:     f.now.Add(d),
		ch:     make(chan time.Time, 1),
		clock:  f,
		period: d,
	}
	f.waiters = append(f.waiters, w)
	return fakeTicker{w: w}
}

// AfterFunc schedules fn to run once d of virtual time has passed.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()

	w := &fakeWaiter{
		at:    f.now.Add(d),
		fn:    fn,
		clock: f,
	}
	f.waiters = append(f.waiters, w)
	return fakeTimer{w: w}
}

// Pending returns the number of armed timers and tickers.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.waiters)
}

// Advance moves virtual time forward by d, firing everything that falls due.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		f.mu.Lock()
		w := f.nextDueLocked(target)
		if w == nil {
			f.now = target
			f.mu.Unlock()
			return
		}

		f.now = w.at
		fireAt := w.at
		if w.period > 0 {
			w.at = w.at.Add(w.period)
		} else {
			f.removeLocked(w)
		}
		f.mu.Unlock()

		if w.ch != nil {
			// как и настоящий тикер, пропускаем тик, если читатель не успевает
			select {
			case w.ch <- fireAt:
			default:
			}
		}
		if w.fn != nil {
			w.fn()
		}
	}
}

func (f *Fake) nextDueLocked(target time.Time) *fakeWaiter {
	due := make([]*fakeWaiter, 0, len(f.waiters))
	for _, w := range f.waiters {
		if !w.at.After(target) {
			due = append(due, w)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].at.Before(due[j].at)
	})
	return due[0]
}

func (f *Fake) removeLocked(w *fakeWaiter) bool {
	for i, x := range f.waiters {
		if x == w {
			f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
			return true
		}
	}
	return false
}

type fakeTicker struct {
	w *fakeWaiter
}

func (t fakeTicker) C() <-chan time.Time {
	return t.w.ch
}

func (t fakeTicker) Stop() {
	t.w.stop()
}

type fakeTimer struct {
	w *fakeWaiter
}

func (t fakeTimer) Stop() bool {
	return t.w.stop()
}

func (w *fakeWaiter) stop() bool {
	w.clock.mu.Lock()
	defer w.clock.mu.Unlock()

	if w.stopped {
		return false
	}
	w.stopped = true
	return w.clock.removeLocked(w)
}
