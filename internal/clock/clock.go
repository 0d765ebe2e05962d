// Package clock абстрагирует время, таймеры и тикеры, чтобы планировщик
// синхронизации можно было тестировать в виртуальном времени.
package clock

import "time"

// Clock источник времени и таймеров
type Clock interface {
	// Now возвращает текущее время
	Now() time.Time

	// NewTicker создает тикер с периодом d
	NewTicker(d time.Duration) Ticker

	// AfterFunc вызывает f в отдельной горутине после истечения d
	AfterFunc(d time.Duration, f func()) Timer
}

// Ticker periodically delivers ticks on C.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Timer is a cancellable one-shot callback.
type Timer interface {
	// Stop отменяет таймер; возвращает false, если он уже сработал или был остановлен
	Stop() bool
}

// Real returns the wall clock.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time {
	return r.t.C
}

func (r *realTicker) Stop() {
	r.t.Stop()
}
