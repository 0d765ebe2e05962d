package connectivity

import (
	"context"
	"log/slog"
	"time"

	"github.com/iudanet/fitsync/internal/clock"
)

// Значения по умолчанию для проб
const (
	DefaultProbeInterval = 10 * time.Second
	DefaultProbeTimeout  = 5 * time.Second
)

//go:generate moq -out checker_mock.go . Checker

// Checker checks whether the remote store is reachable.
type Checker interface {
	Check(ctx context.Context) error
}

// Reporter accepts raw connectivity signals. *Monitor satisfies it.
type Reporter interface {
	Report(online bool)
}

// Prober periodically probes the remote store and reports the outcome.
// It stands in for platform network callbacks on a headless client.
type Prober struct {
	checker  Checker
	reporter Reporter
	clock    clock.Clock
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

// NewProber creates a prober. Non-positive durations fall back to defaults.
func NewProber(checker Checker, reporter Reporter, clk clock.Clock, interval, timeout time.Duration, logger *slog.Logger) *Prober {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	return &Prober{
		checker:  checker,
		reporter: reporter,
		clock:    clk,
		logger:   logger,
		interval: interval,
		timeout:  timeout,
	}
}

// Probe performs a single check and reports the result.
func (p *Prober) Probe(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.checker.Check(probeCtx)
	if err != nil {
		p.logger.Debug("Health probe failed", "error", err)
	}
	if ctx.Err() != nil {
		// Остановка не означает потерю сети
		return false
	}

	p.reporter.Report(err == nil)
	return err == nil
}

// Run probes immediately and then every interval until ctx is cancelled.
func (p *Prober) Run(ctx context.Context) error {
	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			p.Probe(ctx)
		}
	}
}
