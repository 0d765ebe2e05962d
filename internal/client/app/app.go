// Package app wires the client components together: storage medium, device
// registry, pending change log, cache, conflict resolver, sync engine and
// connectivity monitoring.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/fitsync/internal/client/api"
	"github.com/iudanet/fitsync/internal/client/cache"
	"github.com/iudanet/fitsync/internal/client/changelog"
	"github.com/iudanet/fitsync/internal/client/config"
	"github.com/iudanet/fitsync/internal/client/connectivity"
	"github.com/iudanet/fitsync/internal/client/data"
	"github.com/iudanet/fitsync/internal/client/device"
	"github.com/iudanet/fitsync/internal/client/events"
	"github.com/iudanet/fitsync/internal/client/storage"
	"github.com/iudanet/fitsync/internal/client/storage/boltdb"
	"github.com/iudanet/fitsync/internal/client/storage/memory"
	"github.com/iudanet/fitsync/internal/client/syncer"
	"github.com/iudanet/fitsync/internal/clock"
	"github.com/iudanet/fitsync/internal/conflict"
)

// DefaultOwnerID владелец записей, если owner_id не задан
const DefaultOwnerID = "local"

// medium носитель клиента: коллекции плюс контрольная точка синхронизации
type medium interface {
	storage.Medium
	storage.CheckpointStorage
	Close() error
}

// Options overrides collaborators, mainly for tests.
type Options struct {
	Remote  syncer.RemoteStore   // по умолчанию HTTP клиент для cfg.ServerURL
	Checker connectivity.Checker // по умолчанию health check того же клиента
	Clock   clock.Clock          // по умолчанию системные часы
}

// App is an opened client.
type App struct {
	Config  *config.Config
	Bus     *events.Bus
	Device  *device.Registry
	Log     *changelog.Log
	Cache   *cache.Cache
	Engine  *syncer.Engine
	Monitor *connectivity.Monitor
	Prober  *connectivity.Prober
	Data    data.Service
	Remote  syncer.RemoteStore

	storage     medium
	logger      *slog.Logger
	unsubscribe func()
}

// Open opens the storage medium, restores persisted state and wires the engine.
// The client starts offline until connectivity is confirmed.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (*App, error) {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}

	st, err := openMedium(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, storage: st, logger: logger}
	if err := a.wire(ctx, clk, opts); err != nil {
		_ = st.Close()
		return nil, err
	}
	return a, nil
}

func openMedium(ctx context.Context, cfg *config.Config) (medium, error) {
	if cfg.InMemory {
		return memory.New(), nil
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	st, err := boltdb.New(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return st, nil
}

func (a *App) wire(ctx context.Context, clk clock.Clock, opts Options) error {
	cfg := a.Config

	a.Bus = events.NewBus(a.logger)
	a.unsubscribe = a.Bus.Subscribe(logEviction(a.logger), events.CacheEvicted)

	var err error
	a.Device, err = device.Open(ctx, a.storage, clk, a.logger)
	if err != nil {
		return err
	}

	a.Log = changelog.New(a.storage, clk, cfg.LogOptions(), a.logger)
	if err := a.Log.Load(ctx); err != nil {
		return fmt.Errorf("failed to load pending changes: %w", err)
	}

	a.Cache = cache.New(a.storage, clk, a.Bus, cfg.CacheOptions(), a.logger)
	if err := a.Cache.Load(ctx); err != nil {
		return fmt.Errorf("failed to load cache: %w", err)
	}

	strategies, err := cfg.Strategies()
	if err != nil {
		return err
	}
	resolver, err := conflict.NewResolver(clk, strategies)
	if err != nil {
		return err
	}

	a.Remote = opts.Remote
	checker := opts.Checker
	if a.Remote == nil {
		client := api.NewClient(cfg.ServerURL, cfg.Token)
		a.Remote = client
		if checker == nil {
			checker = client
		}
	}
	if checker == nil {
		return errors.New("connectivity checker is required with a custom remote store")
	}

	a.Engine = syncer.New(syncer.Deps{
		Remote:      a.Remote,
		Log:         a.Log,
		Cache:       a.Cache,
		Resolver:    resolver,
		Publisher:   a.Bus,
		Clock:       clk,
		Checkpoints: a.storage,
		Logger:      a.logger,
	}, cfg.EngineOptions())
	if err := a.Engine.Start(ctx); err != nil {
		return err
	}

	a.Monitor = connectivity.NewMonitor(clk, a.Engine, a.Bus, cfg.Connectivity.Debounce, a.logger)
	a.Prober = connectivity.NewProber(checker, a.Monitor, clk,
		cfg.Connectivity.ProbeInterval, cfg.Connectivity.ProbeTimeout, a.logger)

	owner := cfg.OwnerID
	if owner == "" {
		owner = DefaultOwnerID
	}
	a.Data = data.NewService(a.Engine, a.Cache, a.Remote, clk, data.Identity{
		OwnerID:  owner,
		DeviceID: a.Device.DeviceID(),
	}, a.logger)

	a.logger.Info("Client opened",
		"device_id", a.Device.DeviceID(),
		"pending", a.Log.Len(),
		"cached", a.Cache.Stats().Entries,
	)
	return nil
}

// Run drives the engine loop, the health prober and the cache sweeper until
// ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.Engine.Run(ctx) })
	g.Go(func() error { return a.Prober.Run(ctx) })
	g.Go(func() error { return a.Cache.Run(ctx) })

	return g.Wait()
}

// SyncNow probes the remote store and, if it is reachable, drains the
// pending log immediately without waiting for the connectivity debounce.
func (a *App) SyncNow(ctx context.Context) (syncer.DrainResult, error) {
	if !a.Prober.Probe(ctx) {
		return syncer.DrainResult{}, fmt.Errorf("remote store %s is unreachable: %w", a.Config.ServerURL, syncer.ErrOffline)
	}

	// Разовая команда: подтверждённый ответ сервера достаточен
	a.Engine.OnOnline()
	return a.Engine.ForceSync(ctx)
}

// Close persists cache access statistics and closes the storage medium.
func (a *App) Close() error {
	if a.Monitor != nil {
		a.Monitor.Stop()
	}

	var errs []error
	if a.Cache != nil {
		if err := a.Cache.Flush(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("failed to flush cache: %w", err))
		}
	}
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
	if err := a.storage.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close storage: %w", err))
	}
	return errors.Join(errs...)
}

// logEviction журналирует вытеснения из кеша; остальные события журналируют их источники
func logEviction(logger *slog.Logger) events.Handler {
	return func(e events.Event) {
		logger.Debug("Cache entry evicted", "key", e.Key, "reason", e.Reason)
	}
}
