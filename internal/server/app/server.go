package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/fitsync/internal/clock"
	"github.com/iudanet/fitsync/internal/server/jwt"
	"github.com/iudanet/fitsync/internal/server/middleware"
	"github.com/iudanet/fitsync/internal/server/storage/sqlite"
)

// Значения по умолчанию для флагов сервера
const (
	DefaultAddr            = ":8080"
	DefaultDBPath          = "fitsync.db"
	DefaultRateLimit       = 600
	DefaultRateWindow      = time.Minute
	DefaultShutdownTimeout = 10 * time.Second
)

// Config параметры запуска сервера
type Config struct {
	Addr            string
	DBPath          string
	JWTSecret       string
	RateLimit       int
	RateWindow      time.Duration
	ShutdownTimeout time.Duration
}

// Validate проверяет обязательные параметры
func (c Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt secret is required"))
	}
	if c.RateLimit <= 0 {
		errs = append(errs, fmt.Errorf("rate limit must be positive, got %d", c.RateLimit))
	}
	if c.RateWindow <= 0 {
		errs = append(errs, fmt.Errorf("rate window must be positive, got %s", c.RateWindow))
	}
	return errors.Join(errs...)
}

// Server HTTP сервер записей
type Server struct {
	http    *http.Server
	store   *sqlite.Storage
	limiter *middleware.RateLimiter
	logger  *slog.Logger
	cfg     Config
}

// New открывает хранилище и собирает сервер
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	store, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateWindow, clock.Real(), logger)
	router := NewRouter(logger, store, jwt.NewService(cfg.JWTSecret), limiter)

	return &Server{
		http: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
		store:   store,
		limiter: limiter,
		logger:  logger,
		cfg:     cfg,
	}, nil
}

// Handler возвращает корневой обработчик сервера
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Serve обслуживает ln до отмены ctx, затем корректно останавливается
// и закрывает хранилище
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("Server listening", "addr", ln.Addr().String())
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return s.limiter.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("failed to shutdown http server: %w", err)
		}
		return nil
	})

	err := g.Wait()
	if closeErr := s.store.Close(); closeErr != nil {
		err = errors.Join(err, fmt.Errorf("failed to close storage: %w", closeErr))
	}
	return err
}

// ListenAndServe слушает cfg.Addr до отмены ctx
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		_ = s.store.Close()
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}
