package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iudanet/fitsync/internal/server/app"
	"github.com/iudanet/fitsync/internal/server/jwt"
	"github.com/iudanet/fitsync/pkg/api"
)

// Ключи настроек сервера; переменные окружения с префиксом FITSYNC
const (
	keyAddr       = "addr"
	keyDBPath     = "db"
	keyJWTSecret  = "jwt_secret"
	keyRateLimit  = "rate_limit"
	keyRateWindow = "rate_window"
	keyLogLevel   = "log_level"
)

func newRootCommand(version string) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("FITSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "fitsync-server",
		Short:         "Versioned record store for fitsync clients",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("jwt-secret", "", "HMAC secret for access tokens (env FITSYNC_JWT_SECRET)")
	_ = v.BindPFlag(keyJWTSecret, cmd.PersistentFlags().Lookup("jwt-secret"))

	cmd.AddCommand(newServeCommand(v), newTokenCommand(v))
	return cmd
}

func newServeCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the record server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(v.GetString(keyLogLevel))
			if err != nil {
				return err
			}

			cfg := app.Config{
				Addr:       v.GetString(keyAddr),
				DBPath:     v.GetString(keyDBPath),
				JWTSecret:  v.GetString(keyJWTSecret),
				RateLimit:  v.GetInt(keyRateLimit),
				RateWindow: v.GetDuration(keyRateWindow),
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}

			logger.Info("Server starting", "addr", cfg.Addr, "db", cfg.DBPath)
			if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			logger.Info("Server stopped")
			return nil
		},
	}

	flags := cmd.Flags()
	flags.String("addr", app.DefaultAddr, "listen address")
	flags.String("db", app.DefaultDBPath, "path to the SQLite database")
	flags.Int("rate-limit", app.DefaultRateLimit, "requests allowed per owner per window")
	flags.Duration("rate-window", app.DefaultRateWindow, "rate limit window")
	flags.String("log-level", "info", "log level (debug|info|warn|error)")

	_ = v.BindPFlag(keyAddr, flags.Lookup("addr"))
	_ = v.BindPFlag(keyDBPath, flags.Lookup("db"))
	_ = v.BindPFlag(keyRateLimit, flags.Lookup("rate-limit"))
	_ = v.BindPFlag(keyRateWindow, flags.Lookup("rate-window"))
	_ = v.BindPFlag(keyLogLevel, flags.Lookup("log-level"))

	return cmd
}

func newTokenCommand(v *viper.Viper) *cobra.Command {
	var (
		ownerID string
		ttl     time.Duration
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for an owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := v.GetString(keyJWTSecret)
			if secret == "" {
				return errors.New("jwt secret is required")
			}
			if ownerID == "" {
				return errors.New("--owner is required")
			}

			token, err := jwt.NewService(secret).Issue(ownerID, ttl)
			if err != nil {
				return fmt.Errorf("failed to issue token: %w", err)
			}

			if !asJSON {
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(api.TokenResponse{
				AccessToken: token,
				OwnerID:     ownerID,
				ExpiresIn:   int64(ttl.Seconds()),
			})
		},
	}

	cmd.Flags().StringVar(&ownerID, "owner", "", "owner ID the token is issued for")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the token as JSON")

	return cmd
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}
