package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/iudanet/fitsync/internal/client/app"
)

// NewRunCommand creates the run command.
func NewRunCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the sync daemon",
		Long: `Run the sync daemon in the foreground.

The daemon probes the remote server, drains pending changes whenever the
client is online (and on every sync interval), and sweeps expired cache
entries. It stops on SIGINT or SIGTERM.

Example:
  fitsync run --server https://sync.example.com
  FITSYNC_LOG_FILE=/var/log/fitsync.log fitsync run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, opts)
		},
	}
}

func runDaemon(cmd *cobra.Command, opts *RootOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	logger, closer := app.NewLogger(opts.logConfig(cfg, true), cmd.ErrOrStderr())
	defer func() {
		_ = closer.Close()
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return opts.runApp(ctx, cfg, logger, func(ctx context.Context, a *app.App) error {
		logger.Info("Sync daemon started",
			"server_url", cfg.ServerURL,
			"device_id", a.Device.DeviceID(),
			"sync_interval", cfg.Sync.Interval,
		)

		err := a.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		logger.Info("Sync daemon stopped", "pending", a.Log.Len())
		return nil
	})
}
