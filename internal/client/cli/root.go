// Package cli implements the fitsync client command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iudanet/fitsync/internal/client/app"
	"github.com/iudanet/fitsync/internal/client/config"
)

// Имена глобальных флагов
const (
	flagConfig   = "config"
	flagServer   = "server"
	flagDB       = "db"
	flagInMemory = "in-memory"
	flagVerbose  = "verbose"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	viper      *viper.Viper
	ConfigFile string
	Verbose    bool

	// AppOptions подменяет удаленное хранилище и часы (для тестов)
	AppOptions app.Options
}

// NewRootCommand creates the root command of the client CLI.
func NewRootCommand(version string) *cobra.Command {
	return newRootCommand(version, &RootOptions{})
}

func newRootCommand(version string, opts *RootOptions) *cobra.Command {
	opts.viper = config.New()

	cmd := &cobra.Command{
		Use:           "fitsync",
		Short:         "Offline-first sync client for fitness coaching data",
		Long:          "fitsync keeps training sessions, check-ins, achievements and preferences\nin a local store and synchronizes them with the remote record server.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.ConfigFile, flagConfig, "", "config file (default: ./fitsync.yaml or the user config dir)")
	flags.String(flagServer, "", "remote record server URL")
	flags.String(flagDB, "", "path to the local database")
	flags.Bool(flagInMemory, false, "keep all state in memory (nothing survives exit)")
	flags.BoolVarP(&opts.Verbose, flagVerbose, "v", false, "verbose logging")

	// Флаги перекрывают файл и окружение
	_ = opts.viper.BindPFlag(config.KeyServerURL, flags.Lookup(flagServer))
	_ = opts.viper.BindPFlag(config.KeyDBPath, flags.Lookup(flagDB))
	_ = opts.viper.BindPFlag(config.KeyInMemory, flags.Lookup(flagInMemory))

	cmd.AddCommand(
		NewRunCommand(opts),
		NewSyncCommand(opts),
		NewStatusCommand(opts),
		NewPutCommand(opts),
		NewGetCommand(opts),
		NewDeleteCommand(opts),
		NewDeviceCommand(opts),
	)

	return cmd
}

// Execute runs the client CLI and returns the process exit code.
func Execute(ctx context.Context, version string, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand(version)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// loadConfig читает конфигурацию с учетом глобальных флагов
func (o *RootOptions) loadConfig() (*config.Config, error) {
	return config.Load(o.viper, o.ConfigFile)
}

// logConfig возвращает настройки журнала: разовые команды пишут только
// предупреждения, если не указан --verbose
func (o *RootOptions) logConfig(cfg *config.Config, daemon bool) config.LogConfig {
	lc := cfg.Log
	switch {
	case o.Verbose:
		lc.Level = "debug"
	case !daemon:
		lc.Level = "warn"
	}
	return lc
}

// withApp открывает клиент, выполняет fn и закрывает клиент
func (o *RootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) (err error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}

	logger, closer := app.NewLogger(o.logConfig(cfg, false), cmd.ErrOrStderr())
	defer func() {
		_ = closer.Close()
	}()

	return o.runApp(cmd.Context(), cfg, logger, fn)
}

func (o *RootOptions) runApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, fn func(ctx context.Context, a *app.App) error) (err error) {
	a, err := app.Open(ctx, cfg, logger, o.AppOptions)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	return fn(ctx, a)
}
