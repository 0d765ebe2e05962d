package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/iudanet/fitsync/internal/client/app"
	"github.com/iudanet/fitsync/internal/client/data"
	"github.com/iudanet/fitsync/internal/client/syncer"
	"github.com/iudanet/fitsync/internal/models"
)

// WriteOptions holds flags shared by put and delete.
type WriteOptions struct {
	*RootOptions
	Priority string
	Sync     bool
}

func (o *WriteOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Priority, "priority", "p", string(models.PriorityMedium), "dispatch priority (high|medium|low)")
	cmd.Flags().BoolVar(&o.Sync, "sync", false, "push the change right away if the server is reachable")
}

func (o *WriteOptions) priority() (models.Priority, error) {
	p := models.Priority(strings.ToLower(o.Priority))
	if !p.Valid() {
		return "", fmt.Errorf("invalid priority %q: must be one of high, medium, low", o.Priority)
	}
	return p, nil
}

// pushNow пытается сразу отправить очередь; недоступность сервера не ошибка
func (o *WriteOptions) pushNow(ctx context.Context, cmd *cobra.Command, a *app.App) {
	if !o.Sync {
		return
	}
	res, err := a.SyncNow(ctx)
	if err != nil {
		if errors.Is(err, syncer.ErrOffline) {
			fmt.Fprintln(cmd.ErrOrStderr(), "Server is unreachable, the change stays queued")
			return
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: sync failed: %v\n", err)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Synced: %d applied, %d conflict(s)\n", res.Applied, res.Conflicts)
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WriteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "put <entity-type> <id> [payload|-]",
		Short: "Create or update a record locally and queue it for sync",
		Long: `Create or update a record. The payload is a JSON document given as the
third argument, or read from stdin when it is "-" or omitted.

Example:
  fitsync put session 7d0c... '{"exercise":"squat","reps":12}' -p high
  cat checkin.json | fitsync put checkin 2026-05-01 --sync`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			priority, err := opts.priority()
			if err != nil {
				return err
			}
			payload, err := readPayload(cmd.InOrStdin(), cmd.ErrOrStderr(), args[2:])
			if err != nil {
				return err
			}

			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				rec, err := a.Data.Save(ctx, args[0], args[1], payload, priority)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s/%s at version %d\n", rec.EntityType, rec.ID, rec.Version)
				opts.pushNow(ctx, cmd, a)
				return nil
			})
		},
	}
	opts.bind(cmd)

	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WriteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete <entity-type> <id>",
		Short: "Delete a record locally and queue the remote delete",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			priority, err := opts.priority()
			if err != nil {
				return err
			}

			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Data.Delete(ctx, args[0], args[1], priority); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued delete of %s/%s\n", args[0], args[1])
				opts.pushNow(ctx, cmd, a)
				return nil
			})
		},
	}
	opts.bind(cmd)

	return cmd
}

// NewGetCommand creates the get command.
func NewGetCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <entity-type> <id>",
		Short: "Print a record, from the cache or the server",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				rec, err := a.Data.Get(ctx, args[0], args[1])
				// Промах кеша при неподтвержденной сети: проверяем сервер и повторяем
				if errors.Is(err, data.ErrNotCached) && a.Prober.Probe(ctx) {
					a.Engine.OnOnline()
					rec, err = a.Data.Get(ctx, args[0], args[1])
				}
				if err != nil {
					if errors.Is(err, data.ErrNotFound) {
						return fmt.Errorf("%s/%s not found", args[0], args[1])
					}
					return err
				}

				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rec)
			})
		},
	}
}

// readPayload читает JSON из аргумента или stdin
func readPayload(stdin io.Reader, stderr io.Writer, args []string) (json.RawMessage, error) {
	var raw []byte
	if len(args) == 0 || args[0] == "-" {
		if isTerminal(stdin) {
			fmt.Fprintln(stderr, "Enter the JSON payload, finish with Ctrl-D:")
		}
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read payload from stdin: %w", err)
		}
		raw = b
	} else {
		raw = []byte(args[0])
	}

	raw = []byte(strings.TrimSpace(string(raw)))
	if len(raw) == 0 {
		return nil, errors.New("payload is empty")
	}
	if !json.Valid(raw) {
		return nil, errors.New("payload must be valid JSON")
	}
	return raw, nil
}

// isTerminal сообщает, подключен ли r к интерактивному терминалу
func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
