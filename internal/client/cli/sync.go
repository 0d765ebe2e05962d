package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iudanet/fitsync/internal/client/app"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push pending changes to the server now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				pending := a.Log.Len()
				if pending == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing to sync")
					return nil
				}

				res, err := a.SyncNow(ctx)
				if err != nil {
					return fmt.Errorf("sync failed: %w", err)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Applied:   %d\n", res.Applied)
				fmt.Fprintf(out, "Conflicts: %d\n", res.Conflicts)
				if res.Retrying > 0 {
					fmt.Fprintf(out, "Retrying:  %d\n", res.Retrying)
				}
				if res.Terminal > 0 {
					fmt.Fprintf(out, "Failed:    %d\n", res.Terminal)
				}
				if left := a.Log.Len(); left > 0 {
					fmt.Fprintf(out, "Pending:   %d change(s) still waiting\n", left)
				}
				return nil
			})
		},
	}
}
