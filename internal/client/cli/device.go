package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/iudanet/fitsync/internal/client/app"
)

// NewDeviceCommand creates the device command with its rename subcommand.
func NewDeviceCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Show this device's identity",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				id := a.Device.Identity()
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Name:     %s\n", id.DisplayName)
				fmt.Fprintf(out, "ID:       %s\n", id.DeviceID)
				fmt.Fprintf(out, "Platform: %s\n", id.Platform)
				fmt.Fprintf(out, "Created:  %s\n", id.CreatedAt.Format("2006-01-02 15:04:05"))
				return nil
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "rename <name>",
		Short: "Change the display name of this device",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.Join(args, " ")
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Device.Rename(ctx, name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Device renamed to %q\n", a.Device.Identity().DisplayName)
				return nil
			})
		},
	})

	return cmd
}
