package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/iudanet/fitsync/internal/client/app"
	"github.com/iudanet/fitsync/internal/client/cache"
	"github.com/iudanet/fitsync/internal/client/device"
	"github.com/iudanet/fitsync/internal/models"
)

// Форматы вывода
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Output string
	Check  bool
}

// StatusReport снимок локального состояния клиента
type StatusReport struct {
	Sync      models.SyncStatus `json:"sync" yaml:"sync"`
	Device    device.Identity   `json:"device" yaml:"device"`
	Cache     cache.Stats       `json:"cache" yaml:"cache"`
	Reachable *bool             `json:"reachable,omitempty" yaml:"reachable,omitempty"` // nil - сервер не проверялся
	ServerURL string            `json:"server_url" yaml:"server_url"`
	Pending   []PendingChange   `json:"pending" yaml:"pending"`
}

// PendingChange строка очереди в отчете
type PendingChange struct {
	CreatedAt   time.Time         `json:"created_at" yaml:"created_at"`
	NextRetryAt *time.Time        `json:"next_retry_at,omitempty" yaml:"next_retry_at,omitempty"`
	ChangeID    string            `json:"change_id" yaml:"change_id"`
	Kind        models.ChangeKind `json:"kind" yaml:"kind"`
	EntityType  string            `json:"entity_type" yaml:"entity_type"`
	RecordID    string            `json:"record_id" yaml:"record_id"`
	Priority    models.Priority   `json:"priority" yaml:"priority"`
	LastError   string            `json:"last_error,omitempty" yaml:"last_error,omitempty"`
	RetryCount  int               `json:"retry_count" yaml:"retry_count"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show device, queue and cache state",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return validateOutput(opts.Output)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, a *app.App) error {
				report := buildStatus(ctx, a, opts.Check)
				return writeStatus(cmd.OutOrStdout(), report, opts.Output)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", OutputText, "output format (text|json|yaml)")
	cmd.Flags().BoolVar(&opts.Check, "check", false, "probe the server before reporting")

	return cmd
}

func validateOutput(format string) error {
	switch format {
	case OutputText, OutputJSON, OutputYAML:
		return nil
	default:
		return fmt.Errorf("invalid output %q: must be one of text, json, yaml", format)
	}
}

func buildStatus(ctx context.Context, a *app.App, check bool) StatusReport {
	report := StatusReport{
		Sync:      a.Engine.Status(),
		Device:    a.Device.Identity(),
		Cache:     a.Cache.Stats(),
		ServerURL: a.Config.ServerURL,
		Pending:   []PendingChange{},
	}

	if check {
		reachable := a.Prober.Probe(ctx)
		report.Reachable = &reachable
	}

	for _, c := range a.Engine.Pending() {
		report.Pending = append(report.Pending, PendingChange{
			CreatedAt:   c.CreatedAt,
			NextRetryAt: c.NextRetryAt,
			ChangeID:    c.ChangeID,
			Kind:        c.Kind,
			EntityType:  c.EntityType,
			RecordID:    c.EntityID(),
			Priority:    c.Priority,
			LastError:   c.LastError,
			RetryCount:  c.RetryCount,
		})
	}

	return report
}

func writeStatus(w io.Writer, report StatusReport, format string) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to encode status: %w", err)
		}
		return enc.Close()
	default:
		return statusTemplate.Execute(w, report)
	}
}
