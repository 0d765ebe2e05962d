package cli

import (
	"text/template"
	"time"

	"github.com/dustin/go-humanize"
)

var templateFuncs = template.FuncMap{
	"bytes": func(n int64) string {
		if n < 0 {
			n = 0
		}
		return humanize.IBytes(uint64(n))
	},
	"ago": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return humanize.Time(t)
	},
	"retryAt": func(t *time.Time) string {
		if t == nil {
			return "now"
		}
		return humanize.Time(*t)
	},
	"reachable": func(r *bool) string {
		switch {
		case r == nil:
			return "not checked"
		case *r:
			return "reachable"
		default:
			return "unreachable"
		}
	},
}

var statusTemplate = template.Must(template.New("status").Funcs(templateFuncs).Parse(`=== Device ===
Name:      {{.Device.DisplayName}}
ID:        {{.Device.DeviceID}}
Platform:  {{.Device.Platform}}

=== Sync ===
Server:    {{.ServerURL}} ({{reachable .Reachable}})
Last sync: {{ago .Sync.LastSyncAt}}
Pending:   {{len .Pending}}
{{- range .Pending}}
  - {{.Priority}} {{.Kind}} {{.EntityType}}/{{.RecordID}} (retries: {{.RetryCount}}, next: {{retryAt .NextRetryAt}})
{{- if .LastError}}
    last error: {{.LastError}}
{{- end}}
{{- end}}

=== Cache ===
Policy:    {{.Cache.Policy}}
Entries:   {{.Cache.Entries}}
Size:      {{bytes .Cache.SizeBytes}} of {{bytes .Cache.MaxSizeBytes}}
Hits:      {{.Cache.Hits}}
Misses:    {{.Cache.Misses}}
Evictions: {{.Cache.Evictions}}
`))
