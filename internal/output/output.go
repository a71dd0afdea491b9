// Package output renders submission receipts for the terminal.
package output

import (
	"fmt"
	"strings"
	"time"

	"github.com/docgate/docgate/internal/core"
)

// Format represents an output format.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
)

// Formatter renders a set of receipts. Summary is optional.
type Formatter interface {
	FormatReceipts(receipts []*core.Receipt, summary *core.BatchSummary) (string, error)
}

// ParseFormat validates and normalizes a format string.
func ParseFormat(value string) (Format, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "", string(FormatTable):
		return FormatTable, nil
	case string(FormatJSON):
		return FormatJSON, nil
	case string(FormatMarkdown), "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unsupported output format: %s", value)
	}
}

// NewFormatter returns a formatter for the requested format.
func NewFormatter(format Format) Formatter {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Indent: true}
	case FormatMarkdown:
		return &MarkdownFormatter{}
	default:
		return &TableFormatter{}
	}
}

func statusLabel(r *core.Receipt) string {
	switch r.Status {
	case core.StatusAccepted:
		return "accepted"
	case core.StatusRejected:
		return fmt.Sprintf("rejected (%d)", r.StatusCode)
	case core.StatusFailed:
		return "failed"
	case core.StatusNotAdmitted:
		return "not admitted"
	case core.StatusDryRun:
		return "dry run"
	case core.StatusEncodeFailed:
		return "invalid document"
	default:
		return string(r.Status)
	}
}

func describe(r *core.Receipt) string {
	text := r.Error
	if text == "" && r.Status != core.StatusDryRun {
		text = r.Response
	}
	text = strings.Join(strings.Fields(text), " ")
	if len(text) > 80 {
		text = text[:77] + "..."
	}
	return text
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(10 * time.Millisecond).String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func summaryLine(summary *core.BatchSummary) string {
	if summary == nil {
		return ""
	}
	line := fmt.Sprintf("%d/%d accepted", summary.Accepted, summary.Total)
	if summary.Failed > 0 {
		line += fmt.Sprintf(", %d failed", summary.Failed)
	}
	if summary.MaxWaited > 0 {
		line += fmt.Sprintf(", max wait %s", formatDuration(summary.MaxWaited))
	}
	return line
}
