package output

import (
	"fmt"
	"strings"

	"github.com/docgate/docgate/internal/core"
)

// MarkdownFormatter renders receipts as a markdown table.
type MarkdownFormatter struct{}

// FormatReceipts renders receipts as markdown.
func (f *MarkdownFormatter) FormatReceipts(receipts []*core.Receipt, summary *core.BatchSummary) (string, error) {
	var b strings.Builder
	b.WriteString("| Doc ID | Status | Waited | Notes |\n")
	b.WriteString("| --- | --- | --- | --- |\n")
	for _, r := range receipts {
		if r == nil {
			continue
		}
		b.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
			escapeMarkdown(r.DocID),
			escapeMarkdown(statusLabel(r)),
			formatDuration(r.Waited),
			escapeMarkdown(describe(r)),
		))
	}
	if line := summaryLine(summary); line != "" {
		b.WriteString("\n**Summary:** ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func escapeMarkdown(value string) string {
	return strings.ReplaceAll(value, "|", "\\|")
}
