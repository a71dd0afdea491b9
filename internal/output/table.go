package output

import (
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/docgate/docgate/internal/core"
)

// TableFormatter renders receipts as an ASCII table.
type TableFormatter struct{}

// FormatReceipts renders one row per receipt with an optional summary footer.
func (f *TableFormatter) FormatReceipts(receipts []*core.Receipt, summary *core.BatchSummary) (string, error) {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Doc ID", "Source", "Status", "Waited", "Took", "Submitted", "Notes"})

	for _, r := range receipts {
		if r == nil {
			continue
		}
		t.AppendRow(table.Row{
			r.DocID,
			r.Source,
			statusLabel(r),
			formatDuration(r.Waited),
			formatDuration(r.Duration),
			formatTime(r.SubmittedAt),
			describe(r),
		})
	}

	if line := summaryLine(summary); line != "" {
		t.AppendFooter(table.Row{"", "", line, "", "", "", ""})
	}

	return t.Render(), nil
}
