package output

import (
	"encoding/json"

	"github.com/docgate/docgate/internal/core"
)

// JSONFormatter renders receipts as JSON.
type JSONFormatter struct {
	Indent bool
}

type receiptsDocument struct {
	Receipts []*core.Receipt   `json:"receipts"`
	Summary  *core.BatchSummary `json:"summary,omitempty"`
}

// FormatReceipts renders {"receipts": [...], "summary": {...}}.
func (f *JSONFormatter) FormatReceipts(receipts []*core.Receipt, summary *core.BatchSummary) (string, error) {
	doc := receiptsDocument{Receipts: receipts, Summary: summary}
	if doc.Receipts == nil {
		doc.Receipts = []*core.Receipt{}
	}

	var (
		data []byte
		err  error
	)
	if f.Indent {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return "", err
	}
	return string(data), nil
}
