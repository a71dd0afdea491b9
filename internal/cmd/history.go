package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/docgate/docgate/internal/core"
	"github.com/docgate/docgate/internal/core/store"
	"github.com/docgate/docgate/internal/output"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded submission receipts",
	Long:  "List receipts from the submission ledger, newest first. Document contents are never stored.",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

var historyPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete receipts older than a cutoff",
	Args:  cobra.NoArgs,
	RunE:  runHistoryPurge,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyPurgeCmd)

	historyCmd.Flags().Int("limit", 50, "maximum receipts to show")
	historyCmd.Flags().String("doc-id", "", "only receipts for this document ID")
	historyCmd.Flags().Bool("failed", false, "only receipts that were not accepted")
	historyCmd.Flags().Duration("since", 0, "only receipts newer than this age (e.g. 24h)")
	historyCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json|markdown")
	historyCmd.Flags().String("out", "", "Write output to a file (default stdout)")

	historyPurgeCmd.Flags().Duration("before", 0, "delete receipts older than this age (default ledger.retention)")
	historyPurgeCmd.Flags().Bool("yes", false, "Confirm destructive purge")
	historyPurgeCmd.Flags().Bool("dry-run", false, "report how many receipts would be deleted")
	historyPurgeCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json")
}

func runHistory(cmd *cobra.Command, args []string) error {
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	limit, _ := flags.GetInt("limit")
	docID, _ := flags.GetString("doc-id")
	failed, _ := flags.GetBool("failed")
	since, _ := flags.GetDuration("since")
	outPath, _ := flags.GetString("out")

	query := store.SubmissionQuery{
		DocID:      strings.TrimSpace(docID),
		FailedOnly: failed,
		Limit:      limit,
	}
	if since > 0 {
		query.Since = time.Now().Add(-since)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cmd.Context(), cfg.Store)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup

	receipts, err := db.ListSubmissions(cmd.Context(), query)
	if err != nil {
		return err
	}

	sink, err := openSink(outPath, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() { _ = sink.close() }()

	return writeHistory(sink.writer, format, receipts)
}

func writeHistory(w io.Writer, format output.Format, receipts []*core.Receipt) error {
	if len(receipts) == 0 && format == output.FormatTable {
		_, err := fmt.Fprint(w, ascii.DrawBox("Submission History\n\n(no receipts recorded)", 0))
		return err
	}
	rendered, err := output.NewFormatter(format).FormatReceipts(receipts, nil)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, rendered)
	return err
}

func runHistoryPurge(cmd *cobra.Command, args []string) error {
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}
	if format != output.FormatJSON && format != output.FormatTable {
		return fmt.Errorf("unsupported output format: %s", format)
	}

	flags := cmd.Flags()
	before, _ := flags.GetDuration("before")
	yes, _ := flags.GetBool("yes")
	dryRun, _ := flags.GetBool("dry-run")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if before <= 0 {
		before = cfg.Ledger.Retention
	}
	if before <= 0 {
		return errors.New("--before is required when ledger.retention is not set")
	}
	if !yes && !dryRun {
		return errors.New("purge requires --yes (or use --dry-run)")
	}

	cutoff := time.Now().Add(-before)

	db, err := openStore(cmd.Context(), cfg.Store)
	if err != nil {
		return err
	}
	defer db.Close() // nolint:errcheck // best-effort cleanup

	matched, err := db.CountSubmissions(cmd.Context(), store.SubmissionQuery{Before: cutoff})
	if err != nil {
		return err
	}

	var deleted int64
	if !dryRun {
		deleted, err = db.PurgeSubmissions(cmd.Context(), cutoff)
		if err != nil {
			return err
		}
	}
	return writePurgeResult(cmd.OutOrStdout(), format, cutoff, matched, deleted, dryRun)
}

func writePurgeResult(w io.Writer, format output.Format, cutoff time.Time, matched int, deleted int64, dryRun bool) error {
	if format == output.FormatJSON {
		payload, err := json.MarshalIndent(map[string]any{
			"cutoff":  cutoff.UTC().Format(time.RFC3339),
			"matched": matched,
			"deleted": deleted,
			"dry_run": dryRun,
		}, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(payload))
		return err
	}

	line := fmt.Sprintf("Deleted %d/%d receipt(s)", deleted, matched)
	if dryRun {
		line = fmt.Sprintf("Would delete %d receipt(s)", matched)
	}
	lines := []string{"Ledger Purge", "", line, "Cutoff: " + cutoff.UTC().Format(time.RFC3339)}
	_, err := fmt.Fprint(w, ascii.DrawBox(strings.Join(lines, "\n"), 0))
	return err
}
