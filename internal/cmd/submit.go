package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/docgate/docgate/internal/config"
	"github.com/docgate/docgate/internal/core"
	"github.com/docgate/docgate/internal/core/codec"
	"github.com/docgate/docgate/internal/core/submit"
	"github.com/docgate/docgate/internal/observability"
	"github.com/docgate/docgate/internal/output"
)

// errSubmissionsFailed is returned when at least one document was not accepted.
var errSubmissionsFailed = errors.New("one or more documents were not accepted")

var submitCmd = &cobra.Command{
	Use:   "submit FILE...",
	Short: "Submit documents through the admission gate",
	Long: `Submit one or more documents (JSON or YAML, "-" for JSON on stdin).

All documents queue on a single gate concurrently, so no more than --limit
submissions start in any --period. Each document is sent exactly once; a
failed send still uses its quota unit.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)

	submitCmd.Flags().String("signature", "", "detached signature sent with every document")
	submitCmd.Flags().String("signature-file", "", "read the signature from a file")
	submitCmd.Flags().Int("limit", 0, "submissions admitted per period (default from gate.limit)")
	submitCmd.Flags().String("period", "", "window period: second, minute, hour, day, or a duration")
	submitCmd.Flags().Duration("max-wait", 0, "give up on a document after waiting this long for quota (0 waits forever)")
	submitCmd.Flags().String("output-format", string(output.FormatTable), "Output format: table|json|markdown")
	submitCmd.Flags().String("out", "", "Write output to a file (default stdout)")
	submitCmd.Flags().Bool("dry-run", false, "encode and print documents without sending them")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	format, err := resolveOutputFormat(cmd)
	if err != nil {
		return err
	}
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyGateFlags(cmd, cfg); err != nil {
		return err
	}

	signature, err := resolveSignature(cmd)
	if err != nil {
		return err
	}
	if signature == "" && !dryRun {
		return errors.New("--signature or --signature-file is required (or use --dry-run)")
	}

	requests, err := loadRequests(args, cmd.InOrStdin(), signature, time.Now())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	logger := observability.CLILogger
	rt, err := newGateRuntime(ctx, cfg, runtimeOptions{dryRun: dryRun, logger: logger})
	if err != nil {
		return err
	}
	defer rt.Close()

	if logger != nil {
		logger.Debug("Submitting documents",
			zap.Int("documents", len(requests)),
			zap.Int("limit", cfg.Gate.Limit),
			zap.String("period", cfg.Gate.Period),
			zap.Bool("dry_run", dryRun))
	}

	receipts, batchErr := rt.submitter.SubmitBatch(ctx, requests)
	if batchErr != nil && logger != nil {
		logger.Debug("Batch finished with errors", zap.Error(batchErr))
	}
	summary := core.Summarize(receipts, time.Now().UTC())

	outPath, err := cmd.Flags().GetString("out")
	if err != nil {
		return err
	}
	sink, err := openSink(outPath, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer func() { _ = sink.close() }()

	if err := writeReceipts(sink.writer, format, receipts, &summary, dryRun); err != nil {
		return err
	}

	return batchResult(summary, batchErr)
}

// batchResult turns a batch outcome into the command error. The per-document
// errors stay attached so callers can inspect them with errors.Is and errors.As.
func batchResult(summary core.BatchSummary, batchErr error) error {
	if summary.Failed == 0 && batchErr == nil {
		return nil
	}
	failure := fmt.Errorf("%w: %d of %d", errSubmissionsFailed, summary.Failed, summary.Total)
	if batchErr == nil {
		return failure
	}
	return errors.Join(failure, batchErr)
}

// applyGateFlags overrides configured gate settings with explicit flags.
func applyGateFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("limit") {
		limit, err := flags.GetInt("limit")
		if err != nil {
			return err
		}
		cfg.Gate.Limit = limit
	}
	if flags.Changed("period") {
		period, err := flags.GetString("period")
		if err != nil {
			return err
		}
		cfg.Gate.Period = period
	}
	if flags.Changed("max-wait") {
		maxWait, err := flags.GetDuration("max-wait")
		if err != nil {
			return err
		}
		cfg.Gate.MaxWait = maxWait
	}
	return cfg.Validate()
}

func resolveSignature(cmd *cobra.Command) (string, error) {
	signature, err := cmd.Flags().GetString("signature")
	if err != nil {
		return "", err
	}
	path, err := cmd.Flags().GetString("signature-file")
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(path) != "" {
		if strings.TrimSpace(signature) != "" {
			return "", errors.New("--signature and --signature-file are mutually exclusive")
		}
		data, err := os.ReadFile(path) // #nosec G304 -- path supplied by operator
		if err != nil {
			return "", fmt.Errorf("read signature: %w", err)
		}
		signature = string(data)
	}
	return strings.TrimSpace(signature), nil
}

func loadRequests(paths []string, stdin io.Reader, signature string, now time.Time) ([]submit.Request, error) {
	requests := make([]submit.Request, 0, len(paths))
	readStdin := false
	for _, path := range paths {
		var (
			doc *core.Document
			err error
		)
		if path == "-" {
			if readStdin {
				return nil, errors.New("stdin can only be read once")
			}
			readStdin = true
			data, readErr := io.ReadAll(stdin)
			if readErr != nil {
				return nil, fmt.Errorf("read stdin: %w", readErr)
			}
			doc, err = codec.Decode(data, codec.FormatJSON)
		} else {
			doc, err = codec.DecodeFile(path)
		}
		if err != nil {
			return nil, err
		}
		doc.ApplyDefaults(now)

		source := "stdin"
		if path != "-" {
			source = filepath.Base(path)
		}
		requests = append(requests, submit.Request{
			Document:  doc,
			Signature: signature,
			Source:    source,
		})
	}
	return requests, nil
}

func writeReceipts(w io.Writer, format output.Format, receipts []*core.Receipt, summary *core.BatchSummary, dryRun bool) error {
	if dryRun && format != output.FormatJSON {
		for _, r := range receipts {
			if r == nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "# %s\n%s\n", r.Source, r.Response); err != nil {
				return err
			}
		}
		return nil
	}

	rendered, err := output.NewFormatter(format).FormatReceipts(receipts, summary)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, rendered)
	return err
}
