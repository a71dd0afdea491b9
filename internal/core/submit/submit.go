// Package submit turns documents into gate submissions and ledger receipts.
package submit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docgate/docgate/internal/core"
	"github.com/docgate/docgate/internal/core/codec"
	"github.com/docgate/docgate/internal/core/engine"
	"github.com/docgate/docgate/internal/core/transport"
)

// Admitter is the part of engine.Gate the submitter depends on.
type Admitter interface {
	Submit(ctx context.Context, payload engine.Payload) (*engine.Result, error)
}

// Ledger records receipts.
type Ledger interface {
	RecordSubmission(ctx context.Context, receipt *core.Receipt) error
}

// Request is one document to submit.
type Request struct {
	Document  *core.Document
	Signature string
	Source    string
}

// Submitter encodes documents, passes them through the gate, and records the
// outcome. Ledger failures are logged and never fail the submission.
type Submitter struct {
	Gate        Admitter
	Ledger      Ledger
	Logger      engine.Logger
	Clock       func() time.Time
	ToolVersion string
	DryRun      bool
}

// Submit sends a single document. The returned receipt is non-nil whenever
// the document could be encoded, including when the error is non-nil.
func (s *Submitter) Submit(ctx context.Context, req Request) (*core.Receipt, error) {
	if s == nil || s.Gate == nil {
		return nil, errors.New("submitter is not configured")
	}
	receipt := s.newReceipt(req)

	body, err := codec.Encode(req.Document)
	if err != nil {
		receipt.Status = core.StatusEncodeFailed
		receipt.Error = err.Error()
		return receipt, err
	}

	if s.DryRun {
		receipt.Status = core.StatusDryRun
		receipt.Response = string(body)
		return receipt, nil
	}

	result, err := s.Gate.Submit(ctx, engine.Payload{
		Body:      body,
		Signature: req.Signature,
		DocID:     receipt.DocID,
	})
	applyResult(receipt, result, err)
	s.record(ctx, receipt)
	return receipt, err
}

// SubmitBatch submits every request concurrently so all of them queue on the
// gate together. Receipts are returned in request order; the error joins
// every per-document failure.
func (s *Submitter) SubmitBatch(ctx context.Context, reqs []Request) ([]*core.Receipt, error) {
	receipts := make([]*core.Receipt, len(reqs))
	errs := make([]error, len(reqs))

	var wg sync.WaitGroup
	for i := range reqs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			receipts[i], errs[i] = s.Submit(ctx, reqs[i])
		}(i)
	}
	wg.Wait()

	return receipts, errors.Join(errs...)
}

func (s *Submitter) newReceipt(req Request) *core.Receipt {
	receipt := &core.Receipt{
		ID:          uuid.NewString(),
		Source:      req.Source,
		SubmittedAt: s.now(),
		ToolVersion: s.ToolVersion,
	}
	if req.Document != nil {
		receipt.DocID = req.Document.DocID
		receipt.DocType = req.Document.DocType
	}
	return receipt
}

func applyResult(receipt *core.Receipt, result *engine.Result, err error) {
	if result != nil {
		receipt.StatusCode = result.StatusCode
		receipt.Response = result.Body
		receipt.Waited = result.Waited
		receipt.Duration = result.Duration
		if !result.AdmittedAt.IsZero() {
			receipt.SubmittedAt = result.AdmittedAt.UTC()
		}
	}

	var (
		transportErr *engine.TransportError
		statusErr    *transport.StatusError
	)
	switch {
	case err == nil:
		receipt.Status = core.StatusAccepted
	case errors.As(err, &statusErr):
		receipt.Status = core.StatusRejected
		receipt.Error = err.Error()
	case errors.As(err, &transportErr):
		receipt.Status = core.StatusFailed
		receipt.Error = err.Error()
	default:
		receipt.Status = core.StatusNotAdmitted
		receipt.Error = err.Error()
	}
}

func (s *Submitter) record(ctx context.Context, receipt *core.Receipt) {
	if s.Ledger == nil {
		return
	}
	// The caller's context may already be cancelled for not-admitted receipts.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.Ledger.RecordSubmission(recordCtx, receipt); err != nil && s.Logger != nil {
		s.Logger.Warn("Failed to record submission",
			zap.String("receipt_id", receipt.ID),
			zap.String("doc_id", receipt.DocID),
			zap.Error(err))
	}
}

func (s *Submitter) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now().UTC()
}
