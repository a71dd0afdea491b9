package handlers

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/docgate/docgate/internal/core"
	"github.com/docgate/docgate/internal/core/codec"
	"github.com/docgate/docgate/internal/core/submit"
	apperrors "github.com/docgate/docgate/internal/errors"
)

// Relay request headers.
const (
	SignatureHeader = "X-Signature"
	SourceHeader    = "X-Document-Source"
)

const defaultMaxBodyBytes int64 = 1 << 20

// DocumentSubmitter is satisfied by *submit.Submitter.
type DocumentSubmitter interface {
	Submit(ctx context.Context, req submit.Request) (*core.Receipt, error)
}

// DocumentResponse is the body of a successful relay submission.
type DocumentResponse struct {
	Receipt *core.Receipt `json:"receipt"`
}

// DocumentsHandler accepts documents over HTTP and passes them through the
// admission gate. The request blocks until the document is admitted and
// sent, or until the gate gives up.
type DocumentsHandler struct {
	Submitter    DocumentSubmitter
	MaxBodyBytes int64
	Clock        func() time.Time
}

// Create handles POST /v1/documents.
func (h *DocumentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h == nil || h.Submitter == nil {
		respondWithError(w, r, apperrors.NewServiceUnavailableError("document submission is not configured"))
		return
	}

	limit := h.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBodyBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			respondWithError(w, r, apperrors.NewPayloadTooLargeError("document exceeds the maximum request size"))
			return
		}
		respondWithError(w, r, apperrors.WrapInvalidInput(ctx, err, "failed to read request body"))
		return
	}

	doc, err := codec.Decode(body, codec.FormatJSON)
	if err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(ctx, err, "request body is not a valid document"))
		return
	}
	doc.ApplyDefaults(h.now())

	signature := strings.TrimSpace(r.Header.Get(SignatureHeader))
	if signature == "" {
		respondWithError(w, r, apperrors.NewInvalidInputError(SignatureHeader+" header is required"))
		return
	}

	source := strings.TrimSpace(r.Header.Get(SourceHeader))
	if source == "" {
		source = "relay"
	}

	receipt, err := h.Submitter.Submit(ctx, submit.Request{
		Document:  doc,
		Signature: signature,
		Source:    source,
	})
	if err != nil {
		envelope := apperrors.FromSubmitError(ctx, err)
		if receipt != nil {
			envelope = envelope.WithDetails(map[string]interface{}{
				"receipt_id": receipt.ID,
				"status":     string(receipt.Status),
			})
		}
		respondWithError(w, r, envelope)
		return
	}

	writeJSON(w, http.StatusAccepted, DocumentResponse{Receipt: receipt})
}

func (h *DocumentsHandler) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now()
}
