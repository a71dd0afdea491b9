package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/docgate/docgate/internal/core"
)

const defaultListLimit = 50

// SubmissionQuery filters ledger reads and purges.
type SubmissionQuery struct {
	DocID      string
	FailedOnly bool
	Since      time.Time
	Before     time.Time
	Limit      int
}

func (q SubmissionQuery) whereClause() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if docID := strings.TrimSpace(q.DocID); docID != "" {
		clauses = append(clauses, "doc_id = ?")
		args = append(args, docID)
	}
	if q.FailedOnly {
		clauses = append(clauses, "success = 0")
	}
	if !q.Since.IsZero() {
		clauses = append(clauses, "submitted_at >= ?")
		args = append(args, q.Since.UnixMilli())
	}
	if !q.Before.IsZero() {
		clauses = append(clauses, "submitted_at < ?")
		args = append(args, q.Before.UnixMilli())
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

// RecordSubmission appends a receipt. A missing ID or timestamp is filled in.
func (s *Store) RecordSubmission(ctx context.Context, receipt *core.Receipt) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if receipt == nil {
		return errors.New("receipt is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if receipt.ID == "" {
		receipt.ID = uuid.NewString()
	}
	if receipt.SubmittedAt.IsZero() {
		receipt.SubmittedAt = time.Now().UTC()
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO submissions (
			id, doc_id, doc_type, source, status, status_code, success,
			error, response, waited_ms, duration_ms, submitted_at, tool_version
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		receipt.ID,
		nullString(receipt.DocID),
		nullString(receipt.DocType),
		nullString(receipt.Source),
		string(receipt.Status),
		receipt.StatusCode,
		boolToInt(receipt.Success()),
		nullString(receipt.Error),
		nullString(receipt.Response),
		receipt.Waited.Milliseconds(),
		receipt.Duration.Milliseconds(),
		receipt.SubmittedAt.UnixMilli(),
		nullString(receipt.ToolVersion),
	)
	if err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	return nil
}

// ListSubmissions returns receipts newest first.
func (s *Store) ListSubmissions(ctx context.Context, q SubmissionQuery) ([]*core.Receipt, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	limit := q.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	where, args := q.whereClause()
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, doc_id, doc_type, source, status, status_code, error, response,
			waited_ms, duration_ms, submitted_at, tool_version
		FROM submissions
		%s
		ORDER BY submitted_at DESC, id
		LIMIT ?
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	receipts := []*core.Receipt{}
	for rows.Next() {
		var (
			id, status     string
			docID, docType sql.NullString
			source         sql.NullString
			errText        sql.NullString
			response       sql.NullString
			tv             sql.NullString
			statusCode     sql.NullInt64
			waitedMs       int64
			durationMs     int64
			submittedAt    int64
		)
		if err := rows.Scan(&id, &docID, &docType, &source, &status, &statusCode, &errText, &response,
			&waitedMs, &durationMs, &submittedAt, &tv); err != nil {
			return nil, fmt.Errorf("scan submissions: %w", err)
		}
		receipts = append(receipts, &core.Receipt{
			ID:          id,
			DocID:       docID.String,
			DocType:     docType.String,
			Source:      source.String,
			Status:      core.SubmissionStatus(status),
			StatusCode:  int(statusCode.Int64),
			Error:       errText.String,
			Response:    response.String,
			Waited:      time.Duration(waitedMs) * time.Millisecond,
			Duration:    time.Duration(durationMs) * time.Millisecond,
			SubmittedAt: time.UnixMilli(submittedAt).UTC(),
			ToolVersion: tv.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return receipts, nil
}

// CountSubmissions counts receipts matching q, ignoring its limit.
func (s *Store) CountSubmissions(ctx context.Context, q SubmissionQuery) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args := q.whereClause()
	row := s.DB.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*)
		FROM submissions
		%s
	`, where), args...)

	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return count, nil
}

// PurgeSubmissions deletes receipts recorded before the cutoff.
func (s *Store) PurgeSubmissions(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if before.IsZero() {
		return 0, errors.New("purge cutoff is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result, err := s.DB.ExecContext(ctx, `
		DELETE FROM submissions
		WHERE submitted_at < ?
	`, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge submissions: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge submissions: %w", err)
	}
	return affected, nil
}

func nullString(value string) sql.NullString {
	if strings.TrimSpace(value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
