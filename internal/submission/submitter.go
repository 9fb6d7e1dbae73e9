package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"siges/internal/affiliates"
)

const DefaultBatchSize = 250

type BatchSender interface {
	SendBatch(ctx context.Context, req BatchRequest) error
}

// Outcome summarizes one submission. TotalSent counts records in batches the
// backend accepted; a failed batch contributes nothing.
type Outcome struct {
	HasErrors     bool
	TotalSent     int
	BatchesSent   int
	ErrorMessages []string
}

type Submitter struct {
	sender  BatchSender
	timeout time.Duration
	logger  *slog.Logger
}

// NewSubmitter wires a sender. A zero timeout leaves batches bounded only by
// the caller's context.
func NewSubmitter(sender BatchSender, timeout time.Duration, logger *slog.Logger) *Submitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Submitter{sender: sender, timeout: timeout, logger: logger}
}

// Submit sends records in consecutive chunks of batchSize, one at a time and
// in order, and stops at the first failed batch. Batches already accepted
// stay accepted.
func (s *Submitter) Submit(ctx context.Context, records []affiliates.AffiliateRecord, meta Meta, batchSize int) Outcome {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	var out Outcome
	for start, n := 0, 1; start < len(records); start, n = start+batchSize, n+1 {
		end := min(start+batchSize, len(records))

		err := s.sendOne(ctx, BatchRequest{Meta: meta, Rows: records[start:end]})
		if err != nil {
			out.HasErrors = true
			out.ErrorMessages = append(out.ErrorMessages, batchErrorMessages(n, err, s.timeout)...)
			s.logger.Error("batch rejected", "file", meta.FileName, "batch", n, "sent", out.TotalSent, "error", err)
			return out
		}

		out.TotalSent += end - start
		out.BatchesSent++
		s.logger.Info("batch accepted", "file", meta.FileName, "batch", n, "rows", end-start, "sent", out.TotalSent)
	}
	return out
}

func (s *Submitter) sendOne(ctx context.Context, req BatchRequest) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.sender.SendBatch(ctx, req)
}

func batchErrorMessages(n int, err error, timeout time.Duration) []string {
	var apiErr *APIError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Messages()
	case errors.Is(err, context.DeadlineExceeded):
		return []string{fmt.Sprintf("batch %d timed out after %s", n, timeout)}
	default:
		return []string{fmt.Sprintf("batch %d failed: %v", n, err)}
	}
}
