package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"siges/internal"
	"siges/internal/affiliates"
	"siges/internal/config"
	"siges/internal/storage"
	"siges/internal/submission"
	"siges/internal/util"
)

// Backend is the slice of the SIGES API the pipeline talks to.
type Backend interface {
	ListRegimes(ctx context.Context) ([]submission.RegimeOption, error)
	SendBatch(ctx context.Context, req submission.BatchRequest) error
}

type ProcessingService struct {
	db      *storage.DB
	cfg     config.Config
	backend Backend
	vocab   *affiliates.Vocabulary
	logger  *slog.Logger
	now     func() time.Time
}

func NewProcessingService(db *storage.DB, cfg config.Config, backend Backend, logger *slog.Logger) (*ProcessingService, error) {
	vocab, err := affiliates.LoadVocabulary(cfg.VocabularyFile)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessingService{
		db:      db,
		cfg:     cfg,
		backend: backend,
		vocab:   vocab,
		logger:  logger,
		now:     time.Now,
	}, nil
}

type FileRequest struct {
	Path string
	// FileName is checked against the naming policy; defaults to the base of Path.
	FileName string
	// Regime is a backend option name or id. Empty infers it from the file prefix.
	Regime         string
	OrganizationID int
	UserID         int
	BatchSize      int
	Submit         bool
	Force          bool
}

type FileResult struct {
	TraceID     string
	FileName    string
	Regime      string
	Period      string
	Fingerprint string
	Status      internal.SubmissionStatus
	RowsRead    int
	Accepted    int
	Skipped     int
	TotalSent   int
	// Errors holds every problem found. Entries with Line 0 are not tied to a
	// file line (policy and submission failures).
	Errors []affiliates.ValidationError
}

func (r FileResult) Messages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, e.Message)
	}
	return out
}

func (r FileResult) OK() bool {
	return r.Status == internal.StatusSent || r.Status == internal.StatusValidated
}

// ProcessFile runs one file through policy, ingestion and, when req.Submit is
// set, batch submission. The returned error covers infrastructure failures
// only; rejections are reported through FileResult.
func (s *ProcessingService) ProcessFile(ctx context.Context, req FileRequest) (FileResult, error) {
	start := time.Now()
	res := FileResult{TraceID: uuid.NewString(), FileName: req.FileName}
	if strings.TrimSpace(res.FileName) == "" {
		res.FileName = filepath.Base(req.Path)
	}
	log := s.logger.With("trace_id", res.TraceID, "file", res.FileName)

	option, err := s.resolveRegime(ctx, req.Regime, res.FileName, req.Submit)
	if err != nil {
		var rejection *regimeRejection
		if !errors.As(err, &rejection) {
			return res, err
		}
		return s.reject(res, req, err.Error())
	}
	res.Regime = option.Name

	fn, err := affiliates.CheckFileName(res.FileName, option.Name, s.now())
	if err != nil {
		var policyErr *affiliates.PolicyError
		if !errors.As(err, &policyErr) {
			return res, err
		}
		return s.reject(res, req, policyErr.Message)
	}
	res.Period = fn.Period

	ingest, fingerprint, err := s.ingestFile(ctx, req.Path, fn.Regime)
	if err != nil {
		return res, err
	}
	res.Fingerprint = fingerprint
	res.RowsRead = ingest.RowsRead
	res.Skipped = ingest.Skipped
	if !ingest.OK() {
		res.Status = internal.StatusRejected
		res.Errors = ingest.Errors
		log.Warn("file rejected", "regime", res.Regime, "period", res.Period, "errors", len(res.Errors), "rejected_lines", len(ingest.RejectedLines()))
		return res, s.record(res, req)
	}
	res.Accepted = len(ingest.Records)
	if res.Accepted == 0 {
		return s.reject(res, req, fmt.Sprintf("file %s has no affiliate rows; nothing to submit", res.FileName))
	}

	if !req.Submit {
		res.Status = internal.StatusValidated
		log.Info("file validated", "regime", res.Regime, "period", res.Period, "records", res.Accepted, "elapsed", time.Since(start))
		return res, s.record(res, req)
	}

	if !req.Force {
		prev, err := s.db.FindSentSubmission(res.FileName, res.Period, res.Fingerprint)
		if err != nil {
			return res, err
		}
		if prev != nil {
			return s.reject(res, req, fmt.Sprintf(
				"file %s for period %s was already sent on %s (trace %s); use --force to send it again",
				res.FileName, res.Period, prev.CreatedAt, prev.TraceID,
			))
		}
	}

	meta := submission.Meta{
		OrganizationID: firstPositive(req.OrganizationID, s.cfg.SigesOrganizationID),
		UserID:         firstPositive(req.UserID, s.cfg.SigesUserID),
		FileName:       res.FileName,
		RegimeID:       option.ID,
		Period:         res.Period,
	}
	submitter := submission.NewSubmitter(s.backend, s.cfg.SigesBatchTimeout, log)
	outcome := submitter.Submit(ctx, ingest.Records, meta, firstPositive(req.BatchSize, s.cfg.SigesBatchSize))

	res.TotalSent = outcome.TotalSent
	switch {
	case !outcome.HasErrors:
		res.Status = internal.StatusSent
	case outcome.TotalSent > 0:
		res.Status = internal.StatusPartial
	default:
		res.Status = internal.StatusFailed
	}
	for _, msg := range outcome.ErrorMessages {
		res.Errors = append(res.Errors, affiliates.ValidationError{Message: msg})
	}

	log.Info("file submitted",
		"regime", res.Regime, "period", res.Period, "status", res.Status,
		"records", res.Accepted, "sent", res.TotalSent, "batches", outcome.BatchesSent, "elapsed", time.Since(start))
	return res, s.record(res, req)
}

func (s *ProcessingService) ingestFile(ctx context.Context, path string, regime affiliates.RegimeContext) (affiliates.Result, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return affiliates.Result{}, "", err
	}
	defer f.Close()

	hashing := util.NewHashingReader(f)
	decoded, err := affiliates.DecodeReader(hashing, s.cfg.CSVEncoding)
	if err != nil {
		return affiliates.Result{}, "", err
	}

	res := affiliates.Ingest(ctx, decoded, regime, affiliates.Options{
		Delimiter:  s.cfg.Delimiter(),
		Vocabulary: s.vocab,
	})
	return res, hashing.Sum(), nil
}

type regimeRejection struct {
	msg string
}

func (e *regimeRejection) Error() string { return e.msg }

// resolveRegime turns the caller's regime reference into a backend option.
// The backend is only consulted when an id is given or one is needed for
// submission, so validation works offline with option names.
func (s *ProcessingService) resolveRegime(ctx context.Context, ref, fileName string, needID bool) (submission.RegimeOption, error) {
	ref = strings.TrimSpace(ref)
	_, numErr := strconv.Atoi(ref)
	isID := ref != "" && numErr == nil

	var inferred affiliates.RegimeContext
	if ref == "" {
		fn, err := affiliates.ParseFileName(fileName)
		if err != nil {
			return submission.RegimeOption{}, &regimeRejection{msg: err.Error()}
		}
		inferred = fn.Regime
	}

	if !isID && !needID {
		if ref == "" {
			return submission.RegimeOption{Name: defaultOptionName(inferred.Code)}, nil
		}
		return submission.RegimeOption{Name: ref}, nil
	}

	if s.backend == nil {
		return submission.RegimeOption{}, errors.New("no SIGES backend configured")
	}
	options, err := s.backend.ListRegimes(ctx)
	if err != nil {
		return submission.RegimeOption{}, fmt.Errorf("list regimes: %w", err)
	}

	if ref == "" {
		for _, opt := range options {
			if rc, ok := affiliates.RegimeForOptionName(opt.Name); ok && rc.Code == inferred.Code {
				return opt, nil
			}
		}
		return submission.RegimeOption{}, &regimeRejection{msg: fmt.Sprintf("no backend regime matches file %s", fileName)}
	}

	opt, err := submission.FindRegime(options, ref)
	if err != nil {
		return submission.RegimeOption{}, &regimeRejection{msg: err.Error()}
	}
	return opt, nil
}

func defaultOptionName(code affiliates.RegimeCode) string {
	if code == affiliates.RegimeContributive {
		return "CONTRIBUTIVO"
	}
	return "SUBSIDIADO"
}

func (s *ProcessingService) reject(res FileResult, req FileRequest, msg string) (FileResult, error) {
	res.Status = internal.StatusRejected
	res.Errors = append(res.Errors, affiliates.ValidationError{Message: msg})
	s.logger.Warn("file rejected", "trace_id", res.TraceID, "file", res.FileName, "reason", msg)
	return res, s.record(res, req)
}

func (s *ProcessingService) record(res FileResult, req FileRequest) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.InsertSubmission(internal.SubmissionRun{
		TraceID:        res.TraceID,
		FileName:       res.FileName,
		Regime:         res.Regime,
		Period:         res.Period,
		OrganizationID: firstPositive(req.OrganizationID, s.cfg.SigesOrganizationID),
		UserID:         firstPositive(req.UserID, s.cfg.SigesUserID),
		Fingerprint:    res.Fingerprint,
		RowsRead:       res.RowsRead,
		TotalRecords:   res.Accepted,
		TotalSent:      res.TotalSent,
		Status:         res.Status,
		Errors:         res.Messages(),
	})
	if err != nil {
		return fmt.Errorf("record submission: %w", err)
	}
	return nil
}

type PendingItem struct {
	File   internal.IntakeFile
	Result FileResult
}

// ProcessPending runs fetched mailbox files one at a time. A file that fails
// for infrastructure reasons is marked failed and the loop moves on.
func (s *ProcessingService) ProcessPending(ctx context.Context, limit int, submit bool) ([]PendingItem, error) {
	pending, err := s.db.ListIntakeFilesByStatus(internal.IntakeFetched, limit)
	if err != nil {
		return nil, err
	}

	var out []PendingItem
	for _, file := range pending {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		res, err := s.ProcessFile(ctx, FileRequest{Path: file.RawRef, FileName: file.FileName, Submit: submit})
		status := intakeStatusFor(res, err)
		if err != nil {
			s.logger.Error("intake file failed", "trace_id", res.TraceID, "file", file.FileName, "provider", file.Provider, "error", err)
			res.Errors = append(res.Errors, affiliates.ValidationError{Message: err.Error()})
		}
		if uerr := s.db.UpdateIntakeFileStatus(file.ID, status, res.TraceID); uerr != nil {
			return out, uerr
		}
		file.Status = status
		file.TraceID = res.TraceID
		out = append(out, PendingItem{File: file, Result: res})
	}
	return out, nil
}

func intakeStatusFor(res FileResult, err error) internal.IntakeStatus {
	switch {
	case err != nil:
		return internal.IntakeFailed
	case res.OK():
		return internal.IntakeProcessed
	case res.Status == internal.StatusRejected:
		return internal.IntakeRejected
	default:
		return internal.IntakeFailed
	}
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
