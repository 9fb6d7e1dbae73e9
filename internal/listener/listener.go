package listener

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"siges/internal/config"
	"siges/internal/connectors"
	gmailconnector "siges/internal/connectors/gmail"
	imapconnector "siges/internal/connectors/imap"
	"siges/internal/pipeline"
	"siges/internal/storage"
)

type Service struct {
	db        *storage.DB
	cfg       config.Config
	processor *pipeline.ProcessingService
	logger    *slog.Logger

	// newConnector is swapped in tests.
	newConnector func(ctx context.Context, provider string) (connectors.MailConnector, error)
}

func NewService(db *storage.DB, cfg config.Config, processor *pipeline.ProcessingService, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{db: db, cfg: cfg, processor: processor, logger: logger}
	s.newConnector = s.makeConnector
	return s
}

// Run polls the mailbox until ctx is cancelled. A failed cycle is logged and
// retried on the next tick.
func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.MailListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	for {
		if err := s.RunCycle(ctx); err != nil {
			s.logger.Error("listener cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

type CycleResult struct {
	Fetched   int
	Stored    int
	Processed int
	Exported  int
}

func (s *Service) RunCycle(ctx context.Context) error {
	_, err := s.runCycle(ctx)
	return err
}

func (s *Service) runCycle(ctx context.Context) (CycleResult, error) {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
	mailConnector, err := s.newConnector(ctx, provider)
	if err != nil {
		return CycleResult{}, err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.IntakeDir, mailConnector, s.logger)
	fetchResult, err := fetchService.FetchAndStore(ctx, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return CycleResult{}, err
	}

	items, err := s.processor.ProcessPending(ctx, s.cfg.MailListenerProcessBatch, s.cfg.MailListenerAutoSubmit)
	if err != nil {
		return CycleResult{}, err
	}

	res := CycleResult{Fetched: fetchResult.Fetched, Stored: fetchResult.Stored, Processed: len(items)}
	if s.cfg.MailListenerAutoExport {
		for _, item := range items {
			if len(item.Result.Errors) == 0 {
				continue
			}
			outputPath := filepath.Join(s.cfg.OutputDir, "listener", reportName(item))
			if err := pipeline.ExportErrorsToXLSX(item.Result, outputPath); err != nil {
				return res, err
			}
			res.Exported++
		}
	}

	if err := s.db.SetMetadata("listener.last_cycle."+provider, time.Now().UTC().Format(time.RFC3339)); err != nil {
		s.logger.Warn("listener cycle stamp not saved", "provider", provider, "error", err)
	}
	s.logger.Info("listener cycle done",
		"provider", provider, "fetched", res.Fetched, "stored", res.Stored,
		"processed", res.Processed, "exported", res.Exported)
	return res, nil
}

func (s *Service) makeConnector(ctx context.Context, provider string) (connectors.MailConnector, error) {
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(ctx, s.cfg)
	case "imap":
		return imapconnector.NewConnector(s.cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %s", provider)
	}
}

func reportName(item pipeline.PendingItem) string {
	base := strings.TrimSuffix(item.File.FileName, filepath.Ext(item.File.FileName))
	return fmt.Sprintf("%d_%s_%s.xlsx", item.File.ID, sanitize(base), item.File.Status)
}

func sanitize(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_")
	out := repl.Replace(input)
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
