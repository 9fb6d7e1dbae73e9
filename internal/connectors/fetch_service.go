package connectors

import (
	"context"
	"log/slog"

	"siges/internal/storage"
)

type FetchService struct {
	connector MailConnector
	store     *IntakeStore
	logger    *slog.Logger
}

type FetchResult struct {
	Fetched int
	Stored  int
	Skipped int
}

func NewFetchService(db *storage.DB, intakeDir string, connector MailConnector, logger *slog.Logger) *FetchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FetchService{
		connector: connector,
		store:     NewIntakeStore(db, intakeDir),
		logger:    logger,
	}
}

// FetchAndStore pulls up to max messages and keeps every conforming CSV
// attachment. Messages without one are ignored.
func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, err
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		files, skipped, err := s.store.Store(msg)
		if err != nil {
			return res, err
		}
		res.Stored += len(files)
		res.Skipped += len(skipped)
		for _, name := range skipped {
			s.logger.Warn("attachment ignored, name does not match bulk file contract",
				"provider", msg.Provider, "message_id", msg.MessageID, "attachment", name)
		}
	}
	return res, nil
}
