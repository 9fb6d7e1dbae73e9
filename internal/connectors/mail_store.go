package connectors

import (
	"os"
	"path/filepath"

	"siges/internal"
	"siges/internal/storage"
	"siges/internal/util"
)

// IntakeStore writes CSV attachments to the intake directory, named by
// content hash, and registers them as pending intake files.
type IntakeStore struct {
	db        *storage.DB
	intakeDir string
}

func NewIntakeStore(db *storage.DB, intakeDir string) *IntakeStore {
	return &IntakeStore{db: db, intakeDir: intakeDir}
}

func (s *IntakeStore) Store(msg internal.FetchedMailMessage) ([]internal.IntakeFile, []string, error) {
	files, skipped, err := ExtractCSVAttachments(msg.Raw)
	if err != nil {
		return nil, nil, err
	}
	if len(files) == 0 {
		return nil, skipped, nil
	}

	if err := os.MkdirAll(s.intakeDir, 0o755); err != nil {
		return nil, nil, err
	}

	out := make([]internal.IntakeFile, 0, len(files))
	for _, f := range files {
		hash := util.ContentHash(f.Content)
		rawPath := filepath.Join(s.intakeDir, hash+".csv")
		if _, err := os.Stat(rawPath); os.IsNotExist(err) {
			if err := os.WriteFile(rawPath, f.Content, 0o644); err != nil {
				return nil, nil, err
			}
		}

		row, err := s.db.UpsertIntakeFile(internal.IntakeFile{
			Provider:   msg.Provider,
			MessageID:  msg.MessageID,
			Subject:    msg.Subject,
			Sender:     msg.From,
			ReceivedAt: msg.ReceivedAt,
			FileName:   f.FileName,
			Hash:       hash,
			RawRef:     rawPath,
		})
		if err != nil {
			return nil, nil, err
		}
		out = append(out, row)
	}
	return out, skipped, nil
}
