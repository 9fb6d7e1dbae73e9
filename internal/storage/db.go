package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"siges/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS submissions (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  fileName TEXT NOT NULL,
  regime TEXT NOT NULL,
  period TEXT NOT NULL,
  organizationId INTEGER NOT NULL DEFAULT 0,
  userId INTEGER NOT NULL DEFAULT 0,
  fingerprint TEXT NOT NULL,
  rowsRead INTEGER NOT NULL DEFAULT 0,
  totalRecords INTEGER NOT NULL DEFAULT 0,
  totalSent INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  errorsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_submissions_file ON submissions(fileName, period);
CREATE INDEX IF NOT EXISTS idx_submissions_fingerprint ON submissions(fingerprint);

CREATE TABLE IF NOT EXISTS intake_files (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  fileName TEXT NOT NULL,
  hash TEXT NOT NULL,
  rawRef TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  traceId TEXT NOT NULL DEFAULT '',
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId, fileName)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) InsertSubmission(run internal.SubmissionRun) (int64, error) {
	errorsJSON, err := json.Marshal(run.Errors)
	if err != nil {
		return 0, err
	}
	if run.Errors == nil {
		errorsJSON = []byte("[]")
	}

	result, err := d.conn.Exec(`
INSERT INTO submissions (
  traceId, fileName, regime, period, organizationId, userId,
  fingerprint, rowsRead, totalRecords, totalSent, status, errorsJson
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, run.TraceID, run.FileName, run.Regime, run.Period, run.OrganizationID, run.UserID,
		run.Fingerprint, run.RowsRead, run.TotalRecords, run.TotalSent, string(run.Status), string(errorsJSON))
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ListSubmissions returns the most recent runs first.
func (d *DB) ListSubmissions(limit int) ([]internal.SubmissionRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.conn.Query(`
SELECT id, traceId, fileName, regime, period, organizationId, userId,
       fingerprint, rowsRead, totalRecords, totalSent, status, errorsJson, createdAt
FROM submissions ORDER BY id DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.SubmissionRun
	for rows.Next() {
		var run internal.SubmissionRun
		var status, errorsJSON string
		if err := rows.Scan(
			&run.ID, &run.TraceID, &run.FileName, &run.Regime, &run.Period, &run.OrganizationID, &run.UserID,
			&run.Fingerprint, &run.RowsRead, &run.TotalRecords, &run.TotalSent, &status, &errorsJSON, &run.CreatedAt,
		); err != nil {
			return nil, err
		}
		run.Status = internal.SubmissionStatus(status)
		_ = json.Unmarshal([]byte(errorsJSON), &run.Errors)
		out = append(out, run)
	}
	return out, rows.Err()
}

// FindSentSubmission returns the run that already delivered the same file
// content for the same period in full, or nil.
func (d *DB) FindSentSubmission(fileName, period, fingerprint string) (*internal.SubmissionRun, error) {
	var run internal.SubmissionRun
	var status string
	err := d.conn.QueryRow(`
SELECT id, traceId, fileName, regime, period, totalSent, status, createdAt
FROM submissions
WHERE fileName = ? AND period = ? AND fingerprint = ? AND status = ?
ORDER BY id DESC LIMIT 1
`, fileName, period, fingerprint, string(internal.StatusSent)).Scan(
		&run.ID, &run.TraceID, &run.FileName, &run.Regime, &run.Period, &run.TotalSent, &status, &run.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	run.Status = internal.SubmissionStatus(status)
	return &run, nil
}

func (d *DB) UpsertIntakeFile(file internal.IntakeFile) (internal.IntakeFile, error) {
	if file.Status == "" {
		file.Status = internal.IntakeFetched
	}
	_, err := d.conn.Exec(`
INSERT INTO intake_files (provider, messageId, subject, sender, receivedAt, fileName, hash, rawRef, status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId, fileName) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, file.Provider, file.MessageID, file.Subject, file.Sender, file.ReceivedAt, file.FileName, file.Hash, file.RawRef, string(file.Status))
	if err != nil {
		return internal.IntakeFile{}, err
	}

	row, err := d.GetIntakeFile(file.Provider, file.MessageID, file.FileName)
	if err != nil {
		return internal.IntakeFile{}, err
	}
	if row == nil {
		return internal.IntakeFile{}, errors.New("failed to upsert intake file")
	}
	return *row, nil
}

const intakeColumns = `id, provider, messageId, subject, sender, receivedAt, fileName, hash, rawRef, status, traceId`

func scanIntakeFile(scan func(dest ...any) error) (internal.IntakeFile, error) {
	var row internal.IntakeFile
	var subject, sender, receivedAt sql.NullString
	var status string
	if err := scan(&row.ID, &row.Provider, &row.MessageID, &subject, &sender, &receivedAt,
		&row.FileName, &row.Hash, &row.RawRef, &status, &row.TraceID); err != nil {
		return internal.IntakeFile{}, err
	}
	row.Subject = subject.String
	row.Sender = sender.String
	row.ReceivedAt = receivedAt.String
	row.Status = internal.IntakeStatus(status)
	return row, nil
}

func (d *DB) GetIntakeFile(provider, messageID, fileName string) (*internal.IntakeFile, error) {
	row, err := scanIntakeFile(d.conn.QueryRow(
		`SELECT `+intakeColumns+` FROM intake_files WHERE provider = ? AND messageId = ? AND fileName = ?`,
		provider, messageID, fileName,
	).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListIntakeFilesByStatus(status internal.IntakeStatus, limit int) ([]internal.IntakeFile, error) {
	rows, err := d.conn.Query(
		`SELECT `+intakeColumns+` FROM intake_files WHERE status = ? ORDER BY receivedAt ASC, id ASC LIMIT ?`,
		string(status), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.IntakeFile
	for rows.Next() {
		row, err := scanIntakeFile(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateIntakeFileStatus(id int, status internal.IntakeStatus, traceID string) error {
	result, err := d.conn.Exec(
		`UPDATE intake_files SET status = ?, traceId = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`,
		string(status), traceID, id,
	)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("intake file not found: id=%d", id)
	}
	return nil
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
