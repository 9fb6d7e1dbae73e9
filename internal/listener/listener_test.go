package listener

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"siges/internal"
	"siges/internal/affiliates"
	"siges/internal/config"
	"siges/internal/connectors"
	"siges/internal/pipeline"
	"siges/internal/storage"
)

type stubConnector struct {
	messages []internal.FetchedMailMessage
}

func (s stubConnector) FetchInbox(context.Context, string, int) ([]internal.FetchedMailMessage, error) {
	return s.messages, nil
}

func attachmentMail(name, content string) []byte {
	return []byte("Message-ID: <" + name + "@ips.example>\r\n" +
		"From: reportes@ips.example\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=\"B\"\r\n\r\n" +
		"--B\r\nContent-Type: text/plain\r\n\r\nadjunto\r\n" +
		"--B\r\nContent-Type: text/csv\r\nContent-Disposition: attachment; filename=\"" + name + "\"\r\n" +
		"Content-Transfer-Encoding: base64\r\n\r\n" +
		base64.StdEncoding.EncodeToString([]byte(content)) + "\r\n--B--\r\n")
}

func TestRunCycleValidatesAndExportsReports(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "siges.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	cfg, _ := config.Load()
	cfg.IntakeDir = filepath.Join(tmp, "intake")
	cfg.OutputDir = filepath.Join(tmp, "out")
	cfg.CSVDelimiter = ";"
	cfg.CSVEncoding = "utf-8"
	cfg.VocabularyFile = ""
	cfg.MailListenerProvider = "stub"
	cfg.MailListenerFetchMax = 10
	cfg.MailListenerProcessBatch = 10
	cfg.MailListenerAutoExport = true
	cfg.MailListenerAutoSubmit = false

	processor, err := pipeline.NewProcessingService(db, cfg, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	period := affiliates.PreviousPeriod(time.Now())
	good := "MS" + period + ".csv"
	bad := "MC" + period + ".csv"
	stub := stubConnector{messages: []internal.FetchedMailMessage{
		{Provider: "stub", MessageID: "<1@ips.example>", ReceivedAt: "2025-10-01T00:00:00Z",
			Raw: attachmentMail(good, "TIPO_DOCUMENTO;IDENTIFICACION\nCC;12345678\n")},
		{Provider: "stub", MessageID: "<2@ips.example>", ReceivedAt: "2025-10-02T00:00:00Z",
			Raw: attachmentMail(bad, "TIPO_DOCUMENTO;IDENTIFICACION\nCC;12ab\n")},
	}}

	svc := NewService(db, cfg, processor, nil)
	svc.newConnector = func(context.Context, string) (connectors.MailConnector, error) { return stub, nil }

	res, err := svc.runCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Fetched != 2 || res.Stored != 2 || res.Processed != 2 || res.Exported != 1 {
		t.Fatalf("res=%+v", res)
	}

	reports, err := os.ReadDir(filepath.Join(cfg.OutputDir, "listener"))
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 1 || !strings.Contains(reports[0].Name(), "MC"+period) || !strings.HasSuffix(reports[0].Name(), "_rejected.xlsx") {
		t.Fatalf("reports=%v", reports)
	}

	runs, err := db.ListSubmissions(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Fatalf("runs=%d", len(runs))
	}

	stamp, err := db.GetMetadata("listener.last_cycle.stub")
	if err != nil || stamp == nil {
		t.Fatalf("stamp=%v err=%v", stamp, err)
	}
}

func TestRunCycleLogsStampFailure(t *testing.T) {
	tmp := t.TempDir()
	dbPath := filepath.Join(tmp, "siges.db")
	db, err := storage.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	raw, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := raw.Exec(`DROP TABLE metadata`); err != nil {
		t.Fatal(err)
	}
	_ = raw.Close()

	cfg, _ := config.Load()
	cfg.IntakeDir = filepath.Join(tmp, "intake")
	cfg.OutputDir = filepath.Join(tmp, "out")
	cfg.VocabularyFile = ""
	cfg.MailListenerProvider = "stub"
	cfg.MailListenerProcessBatch = 10

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	processor, err := pipeline.NewProcessingService(db, cfg, nil, logger)
	if err != nil {
		t.Fatal(err)
	}
	svc := NewService(db, cfg, processor, logger)
	svc.newConnector = func(context.Context, string) (connectors.MailConnector, error) { return stubConnector{}, nil }

	if _, err := svc.runCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(logs.String(), "level=WARN") || !strings.Contains(logs.String(), "listener cycle stamp not saved") {
		t.Fatalf("logs=%s", logs.String())
	}
}

func TestUnsupportedProvider(t *testing.T) {
	svc := &Service{cfg: config.Config{}}
	if _, err := svc.makeConnector(context.Background(), "pop3"); err == nil {
		t.Fatal("expected error")
	}
}

func TestSanitize(t *testing.T) {
	if got := sanitize("a<b>:c/d e"); got != "a_b__c_d_e" {
		t.Fatalf("got=%q", got)
	}
}
