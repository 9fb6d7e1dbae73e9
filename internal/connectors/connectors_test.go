package connectors

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"siges/internal"
	"siges/internal/storage"
)

const csvBody = "TIPO_DOCUMENTO;IDENTIFICACION\nCC;12345678\n"

func mimeMessage(messageID string, attachments map[string]string) []byte {
	var b strings.Builder
	b.WriteString("Message-ID: " + messageID + "\r\n")
	b.WriteString("From: reportes@ips.example\r\n")
	b.WriteString("Subject: Reporte mensual\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: multipart/mixed; boundary=\"XYZ\"\r\n\r\n")
	b.WriteString("--XYZ\r\nContent-Type: text/plain; charset=utf-8\r\n\r\nAdjunto reporte.\r\n")
	for name, content := range attachments {
		b.WriteString("--XYZ\r\n")
		b.WriteString("Content-Type: text/csv; name=\"" + name + "\"\r\n")
		b.WriteString("Content-Disposition: attachment; filename=\"" + name + "\"\r\n")
		b.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")
		b.WriteString(base64.StdEncoding.EncodeToString([]byte(content)) + "\r\n")
	}
	b.WriteString("--XYZ--\r\n")
	return []byte(b.String())
}

func TestExtractCSVAttachments(t *testing.T) {
	raw := mimeMessage("<m1@ips.example>", map[string]string{
		"MS202509.csv": csvBody,
		"notas.csv":    "x",
		"logo.png":     "png",
	})

	files, skipped, err := ExtractCSVAttachments(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].FileName != "MS202509.csv" || string(files[0].Content) != csvBody {
		t.Fatalf("files=%+v", files)
	}
	if len(skipped) != 1 || skipped[0] != "notas.csv" {
		t.Fatalf("skipped=%v", skipped)
	}
}

type fakeConnector struct {
	messages []internal.FetchedMailMessage
}

func (f fakeConnector) FetchInbox(context.Context, string, int) ([]internal.FetchedMailMessage, error) {
	return f.messages, nil
}

func TestFetchAndStore(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "siges.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	connector := fakeConnector{messages: []internal.FetchedMailMessage{
		{Provider: "imap", MessageID: "<m1@ips.example>", ReceivedAt: "2025-10-02T08:00:00Z",
			Raw: mimeMessage("<m1@ips.example>", map[string]string{"MS202509.csv": csvBody, "MC202509.csv": csvBody + "CE;55555\n"})},
		{Provider: "imap", MessageID: "<m2@ips.example>", ReceivedAt: "2025-10-02T09:00:00Z",
			Raw: mimeMessage("<m2@ips.example>", map[string]string{"resumen.csv": "x"})},
	}}

	intakeDir := filepath.Join(tmp, "intake")
	svc := NewFetchService(db, intakeDir, connector, nil)
	res, err := svc.FetchAndStore(context.Background(), "INBOX", 10)
	if err != nil {
		t.Fatal(err)
	}
	if res.Fetched != 2 || res.Stored != 2 || res.Skipped != 1 {
		t.Fatalf("res=%+v", res)
	}

	pending, err := db.ListIntakeFilesByStatus(internal.IntakeFetched, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending=%d", len(pending))
	}
	for _, f := range pending {
		blob, err := os.ReadFile(f.RawRef)
		if err != nil {
			t.Fatal(err)
		}
		if !strings.HasPrefix(string(blob), "TIPO_DOCUMENTO;IDENTIFICACION") {
			t.Fatalf("stored content=%q", blob)
		}
		if filepath.Dir(f.RawRef) != intakeDir || filepath.Base(f.RawRef) != f.Hash+".csv" {
			t.Fatalf("rawRef=%s hash=%s", f.RawRef, f.Hash)
		}
	}

	// fetching the same message again does not duplicate intake rows
	if _, err := svc.FetchAndStore(context.Background(), "INBOX", 10); err != nil {
		t.Fatal(err)
	}
	pending, err = db.ListIntakeFilesByStatus(internal.IntakeFetched, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending after refetch=%d", len(pending))
	}
}
