package config

import (
	"testing"
	"time"
)

func TestLoadReadsEnvOverrides(t *testing.T) {
	t.Setenv("SIGES_BATCH_SIZE", "500")
	t.Setenv("SIGES_BATCH_TIMEOUT_MS", "1500")
	t.Setenv("MAIL_LISTENER_AUTO_SUBMIT", "yes")
	t.Setenv("SIGES_RATE_LIMIT_RPS", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SigesBatchSize != 500 {
		t.Fatalf("batch size=%d", cfg.SigesBatchSize)
	}
	if cfg.SigesBatchTimeout != 1500*time.Millisecond {
		t.Fatalf("timeout=%s", cfg.SigesBatchTimeout)
	}
	if !cfg.MailListenerAutoSubmit {
		t.Fatal("auto submit should be on")
	}
	if cfg.SigesRateLimitRPS != 2 {
		t.Fatalf("rps fallback=%d", cfg.SigesRateLimitRPS)
	}
}

func TestDelimiter(t *testing.T) {
	cases := map[string]rune{
		";":         ';',
		",":         ',',
		"tab":       '\t',
		"\\t":       '\t',
		"pipe":      '|',
		"semicolon": ';',
		"":          ';',
	}
	for in, want := range cases {
		cfg := Config{CSVDelimiter: in}
		if got := cfg.Delimiter(); got != want {
			t.Fatalf("Delimiter(%q)=%q want %q", in, got, want)
		}
	}
}

func TestRequire(t *testing.T) {
	var cfg Config
	if err := cfg.Require("SIGES_API_TOKEN", "  "); err == nil {
		t.Fatal("expected error for blank value")
	}
	if err := cfg.Require("SIGES_API_TOKEN", "x"); err != nil {
		t.Fatal(err)
	}
}
