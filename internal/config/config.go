package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DBPath    string
	IntakeDir string
	OutputDir string

	SigesAPIBaseURL     string
	SigesAPIToken       string
	SigesRateLimitRPS   int
	SigesBatchTimeout   time.Duration
	SigesBatchSize      int
	SigesOrganizationID int
	SigesUserID         int

	CSVDelimiter   string
	CSVEncoding    string
	VocabularyFile string

	GmailClientID     string
	GmailClientSecret string
	GmailRedirectURI  string
	GmailRefreshToken string

	IMAPHost     string
	IMAPPort     int
	IMAPSecure   bool
	IMAPUser     string
	IMAPPassword string
	IMAPMarkSeen bool

	MailListenerProvider     string
	MailListenerLabel        string
	MailListenerIntervalSec  int
	MailListenerFetchMax     int
	MailListenerProcessBatch int
	MailListenerAutoExport   bool
	MailListenerAutoSubmit   bool
}

func Load() (Config, error) {
	_ = godotenv.Load()

	cwd, err := os.Getwd()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:    getEnv("DB_PATH", filepath.Join(cwd, "data", "siges.db")),
		IntakeDir: getEnv("INTAKE_DIR", filepath.Join(cwd, "data", "intake")),
		OutputDir: getEnv("OUTPUT_DIR", filepath.Join(cwd, "out")),

		SigesAPIBaseURL:     getEnv("SIGES_API_BASE_URL", "http://localhost:8000/api/v1"),
		SigesAPIToken:       getEnv("SIGES_API_TOKEN", ""),
		SigesRateLimitRPS:   getEnvInt("SIGES_RATE_LIMIT_RPS", 2),
		SigesBatchTimeout:   getEnvDuration("SIGES_BATCH_TIMEOUT_MS", 60*time.Second),
		SigesBatchSize:      getEnvInt("SIGES_BATCH_SIZE", 250),
		SigesOrganizationID: getEnvInt("SIGES_ORGANIZATION_ID", 0),
		SigesUserID:         getEnvInt("SIGES_USER_ID", 0),

		CSVDelimiter:   getEnv("CSV_DELIMITER", ";"),
		CSVEncoding:    getEnv("CSV_ENCODING", "utf-8"),
		VocabularyFile: getEnv("VOCABULARY_FILE", ""),

		GmailClientID:     getEnv("GMAIL_CLIENT_ID", ""),
		GmailClientSecret: getEnv("GMAIL_CLIENT_SECRET", ""),
		GmailRedirectURI:  getEnv("GMAIL_REDIRECT_URI", "https://developers.google.com/oauthplayground"),
		GmailRefreshToken: getEnv("GMAIL_REFRESH_TOKEN", ""),

		IMAPHost:     getEnv("IMAP_HOST", ""),
		IMAPPort:     getEnvInt("IMAP_PORT", 993),
		IMAPSecure:   getEnvBool("IMAP_SECURE", true),
		IMAPUser:     getEnv("IMAP_USER", ""),
		IMAPPassword: getEnv("IMAP_PASSWORD", ""),
		IMAPMarkSeen: getEnvBool("IMAP_MARK_SEEN", false),

		MailListenerProvider:     getEnv("MAIL_LISTENER_PROVIDER", "imap"),
		MailListenerLabel:        getEnv("MAIL_LISTENER_LABEL", "INBOX"),
		MailListenerIntervalSec:  getEnvInt("MAIL_LISTENER_INTERVAL_SEC", 300),
		MailListenerFetchMax:     getEnvInt("MAIL_LISTENER_FETCH_MAX", 20),
		MailListenerProcessBatch: getEnvInt("MAIL_LISTENER_PROCESS_BATCH", 10),
		MailListenerAutoExport:   getEnvBool("MAIL_LISTENER_AUTO_EXPORT", true),
		MailListenerAutoSubmit:   getEnvBool("MAIL_LISTENER_AUTO_SUBMIT", false),
	}

	return cfg, nil
}

func (c Config) Require(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("missing required env var: %s", name)
	}
	return nil
}

// Delimiter returns the CSV field separator. Multi-character values are
// accepted for the usual names (tab, semicolon, comma, pipe).
func (c Config) Delimiter() rune {
	switch strings.ToLower(strings.TrimSpace(c.CSVDelimiter)) {
	case "\\t", "tab":
		return '\t'
	case "semicolon":
		return ';'
	case "comma":
		return ','
	case "pipe":
		return '|'
	}
	if r := []rune(c.CSVDelimiter); len(r) > 0 {
		return r[0]
	}
	return ';'
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := getEnv(key, "")
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvDuration reads a millisecond count.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	ms := getEnvInt(key, -1)
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(key, "")))
	if value == "" {
		return fallback
	}
	if value == "1" || value == "true" || value == "yes" || value == "on" {
		return true
	}
	if value == "0" || value == "false" || value == "no" || value == "off" {
		return false
	}
	return fallback
}
