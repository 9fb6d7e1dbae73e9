package internal

type SubmissionStatus string

const (
	// StatusValidated marks a validate-only run that found no errors.
	StatusValidated SubmissionStatus = "validated"
	StatusRejected  SubmissionStatus = "rejected"
	StatusFailed    SubmissionStatus = "failed"
	StatusPartial   SubmissionStatus = "partial"
	StatusSent      SubmissionStatus = "sent"
)

type SubmissionRun struct {
	ID             int
	TraceID        string
	FileName       string
	Regime         string
	Period         string
	OrganizationID int
	UserID         int
	Fingerprint    string
	RowsRead       int
	TotalRecords   int
	TotalSent      int
	Status         SubmissionStatus
	Errors         []string
	CreatedAt      string
}

type IntakeStatus string

const (
	IntakeFetched   IntakeStatus = "fetched"
	IntakeProcessed IntakeStatus = "processed"
	IntakeRejected  IntakeStatus = "rejected"
	IntakeFailed    IntakeStatus = "failed"
)

// IntakeFile is one CSV attachment pulled from a mailbox, stored on disk at
// RawRef.
type IntakeFile struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	FileName   string
	Hash       string
	RawRef     string
	Status     IntakeStatus
	TraceID    string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}
