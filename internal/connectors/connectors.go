package connectors

import (
	"context"

	"siges/internal"
)

// MailConnector pulls raw messages from one mailbox provider.
type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}
