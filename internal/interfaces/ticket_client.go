package interfaces

import (
	"context"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ticketdigest/internal/models"
)

// TicketClient talks to the GLPI REST API on behalf of a single pipeline run.
// A client owns at most one session and must never be shared between runs.
type TicketClient interface {
	// InitSession opens a session. Returns false on any failure after retries.
	InitSession(ctx context.Context) bool

	// KillSession ends the session, best-effort. Returns true when there was nothing to end.
	KillSession(ctx context.Context) bool

	// GetTicket fetches a ticket with its documents. Returns nil on failure.
	GetTicket(ctx context.Context, ticketID int) *models.Ticket

	// GetTicketDocuments lists the documents linked to a ticket. Never returns nil.
	GetTicketDocuments(ctx context.Context, ticketID int) []models.Document

	// DownloadDocument fetches the raw bytes of a document
	DownloadDocument(ctx context.Context, doc models.Document) ([]byte, error)
}

// TicketClientFactory creates a fresh TicketClient for one run
type TicketClientFactory func(logger arbor.ILogger) (TicketClient, error)
