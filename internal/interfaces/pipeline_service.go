package interfaces

import (
	"context"

	"github.com/ternarybob/ticketdigest/internal/models"
)

// TicketProcessor runs the ticket-to-report pipeline for one ticket
type TicketProcessor interface {
	ProcessTicket(ctx context.Context, ticketID int) models.RunResult
}

// RunDispatcher schedules pipeline runs off the request path
type RunDispatcher interface {
	// Submit queues a run without blocking. Returns an error when the queue is full or closed.
	Submit(ticketID int) error
}
