package interfaces

import (
	"context"

	"github.com/ternarybob/ticketdigest/internal/models"
)

// ObjectStore persists finished reports
type ObjectStore interface {
	// Store uploads data under key and returns the object URL
	Store(ctx context.Context, data []byte, key string) (string, error)
}

// ReportBuilder renders a report, uploads it and removes the local artifact whatever the outcome
type ReportBuilder interface {
	Build(ctx context.Context, report models.Report, key string) (string, error)
}
