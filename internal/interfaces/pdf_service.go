package interfaces

import "github.com/ternarybob/ticketdigest/internal/models"

// PDFService renders summary reports as PDF documents
type PDFService interface {
	// RenderReport lays out the report and returns the PDF bytes
	RenderReport(report models.Report) ([]byte, error)
}
