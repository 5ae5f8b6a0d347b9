package pdf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ticketdigest/internal/models"
)

func newUncompressedService() *Service {
	styles := DefaultStyleSheet()
	styles.Compress = false
	return NewService(styles, arbor.NewLogger())
}

func TestRenderReport(t *testing.T) {
	service := NewService(DefaultStyleSheet(), arbor.NewLogger())

	tests := []struct {
		name    string
		summary string
		sources []models.SourceDescriptor
	}{
		{
			name:    "Structured summary",
			summary: "**Issue:** Printer offline **Troubleshooting Steps:** * Check cable * Restart spooler **Solution:** * Replace cable",
			sources: []models.SourceDescriptor{{SourceID: "42", SourceType: models.SourceTypeGLPITicket}},
		},
		{
			name:    "Plain summary",
			summary: "The user reported a broken keyboard.",
			sources: []models.SourceDescriptor{{SourceID: "7", SourceType: models.SourceTypeGLPITicket}},
		},
		{
			name:    "No sources",
			summary: "No information available.",
		},
		{
			name:    "Empty summary",
			summary: "",
		},
		{
			name:    "Non latin text",
			summary: "**Résumé:** Imprimante hors ligne – café renversé",
			sources: []models.SourceDescriptor{{SourceID: "9"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdfBytes, err := service.RenderReport(models.Report{
				Title:   "Ticket Analysis - #42",
				Summary: tt.summary,
				Sources: tt.sources,
			})
			require.NoError(t, err)
			require.NotEmpty(t, pdfBytes)
			assert.Equal(t, "%PDF", string(pdfBytes[:4]))
		})
	}
}

func TestRenderReport_NoSourcesContainsTitleAndResult(t *testing.T) {
	pdfBytes, err := newUncompressedService().RenderReport(models.Report{
		Title:   "Ticket Analysis - #42",
		Summary: "Printer offline",
	})
	require.NoError(t, err)

	content := string(pdfBytes)
	assert.Contains(t, content, "Ticket Analysis - #42")
	assert.Contains(t, content, ResultHeading)
	assert.Contains(t, content, SourceHeading)
	assert.NotContains(t, content, "Source ID:")
}

func TestRenderReport_OnlyFirstSourceListed(t *testing.T) {
	pdfBytes, err := newUncompressedService().RenderReport(models.Report{
		Title:   "Ticket Analysis - #42",
		Summary: "Printer offline",
		Sources: []models.SourceDescriptor{
			{SourceID: "42", SourceType: models.SourceTypeGLPITicket},
			{SourceID: "43", SourceType: "other"},
		},
	})
	require.NoError(t, err)

	content := string(pdfBytes)
	assert.Contains(t, content, "Source ID: 42")
	assert.Contains(t, content, "Source Type: glpi_ticket")
	assert.NotContains(t, content, "Source ID: 43")
}

func TestRenderReport_LongSummaryPaginates(t *testing.T) {
	summary := "**Troubleshooting Steps:**"
	for i := 0; i < 200; i++ {
		summary += " * Step with enough words to fill a line of the page"
	}

	pdfBytes, err := NewService(DefaultStyleSheet(), arbor.NewLogger()).RenderReport(models.Report{
		Title:   "Long",
		Summary: summary,
	})
	require.NoError(t, err)

	pages, err := Validate(pdfBytes)
	require.NoError(t, err)
	assert.Greater(t, pages, 1)
}

func TestParseSections(t *testing.T) {
	tests := []struct {
		name     string
		result   string
		expected []Section
	}{
		{
			name:   "Bullet and paragraph sections",
			result: "**Issue:** Printer `offline` **Troubleshooting Steps:** * Check cable * * Restart spooler **Solution:** *Replace cable",
			expected: []Section{
				{Heading: "Issue:", Body: "Printer offline"},
				{Heading: "Troubleshooting Steps:", Items: []string{"Check cable", "Restart spooler"}},
				{Heading: "Solution:", Items: []string{"Replace cable"}},
			},
		},
		{
			name:     "No markers",
			result:   "Just a sentence.",
			expected: []Section{{Body: "Just a sentence."}},
		},
		{
			name:   "Preamble kept",
			result: "Overview first. **Key Information:** Disk full",
			expected: []Section{
				{Body: "Overview first."},
				{Heading: "Key Information:", Body: "Disk full"},
			},
		},
		{
			name:     "Trailing heading without body",
			result:   "**Notes:**",
			expected: []Section{{Heading: "Notes:"}},
		},
		{
			name:     "Empty",
			result:   "",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseSections(tt.result))
		})
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"Plain words", "Plain words"},
		{"Some *emphasis* and `code`", "Some emphasis and code"},
		{"1. First\n2. Second", "First Second"},
		{"Line one\nline two", "Line one line two"},
		{"# Heading\n\nBody", "Heading Body"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, PlainText(tt.input))
		})
	}
}

func TestValidate_RejectsGarbage(t *testing.T) {
	_, err := Validate([]byte("not a pdf"))
	assert.Error(t, err)

	_, err = Validate(nil)
	assert.Error(t, err)
}

func TestDefaultStyleSheet_IsIndependentValue(t *testing.T) {
	a := DefaultStyleSheet()
	a.Title.FontSize = 99
	b := DefaultStyleSheet()
	assert.Equal(t, 16.0, b.Title.FontSize)
}
