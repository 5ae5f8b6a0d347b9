package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ticketdigest/internal/interfaces"
	"github.com/ternarybob/ticketdigest/internal/models"
)

// Document metadata
const (
	MetaAuthor   = "AutoPDF (GLPI Ticket Summarizer)"
	MetaSubject  = "GLPI Ticket Summary"
	MetaKeywords = "GLPI Ticket Summary PDF"
	MetaCreator  = "AutoPDF"
)

// Fixed section labels
const (
	ResultHeading = "Result:"
	SourceHeading = "Source Information:"
)

// bulletSections are the result headings whose bodies render as bullet lists
var bulletSections = map[string]bool{
	"Troubleshooting Steps:": true,
	"Solution:":              true,
}

// Service implements interfaces.PDFService
type Service struct {
	styles StyleSheet
	logger arbor.ILogger
}

// Compile-time assertion
var _ interfaces.PDFService = (*Service)(nil)

// NewService creates a new PDF service
func NewService(styles StyleSheet, logger arbor.ILogger) *Service {
	return &Service{
		styles: styles,
		logger: logger,
	}
}

// RenderReport lays out title, result and source information and returns validated PDF bytes
func (s *Service) RenderReport(report models.Report) ([]byte, error) {
	s.logger.Debug().
		Str("title", report.Title).
		Int("summary_len", len(report.Summary)).
		Int("sources", len(report.Sources)).
		Msg("Rendering report PDF")

	doc := fpdf.New("P", "mm", s.styles.PageSize, "")
	doc.SetMargins(s.styles.Margin, s.styles.Margin, s.styles.Margin)
	doc.SetAutoPageBreak(true, s.styles.Margin)
	doc.SetCompression(s.styles.Compress)

	doc.SetTitle(report.Title, true)
	doc.SetAuthor(MetaAuthor, true)
	doc.SetSubject(MetaSubject, true)
	doc.SetKeywords(MetaKeywords, true)
	doc.SetCreator(MetaCreator, true)

	doc.AddPage()

	r := &reportWriter{
		pdf:       doc,
		styles:    s.styles,
		translate: doc.UnicodeTranslatorFromDescriptor(""),
	}

	r.paragraph(report.Title, s.styles.Title)
	r.space(s.styles.SectionGap)

	r.paragraph(ResultHeading, s.styles.Heading)
	r.structuredResult(report.Summary)
	r.space(s.styles.SectionGap)

	r.paragraph(SourceHeading, s.styles.Heading)
	// Only the first source is listed
	if len(report.Sources) > 0 {
		r.paragraph("Source ID: "+report.Sources[0].SourceID, s.styles.Body)
		r.paragraph("Source Type: "+models.SourceTypeGLPITicket, s.styles.Body)
	}

	if err := doc.Error(); err != nil {
		s.logger.Error().Err(err).Msg("Failed to lay out PDF")
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		s.logger.Error().Err(err).Msg("Failed to generate PDF output")
		return nil, fmt.Errorf("failed to generate PDF output: %w", err)
	}

	pages, err := Validate(buf.Bytes())
	if err != nil {
		s.logger.Error().Err(err).Msg("Rendered PDF failed validation")
		return nil, err
	}

	s.logger.Debug().
		Int("pdf_size", buf.Len()).
		Int("pages", pages).
		Msg("PDF generated successfully")
	return buf.Bytes(), nil
}

type reportWriter struct {
	pdf       *fpdf.Fpdf
	styles    StyleSheet
	translate func(string) string
}

func (r *reportWriter) space(h float64) {
	r.pdf.Ln(h)
}

func (r *reportWriter) paragraph(text string, style TextStyle) {
	r.pdf.Ln(style.SpaceBefore)
	r.pdf.SetFont(r.styles.FontFamily, style.FontStyle, style.FontSize)
	r.pdf.SetX(r.styles.Margin + style.Indent)
	r.pdf.MultiCell(0, style.LineHeight, r.translate(text), "", style.Align, false)
	r.pdf.Ln(style.SpaceAfter)
}

func (r *reportWriter) bullet(text string) {
	style := r.styles.Bullet
	r.pdf.Ln(style.SpaceBefore)
	r.pdf.SetFont(r.styles.FontFamily, style.FontStyle, style.FontSize)
	r.pdf.SetX(r.styles.Margin + style.Indent - r.styles.BulletIndent)
	r.pdf.CellFormat(r.styles.BulletIndent, style.LineHeight, r.translate(r.styles.BulletGlyph), "", 0, "L", false, 0, "")
	r.pdf.MultiCell(0, style.LineHeight, r.translate(text), "", style.Align, false)
	r.pdf.Ln(style.SpaceAfter)
}

// structuredResult renders "**Heading** body" sections. Text ahead of the first
// marker, or text without markers at all, becomes a plain paragraph.
func (r *reportWriter) structuredResult(result string) {
	for _, section := range ParseSections(result) {
		if section.Heading != "" {
			r.paragraph(section.Heading, r.styles.Heading)
		}
		if len(section.Items) > 0 {
			for _, item := range section.Items {
				r.bullet(item)
			}
			continue
		}
		if section.Body != "" {
			r.paragraph(section.Body, r.styles.Body)
		}
	}
}

// Section is one heading of the structured result with its body
type Section struct {
	Heading string
	Body    string
	Items   []string
}

// ParseSections splits result on "**". Odd segments are headings and the segment after
// each heading is its body. Bodies of bullet headings are split on "*" into items.
func ParseSections(result string) []Section {
	parts := strings.Split(result, "**")

	var sections []Section
	if preamble := PlainText(parts[0]); preamble != "" {
		sections = append(sections, Section{Body: preamble})
	}

	for i := 1; i < len(parts); i += 2 {
		heading := strings.TrimSpace(parts[i])
		content := ""
		if i+1 < len(parts) {
			content = strings.TrimSpace(parts[i+1])
		}

		section := Section{Heading: heading}
		if bulletSections[heading] {
			for _, item := range strings.Split(content, "*") {
				if text := PlainText(item); text != "" {
					section.Items = append(section.Items, text)
				}
			}
		} else {
			section.Body = PlainText(content)
		}
		sections = append(sections, section)
	}

	return sections
}
