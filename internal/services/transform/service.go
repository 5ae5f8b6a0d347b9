package transform

import (
	"html"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ticketdigest/internal/interfaces"
)

var whitespacePattern = regexp.MustCompile(`\s+`)

// Service converts GLPI ticket content (entity-escaped HTML) into markdown for prompts
type Service struct {
	logger arbor.ILogger
}

var _ interfaces.TransformService = (*Service)(nil)

// NewService creates a new transform service
func NewService(logger arbor.ILogger) *Service {
	return &Service{
		logger: logger,
	}
}

// Unescape decodes HTML entities. GLPI stores rich text escaped, e.g. "&lt;p&gt;".
// Decoding is repeated while it changes the text, to undo double escaping.
func (s *Service) Unescape(content string) string {
	for i := 0; i < 3; i++ {
		decoded := html.UnescapeString(content)
		if decoded == content {
			break
		}
		content = decoded
	}
	return content
}

// HTMLToMarkdown converts HTML content to markdown
// baseURL is used for resolving relative links
func (s *Service) HTMLToMarkdown(content string, baseURL string) (string, error) {
	if content == "" {
		return "", nil
	}

	content = s.Unescape(content)

	converter := md.NewConverter(baseURL, true, nil)
	converted, err := converter.ConvertString(content)
	if err != nil {
		s.logger.Warn().Err(err).Msg("HTML to markdown conversion failed, using plain text")
		return PlainText(content), nil
	}

	if strings.TrimSpace(converted) == "" {
		s.logger.Debug().
			Int("html_length", len(content)).
			Msg("HTML to markdown conversion produced empty output, using plain text")
		return PlainText(content), nil
	}

	s.logger.Debug().
		Int("markdown_length", len(converted)).
		Int("html_length", len(content)).
		Msg("HTML to markdown conversion successful")

	return converted, nil
}

// PlainText returns the visible text of an HTML fragment with whitespace collapsed
func PlainText(content string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return strings.TrimSpace(whitespacePattern.ReplaceAllString(content, " "))
	}
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(doc.Text(), " "))
}
