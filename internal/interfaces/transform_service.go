package interfaces

// TransformService converts GLPI HTML content into forms suitable for prompts and chunking
type TransformService interface {
	// HTMLToMarkdown converts HTML content to markdown
	// baseURL is used for resolving relative links
	HTMLToMarkdown(html string, baseURL string) (string, error)

	// Unescape decodes entity-escaped HTML as stored by GLPI
	Unescape(content string) string
}
