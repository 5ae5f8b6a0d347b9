package models

import (
	"strconv"
	"time"
)

// Ticket is a GLPI helpdesk ticket as fetched for one pipeline run
type Ticket struct {
	ID        int        `json:"id"`
	Name      string     `json:"name"`
	Content   string     `json:"content"` // Raw GLPI content, usually entity-escaped HTML
	Documents []Document `json:"documents"`
}

// SourceID returns the ticket ID in the form used by report source descriptors
func (t *Ticket) SourceID() string {
	return strconv.Itoa(t.ID)
}

// Session is an authenticated GLPI API session, owned by exactly one client
type Session struct {
	Token     string
	StartedAt time.Time
}

// Active reports whether the session holds a token
func (s *Session) Active() bool {
	return s != nil && s.Token != ""
}

// ContentSource is a piece of textual content eligible for retrieval
type ContentSource struct {
	SourceID string
	Content  string
}

// AsSource returns the ticket body as a retrieval source
func (t *Ticket) AsSource() ContentSource {
	return ContentSource{SourceID: t.SourceID(), Content: t.Content}
}
