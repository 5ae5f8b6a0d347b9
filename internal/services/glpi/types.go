// Package glpi provides a client for the GLPI helpdesk REST API.
package glpi

import "github.com/ternarybob/ticketdigest/internal/models"

// sessionResponse is returned by /initSession.
type sessionResponse struct {
	SessionToken string `json:"session_token"`
}

// ticketRecord is the subset of /Ticket/{id} the pipeline uses.
// Missing keys decode to zero values.
type ticketRecord struct {
	ID      models.ItemID `json:"id"`
	Name    string        `json:"name"`
	Content string        `json:"content"`
}

// linkedItemRecord is one entry of /Ticket/{id}/Item_Ticket.
type linkedItemRecord struct {
	ItemType string        `json:"itemtype"`
	ItemsID  models.ItemID `json:"items_id"`
}

// documentRecord is the subset of /Document/{id} the pipeline uses.
type documentRecord struct {
	ID       models.ItemID `json:"id"`
	Name     string        `json:"name"`
	Filename string        `json:"filename"`
	Mime     string        `json:"mime"`
}
