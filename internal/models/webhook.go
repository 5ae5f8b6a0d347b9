package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// WebhookEvent is one entry of a GLPI webhook batch
type WebhookEvent struct {
	Event    string `json:"event"`
	ItemType string `json:"itemtype"`
	ItemsID  ItemID `json:"items_id"`
}

// IsTicketChange reports whether the event is an add or update of a Ticket
func (e WebhookEvent) IsTicketChange() bool {
	return (e.Event == "add" || e.Event == "update") && e.ItemType == "Ticket"
}

// ItemID holds items_id exactly as sent. GLPI emits it as a string or a number.
type ItemID string

// UnmarshalJSON accepts a JSON string, number or null
func (id *ItemID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ItemID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("items_id must be a string or number: %w", err)
	}
	*id = ItemID(n.String())
	return nil
}

// Int parses the id as a decimal integer
func (id ItemID) Int() (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(string(id)))
	if err != nil {
		return 0, fmt.Errorf("invalid items_id '%s': %w", string(id), err)
	}
	return n, nil
}
