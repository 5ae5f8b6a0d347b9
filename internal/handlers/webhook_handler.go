package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ticketdigest/internal/interfaces"
	"github.com/ternarybob/ticketdigest/internal/models"
	"github.com/ternarybob/ticketdigest/internal/services/dispatcher"
)

// Response messages
const (
	MessageNoRelevantEvents = "No relevant events found"
	maxWebhookBody          = 1 << 20
)

// WebhookHandler receives GLPI webhook batches and schedules pipeline runs
type WebhookHandler struct {
	dispatcher interfaces.RunDispatcher
	logger     arbor.ILogger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(dispatcher interfaces.RunDispatcher, logger arbor.ILogger) *WebhookHandler {
	return &WebhookHandler{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// HandleWebhook acts on the first add/update Ticket event of the batch only.
// The run is queued and the response is sent without waiting for it.
func (h *WebhookHandler) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to read webhook body")
		WriteError(c, fmt.Sprintf("failed to read body: %v", err))
		return
	}

	var events []models.WebhookEvent
	if err := json.Unmarshal(body, &events); err != nil {
		h.logger.Error().Err(err).Msg("Malformed webhook payload")
		WriteError(c, fmt.Sprintf("invalid payload: %v", err))
		return
	}

	event, ok := firstTicketChange(events)
	if !ok {
		h.logger.Debug().Int("events", len(events)).Msg("No relevant webhook events")
		WriteMessage(c, MessageNoRelevantEvents)
		return
	}

	ticketID, err := event.ItemsID.Int()
	if err != nil {
		h.logger.Error().Err(err).Str("items_id", string(event.ItemsID)).Msg("Invalid ticket id in webhook")
		WriteError(c, err.Error())
		return
	}

	if err := h.dispatcher.Submit(ticketID); err != nil {
		h.logger.Error().Err(err).Int("ticket_id", ticketID).Msg("Failed to schedule ticket")
		if errors.Is(err, dispatcher.ErrQueueFull) {
			WriteError(c, dispatcher.ErrQueueFull.Error())
			return
		}
		WriteError(c, err.Error())
		return
	}

	h.logger.Info().
		Str("event", event.Event).
		Int("ticket_id", ticketID).
		Msg("Ticket scheduled for processing")
	WriteMessage(c, fmt.Sprintf("Processing ticket %d", ticketID))
}

func firstTicketChange(events []models.WebhookEvent) (models.WebhookEvent, bool) {
	for _, event := range events {
		if event.IsTicketChange() {
			return event, true
		}
	}
	return models.WebhookEvent{}, false
}
