package glpi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ticketdigest/internal/common"
	"github.com/ternarybob/ticketdigest/internal/interfaces"
	"github.com/ternarybob/ticketdigest/internal/models"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout is the default per-request HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 5

	// maxErrorBody bounds how much of an error response is kept in APIError.
	maxErrorBody = 512
)

// Client is a GLPI REST API client bound to a single session.
// Create one per pipeline run; it is not safe to share across runs.
type Client struct {
	baseURL    string
	appToken   string
	userToken  string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
	retry      common.RetryPolicy
	session    *models.Session
}

var _ interfaces.TicketClient = (*Client)(nil)

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithUserToken authenticates initSession with a user token.
func WithUserToken(token string) ClientOption {
	return func(c *Client) {
		c.userToken = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout sets the per-request timeout. The client's HTTP client is copied first,
// so an injected client shared between runs is never mutated.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			httpClient := *c.httpClient
			httpClient.Timeout = timeout
			c.httpClient = &httpClient
		}
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
		}
	}
}

// WithLimiter shares an existing limiter, so concurrent runs respect one global rate.
func WithLimiter(limiter *rate.Limiter) ClientOption {
	return func(c *Client) {
		if limiter != nil {
			c.limiter = limiter
		}
	}
}

// WithRetryPolicy sets the retry policy applied to every call except killSession.
func WithRetryPolicy(policy common.RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = policy
	}
}

// NewClient creates a new GLPI API client. baseURL is the apirest.php root.
func NewClient(baseURL, appToken string, opts ...ClientOption) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("glpi base URL is required")
	}
	if strings.TrimSpace(appToken) == "" {
		return nil, fmt.Errorf("glpi app token is required")
	}

	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		appToken: appToken,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger:  arbor.NewLogger(),
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		retry:   common.NewDefaultRetryPolicy(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// NewFactory returns a TicketClientFactory building clients from config.
// All clients created by the factory share one rate limiter.
func NewFactory(config common.GLPIConfig, policy common.RetryPolicy, opts ...ClientOption) interfaces.TicketClientFactory {
	rps := config.RateLimit
	if rps <= 0 {
		rps = DefaultRateLimit
	}
	limiter := rate.NewLimiter(rate.Limit(rps), rps)
	timeout := common.ParseDurationOr(config.Timeout, DefaultTimeout)

	return func(logger arbor.ILogger) (interfaces.TicketClient, error) {
		options := []ClientOption{
			WithUserToken(config.UserToken),
			WithLimiter(limiter),
			WithRetryPolicy(policy),
			WithLogger(logger),
		}
		options = append(options, opts...)
		// Timeout last so it applies to any injected HTTP client
		options = append(options, WithTimeout(timeout))
		return NewClient(config.BaseURL, config.AppToken, options...)
	}
}

// APIError represents a non-2xx response from the GLPI API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("glpi API error: %s (status %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// Retryable reports whether the status may succeed on a later attempt.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Session returns the current session, nil when none is open.
func (c *Client) Session() *models.Session {
	return c.session
}

// headers builds the request headers for the current session state.
// The user token is only sent while no session is open.
func (c *Client) headers(accept string) http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", accept)
	h.Set("App-Token", c.appToken)
	if c.session.Active() {
		h.Set("Session-Token", c.session.Token)
	} else if c.userToken != "" {
		h.Set("Authorization", "user_token "+c.userToken)
	}
	return h
}

// fetch performs one GET and returns the body. Non-2xx becomes *APIError.
func (c *Client) fetch(ctx context.Context, endpoint, accept string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait cancelled: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = c.headers(accept)

	c.logger.Debug().
		Str("url", endpoint).
		Msg("GLPI API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		message := strings.TrimSpace(string(body))
		if len(message) > maxErrorBody {
			message = message[:maxErrorBody]
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    message,
			Endpoint:   strings.TrimPrefix(endpoint, c.baseURL),
		}
	}

	return body, nil
}

// get performs a retried GET and decodes the JSON response into result.
// Client errors and malformed bodies are not retried.
func (c *Client) get(ctx context.Context, operation, path string, result interface{}) error {
	endpoint := c.baseURL + path
	return common.Retry(ctx, c.retry, c.logger, operation, func(ctx context.Context) error {
		body, err := c.fetch(ctx, endpoint, "application/json")
		if err != nil {
			return classify(err)
		}
		if err := json.Unmarshal(body, result); err != nil {
			return common.Permanent(fmt.Errorf("failed to decode response from %s: %w", path, err))
		}
		return nil
	})
}

// classify marks errors that cannot succeed on retry as permanent.
func classify(err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && !apiErr.Retryable() {
		return common.Permanent(err)
	}
	return err
}

// InitSession opens a session. On success the user token is no longer sent.
func (c *Client) InitSession(ctx context.Context) bool {
	var resp sessionResponse
	if err := c.get(ctx, "glpi.initSession", "/initSession", &resp); err != nil {
		c.logger.Error().Err(err).Msg("Failed to initialize GLPI session")
		return false
	}

	if resp.SessionToken == "" {
		c.logger.Error().Msg("GLPI initSession returned no session token")
		return false
	}

	c.session = &models.Session{
		Token:     resp.SessionToken,
		StartedAt: time.Now(),
	}
	c.logger.Info().Msg("GLPI session initialized")
	return true
}

// KillSession ends the session with a single best-effort request.
// The local session is cleared whatever the outcome.
func (c *Client) KillSession(ctx context.Context) bool {
	if !c.session.Active() {
		return true
	}
	defer func() { c.session = nil }()

	if _, err := c.fetch(ctx, c.baseURL+"/killSession", "application/json"); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to kill GLPI session")
		return false
	}

	c.logger.Info().
		Dur("session_age", time.Since(c.session.StartedAt)).
		Msg("GLPI session killed")
	return true
}

// ensureSession opens a session when none is active.
func (c *Client) ensureSession(ctx context.Context) bool {
	if c.session.Active() {
		return true
	}
	return c.InitSession(ctx)
}

// GetTicket fetches a ticket and attaches its documents. Returns nil on any failure.
func (c *Client) GetTicket(ctx context.Context, ticketID int) *models.Ticket {
	if !c.ensureSession(ctx) {
		return nil
	}

	var record ticketRecord
	if err := c.get(ctx, "glpi.getTicket", fmt.Sprintf("/Ticket/%d", ticketID), &record); err != nil {
		c.logger.Error().Err(err).Int("ticket_id", ticketID).Msg("Failed to retrieve ticket")
		return nil
	}

	ticket := &models.Ticket{
		ID:      ticketID,
		Name:    record.Name,
		Content: record.Content,
	}
	if id, err := record.ID.Int(); err == nil {
		ticket.ID = id
	}

	c.logger.Info().Int("ticket_id", ticketID).Msg("Retrieved ticket")

	ticket.Documents = c.GetTicketDocuments(ctx, ticketID)
	return ticket
}

// GetTicketDocuments lists Document items linked to a ticket.
// A failed listing yields an empty slice; a failed lookup skips that document.
func (c *Client) GetTicketDocuments(ctx context.Context, ticketID int) []models.Document {
	documents := []models.Document{}

	if !c.ensureSession(ctx) {
		return documents
	}

	var items []linkedItemRecord
	if err := c.get(ctx, "glpi.getLinkedItems", fmt.Sprintf("/Ticket/%d/Item_Ticket", ticketID), &items); err != nil {
		c.logger.Error().Err(err).Int("ticket_id", ticketID).Msg("Failed to retrieve linked items")
		return documents
	}

	for _, item := range items {
		if item.ItemType != "Document" {
			continue
		}

		docID, err := item.ItemsID.Int()
		if err != nil {
			c.logger.Warn().Err(err).Int("ticket_id", ticketID).Msg("Skipping linked document with invalid id")
			continue
		}

		var record documentRecord
		path := fmt.Sprintf("/Document/%d?expand_dropdowns=true", docID)
		if err := c.get(ctx, "glpi.getDocument", path, &record); err != nil {
			c.logger.Warn().Err(err).Int("document_id", docID).Msg("Failed to retrieve document, skipping")
			continue
		}

		if record.Filename == "" {
			continue
		}

		documents = append(documents, models.Document{
			ID:          docID,
			Filename:    record.Filename,
			DownloadURL: fmt.Sprintf("%s/Document/%d", c.baseURL, docID),
			Mime:        record.Mime,
		})

		c.logger.Info().
			Int("ticket_id", ticketID).
			Str("filename", record.Filename).
			Msg("Found document")
	}

	return documents
}

// DownloadDocument fetches the raw bytes of a document via its download URL.
func (c *Client) DownloadDocument(ctx context.Context, doc models.Document) ([]byte, error) {
	if doc.DownloadURL == "" {
		return nil, fmt.Errorf("document %d has no download URL", doc.ID)
	}
	if !c.ensureSession(ctx) {
		return nil, fmt.Errorf("failed to download document %d: no session", doc.ID)
	}

	var data []byte
	err := common.Retry(ctx, c.retry, c.logger, "glpi.downloadDocument", func(ctx context.Context) error {
		body, err := c.fetch(ctx, doc.DownloadURL, "application/octet-stream")
		if err != nil {
			return classify(err)
		}
		data = body
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to download document %d: %w", doc.ID, err)
	}

	if len(data) == 0 {
		return nil, fmt.Errorf("document %d download was empty", doc.ID)
	}
	return data, nil
}
