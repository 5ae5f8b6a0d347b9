// Package pipeline turns one GLPI ticket into an uploaded PDF summary.
package pipeline

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ticketdigest/internal/common"
	"github.com/ternarybob/ticketdigest/internal/interfaces"
	"github.com/ternarybob/ticketdigest/internal/models"
	"github.com/ternarybob/ticketdigest/internal/services/cleaner"
	"github.com/ternarybob/ticketdigest/internal/services/report"
)

// Template placeholders
const (
	PlaceholderTicketContent = "ticket_content"
	PlaceholderTextSummary   = "text_summary"
	PlaceholderImageSummary  = "image_summary"
)

// Defaults for Options left empty
const (
	DefaultRunTimeout  = 10 * time.Minute
	sessionKillTimeout = 10 * time.Second
)

// Options holds the per-run settings taken from config
type Options struct {
	TextPrompt    string
	ImagePrompt   string
	CombinePrompt string
	KeyPrefix     string
	BaseURL       string // For resolving relative links in ticket HTML
	RunTimeout    time.Duration
}

// NewOptions builds Options from the application config
func NewOptions(config *common.Config) Options {
	return Options{
		TextPrompt:    config.Prompts.Text,
		ImagePrompt:   config.Prompts.Image,
		CombinePrompt: config.Prompts.Combine,
		KeyPrefix:     config.Storage.KeyPrefix,
		BaseURL:       config.GLPI.BaseURL,
		RunTimeout:    common.ParseDurationOr(config.Pipeline.RunTimeout, DefaultRunTimeout),
	}
}

func (o Options) withDefaults() Options {
	if o.TextPrompt == "" {
		o.TextPrompt = common.DefaultTextPrompt
	}
	if o.ImagePrompt == "" {
		o.ImagePrompt = common.DefaultImagePrompt
	}
	if o.CombinePrompt == "" {
		o.CombinePrompt = common.DefaultCombinePrompt
	}
	if o.RunTimeout <= 0 {
		o.RunTimeout = DefaultRunTimeout
	}
	return o
}

// Service implements interfaces.TicketProcessor
type Service struct {
	newClient  interfaces.TicketClientFactory
	summarizer interfaces.TextSummarizer
	vision     interfaces.VisionService
	transform  interfaces.TransformService
	builder    interfaces.ReportBuilder
	options    Options
	logger     arbor.ILogger
}

var _ interfaces.TicketProcessor = (*Service)(nil)

// NewService creates a new pipeline service
func NewService(
	newClient interfaces.TicketClientFactory,
	summarizer interfaces.TextSummarizer,
	vision interfaces.VisionService,
	transform interfaces.TransformService,
	builder interfaces.ReportBuilder,
	options Options,
	logger arbor.ILogger,
) *Service {
	return &Service{
		newClient:  newClient,
		summarizer: summarizer,
		vision:     vision,
		transform:  transform,
		builder:    builder,
		options:    options.withDefaults(),
		logger:     logger,
	}
}

// ReportKey returns the object key a ticket's report is stored under
func (s *Service) ReportKey(ticketID int) string {
	return fmt.Sprintf("%sglpi_ticket_%d.pdf", s.options.KeyPrefix, ticketID)
}

// run carries the state of one ProcessTicket call
type run struct {
	result models.RunResult
	start  time.Time
	logger arbor.ILogger
}

func (r *run) enter(state models.PipelineState) {
	r.result.State = state
	r.logger.Debug().Str("state", string(state)).Msg("Pipeline state")
}

func (r *run) fail(err error) models.RunResult {
	r.result.FailedAt = r.result.State
	r.result.State = models.StateFailed
	r.result.Err = err
	r.result.Duration = time.Since(r.start)
	r.logger.Error().
		Err(err).
		Str("failed_at", string(r.result.FailedAt)).
		Msg("Ticket processing failed")
	return r.result
}

// ProcessTicket fetches the ticket, summarizes text and images, cleans the result and
// uploads it as a PDF. Failures before the upload end the run without a report. An upload
// failure is reported in the result's Err with FailedAt set to StateUploading.
func (s *Service) ProcessTicket(ctx context.Context, ticketID int) models.RunResult {
	runID := uuid.NewString()
	r := &run{
		result: models.RunResult{RunID: runID, TicketID: ticketID},
		start:  time.Now(),
		logger: s.logger.WithCorrelationId(runID),
	}

	ctx, cancel := context.WithTimeout(ctx, s.options.RunTimeout)
	defer cancel()

	r.logger.Info().Int("ticket_id", ticketID).Msg("Processing ticket")

	r.enter(models.StateFetching)
	client, err := s.newClient(r.logger)
	if err != nil {
		return r.fail(fmt.Errorf("failed to create ticket client: %w", err))
	}
	defer s.killSession(ctx, client, r.logger)

	ticket := client.GetTicket(ctx, ticketID)
	if ticket == nil {
		return r.fail(fmt.Errorf("could not retrieve ticket %d", ticketID))
	}

	summaries := models.SummaryResult{
		TextSummary:  s.summarizeText(ctx, r, ticket),
		ImageSummary: s.summarizeImages(ctx, r, client, ticket),
	}

	r.enter(models.StateCombining)
	combined, err := s.combine(ctx, summaries)
	if err != nil {
		return r.fail(err)
	}

	r.enter(models.StateCleaning)
	cleaned := cleaner.Clean(combined)

	r.enter(models.StateRendering)
	key := s.ReportKey(ticketID)
	url, err := s.builder.Build(ctx, models.Report{
		Title:   fmt.Sprintf("Ticket Analysis - #%d", ticketID),
		Summary: cleaned,
		Sources: []models.SourceDescriptor{{SourceID: ticket.SourceID(), SourceType: models.SourceTypeGLPITicket}},
	}, key)
	if err != nil {
		if !errors.Is(err, report.ErrRender) {
			r.enter(models.StateUploading)
		}
		return r.fail(err)
	}

	r.enter(models.StateDone)
	r.result.ReportKey = key
	r.result.ReportURL = url
	r.result.Duration = time.Since(r.start)

	r.logger.Info().
		Int("ticket_id", ticketID).
		Str("key", key).
		Str("url", url).
		Dur("duration", r.result.Duration).
		Msg("Ticket report uploaded")

	return r.result
}

// summarizeText runs RAG over the ticket body. Errors leave the summary empty.
func (s *Service) summarizeText(ctx context.Context, r *run, ticket *models.Ticket) string {
	if strings.TrimSpace(ticket.Content) == "" {
		r.logger.Debug().Msg("Ticket has no content, skipping text summary")
		return ""
	}

	r.enter(models.StateSummarizingText)

	content, err := s.transform.HTMLToMarkdown(ticket.Content, s.options.BaseURL)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Failed to convert ticket content, using raw content")
		content = ticket.Content
	}

	query := common.RenderTemplate(s.options.TextPrompt, map[string]string{
		PlaceholderTicketContent: content,
	}, r.logger)

	summary, err := s.summarizer.RAGComplete(ctx, []models.ContentSource{ticket.AsSource()}, query)
	if errors.Is(err, interfaces.ErrNoContent) {
		r.logger.Info().Msg("Ticket content has no text, skipping text summary")
		return ""
	}
	if err != nil {
		r.logger.Error().Err(err).Msg("Text summarization failed")
		return ""
	}

	r.logger.Info().Int("summary_len", len(summary)).Msg("Text summary produced")
	return summary
}

// summarizeImages describes each image document in order. Failed images contribute nothing.
func (s *Service) summarizeImages(ctx context.Context, r *run, client interfaces.TicketClient, ticket *models.Ticket) string {
	r.enter(models.StateSummarizingImages)

	var descriptions []string
	for _, doc := range ticket.Documents {
		encoded, ok := s.imageData(ctx, r, client, doc)
		if !ok {
			continue
		}

		description, err := s.vision.DescribeImage(ctx, encoded, s.options.ImagePrompt)
		if err != nil {
			r.logger.Error().Err(err).Str("filename", doc.Filename).Msg("Image summarization failed")
			continue
		}
		if description != "" {
			descriptions = append(descriptions, description)
		}
	}

	if len(descriptions) > 0 {
		r.logger.Info().Int("images", len(descriptions)).Msg("Image summaries produced")
	}
	return strings.Join(descriptions, "\n")
}

// imageData returns the document's base64 image bytes, downloading them into memory
// when only a reference is known. Non-image documents are skipped.
func (s *Service) imageData(ctx context.Context, r *run, client interfaces.TicketClient, doc models.Document) (string, bool) {
	if doc.HasImage() {
		return doc.ImageData, true
	}
	if !doc.IsImage() || doc.DownloadURL == "" {
		r.logger.Debug().Str("filename", doc.Filename).Str("mime", doc.Mime).Msg("Skipping non-image document")
		return "", false
	}

	data, err := client.DownloadDocument(ctx, doc)
	if err != nil {
		r.logger.Error().Err(err).Str("filename", doc.Filename).Msg("Error downloading image")
		return "", false
	}
	return base64.StdEncoding.EncodeToString(data), true
}

// combine merges the summaries. Two summaries take exactly one merge call and a failed
// merge is an error. One summary is used verbatim. None yields the no-information text.
func (s *Service) combine(ctx context.Context, summaries models.SummaryResult) (string, error) {
	switch {
	case summaries.HasText() && summaries.HasImages():
		prompt := common.RenderTemplate(s.options.CombinePrompt, map[string]string{
			PlaceholderTextSummary:  summaries.TextSummary,
			PlaceholderImageSummary: summaries.ImageSummary,
		}, s.logger)
		merged, err := s.summarizer.Complete(ctx, prompt, "")
		if err != nil {
			return "", fmt.Errorf("failed to combine summaries: %w", err)
		}
		return merged, nil
	case summaries.HasText():
		return summaries.TextSummary, nil
	case summaries.HasImages():
		return summaries.ImageSummary, nil
	default:
		return models.NoInformationSummary, nil
	}
}

// killSession ends the client's session on a context that outlives the run deadline
func (s *Service) killSession(ctx context.Context, client interfaces.TicketClient, logger arbor.ILogger) {
	killCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sessionKillTimeout)
	defer cancel()

	if !client.KillSession(killCtx) {
		logger.Warn().Msg("Failed to kill GLPI session")
	}
}
