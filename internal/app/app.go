package app

import (
	"context"
	"fmt"
	"os"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ticketdigest/internal/common"
	"github.com/ternarybob/ticketdigest/internal/handlers"
	"github.com/ternarybob/ticketdigest/internal/interfaces"
	"github.com/ternarybob/ticketdigest/internal/models"
	"github.com/ternarybob/ticketdigest/internal/services/dispatcher"
	"github.com/ternarybob/ticketdigest/internal/services/embeddings"
	"github.com/ternarybob/ticketdigest/internal/services/glpi"
	"github.com/ternarybob/ticketdigest/internal/services/llm"
	"github.com/ternarybob/ticketdigest/internal/services/objectstore"
	"github.com/ternarybob/ticketdigest/internal/services/pdf"
	"github.com/ternarybob/ticketdigest/internal/services/pipeline"
	"github.com/ternarybob/ticketdigest/internal/services/rag"
	"github.com/ternarybob/ticketdigest/internal/services/report"
	"github.com/ternarybob/ticketdigest/internal/services/scheduler"
	"github.com/ternarybob/ticketdigest/internal/services/transform"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Services
	TransformService interfaces.TransformService
	EmbeddingService interfaces.EmbeddingService
	TextService      interfaces.TextService
	VisionService    interfaces.VisionService
	Summarizer       interfaces.TextSummarizer
	PDFService       interfaces.PDFService
	ObjectStore      interfaces.ObjectStore
	ReportBuilder    interfaces.ReportBuilder
	Pipeline         *pipeline.Service
	Dispatcher       *dispatcher.Dispatcher
	Sweeper          *scheduler.ArtifactSweeper

	// HTTP handlers
	WebhookHandler *handlers.WebhookHandler
	HealthHandler  *handlers.HealthHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initServices(); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	if err := app.start(); err != nil {
		return nil, err
	}

	logger.Info().
		Int("workers", cfg.Workers.Concurrency).
		Int("queue_size", cfg.Workers.QueueSize).
		Msg("Application initialization complete")

	return app, nil
}

// start launches the dispatcher workers and the artifact sweeper. A sweeper that cannot
// start stops the dispatcher again.
func (a *App) start() error {
	a.Dispatcher.Start()

	if err := a.Sweeper.Start(a.Config.Storage.SweepSchedule); err != nil {
		if shutdownErr := a.Dispatcher.Shutdown(context.Background()); shutdownErr != nil {
			a.Logger.Warn().Err(shutdownErr).Msg("Dispatcher shutdown after failed start was incomplete")
		}
		return fmt.Errorf("failed to start artifact sweeper: %w", err)
	}
	return nil
}

func (a *App) initServices() error {
	ctx := context.Background()
	retry := a.Config.RetryPolicy()
	llmTimeout := common.ParseDurationOr(a.Config.LLM.Timeout, llm.DefaultTimeout)

	a.TransformService = transform.NewService(a.Logger)

	// 1. Embeddings for the per-run retrieval index
	embeddingService, err := embeddings.NewOpenAIService(
		ctx,
		a.Config.EmbeddingBaseURL(),
		a.Config.EmbeddingAPIKey(),
		a.Config.LLM.Embedding.Model,
		llmTimeout,
		retry,
		a.Logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create embedding service: %w", err)
	}
	a.EmbeddingService = embeddingService

	// 2. Text model (provider switch) and vision model (OpenAI-compatible)
	textModel, err := llm.NewTextModel(ctx, a.Config.LLM, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create text model: %w", err)
	}
	a.TextService = llm.NewTextService(textModel, a.Config.LLM.Text.Model, llmTimeout, retry, a.Logger)

	visionModel, err := llm.NewOpenAIModel(ctx, a.Config.LLM.Vision, llmTimeout)
	if err != nil {
		return fmt.Errorf("failed to create vision model: %w", err)
	}
	a.VisionService = llm.NewVisionService(visionModel, a.Config.LLM.Vision.Model, llmTimeout, retry, a.Logger)

	a.Summarizer = rag.NewService(a.EmbeddingService, a.TextService, a.TransformService, a.Logger)

	// 3. Report output
	a.PDFService = pdf.NewService(pdf.DefaultStyleSheet(), a.Logger)

	store, err := objectstore.NewS3Store(a.Config.Storage, retry, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to create object store: %w", err)
	}
	a.ObjectStore = store

	if err := os.MkdirAll(a.Config.Storage.ArtifactDir, 0755); err != nil {
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}
	a.ReportBuilder = report.NewBuilder(a.PDFService, a.ObjectStore, a.Config.Storage.ArtifactDir, a.Logger)

	// 4. Pipeline and its runner
	a.checkPrompts()

	a.Pipeline = pipeline.NewService(
		glpi.NewFactory(a.Config.GLPI, retry),
		a.Summarizer,
		a.VisionService,
		a.TransformService,
		a.ReportBuilder,
		pipeline.NewOptions(a.Config),
		a.Logger,
	)

	a.Dispatcher = dispatcher.NewDispatcher(
		a.Pipeline,
		a.Config.Workers.Concurrency,
		a.Config.Workers.QueueSize,
		a.Logger,
		dispatcher.WithResultHandler(a.logHardFailure),
	)

	a.Sweeper = scheduler.NewArtifactSweeper(
		a.Config.Storage.ArtifactDir,
		common.ParseDurationOr(a.Config.Storage.ArtifactTTL, scheduler.DefaultArtifactTTL),
		a.Logger,
	)

	a.Logger.Debug().
		Str("text_model", a.TextService.ModelName()).
		Str("embedding_model", a.EmbeddingService.ModelName()).
		Msg("Services initialized")

	return nil
}

// checkPrompts notes templates that will not carry ticket content into the question.
// A combine template without both summaries is already rejected by Config.Validate.
func (a *App) checkPrompts() {
	if !common.HasPlaceholder(a.Config.Prompts.Text, pipeline.PlaceholderTicketContent) {
		a.Logger.Debug().
			Strs("placeholders", common.TemplatePlaceholders(a.Config.Prompts.Text)).
			Msg("Text prompt has no {ticket_content}; it is sent as the retrieval question")
	}
}

func (a *App) initHandlers() {
	a.WebhookHandler = handlers.NewWebhookHandler(a.Dispatcher, a.Logger)
	a.HealthHandler = handlers.NewHealthHandler()
}

// logHardFailure escalates failed uploads, the one failure a run reports outward
func (a *App) logHardFailure(result models.RunResult) {
	if result.FailedAt != models.StateUploading {
		return
	}
	a.Logger.Error().
		Err(result.Err).
		Int("ticket_id", result.TicketID).
		Str("run_id", result.RunID).
		Msg("Report upload failed after all retries")
}

// Close drains queued runs and stops background work
func (a *App) Close(ctx context.Context) error {
	if a.Sweeper != nil {
		a.Sweeper.Stop()
	}

	if a.Dispatcher != nil {
		if err := a.Dispatcher.Shutdown(ctx); err != nil {
			a.Logger.Warn().Err(err).Msg("Runs still in progress at shutdown were cancelled")
			return err
		}
	}

	a.Logger.Info().Msg("Application closed")
	return nil
}
