package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ticketdigest/internal/common"
	"google.golang.org/genai"
)

// DefaultTimeout bounds a single model call when none is configured
const DefaultTimeout = 2 * time.Minute

// NewTextModel creates the chat model used for summaries and merges.
// The provider decides which backend serves llm.text.
func NewTextModel(ctx context.Context, cfg common.LLMConfig, logger arbor.ILogger) (model.BaseChatModel, error) {
	timeout := common.ParseDurationOr(cfg.Timeout, DefaultTimeout)
	text := cfg.Text

	var (
		chatModel model.BaseChatModel
		err       error
	)

	switch cfg.Provider {
	case common.LLMProviderOpenAI, "":
		chatModel, err = NewOpenAIModel(ctx, text, timeout)

	case common.LLMProviderClaude:
		var baseURL *string
		if text.BaseURL != "" {
			baseURL = &text.BaseURL
		}
		maxTokens := text.MaxTokens
		if maxTokens <= 0 {
			maxTokens = 1000
		}
		claudeConfig := &claude.Config{
			APIKey:    text.APIKey,
			Model:     text.Model,
			BaseURL:   baseURL,
			MaxTokens: maxTokens,
		}
		if text.Temperature > 0 {
			temperature := text.Temperature
			claudeConfig.Temperature = &temperature
		}
		chatModel, err = claude.NewChatModel(ctx, claudeConfig)

	case common.LLMProviderGemini:
		client, clientErr := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:     text.APIKey,
			Backend:    genai.BackendGeminiAPI,
			HTTPClient: &http.Client{Timeout: timeout},
		})
		if clientErr != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", clientErr)
		}
		geminiConfig := &gemini.Config{
			Client: client,
			Model:  text.Model,
		}
		if text.MaxTokens > 0 {
			maxTokens := text.MaxTokens
			geminiConfig.MaxTokens = &maxTokens
		}
		if text.Temperature > 0 {
			temperature := text.Temperature
			geminiConfig.Temperature = &temperature
		}
		chatModel, err = gemini.NewChatModel(ctx, geminiConfig)

	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to create %s text model: %w", cfg.Provider, err)
	}

	logger.Info().
		Str("provider", string(cfg.Provider)).
		Str("model", text.Model).
		Dur("timeout", timeout).
		Msg("Text model initialized")

	return chatModel, nil
}

// NewOpenAIModel creates a chat model for any OpenAI-compatible endpoint
// (Akash, OpenRouter, vLLM, OpenAI itself).
func NewOpenAIModel(ctx context.Context, cfg common.ModelConfig, timeout time.Duration) (model.BaseChatModel, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model name is required")
	}

	modelConfig := &openai.ChatModelConfig{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		Timeout: timeout,
	}
	if cfg.MaxTokens > 0 {
		maxTokens := cfg.MaxTokens
		modelConfig.MaxTokens = &maxTokens
	}
	if cfg.Temperature > 0 {
		temperature := cfg.Temperature
		modelConfig.Temperature = &temperature
	}

	chatModel, err := openai.NewChatModel(ctx, modelConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai-compatible model %s: %w", cfg.Model, err)
	}
	return chatModel, nil
}
