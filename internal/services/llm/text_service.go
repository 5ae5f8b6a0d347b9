package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ticketdigest/internal/common"
	"github.com/ternarybob/ticketdigest/internal/interfaces"
)

// TextService performs direct completions against the text model
type TextService struct {
	chatModel model.BaseChatModel
	modelName string
	timeout   time.Duration
	retry     common.RetryPolicy
	logger    arbor.ILogger
}

var _ interfaces.TextService = (*TextService)(nil)

// NewTextService creates a text completion service
func NewTextService(chatModel model.BaseChatModel, modelName string, timeout time.Duration, retry common.RetryPolicy, logger arbor.ILogger) *TextService {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &TextService{
		chatModel: chatModel,
		modelName: modelName,
		timeout:   timeout,
		retry:     retry,
		logger:    logger,
	}
}

// ModelName returns the configured text model
func (s *TextService) ModelName() string {
	return s.modelName
}

// Complete sends prompt as a single user message. A non-empty context is prepended verbatim.
func (s *TextService) Complete(ctx context.Context, prompt, contextText string) (string, error) {
	if contextText != "" {
		prompt = contextText + prompt
	}
	if strings.TrimSpace(prompt) == "" {
		return "", fmt.Errorf("prompt cannot be empty")
	}

	return s.generate(ctx, "llm.complete", []*schema.Message{schema.UserMessage(prompt)})
}

// generate runs one retried Generate call and returns the trimmed content
func (s *TextService) generate(ctx context.Context, operation string, messages []*schema.Message) (string, error) {
	start := time.Now()

	var content string
	err := common.Retry(ctx, s.retry, s.logger, operation, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		resp, err := s.chatModel.Generate(callCtx, messages)
		if err != nil {
			return classify(err)
		}
		if resp == nil || strings.TrimSpace(resp.Content) == "" {
			return classify(ErrEmptyResponse)
		}
		content = strings.TrimSpace(resp.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate completion: %w", err)
	}

	s.logger.Debug().
		Str("model", s.modelName).
		Str("operation", operation).
		Int("response_length", len(content)).
		Dur("duration", time.Since(start)).
		Msg("Completion generated")

	return content, nil
}
