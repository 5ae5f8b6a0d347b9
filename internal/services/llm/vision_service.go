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

// VisionService describes ticket images with a vision-capable chat model
type VisionService struct {
	chatModel model.BaseChatModel
	modelName string
	timeout   time.Duration
	retry     common.RetryPolicy
	logger    arbor.ILogger
}

var _ interfaces.VisionService = (*VisionService)(nil)

// NewVisionService creates a vision service over an OpenAI-compatible multimodal model
func NewVisionService(chatModel model.BaseChatModel, modelName string, timeout time.Duration, retry common.RetryPolicy, logger arbor.ILogger) *VisionService {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &VisionService{
		chatModel: chatModel,
		modelName: modelName,
		timeout:   timeout,
		retry:     retry,
		logger:    logger,
	}
}

// ImageDataURL wraps base64 image bytes in the data URL form vision endpoints accept
func ImageDataURL(encodedImage string) string {
	return "data:image/jpeg;base64," + encodedImage
}

// DescribeImage sends the prompt followed by the image as one multimodal user message.
// Transport errors, malformed responses and empty content are all returned as errors.
func (s *VisionService) DescribeImage(ctx context.Context, encodedImage, prompt string) (string, error) {
	if encodedImage == "" {
		return "", fmt.Errorf("image data cannot be empty")
	}

	message := &schema.Message{
		Role: schema.User,
		MultiContent: []schema.ChatMessagePart{
			{
				Type: schema.ChatMessagePartTypeText,
				Text: prompt,
			},
			{
				Type: schema.ChatMessagePartTypeImageURL,
				ImageURL: &schema.ChatMessageImageURL{
					URL: ImageDataURL(encodedImage),
				},
			},
		},
	}

	start := time.Now()
	var content string
	err := common.Retry(ctx, s.retry, s.logger, "llm.describeImage", func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		resp, err := s.chatModel.Generate(callCtx, []*schema.Message{message})
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
		return "", fmt.Errorf("failed to describe image: %w", err)
	}

	s.logger.Debug().
		Str("model", s.modelName).
		Int("image_length", len(encodedImage)).
		Int("response_length", len(content)).
		Dur("duration", time.Since(start)).
		Msg("Image described")

	return content, nil
}
