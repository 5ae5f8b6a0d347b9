package interfaces

import (
	"context"
)

// TextService performs direct text completions
type TextService interface {
	// Complete sends prompt to the text model. A non-empty context is prepended to the prompt.
	Complete(ctx context.Context, prompt, contextText string) (string, error)

	// ModelName returns the configured text model
	ModelName() string
}

// VisionService describes images with a vision-capable model
type VisionService interface {
	// DescribeImage sends one base64 image with prompt. Any failure is returned as an error.
	DescribeImage(ctx context.Context, encodedImage, prompt string) (string, error)
}
