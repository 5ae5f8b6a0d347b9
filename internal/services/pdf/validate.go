package pdf

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// Keep pdfcpu from writing a config directory under the user's home
	model.ConfigPath = "disable"
}

// Validate checks that data is a well-formed PDF and returns its page count
func Validate(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("failed to validate PDF: empty document")
	}

	conf := model.NewDefaultConfiguration()
	if err := api.Validate(bytes.NewReader(data), conf); err != nil {
		return 0, fmt.Errorf("failed to validate PDF: %w", err)
	}

	pages, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("failed to count PDF pages: %w", err)
	}
	return pages, nil
}
