package models

import (
	"path/filepath"
	"strings"
)

// Document is a GLPI document linked to a ticket.
// It carries either a download reference or inlined base64 image bytes.
type Document struct {
	ID          int    `json:"id"`
	Filename    string `json:"filename"`
	DownloadURL string `json:"download_url"`
	Mime        string `json:"mime,omitempty"`

	// ImageData is base64-encoded image bytes, empty when only the reference is known
	ImageData string `json:"image_data,omitempty"`
}

// HasImage reports whether inlined image bytes are present
func (d Document) HasImage() bool {
	return d.ImageData != ""
}

// IsImage reports whether the document looks like an image, by MIME type or file extension
func (d Document) IsImage() bool {
	if strings.HasPrefix(strings.ToLower(d.Mime), "image/") {
		return true
	}
	switch strings.ToLower(filepath.Ext(d.Filename)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp":
		return true
	}
	return false
}
