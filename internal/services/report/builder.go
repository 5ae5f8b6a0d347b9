// Package report renders a summary as PDF, uploads it and cleans up the local artifact.
package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ticketdigest/internal/interfaces"
	"github.com/ternarybob/ticketdigest/internal/models"
)

// ErrRender marks failures that happen before the upload starts
var ErrRender = errors.New("report rendering failed")

// Builder implements interfaces.ReportBuilder
type Builder struct {
	pdf         interfaces.PDFService
	store       interfaces.ObjectStore
	artifactDir string
	logger      arbor.ILogger
}

var _ interfaces.ReportBuilder = (*Builder)(nil)

// NewBuilder creates a report builder writing artifacts under artifactDir
func NewBuilder(pdf interfaces.PDFService, store interfaces.ObjectStore, artifactDir string, logger arbor.ILogger) *Builder {
	return &Builder{
		pdf:         pdf,
		store:       store,
		artifactDir: artifactDir,
		logger:      logger,
	}
}

// ArtifactPath returns where the local copy of key is written
func (b *Builder) ArtifactPath(key string) string {
	return filepath.Join(b.artifactDir, filepath.FromSlash(key))
}

// Build renders report, writes the artifact, uploads it as key and returns the object URL.
// The artifact is removed whether or not any step succeeds.
func (b *Builder) Build(ctx context.Context, report models.Report, key string) (string, error) {
	data, err := b.pdf.RenderReport(report)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRender, err)
	}

	path := b.ArtifactPath(key)
	defer b.removeArtifact(path)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("%w: failed to create artifact directory: %w", ErrRender, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("%w: failed to write artifact: %w", ErrRender, err)
	}

	b.logger.Debug().
		Str("path", path).
		Int("size", len(data)).
		Msg("Wrote report artifact")

	// Upload what is on disk
	stored, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read artifact: %w", ErrRender, err)
	}

	url, err := b.store.Store(ctx, stored, key)
	if err != nil {
		return "", err
	}
	return url, nil
}

func (b *Builder) removeArtifact(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		b.logger.Warn().Err(err).Str("path", path).Msg("Failed to remove report artifact")
		return
	}
	b.logger.Debug().Str("path", path).Msg("Removed report artifact")
}
