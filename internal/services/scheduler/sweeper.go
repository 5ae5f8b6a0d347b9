// Package scheduler runs periodic housekeeping for the report pipeline.
package scheduler

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

// Defaults for an empty schedule or non-positive TTL
const (
	DefaultSweepSchedule = "@every 15m"
	DefaultArtifactTTL   = time.Hour
)

// ArtifactSweeper deletes report artifacts left in the artifact directory by runs
// that never reached their own cleanup, such as after a crash.
type ArtifactSweeper struct {
	dir     string
	ttl     time.Duration
	cron    *cron.Cron
	mu      sync.Mutex
	running bool
	now     func() time.Time
	logger  arbor.ILogger
}

// NewArtifactSweeper creates a sweeper for dir removing PDFs older than ttl
func NewArtifactSweeper(dir string, ttl time.Duration, logger arbor.ILogger) *ArtifactSweeper {
	if ttl <= 0 {
		ttl = DefaultArtifactTTL
	}
	return &ArtifactSweeper{
		dir:    dir,
		ttl:    ttl,
		cron:   cron.New(),
		now:    time.Now,
		logger: logger,
	}
}

// Start schedules the sweep
func (s *ArtifactSweeper) Start(schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("artifact sweeper already running")
	}
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}

	if _, err := s.cron.AddFunc(schedule, s.runSweep); err != nil {
		return fmt.Errorf("failed to add sweep schedule: %w", err)
	}

	s.cron.Start()
	s.running = true
	s.logger.Info().
		Str("schedule", schedule).
		Str("dir", s.dir).
		Dur("ttl", s.ttl).
		Msg("Artifact sweeper started")
	return nil
}

// Stop stops the schedule and waits for a sweep in progress
func (s *ArtifactSweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info().Msg("Artifact sweeper stopped")
}

func (s *ArtifactSweeper) runSweep() {
	removed, err := s.Sweep()
	if err != nil {
		s.logger.Error().Err(err).Msg("Artifact sweep failed")
		return
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("Removed stale report artifacts")
	}
}

// Sweep removes *.pdf files under the artifact directory older than the TTL and
// returns how many were removed. A missing directory is not an error.
func (s *ArtifactSweeper) Sweep() (int, error) {
	cutoff := s.now().Add(-s.ttl)
	removed := 0

	err := filepath.WalkDir(s.dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == s.dir {
				return fs.SkipDir
			}
			return err
		}
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(path), ".pdf") {
			return nil
		}

		info, err := entry.Info()
		if err != nil {
			// Removed by its own run in the meantime
			return nil
		}
		if info.ModTime().After(cutoff) {
			return nil
		}

		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", path).Msg("Failed to remove stale artifact")
			return nil
		}
		removed++
		s.logger.Debug().
			Str("path", path).
			Str("modified", info.ModTime().Format(time.RFC3339)).
			Msg("Removed stale artifact")
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("failed to sweep %s: %w", s.dir, err)
	}
	return removed, nil
}
