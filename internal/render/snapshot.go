package render

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/vampirenirmal/deepbook/internal/core"
	"github.com/vampirenirmal/deepbook/internal/domain/book"
	"github.com/vampirenirmal/deepbook/internal/storage"
)

const (
	DocumentFile = "document.json"
	ImagesFile   = "images.json"
	RunFile      = "run.json"
)

// Snapshot persists the document after each completed stage. A failed run
// leaves the last good state in DocumentFile, which can be resumed.
type Snapshot struct {
	store  storage.Storage
	dir    string
	logger *slog.Logger
}

func NewSnapshot(store storage.Storage, dir string, logger *slog.Logger) *Snapshot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Snapshot{
		store:  store,
		dir:    dir,
		logger: logger.With("component", "render.snapshot"),
	}
}

func (s *Snapshot) StageCompleted(ctx context.Context, stage core.Stage, doc *book.Document) error {
	snap, err := doc.Snapshot()
	if err != nil {
		return err
	}
	if err := s.save(ctx, DocumentFile, []byte(snap)); err != nil {
		return err
	}
	s.logger.Debug("snapshot saved", "stage", stage, "state", doc.State().String())
	return nil
}

func (s *Snapshot) ImagesGenerated(ctx context.Context, _ *book.Document, images []book.ImageResult) error {
	data, err := json.MarshalIndent(images, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing images: %w", err)
	}
	return s.save(ctx, ImagesFile, data)
}

// runSummary is the on-disk form of core.RunResult.
type runSummary struct {
	RunID           string             `json:"run_id"`
	State           string             `json:"state"`
	Complete        bool               `json:"complete"`
	ImagesGenerated bool               `json:"images_generated"`
	Skipped         []core.Stage       `json:"skipped,omitempty"`
	Durations       map[string]float64 `json:"durations_seconds"`
	FinishedAt      time.Time          `json:"finished_at"`
}

func (s *Snapshot) Completed(ctx context.Context, doc *book.Document, result core.RunResult) error {
	snap, err := doc.Snapshot()
	if err != nil {
		return err
	}
	if err := s.save(ctx, DocumentFile, []byte(snap)); err != nil {
		return err
	}

	summary := runSummary{
		RunID:           result.RunID,
		State:           result.State.String(),
		Complete:        result.Complete,
		ImagesGenerated: result.ImagesGenerated,
		Skipped:         result.Skipped,
		Durations:       make(map[string]float64, len(result.Durations)),
		FinishedAt:      time.Now().UTC(),
	}
	for stage, d := range result.Durations {
		summary.Durations[string(stage)] = d.Seconds()
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing run summary: %w", err)
	}
	return s.save(ctx, RunFile, data)
}

func (s *Snapshot) save(ctx context.Context, name string, data []byte) error {
	path := joinPath(s.dir, name)
	if err := s.store.Save(ctx, path, data); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	return nil
}
