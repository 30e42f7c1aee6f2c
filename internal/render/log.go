package render

import (
	"context"
	"log/slog"

	"github.com/vampirenirmal/deepbook/internal/core"
	"github.com/vampirenirmal/deepbook/internal/domain/book"
)

// Log reports progress through slog. It never fails.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With("component", "render.log")}
}

func (l *Log) StageCompleted(ctx context.Context, stage core.Stage, doc *book.Document) error {
	attrs := []any{"stage", stage, "state", doc.State().String()}

	switch stage {
	case core.StageMetadata:
		if m := doc.Metadata(); m != nil {
			attrs = append(attrs, "title", m.Title, "author", m.Author)
		}
	case core.StageCharacters:
		if c := doc.Characters(); c != nil {
			attrs = append(attrs, "characters", len(c.Characters))
		}
	case core.StageOutline:
		if o := doc.Outline(); o != nil {
			attrs = append(attrs, "chapters", len(o.Outlines))
		}
	case core.StageText:
		if t := doc.Text(); t != nil {
			words := 0
			for _, ch := range t.Chapters {
				words += countWords(ch.Text)
			}
			attrs = append(attrs, "chapters", len(t.Chapters), "words", words)
		}
	}

	l.logger.InfoContext(ctx, "stage completed", attrs...)
	return nil
}

func (l *Log) ImagesGenerated(ctx context.Context, _ *book.Document, images []book.ImageResult) error {
	for _, img := range images {
		l.logger.DebugContext(ctx, "illustration ready",
			"character_index", img.CharacterIndex,
			"url", img.ImageURL)
	}
	l.logger.InfoContext(ctx, "images generated", "count", len(images))
	return nil
}

func (l *Log) Completed(ctx context.Context, _ *book.Document, result core.RunResult) error {
	l.logger.InfoContext(ctx, "book finished",
		"run_id", result.RunID,
		"state", result.State.String(),
		"complete", result.Complete,
		"skipped", result.Skipped)
	return nil
}

func countWords(s string) int {
	n, inWord := 0, false
	for _, r := range s {
		space := r == ' ' || r == '\n' || r == '\t' || r == '\r'
		if !space && !inWord {
			n++
		}
		inWord = !space
	}
	return n
}
