package core

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/vampirenirmal/deepbook/internal/agent"
	"github.com/vampirenirmal/deepbook/internal/domain/book"
	"github.com/vampirenirmal/deepbook/internal/prompt"
	dberrors "github.com/vampirenirmal/deepbook/pkg/deepbook/errors"
)

// Pipeline fills a Document one stage at a time. Each stage method is the
// only writer of its document field and commits either a complete value or
// nothing.
type Pipeline struct {
	invoker     *Invoker
	illustrator *Illustrator
	prompts     prompt.Set
	chapterPool *WorkerPool
	retry       RetryPolicy
	skipImages  bool
	logger      *slog.Logger

	chapterWorkers int
	imageWorkers   int
}

type Option func(*Pipeline)

// WithPrompts replaces the built-in prompt templates.
func WithPrompts(set prompt.Set) Option {
	return func(p *Pipeline) {
		p.prompts = set
	}
}

// WithChapterConcurrency bounds concurrent chapter calls. 0 means unbounded.
func WithChapterConcurrency(n int) Option {
	return func(p *Pipeline) {
		p.chapterWorkers = n
	}
}

// WithImageConcurrency bounds concurrent illustration calls. 0 means unbounded.
func WithImageConcurrency(n int) Option {
	return func(p *Pipeline) {
		p.imageWorkers = n
	}
}

// WithStageRetry re-runs failed stages according to policy. Stages are not
// retried by default.
func WithStageRetry(policy RetryPolicy) Option {
	return func(p *Pipeline) {
		p.retry = policy
	}
}

// WithoutImages makes Run skip the illustration stage.
func WithoutImages() Option {
	return func(p *Pipeline) {
		p.skipImages = true
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// NewPipeline creates a pipeline calling client for text and images for
// illustrations.
func NewPipeline(client agent.AIClient, images agent.ImageClient, opts ...Option) *Pipeline {
	p := &Pipeline{
		prompts:        prompt.DefaultSet(),
		chapterWorkers: 8,
		imageWorkers:   4,
		logger:         slog.Default(),
	}

	for _, opt := range opts {
		opt(p)
	}

	p.invoker = NewInvoker(client, p.logger)
	p.chapterPool = NewWorkerPool(p.chapterWorkers, p.logger)
	p.illustrator = NewIllustrator(p.invoker, images, p.prompts.Image, NewWorkerPool(p.imageWorkers, p.logger), p.logger)
	p.logger = p.logger.With("component", "pipeline")

	return p
}

// Illustrator returns the illustrator used by the images stage.
func (p *Pipeline) Illustrator() *Illustrator {
	return p.illustrator
}

// GenerateMetadata fills doc.metadata from the seed prompt.
func (p *Pipeline) GenerateMetadata(ctx context.Context, doc *book.Document) error {
	return p.runStage(ctx, StageMetadata, func(ctx context.Context) error {
		if doc.HasMetadata() {
			return alreadyGenerated(StageMetadata)
		}

		snapshot, err := doc.Snapshot()
		if err != nil {
			return err
		}

		meta, err := Invoke[book.Metadata](ctx, p.invoker, snapshot, book.MetadataSchema, string(StageMetadata), p.prompts.Field)
		if err != nil {
			return err
		}
		return doc.SetMetadata(meta)
	})
}

// GenerateCharacters fills doc.characters. Requires metadata.
func (p *Pipeline) GenerateCharacters(ctx context.Context, doc *book.Document) error {
	return p.runStage(ctx, StageCharacters, func(ctx context.Context) error {
		if !doc.HasMetadata() {
			return requires(StageCharacters, StageMetadata)
		}
		if doc.HasCharacters() {
			return alreadyGenerated(StageCharacters)
		}

		snapshot, err := doc.Snapshot()
		if err != nil {
			return err
		}

		chars, err := Invoke[book.CharacterList](ctx, p.invoker, snapshot, book.CharacterListSchema, string(StageCharacters), p.prompts.Field)
		if err != nil {
			return err
		}
		return doc.SetCharacters(chars)
	})
}

// GenerateOutline fills doc.outline. Requires characters.
func (p *Pipeline) GenerateOutline(ctx context.Context, doc *book.Document) error {
	return p.runStage(ctx, StageOutline, func(ctx context.Context) error {
		if !doc.HasCharacters() {
			return requires(StageOutline, StageCharacters)
		}
		if doc.HasOutline() {
			return alreadyGenerated(StageOutline)
		}

		snapshot, err := doc.Snapshot()
		if err != nil {
			return err
		}

		outline, err := Invoke[book.BookOutline](ctx, p.invoker, snapshot, book.BookOutlineSchema, string(StageOutline), p.prompts.Field)
		if err != nil {
			return err
		}
		return doc.SetOutline(outline)
	})
}

// GenerateText writes every chapter of the outline concurrently. All
// chapters see the same snapshot, so no chapter sees another's text. The
// chapters are committed in ascending chapter order, or not at all.
func (p *Pipeline) GenerateText(ctx context.Context, doc *book.Document) error {
	return p.runStage(ctx, StageText, func(ctx context.Context) error {
		outline := doc.Outline()
		if outline == nil {
			return requires(StageText, StageOutline)
		}
		if doc.HasText() {
			return alreadyGenerated(StageText)
		}

		snapshot, err := doc.Snapshot()
		if err != nil {
			return err
		}

		chapters, err := FanOut(ctx, p.chapterPool, StageText, outline.Outlines,
			func(_ int, co book.ChapterOutline) string { return fmt.Sprintf("chapter %d", co.ChapterNumber) },
			func(ctx context.Context, _ int, co book.ChapterOutline) (book.ChapterText, error) {
				ct, err := Invoke[book.ChapterText](ctx, p.invoker, snapshot, book.ChapterTextSchema, strconv.Itoa(co.ChapterNumber), p.prompts.Chapter)
				if err != nil {
					return book.ChapterText{}, err
				}
				if ct.ChapterNumber != co.ChapterNumber {
					p.logger.Warn("model returned a different chapter number, keeping the outline's",
						"chapter", co.ChapterNumber,
						"returned", ct.ChapterNumber)
					ct.ChapterNumber = co.ChapterNumber
				}
				return ct, nil
			})
		if err != nil {
			return err
		}

		sort.SliceStable(chapters, func(i, j int) bool {
			return chapters[i].ChapterNumber < chapters[j].ChapterNumber
		})
		return doc.SetText(book.FullText{Chapters: chapters})
	})
}

// GenerateAllImages illustrates every character. Requires characters. The
// document is not modified.
func (p *Pipeline) GenerateAllImages(ctx context.Context, doc *book.Document) ([]book.ImageResult, error) {
	var images []book.ImageResult
	err := p.runStage(ctx, StageImages, func(ctx context.Context) error {
		var err error
		images, err = p.illustrator.GenerateAll(ctx, doc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return images, nil
}

// runStage checks for cancellation before the stage starts, then runs it to
// completion regardless of later cancellation.
func (p *Pipeline) runStage(ctx context.Context, stage Stage, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("stage %s not started: %w", stage, err)
	}

	start := time.Now()
	p.logger.Info("stage started", "stage", stage)

	if err := executeWithRetry(ctx, stage, p.retry, p.logger, fn); err != nil {
		p.logger.Error("stage failed",
			"stage", stage,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return err
	}

	p.logger.Info("stage completed",
		"stage", stage,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

func requires(stage, field Stage) error {
	return &dberrors.PreconditionError{Stage: string(stage), Requires: string(field)}
}

func alreadyGenerated(stage Stage) error {
	return &dberrors.PreconditionError{
		Stage:    string(stage),
		Requires: "unset " + string(stage),
		Reason:   string(stage) + " already generated",
	}
}
