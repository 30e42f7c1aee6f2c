package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vampirenirmal/deepbook/internal/domain/book"
)

// RunResult summarizes one Run.
type RunResult struct {
	RunID           string
	State           book.State
	Images          []book.ImageResult
	ImagesGenerated bool
	Complete        bool
	Skipped         []Stage
	Durations       map[Stage]time.Duration
}

// Run executes the remaining stages in RunOrder. Stages whose field is
// already set are skipped, so a document loaded from a snapshot resumes
// where it stopped. Cancellation of ctx is checked between stages.
//
// On failure the result reflects the stages completed so far.
func (p *Pipeline) Run(ctx context.Context, doc *book.Document, renderer Renderer) (RunResult, error) {
	if renderer == nil {
		renderer = NopRenderer{}
	}

	result := RunResult{
		RunID:     uuid.New().String(),
		Durations: make(map[Stage]time.Duration),
	}
	logger := p.logger.With("run_id", result.RunID)
	logger.Info("run started",
		"state", doc.State().String(),
		"prompt_length", len(doc.Prompt()))

	for _, stage := range RunOrder {
		if err := ctx.Err(); err != nil {
			result.State = doc.State()
			logger.Warn("run cancelled", "before_stage", stage)
			return result, fmt.Errorf("run cancelled before %s: %w", stage, err)
		}

		if p.done(stage, doc) {
			logger.Info("stage already complete, skipping", "stage", stage)
			result.Skipped = append(result.Skipped, stage)
			continue
		}

		start := time.Now()
		if err := p.runOne(ctx, stage, doc, renderer, &result); err != nil {
			result.State = doc.State()
			return result, err
		}
		result.Durations[stage] = time.Since(start)
	}

	result.State = doc.State()
	result.Complete = result.State == book.HasText && result.ImagesGenerated

	logger.Info("run finished",
		"state", result.State.String(),
		"complete", result.Complete,
		"images", len(result.Images))

	if err := renderer.Completed(context.WithoutCancel(ctx), doc, result); err != nil {
		return result, fmt.Errorf("rendering result: %w", err)
	}
	return result, nil
}

func (p *Pipeline) done(stage Stage, doc *book.Document) bool {
	switch stage {
	case StageMetadata:
		return doc.HasMetadata()
	case StageCharacters:
		return doc.HasCharacters()
	case StageImages:
		return p.skipImages
	case StageOutline:
		return doc.HasOutline()
	case StageText:
		return doc.HasText()
	}
	return false
}

// runOne runs one stage and publishes its output. Publishing ignores
// cancellation: a committed field must reach the renderers before Run
// stops at the next boundary.
func (p *Pipeline) runOne(ctx context.Context, stage Stage, doc *book.Document, renderer Renderer, result *RunResult) error {
	publishCtx := context.WithoutCancel(ctx)
	var err error
	switch stage {
	case StageMetadata:
		err = p.GenerateMetadata(ctx, doc)
	case StageCharacters:
		err = p.GenerateCharacters(ctx, doc)
	case StageOutline:
		err = p.GenerateOutline(ctx, doc)
	case StageText:
		err = p.GenerateText(ctx, doc)
	case StageImages:
		var images []book.ImageResult
		if images, err = p.GenerateAllImages(ctx, doc); err != nil {
			return err
		}
		result.Images = images
		result.ImagesGenerated = true
		if err := renderer.ImagesGenerated(publishCtx, doc, images); err != nil {
			return fmt.Errorf("rendering images: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown stage %q", stage)
	}
	if err != nil {
		return err
	}

	if err := renderer.StageCompleted(publishCtx, stage, doc); err != nil {
		return fmt.Errorf("rendering %s: %w", stage, err)
	}
	return nil
}
