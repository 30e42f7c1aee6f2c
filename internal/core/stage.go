package core

import (
	"context"

	"github.com/vampirenirmal/deepbook/internal/domain/book"
)

// Stage names one step of the pipeline.
type Stage string

const (
	StageMetadata   Stage = "metadata"
	StageCharacters Stage = "characters"
	StageImages     Stage = "images"
	StageOutline    Stage = "outline"
	StageText       Stage = "text"
)

// RunOrder is the order Run executes stages in. Images only need the
// characters, so they are produced before the outline.
var RunOrder = []Stage{StageMetadata, StageCharacters, StageImages, StageOutline, StageText}

// Renderer consumes pipeline output as it becomes available. Implementations
// must not modify the document.
type Renderer interface {
	StageCompleted(ctx context.Context, stage Stage, doc *book.Document) error
	ImagesGenerated(ctx context.Context, doc *book.Document, images []book.ImageResult) error
	Completed(ctx context.Context, doc *book.Document, result RunResult) error
}

// NopRenderer ignores all events.
type NopRenderer struct{}

func (NopRenderer) StageCompleted(context.Context, Stage, *book.Document) error { return nil }

func (NopRenderer) ImagesGenerated(context.Context, *book.Document, []book.ImageResult) error {
	return nil
}

func (NopRenderer) Completed(context.Context, *book.Document, RunResult) error { return nil }
