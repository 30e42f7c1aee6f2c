package render

import (
	"context"
	"errors"

	"github.com/vampirenirmal/deepbook/internal/core"
	"github.com/vampirenirmal/deepbook/internal/domain/book"
)

// Multi fans every event out to each renderer in order. All renderers see
// the event even if an earlier one fails; the errors are joined.
type Multi []core.Renderer

func (m Multi) StageCompleted(ctx context.Context, stage core.Stage, doc *book.Document) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.StageCompleted(ctx, stage, doc))
	}
	return errors.Join(errs...)
}

func (m Multi) ImagesGenerated(ctx context.Context, doc *book.Document, images []book.ImageResult) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.ImagesGenerated(ctx, doc, images))
	}
	return errors.Join(errs...)
}

func (m Multi) Completed(ctx context.Context, doc *book.Document, result core.RunResult) error {
	var errs []error
	for _, r := range m {
		errs = append(errs, r.Completed(ctx, doc, result))
	}
	return errors.Join(errs...)
}
