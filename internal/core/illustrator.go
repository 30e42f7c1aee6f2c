package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vampirenirmal/deepbook/internal/agent"
	"github.com/vampirenirmal/deepbook/internal/domain/book"
	"github.com/vampirenirmal/deepbook/internal/prompt"
	dberrors "github.com/vampirenirmal/deepbook/pkg/deepbook/errors"
)

// StyleDescriptors give every illustration the same look.
var StyleDescriptors = []string{
	"whimsical",
	"colorful",
	"watercolor style",
	"children's book illustration",
	"cute and friendly",
	"detailed background",
	"gentle color palette",
}

// StylePrompt builds the final image prompt from a character description.
func StylePrompt(description string) string {
	return fmt.Sprintf("A children's book illustration in %s style. %s", strings.Join(StyleDescriptors, ", "), description)
}

// Illustrator draws one picture per character: the model first writes a
// visual description, then the image service renders it.
type Illustrator struct {
	invoker *Invoker
	images  agent.ImageClient
	tmpl    *prompt.Template
	pool    *WorkerPool
	logger  *slog.Logger
}

func NewIllustrator(invoker *Invoker, images agent.ImageClient, tmpl *prompt.Template, pool *WorkerPool, logger *slog.Logger) *Illustrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Illustrator{
		invoker: invoker,
		images:  images,
		tmpl:    tmpl,
		pool:    pool,
		logger:  logger.With("component", "illustrator"),
	}
}

// GenerateImage illustrates the character at index i.
func (il *Illustrator) GenerateImage(ctx context.Context, doc *book.Document, i int) (book.ImageResult, error) {
	chars := doc.Characters()
	if chars == nil {
		return book.ImageResult{}, &dberrors.PreconditionError{Stage: string(StageImages), Requires: "characters"}
	}
	if i < 0 || i >= len(chars.Characters) {
		return book.ImageResult{}, &dberrors.PreconditionError{
			Stage:  string(StageImages),
			Reason: fmt.Sprintf("character index %d out of range [0, %d)", i, len(chars.Characters)),
		}
	}

	snapshot, err := doc.Snapshot()
	if err != nil {
		return book.ImageResult{}, err
	}
	return il.generate(ctx, snapshot, i, chars.Characters[i])
}

// GenerateAll illustrates every character concurrently. If any character
// fails, the error is returned and no results are.
func (il *Illustrator) GenerateAll(ctx context.Context, doc *book.Document) ([]book.ImageResult, error) {
	chars := doc.Characters()
	if chars == nil {
		return nil, &dberrors.PreconditionError{Stage: string(StageImages), Requires: "characters"}
	}

	snapshot, err := doc.Snapshot()
	if err != nil {
		return nil, err
	}

	return FanOut(ctx, il.pool, StageImages, chars.Characters,
		func(i int, c book.Character) string { return fmt.Sprintf("character %d (%s)", i, c.Name) },
		func(ctx context.Context, i int, c book.Character) (book.ImageResult, error) {
			return il.generate(ctx, snapshot, i, c)
		})
}

func (il *Illustrator) generate(ctx context.Context, snapshot string, i int, c book.Character) (book.ImageResult, error) {
	character, err := json.Marshal(c)
	if err != nil {
		return book.ImageResult{}, fmt.Errorf("serializing character %d: %w", i, err)
	}

	desc, err := il.invoker.InvokeText(ctx, snapshot, i, string(character), il.tmpl)
	if err != nil {
		return book.ImageResult{}, err
	}

	resp, err := il.images.GenerateImage(ctx, agent.ImageRequest{
		Prompt:  StylePrompt(desc),
		Count:   1,
		Size:    agent.ImageSize1024,
		Quality: agent.ImageQualityHD,
	})
	if err != nil {
		return book.ImageResult{}, err
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return book.ImageResult{}, dberrors.NewImageError("generate", 0, false, errors.New("response has no image URL"))
	}

	il.logger.Info("character illustrated",
		"character_index", i,
		"character", c.Name)

	return book.ImageResult{
		CharacterIndex:    i,
		DescriptivePrompt: desc,
		ImageURL:          resp.Data[0].URL,
	}, nil
}
