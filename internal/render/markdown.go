// Package render turns pipeline events into files and log output.
package render

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vampirenirmal/deepbook/internal/core"
	"github.com/vampirenirmal/deepbook/internal/domain/book"
	"github.com/vampirenirmal/deepbook/internal/storage"
)

// BookFile is the Markdown rendering of the book.
const BookFile = "book.md"

// RenderMarkdown lays out whatever the document holds so far. Sections for
// fields that are not yet set are left out. images may be nil.
func RenderMarkdown(doc *book.Document, images []book.ImageResult) string {
	var md strings.Builder

	if meta := doc.Metadata(); meta != nil {
		fmt.Fprintf(&md, "# %s\n\n", meta.Title)
		fmt.Fprintf(&md, "By %s\n\n", meta.Author)
		if meta.Location != "" || meta.Year != 0 {
			fmt.Fprintf(&md, "*%s, %d*\n\n", meta.Location, meta.Year)
		}
		if len(meta.Themes) > 0 {
			fmt.Fprintf(&md, "Themes: %s\n\n", strings.Join(meta.Themes, ", "))
		}
	} else {
		md.WriteString("# Untitled\n\n")
	}
	fmt.Fprintf(&md, "> %s\n\n", doc.Prompt())

	if cast := doc.Characters(); cast != nil {
		byIndex := make(map[int]string, len(images))
		for _, img := range images {
			byIndex[img.CharacterIndex] = img.ImageURL
		}

		md.WriteString("---\n\n## Starring\n\n")
		for i, c := range cast.Characters {
			fmt.Fprintf(&md, "### %s\n\n", c.Name)
			if url, ok := byIndex[i]; ok {
				fmt.Fprintf(&md, "![%s](%s)\n\n", c.Name, url)
			}
			if c.Personality != "" {
				fmt.Fprintf(&md, "%s\n\n", c.Personality)
			}
			if c.Description != "" {
				fmt.Fprintf(&md, "*%s*\n\n", c.Description)
			}
		}
	}

	outline := doc.Outline()
	if outline == nil {
		return md.String()
	}

	md.WriteString("---\n\n## Contents\n\n")
	titles := make(map[int]string, len(outline.Outlines))
	for _, ch := range outline.Outlines {
		titles[ch.ChapterNumber] = ch.Title
		fmt.Fprintf(&md, "- **Chapter %d**: %s\n", ch.ChapterNumber, ch.Title)
	}
	md.WriteString("\n")

	text := doc.Text()
	if text == nil {
		return md.String()
	}

	md.WriteString("---\n\n## Story\n\n")
	for _, ch := range text.Chapters {
		fmt.Fprintf(&md, "### Chapter %d: %s\n\n", ch.ChapterNumber, titles[ch.ChapterNumber])
		md.WriteString(strings.TrimSpace(ch.Text))
		md.WriteString("\n\n")
	}

	return md.String()
}

// Markdown rewrites BookFile after every event, so the file always shows
// the book as far as it has been generated.
type Markdown struct {
	store  storage.Storage
	dir    string
	images []book.ImageResult
	logger *slog.Logger
}

func NewMarkdown(store storage.Storage, dir string, logger *slog.Logger) *Markdown {
	if logger == nil {
		logger = slog.Default()
	}
	return &Markdown{
		store:  store,
		dir:    dir,
		logger: logger.With("component", "render.markdown"),
	}
}

func (m *Markdown) StageCompleted(ctx context.Context, _ core.Stage, doc *book.Document) error {
	return m.write(ctx, doc)
}

func (m *Markdown) ImagesGenerated(ctx context.Context, doc *book.Document, images []book.ImageResult) error {
	m.images = images
	return m.write(ctx, doc)
}

func (m *Markdown) Completed(ctx context.Context, doc *book.Document, result core.RunResult) error {
	if result.ImagesGenerated {
		m.images = result.Images
	}
	return m.write(ctx, doc)
}

func (m *Markdown) write(ctx context.Context, doc *book.Document) error {
	data := []byte(RenderMarkdown(doc, m.images))
	path := joinPath(m.dir, BookFile)

	if err := m.store.Save(ctx, path, data); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	m.logger.Debug("book rendered", "file", path, "size", len(data), "state", doc.State().String())
	return nil
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return strings.TrimSuffix(dir, "/") + "/" + name
}
