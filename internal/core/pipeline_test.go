package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vampirenirmal/deepbook/internal/agent"
	"github.com/vampirenirmal/deepbook/internal/domain/book"
	dberrors "github.com/vampirenirmal/deepbook/pkg/deepbook/errors"
)

var chapterInPrompt = regexp.MustCompile(`text of chapter (\d+)`)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestPipeline(client *agent.MockClient, opts ...Option) *Pipeline {
	return NewPipeline(client, client, append([]Option{WithLogger(quietLogger())}, opts...)...)
}

func docWithOutline(t *testing.T, chapters ...int) *book.Document {
	t.Helper()
	doc := book.NewDocument("A brave turtle helps his forest friends")
	require.NoError(t, doc.SetMetadata(book.Metadata{Title: "The Adventures of Timmy", Year: 2023}))
	require.NoError(t, doc.SetCharacters(book.CharacterList{Characters: []book.Character{
		{Name: "Timmy", Description: "a turtle", Personality: "shy"},
		{Name: "Hazel", Description: "a squirrel", Personality: "curious"},
		{Name: "Owl", Description: "an owl", Personality: "wise"},
	}}))

	outline := book.BookOutline{Synopsis: "s", Conflict: "c", Resolution: "r"}
	for _, n := range chapters {
		outline.Outlines = append(outline.Outlines, book.ChapterOutline{ChapterNumber: n, Title: fmt.Sprintf("Chapter %d", n)})
	}
	require.NoError(t, doc.SetOutline(outline))
	return doc
}

func snapshot(t *testing.T, doc *book.Document) string {
	t.Helper()
	s, err := doc.Snapshot()
	require.NoError(t, err)
	return s
}

func chapterNumbers(text *book.FullText) []int {
	var out []int
	for _, c := range text.Chapters {
		out = append(out, c.ChapterNumber)
	}
	return out
}

func TestGenerateMetadata(t *testing.T) {
	client := agent.NewMockClient()
	p := newTestPipeline(client)
	doc := book.NewDocument("A brave turtle helps his forest friends")

	require.NoError(t, p.GenerateMetadata(context.Background(), doc))

	meta := doc.Metadata()
	require.NotNil(t, meta)
	assert.Equal(t, "The Adventures of Timmy", meta.Title)
	assert.Equal(t, "Wanda Wordsmith", meta.Author)
	assert.Equal(t, 2023, meta.Year)
	assert.Equal(t, []string{"friendship", "bravery"}, meta.Themes)
	assert.Equal(t, "Whispering Forest", meta.Location)
	assert.Nil(t, doc.Characters())

	prompts := client.Prompts()
	require.Len(t, prompts, 1)
	assert.Contains(t, prompts[0], "A brave turtle helps his forest friends")
	assert.Contains(t, prompts[0], "`metadata`")
	assert.Contains(t, prompts[0], book.MetadataSchema.FormatInstructions())
}

func TestStagePreconditions(t *testing.T) {
	withMetadata := func(t *testing.T) *book.Document {
		doc := book.NewDocument("seed")
		require.NoError(t, doc.SetMetadata(book.Metadata{Title: "T"}))
		return doc
	}

	tests := []struct {
		name  string
		doc   func(t *testing.T) *book.Document
		stage func(p *Pipeline, doc *book.Document) error
	}{
		{
			name:  "characters without metadata",
			doc:   func(*testing.T) *book.Document { return book.NewDocument("seed") },
			stage: func(p *Pipeline, doc *book.Document) error { return p.GenerateCharacters(context.Background(), doc) },
		},
		{
			name:  "outline without characters",
			doc:   withMetadata,
			stage: func(p *Pipeline, doc *book.Document) error { return p.GenerateOutline(context.Background(), doc) },
		},
		{
			name:  "text without outline",
			doc:   withMetadata,
			stage: func(p *Pipeline, doc *book.Document) error { return p.GenerateText(context.Background(), doc) },
		},
		{
			name:  "metadata twice",
			doc:   withMetadata,
			stage: func(p *Pipeline, doc *book.Document) error { return p.GenerateMetadata(context.Background(), doc) },
		},
		{
			name: "images without characters",
			doc:  withMetadata,
			stage: func(p *Pipeline, doc *book.Document) error {
				_, err := p.GenerateAllImages(context.Background(), doc)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := agent.NewMockClient()
			p := newTestPipeline(client, WithStageRetry(RetryPolicy{MaxRetries: 3}))
			doc := tt.doc(t)
			before := snapshot(t, doc)

			err := tt.stage(p, doc)
			require.Error(t, err)
			assert.ErrorIs(t, err, dberrors.ErrPrecondition)

			var stageErr *StageError
			require.ErrorAs(t, err, &stageErr)
			assert.Equal(t, 1, stageErr.Attempts)

			assert.Equal(t, before, snapshot(t, doc))
			assert.Empty(t, client.Prompts())
		})
	}
}

func TestGenerateTextOrdersByChapterNumber(t *testing.T) {
	tests := []struct {
		name     string
		outline  []int
		delays   map[int]time.Duration
		expected []int
	}{
		{
			name:     "completion order 3,1,2",
			outline:  []int{1, 2, 3},
			delays:   map[int]time.Duration{1: 40 * time.Millisecond, 2: 80 * time.Millisecond, 3: 0},
			expected: []int{1, 2, 3},
		},
		{
			name:     "reverse completion",
			outline:  []int{1, 2, 3, 4, 5},
			delays:   map[int]time.Duration{1: 100 * time.Millisecond, 2: 75 * time.Millisecond, 3: 50 * time.Millisecond, 4: 25 * time.Millisecond},
			expected: []int{1, 2, 3, 4, 5},
		},
		{
			name:     "outline out of order",
			outline:  []int{2, 3, 1},
			expected: []int{1, 2, 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var mu sync.Mutex
			var finished []int
			client := agent.NewMockClient(
				agent.WithDelay(func(prompt string) time.Duration {
					n, _ := strconv.Atoi(chapterInPrompt.FindStringSubmatch(prompt)[1])
					return tt.delays[n]
				}),
				agent.WithCompletion(func(_ context.Context, prompt string, _ bool) (string, error) {
					n, _ := strconv.Atoi(chapterInPrompt.FindStringSubmatch(prompt)[1])
					mu.Lock()
					finished = append(finished, n)
					mu.Unlock()
					return fmt.Sprintf(`{"chapter_number": %d, "text": "Chapter %d text"}`, n, n), nil
				}),
			)
			p := newTestPipeline(client)
			doc := docWithOutline(t, tt.outline...)

			require.NoError(t, p.GenerateText(context.Background(), doc))

			text := doc.Text()
			require.NotNil(t, text)
			assert.Equal(t, tt.expected, chapterNumbers(text))
			for _, c := range text.Chapters {
				assert.Equal(t, fmt.Sprintf("Chapter %d text", c.ChapterNumber), c.Text)
			}
			if tt.name == "completion order 3,1,2" {
				assert.Equal(t, []int{3, 1, 2}, finished)
			}
			assert.Equal(t, book.HasText, doc.State())
		})
	}
}

func TestGenerateTextSharesOneSnapshot(t *testing.T) {
	client := agent.NewMockClient()
	p := newTestPipeline(client)
	doc := docWithOutline(t, 1, 2, 3)
	before := snapshot(t, doc)

	require.NoError(t, p.GenerateText(context.Background(), doc))

	prompts := client.Prompts()
	require.Len(t, prompts, 3)
	for _, pr := range prompts {
		assert.Contains(t, pr, before)
	}
}

func TestGenerateTextKeepsOutlineChapterNumber(t *testing.T) {
	client := agent.NewMockClient(agent.WithCompletion(func(context.Context, string, bool) (string, error) {
		return `{"chapter_number": 7, "text": "wrong number"}`, nil
	}))
	p := newTestPipeline(client)
	doc := docWithOutline(t, 1, 2)

	require.NoError(t, p.GenerateText(context.Background(), doc))
	assert.Equal(t, []int{1, 2}, chapterNumbers(doc.Text()))
}

func TestGenerateTextAcceptsAnswerWithoutChapterNumber(t *testing.T) {
	client := agent.NewMockClient(agent.WithCompletion(func(context.Context, string, bool) (string, error) {
		return `{"text": "Timmy set out into the woods."}`, nil
	}))
	p := newTestPipeline(client)
	doc := docWithOutline(t, 1, 2, 3)

	require.NoError(t, p.GenerateText(context.Background(), doc))
	assert.Equal(t, []int{1, 2, 3}, chapterNumbers(doc.Text()))
	for _, ch := range doc.Text().Chapters {
		assert.Equal(t, "Timmy set out into the woods.", ch.Text)
	}
}

func TestGenerateTextFailsAtomically(t *testing.T) {
	tests := []struct {
		name    string
		respond func(n int) (string, error)
		wantIs  error
	}{
		{
			name: "malformed chapter",
			respond: func(n int) (string, error) {
				if n == 2 {
					return `{"chapter_number": 2, "text": `, nil
				}
				return fmt.Sprintf(`{"chapter_number": %d, "text": "ok"}`, n), nil
			},
			wantIs: dberrors.ErrParse,
		},
		{
			name: "missing text",
			respond: func(n int) (string, error) {
				if n == 3 {
					return `{"chapter_number": 3}`, nil
				}
				return fmt.Sprintf(`{"chapter_number": %d, "text": "ok"}`, n), nil
			},
			wantIs: dberrors.ErrParse,
		},
		{
			name: "model failure",
			respond: func(n int) (string, error) {
				if n == 1 {
					return "", dberrors.NewModelError("chat_json", 500, false, errors.New("boom"))
				}
				return fmt.Sprintf(`{"chapter_number": %d, "text": "ok"}`, n), nil
			},
			wantIs: dberrors.ErrExternalCall,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := agent.NewMockClient(agent.WithCompletion(func(_ context.Context, prompt string, _ bool) (string, error) {
				n, _ := strconv.Atoi(chapterInPrompt.FindStringSubmatch(prompt)[1])
				return tt.respond(n)
			}))
			p := newTestPipeline(client)
			doc := docWithOutline(t, 1, 2, 3)
			before := snapshot(t, doc)

			err := p.GenerateText(context.Background(), doc)
			require.Error(t, err)
			assert.ErrorIs(t, err, dberrors.ErrBatchFailed)
			assert.ErrorIs(t, err, tt.wantIs)
			assert.Nil(t, doc.Text())
			assert.Equal(t, before, snapshot(t, doc))
			assert.Equal(t, book.HasOutline, doc.State())
		})
	}
}

func TestParseErrorNamesChapter(t *testing.T) {
	client := agent.NewMockClient(agent.WithCompletion(func(context.Context, string, bool) (string, error) {
		return `not json at all`, nil
	}))
	p := newTestPipeline(client)
	doc := docWithOutline(t, 4)

	err := p.GenerateText(context.Background(), doc)

	var pe *dberrors.ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "ChapterText", pe.Schema)
	assert.Equal(t, "4", pe.Field)
	assert.Equal(t, "not json at all", pe.Raw)
}

func TestGenerateAllImages(t *testing.T) {
	client := agent.NewMockClient()
	p := newTestPipeline(client)
	doc := docWithOutline(t, 1)
	before := snapshot(t, doc)

	images, err := p.GenerateAllImages(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, images, 3)

	for i, img := range images {
		assert.Equal(t, i, img.CharacterIndex)
		assert.Contains(t, img.DescriptivePrompt, fmt.Sprintf("character number %d", i))
		assert.NotEmpty(t, img.ImageURL)
	}

	requests := client.ImageRequests()
	require.Len(t, requests, 3)
	for _, req := range requests {
		assert.Equal(t, 1, req.Count)
		assert.Equal(t, "1024x1024", req.Size)
		assert.Equal(t, "hd", req.Quality)
		assert.True(t, strings.HasPrefix(req.Prompt, "A children's book illustration in whimsical, colorful, watercolor style, children's book illustration, cute and friendly, detailed background, gentle color palette style. "))
	}

	assert.Equal(t, before, snapshot(t, doc))
}

func TestGenerateAllImagesFailsWholeBatch(t *testing.T) {
	client := agent.NewMockClient(agent.WithImages(func(_ context.Context, req agent.ImageRequest) (agent.ImageResponse, error) {
		if strings.Contains(req.Prompt, "character number 1") {
			return agent.ImageResponse{}, dberrors.NewImageError("generate", 400, false, errors.New("content policy"))
		}
		return agent.ImageResponse{Data: []agent.ImageData{{URL: "https://img.test/ok.png"}}}, nil
	}))
	p := newTestPipeline(client)
	doc := docWithOutline(t, 1)

	images, err := p.GenerateAllImages(context.Background(), doc)
	require.Error(t, err)
	assert.Nil(t, images)
	assert.ErrorIs(t, err, dberrors.ErrBatchFailed)
	assert.ErrorIs(t, err, dberrors.ErrExternalCall)

	var batch *dberrors.BatchError
	require.ErrorAs(t, err, &batch)
	assert.Equal(t, "character 1 (Hazel)", batch.Key)
}

func TestGenerateImageSingleCharacter(t *testing.T) {
	client := agent.NewMockClient()
	p := newTestPipeline(client)
	doc := docWithOutline(t, 1)

	img, err := p.Illustrator().GenerateImage(context.Background(), doc, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, img.CharacterIndex)
	assert.Contains(t, client.Prompts()[0], `"name":"Owl"`)

	_, err = p.Illustrator().GenerateImage(context.Background(), doc, 3)
	assert.ErrorIs(t, err, dberrors.ErrPrecondition)

	_, err = p.Illustrator().GenerateImage(context.Background(), book.NewDocument("seed"), 0)
	assert.ErrorIs(t, err, dberrors.ErrPrecondition)
}

func TestEmptyDescriptionIsParseError(t *testing.T) {
	client := agent.NewMockClient(agent.WithCompletion(func(context.Context, string, bool) (string, error) {
		return "   \n", nil
	}))
	p := newTestPipeline(client)

	_, err := p.Illustrator().GenerateImage(context.Background(), docWithOutline(t, 1), 0)
	assert.ErrorIs(t, err, dberrors.ErrParse)
	assert.Empty(t, client.ImageRequests())
}

func TestStageRetry(t *testing.T) {
	calls := 0
	client := agent.NewMockClient(agent.WithCompletion(func(context.Context, string, bool) (string, error) {
		calls++
		if calls == 1 {
			return `{"title": "missing everything else"}`, nil
		}
		return `{"title":"T","author":"A","year":-300,"themes":[],"location":"L"}`, nil
	}))

	p := newTestPipeline(client, WithStageRetry(RetryPolicy{MaxRetries: 1, InitialDelay: time.Millisecond}))
	doc := book.NewDocument("seed")

	require.NoError(t, p.GenerateMetadata(context.Background(), doc))
	assert.Equal(t, 2, calls)
	assert.Equal(t, -300, doc.Metadata().Year)
}

func TestStagesAreNotRetriedByDefault(t *testing.T) {
	calls := 0
	client := agent.NewMockClient(agent.WithCompletion(func(context.Context, string, bool) (string, error) {
		calls++
		return `{}`, nil
	}))
	p := newTestPipeline(client)
	doc := book.NewDocument("seed")

	err := p.GenerateMetadata(context.Background(), doc)
	assert.ErrorIs(t, err, dberrors.ErrParse)
	assert.Equal(t, 1, calls)
	assert.Nil(t, doc.Metadata())
}
