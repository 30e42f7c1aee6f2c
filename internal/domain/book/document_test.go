package book

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dberrors "github.com/vampirenirmal/deepbook/pkg/deepbook/errors"
)

func turtleMetadata() Metadata {
	return Metadata{
		Title:    "The Adventures of Timmy",
		Author:   "Wanda Wordsmith",
		Year:     2023,
		Themes:   []string{"friendship", "bravery"},
		Location: "Whispering Forest",
	}
}

func TestNewDocumentSnapshot(t *testing.T) {
	doc := NewDocument("A brave turtle helps his forest friends")

	snap, err := doc.Snapshot()
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal([]byte(snap), &fields))
	assert.Equal(t, "A brave turtle helps his forest friends", fields["prompt"])
	for _, key := range []string{"metadata", "characters", "outline", "text"} {
		v, ok := fields[key]
		assert.True(t, ok, "snapshot must name %s even when unset", key)
		assert.Nil(t, v)
	}
	assert.Equal(t, Empty, doc.State())
}

func TestSettersAreWriteOnce(t *testing.T) {
	doc := NewDocument("seed")

	require.NoError(t, doc.SetMetadata(turtleMetadata()))
	err := doc.SetMetadata(Metadata{Title: "Other"})
	assert.ErrorIs(t, err, dberrors.ErrFieldAlreadySet)
	assert.Equal(t, "The Adventures of Timmy", doc.Metadata().Title)

	require.NoError(t, doc.SetCharacters(CharacterList{Characters: []Character{{Name: "Timmy"}}}))
	assert.ErrorIs(t, doc.SetCharacters(CharacterList{}), dberrors.ErrFieldAlreadySet)

	require.NoError(t, doc.SetOutline(BookOutline{Synopsis: "s"}))
	assert.ErrorIs(t, doc.SetOutline(BookOutline{}), dberrors.ErrFieldAlreadySet)

	require.NoError(t, doc.SetText(FullText{}))
	assert.ErrorIs(t, doc.SetText(FullText{}), dberrors.ErrFieldAlreadySet)
	assert.Equal(t, HasText, doc.State())
}

func TestGettersReturnCopies(t *testing.T) {
	doc := NewDocument("seed")
	meta := turtleMetadata()
	require.NoError(t, doc.SetMetadata(meta))

	meta.Themes[0] = "changed by caller"
	got := doc.Metadata()
	assert.Equal(t, "friendship", got.Themes[0])

	got.Themes[1] = "changed by reader"
	assert.Equal(t, "bravery", doc.Metadata().Themes[1])
}

func TestMetadataRoundTrip(t *testing.T) {
	doc := NewDocument("A brave turtle helps his forest friends")
	require.NoError(t, doc.SetMetadata(turtleMetadata()))

	data, err := json.Marshal(doc)
	require.NoError(t, err)

	restored, err := LoadDocument(data)
	require.NoError(t, err)
	assert.Equal(t, turtleMetadata(), *restored.Metadata())
	assert.Equal(t, doc.Prompt(), restored.Prompt())
	assert.Nil(t, restored.Characters())
	assert.Equal(t, HasMetadata, restored.State())
}

func TestLoadDocument(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    State
		wantErr bool
	}{
		{name: "seed only", data: `{"prompt":"p","metadata":null}`, want: Empty},
		{name: "outline", data: `{"prompt":"p","metadata":{"title":"t"},"characters":{"characters":[]},"outline":{"outlines":[]}}`, want: HasOutline},
		{name: "missing prompt", data: `{"metadata":null}`, wantErr: true},
		{name: "gap", data: `{"prompt":"p","characters":{"characters":[]}}`, wantErr: true},
		{name: "text without outline", data: `{"prompt":"p","metadata":{},"characters":{},"text":{"chapters":[]}}`, wantErr: true},
		{name: "not json", data: `nope`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := LoadDocument([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, doc.State())
		})
	}
}

func TestStateIsMonotonic(t *testing.T) {
	doc := NewDocument("seed")
	states := []State{doc.State()}

	require.NoError(t, doc.SetMetadata(turtleMetadata()))
	states = append(states, doc.State())
	require.NoError(t, doc.SetCharacters(CharacterList{}))
	states = append(states, doc.State())
	require.NoError(t, doc.SetOutline(BookOutline{}))
	states = append(states, doc.State())
	require.NoError(t, doc.SetText(FullText{}))
	states = append(states, doc.State())

	assert.Equal(t, []State{Empty, HasMetadata, HasCharacters, HasOutline, HasText}, states)
}

func TestSchemasDecodeIntoRecords(t *testing.T) {
	var meta Metadata
	raw := `{"title":"The Adventures of Timmy","author":"Wanda Wordsmith","year":2023,"themes":["friendship","bravery"],"location":"Whispering Forest"}`
	require.NoError(t, MetadataSchema.Decode(raw, &meta))
	assert.Equal(t, turtleMetadata(), meta)

	var outline BookOutline
	raw = `{"synopsis":"s","conflict":"c","resolution":"r","outlines":[{"chapter_number":1,"title":"One","synopsis":"x"}]}`
	require.NoError(t, BookOutlineSchema.Decode(raw, &outline))
	assert.Equal(t, 1, outline.Outlines[0].ChapterNumber)

	// The chapter number is optional: the pipeline takes it from the outline.
	var chapter ChapterText
	require.NoError(t, ChapterTextSchema.Decode(`{"text":"Once upon a time"}`, &chapter))
	assert.Equal(t, "Once upon a time", chapter.Text)
	assert.Zero(t, chapter.ChapterNumber)

	err := ChapterTextSchema.Decode(`{"chapter_number":"one","text":"Once upon a time"}`, &chapter)
	assert.ErrorIs(t, err, dberrors.ErrParse)

	err = ChapterTextSchema.Decode(`{"chapter_number":1}`, &chapter)
	assert.ErrorIs(t, err, dberrors.ErrParse)
	assert.Contains(t, err.Error(), `"text"`)
}
