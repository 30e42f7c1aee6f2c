package book

import (
	"encoding/json"
	"errors"
	"fmt"

	dberrors "github.com/vampirenirmal/deepbook/pkg/deepbook/errors"
)

// Document is the book being generated. It starts with only a seed prompt
// and each stage fills exactly one field. Fields are never reset once set.
//
// Getters return copies, so callers holding a result cannot modify the
// document.
type Document struct {
	prompt     string
	metadata   *Metadata
	characters *CharacterList
	outline    *BookOutline
	text       *FullText
}

// NewDocument creates a document holding only the seed prompt.
func NewDocument(prompt string) *Document {
	return &Document{prompt: prompt}
}

func (d *Document) Prompt() string {
	return d.prompt
}

// Metadata returns nil until the metadata stage has run.
func (d *Document) Metadata() *Metadata {
	if d.metadata == nil {
		return nil
	}
	return d.metadata.clone()
}

func (d *Document) Characters() *CharacterList {
	if d.characters == nil {
		return nil
	}
	return d.characters.clone()
}

func (d *Document) Outline() *BookOutline {
	if d.outline == nil {
		return nil
	}
	return d.outline.clone()
}

func (d *Document) Text() *FullText {
	if d.text == nil {
		return nil
	}
	return d.text.clone()
}

func (d *Document) HasMetadata() bool   { return d.metadata != nil }
func (d *Document) HasCharacters() bool { return d.characters != nil }
func (d *Document) HasOutline() bool    { return d.outline != nil }
func (d *Document) HasText() bool       { return d.text != nil }

func (d *Document) SetMetadata(m Metadata) error {
	if d.metadata != nil {
		return fmt.Errorf("metadata: %w", dberrors.ErrFieldAlreadySet)
	}
	d.metadata = m.clone()
	return nil
}

func (d *Document) SetCharacters(c CharacterList) error {
	if d.characters != nil {
		return fmt.Errorf("characters: %w", dberrors.ErrFieldAlreadySet)
	}
	d.characters = c.clone()
	return nil
}

func (d *Document) SetOutline(o BookOutline) error {
	if d.outline != nil {
		return fmt.Errorf("outline: %w", dberrors.ErrFieldAlreadySet)
	}
	d.outline = o.clone()
	return nil
}

func (d *Document) SetText(t FullText) error {
	if d.text != nil {
		return fmt.Errorf("text: %w", dberrors.ErrFieldAlreadySet)
	}
	d.text = t.clone()
	return nil
}

// document is the wire form. Unset fields serialize as null.
type document struct {
	Prompt     string         `json:"prompt"`
	Metadata   *Metadata      `json:"metadata"`
	Characters *CharacterList `json:"characters"`
	Outline    *BookOutline   `json:"outline"`
	Text       *FullText      `json:"text"`
}

func (d *Document) MarshalJSON() ([]byte, error) {
	return json.Marshal(document{
		Prompt:     d.prompt,
		Metadata:   d.metadata,
		Characters: d.characters,
		Outline:    d.outline,
		Text:       d.text,
	})
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var w document
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*d = Document{
		prompt:     w.Prompt,
		metadata:   w.Metadata,
		characters: w.Characters,
		outline:    w.Outline,
		text:       w.Text,
	}
	return nil
}

// Snapshot serializes the complete current state. Every generation call
// receives a snapshot as context.
func (d *Document) Snapshot() (string, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serializing document: %w", err)
	}
	return string(data), nil
}

// LoadDocument restores a document from its serialized form. Fields must
// have been filled in stage order.
func LoadDocument(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decoding document: %w", err)
	}
	if d.prompt == "" {
		return nil, errors.New("decoding document: missing prompt")
	}

	set := []bool{d.HasMetadata(), d.HasCharacters(), d.HasOutline(), d.HasText()}
	for i := 1; i < len(set); i++ {
		if set[i] && !set[i-1] {
			return nil, fmt.Errorf("decoding document: %s set without %s", State(i+1), State(i))
		}
	}
	return &d, nil
}
