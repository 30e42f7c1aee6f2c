package book

import "slices"

// Metadata describes the book as a whole
type Metadata struct {
	Title    string   `json:"title"`
	Author   string   `json:"author"`
	Year     int      `json:"year"`
	Themes   []string `json:"themes"`
	Location string   `json:"location"`
}

type Character struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Personality string `json:"personality"`
}

// CharacterList is the cast of the book. A character's index in the list
// identifies it for illustration.
type CharacterList struct {
	Characters []Character `json:"characters"`
}

type ChapterOutline struct {
	ChapterNumber int    `json:"chapter_number"`
	Title         string `json:"title"`
	Synopsis      string `json:"synopsis"`
}

// BookOutline is the plot structure. Outlines are expected in ascending
// chapter order starting at 1.
type BookOutline struct {
	Synopsis   string           `json:"synopsis"`
	Conflict   string           `json:"conflict"`
	Resolution string           `json:"resolution"`
	Outlines   []ChapterOutline `json:"outlines"`
}

type ChapterText struct {
	ChapterNumber int    `json:"chapter_number"`
	Text          string `json:"text"`
}

// FullText holds one ChapterText per outline entry, in outline order.
type FullText struct {
	Chapters []ChapterText `json:"chapters"`
}

// ImageResult is a generated character illustration. It is returned to the
// caller and never stored on the Document.
type ImageResult struct {
	CharacterIndex    int    `json:"character_index"`
	DescriptivePrompt string `json:"descriptive_prompt"`
	ImageURL          string `json:"image_url"`
}

func (m Metadata) clone() *Metadata {
	m.Themes = slices.Clone(m.Themes)
	return &m
}

func (c CharacterList) clone() *CharacterList {
	c.Characters = slices.Clone(c.Characters)
	return &c
}

func (o BookOutline) clone() *BookOutline {
	o.Outlines = slices.Clone(o.Outlines)
	return &o
}

func (t FullText) clone() *FullText {
	t.Chapters = slices.Clone(t.Chapters)
	return &t
}
