package book

import "github.com/vampirenirmal/deepbook/internal/schema"

var MetadataSchema = schema.Schema{
	Name:        "Metadata",
	Description: "Metadata describing the children's book",
	Fields: []schema.Field{
		{Name: "title", Type: schema.String, Description: "the title of the children's book"},
		{Name: "author", Type: schema.String, Description: "the whimsical and fantastical name for the author"},
		{Name: "year", Type: schema.Integer, Description: "the year the book was published in the past or future!"},
		{Name: "themes", Type: schema.StringList, Description: "themes touched upon by the book"},
		{Name: "location", Type: schema.String, Description: "the place where the majority of the story takes place"},
	},
}

var characterFields = []schema.Field{
	{Name: "name", Type: schema.String, Description: "name of the character"},
	{Name: "description", Type: schema.String, Description: "physical description of the character"},
	{Name: "personality", Type: schema.String, Description: "a one sentence biography of the character"},
}

var CharacterListSchema = schema.Schema{
	Name:        "CharacterList",
	Description: "All characters appearing in the story",
	Fields: []schema.Field{
		{Name: "characters", Type: schema.ObjectList, Description: "the characters of the story", Fields: characterFields},
	},
}

var chapterOutlineFields = []schema.Field{
	{Name: "chapter_number", Type: schema.Integer, Description: "the number of the chapter, starting at 1"},
	{Name: "title", Type: schema.String, Description: "the title of the chapter"},
	{Name: "synopsis", Type: schema.String, Description: "1-2 sentence summary of the chapter"},
}

var BookOutlineSchema = schema.Schema{
	Name:        "BookOutline",
	Description: "The plot structure of the book",
	Fields: []schema.Field{
		{Name: "synopsis", Type: schema.String, Description: "1-2 sentence summary of the book"},
		{Name: "conflict", Type: schema.String, Description: "the specific conflict that must be resolved or obstacle that must be overcome"},
		{Name: "resolution", Type: schema.String, Description: "the specific way the conflict is resolved (who, how and when)"},
		{Name: "outlines", Type: schema.ObjectList, Description: "outlines for the individual chapters in order", Fields: chapterOutlineFields},
	},
}

var ChapterTextSchema = schema.Schema{
	Name:        "ChapterText",
	Description: "The full text of a single chapter",
	Fields: []schema.Field{
		{Name: "chapter_number", Type: schema.Integer, Description: "the number of the chapter", Optional: true},
		{Name: "text", Type: schema.String, Description: "the text for the chapter that is read to children. It should read like a children's book and follow the synopsis in the outline"},
	},
}
