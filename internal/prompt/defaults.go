package prompt

const storyPreamble = `We are writing a new children's story together, one piece at a time.
The story so far is described by the JSON below.

{{.Document}}
`

const defaultFieldTemplate = storyPreamble + `
Next, we will fill in the ` + "`{{.Field}}`" + ` field of the story.

{{.Instructions}}
`

const defaultChapterTemplate = storyPreamble + `
Next, we will write the full text of chapter {{.Chapter}}. Follow the synopsis
given for chapter {{.Chapter}} in the outline above.

{{.Instructions}}
`

const defaultImageTemplate = storyPreamble + `
Write a detailed visual description of character {{.Index}} that an image
generator can illustrate. The description should cover:

1. Physical appearance (body shape, size, and species if not human)
2. Facial features and expression
3. Clothing and accessories
4. A pose or an action the character might be doing
5. Background elements that show the character's world
6. The mood and atmosphere of the picture

Be vivid and specific about colors, textures and small details. Reply with the
description only, without notes or disclaimers about image generation.

This is the character, as JSON:

{{.Character}}
`

// Set is the three templates a pipeline renders prompts from.
type Set struct {
	Field   *Template
	Chapter *Template
	Image   *Template
}

// DefaultSet returns the built-in templates.
func DefaultSet() Set {
	return Set{
		Field:   MustParse(KindField, "field", defaultFieldTemplate),
		Chapter: MustParse(KindChapter, "chapter", defaultChapterTemplate),
		Image:   MustParse(KindImage, "image", defaultImageTemplate),
	}
}
