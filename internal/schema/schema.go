// Package schema describes the records the model is asked to produce. A
// Schema is a field-metadata table: the same table renders the format
// instructions embedded in prompts and validates the decoded answer.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FieldType is the JSON shape expected for a field.
type FieldType int

const (
	String FieldType = iota
	Integer
	StringList
	Object
	ObjectList
)

func (t FieldType) String() string {
	switch t {
	case String:
		return "string"
	case Integer:
		return "integer"
	case StringList:
		return "array of strings"
	case Object:
		return "object"
	case ObjectList:
		return "array of objects"
	default:
		return "unknown"
	}
}

// Field describes one attribute of a record. Fields holds the nested
// attributes for Object and ObjectList. An Optional field may be absent or
// null; when present it must still have the declared type.
type Field struct {
	Name        string
	Type        FieldType
	Description string
	Optional    bool
	Fields      []Field
}

// Schema is the description of a record type.
type Schema struct {
	Name        string
	Description string
	Fields      []Field
}

const instructionsPreamble = `The output should be formatted as a JSON instance that conforms to the JSON schema below.

As an example, for the schema {"properties": {"foo": {"title": "Foo", "description": "a list of strings", "type": "array", "items": {"type": "string"}}}, "required": ["foo"]}
the object {"foo": ["bar", "baz"]} is a well-formatted instance of the schema. The object {"properties": {"foo": ["bar", "baz"]}} is not well-formatted.

Here is the output schema:
`

// FormatInstructions renders the schema as instructions for the model.
func (s Schema) FormatInstructions() string {
	doc := objectSchema(s.Fields)
	doc["title"] = s.Name
	if s.Description != "" {
		doc["description"] = s.Description
	}

	// Map keys marshal sorted, so the output is stable across calls.
	data, err := json.Marshal(doc)
	if err != nil {
		// Only strings, slices and maps are marshalled here.
		panic(fmt.Sprintf("schema %s: %v", s.Name, err))
	}

	var b strings.Builder
	b.WriteString(instructionsPreamble)
	b.WriteString("```\n")
	b.Write(data)
	b.WriteString("\n```")
	return b.String()
}

func objectSchema(fields []Field) map[string]any {
	props := make(map[string]any, len(fields))
	required := make([]string, 0, len(fields))
	for _, f := range fields {
		props[f.Name] = fieldSchema(f)
		if !f.Optional {
			required = append(required, f.Name)
		}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func fieldSchema(f Field) map[string]any {
	var out map[string]any
	switch f.Type {
	case Integer:
		out = map[string]any{"type": "integer"}
	case StringList:
		out = map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
	case Object:
		out = objectSchema(f.Fields)
	case ObjectList:
		out = map[string]any{"type": "array", "items": objectSchema(f.Fields)}
	default:
		out = map[string]any{"type": "string"}
	}
	out["title"] = title(f.Name)
	if f.Description != "" {
		out["description"] = f.Description
	}
	return out
}

// title turns chapter_number into "Chapter Number".
func title(name string) string {
	parts := strings.Split(name, "_")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToUpper(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, " ")
}
