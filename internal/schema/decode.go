package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	dberrors "github.com/vampirenirmal/deepbook/pkg/deepbook/errors"
)

// Decode validates raw against the schema and unmarshals it into out.
// Any failure is a *errors.ParseError and out must be discarded.
func (s Schema) Decode(raw string, out any) error {
	cleaned := CleanJSONResponse(raw)

	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return s.parseError(raw, fmt.Errorf("malformed JSON: %w", err))
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return s.parseError(raw, fmt.Errorf("expected a JSON object, got %s", kind(v)))
	}

	if err := checkObject(obj, s.Fields, ""); err != nil {
		return s.parseError(raw, err)
	}

	if err := json.Unmarshal([]byte(cleaned), out); err != nil {
		return s.parseError(raw, fmt.Errorf("decoding %s: %w", s.Name, err))
	}

	return nil
}

func (s Schema) parseError(raw string, cause error) error {
	return &dberrors.ParseError{Schema: s.Name, Raw: raw, Cause: cause}
}

func checkObject(obj map[string]any, fields []Field, prefix string) error {
	// encoding/json matches keys case-insensitively, so a key differing from
	// an attribute only by case would bypass the checks below.
	for key := range obj {
		for _, f := range fields {
			if key != f.Name && strings.EqualFold(key, f.Name) {
				return fmt.Errorf("attribute %q conflicts with %q", prefix+key, prefix+f.Name)
			}
		}
	}

	for _, f := range fields {
		path := prefix + f.Name
		v, ok := obj[f.Name]
		if !ok || v == nil {
			if f.Optional {
				continue
			}
			return fmt.Errorf("missing required attribute %q", path)
		}
		if err := checkValue(v, f, path); err != nil {
			return err
		}
	}
	return nil
}

func checkValue(v any, f Field, path string) error {
	switch f.Type {
	case String:
		if _, ok := v.(string); !ok {
			return typeError(path, f.Type, v)
		}
	case Integer:
		n, ok := v.(json.Number)
		if !ok {
			return typeError(path, f.Type, v)
		}
		if _, err := n.Int64(); err != nil {
			return typeError(path, f.Type, v)
		}
	case StringList:
		items, ok := v.([]any)
		if !ok {
			return typeError(path, f.Type, v)
		}
		for i, item := range items {
			if _, ok := item.(string); !ok {
				return typeError(fmt.Sprintf("%s[%d]", path, i), String, item)
			}
		}
	case Object:
		obj, ok := v.(map[string]any)
		if !ok {
			return typeError(path, f.Type, v)
		}
		return checkObject(obj, f.Fields, path+".")
	case ObjectList:
		items, ok := v.([]any)
		if !ok {
			return typeError(path, f.Type, v)
		}
		for i, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				return typeError(fmt.Sprintf("%s[%d]", path, i), Object, item)
			}
			if err := checkObject(obj, f.Fields, fmt.Sprintf("%s[%d].", path, i)); err != nil {
				return err
			}
		}
	default:
		return errors.New("unsupported field type")
	}
	return nil
}

func typeError(path string, want FieldType, got any) error {
	return fmt.Errorf("attribute %q: expected %s, got %s", path, want, kind(got))
}

func kind(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		if _, err := x.Int64(); err == nil {
			return "integer"
		}
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}
