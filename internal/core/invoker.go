package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vampirenirmal/deepbook/internal/agent"
	"github.com/vampirenirmal/deepbook/internal/prompt"
	"github.com/vampirenirmal/deepbook/internal/schema"
	dberrors "github.com/vampirenirmal/deepbook/pkg/deepbook/errors"
)

// Invoker renders a prompt from a document snapshot, makes one model call
// and decodes the answer. It holds no state between calls.
type Invoker struct {
	client agent.AIClient
	logger *slog.Logger
}

func NewInvoker(client agent.AIClient, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{
		client: client,
		logger: logger.With("component", "invoker"),
	}
}

// Invoke asks the model for a record of type T described by s. field names
// what is being generated: a document field for field templates, a chapter
// number for chapter templates.
//
// Model errors are returned unchanged. A response that does not fit s is a
// *errors.ParseError. On error the zero T is returned.
func Invoke[T any](ctx context.Context, inv *Invoker, snapshot string, s schema.Schema, field string, tmpl *prompt.Template) (T, error) {
	var zero T

	data := prompt.Data{Document: snapshot, Instructions: s.FormatInstructions()}
	switch tmpl.Kind() {
	case prompt.KindField:
		data.Field = field
	case prompt.KindChapter:
		data.Chapter = field
	default:
		return zero, fmt.Errorf("invoke %s: %s template cannot produce structured output", s.Name, tmpl.Kind())
	}

	text, err := tmpl.Execute(data)
	if err != nil {
		return zero, err
	}

	start := time.Now()
	inv.logger.Debug("invoking model",
		"schema", s.Name,
		"field", field,
		"prompt_length", len(text))

	raw, err := inv.client.CompleteJSON(ctx, text)
	if err != nil {
		inv.logger.Error("model call failed",
			"schema", s.Name,
			"field", field,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", err)
		return zero, err
	}

	var out T
	if err := s.Decode(raw, &out); err != nil {
		var pe *dberrors.ParseError
		if errors.As(err, &pe) {
			pe.Field = field
		}
		inv.logger.Warn("model response rejected",
			"schema", s.Name,
			"field", field,
			"response_length", len(raw),
			"error", err)
		return zero, err
	}

	inv.logger.Debug("model response decoded",
		"schema", s.Name,
		"field", field,
		"duration_ms", time.Since(start).Milliseconds())

	return out, nil
}

// InvokeText renders an image-description template and returns the model's
// freeform answer. An empty answer is a *errors.ParseError.
func (inv *Invoker) InvokeText(ctx context.Context, snapshot string, index int, character string, tmpl *prompt.Template) (string, error) {
	if tmpl.Kind() != prompt.KindImage {
		return "", fmt.Errorf("invoke text: %s template cannot describe a character", tmpl.Kind())
	}

	text, err := tmpl.Execute(prompt.Data{Document: snapshot, Index: index, Character: character})
	if err != nil {
		return "", err
	}

	raw, err := inv.client.Complete(ctx, text)
	if err != nil {
		inv.logger.Error("model call failed",
			"character_index", index,
			"error", err)
		return "", err
	}

	desc := strings.TrimSpace(raw)
	if desc == "" {
		return "", &dberrors.ParseError{
			Schema: "ImageDescription",
			Field:  fmt.Sprintf("character %d", index),
			Raw:    raw,
			Cause:  errors.New("empty description"),
		}
	}
	return desc, nil
}
