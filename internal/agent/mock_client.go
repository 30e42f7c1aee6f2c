package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	chapterPrompt   = regexp.MustCompile(`(?i)text of chapter (\d+)`)
	characterPrompt = regexp.MustCompile(`(?i)description of character (\d+)`)
)

// MockClient provides fake model and image responses. Without handlers it
// tells a short story about a turtle, which is what `deepbook generate
// --mock` prints.
type MockClient struct {
	mu            sync.Mutex
	responses     map[string]string
	complete      func(ctx context.Context, prompt string, json bool) (string, error)
	image         func(ctx context.Context, req ImageRequest) (ImageResponse, error)
	delay         func(prompt string) time.Duration
	prompts       []string
	imageRequests []ImageRequest
}

type MockOption func(*MockClient)

// WithCompletion replaces the canned text responses.
func WithCompletion(fn func(ctx context.Context, prompt string, json bool) (string, error)) MockOption {
	return func(m *MockClient) {
		m.complete = fn
	}
}

// WithImages replaces the canned image responses.
func WithImages(fn func(ctx context.Context, req ImageRequest) (ImageResponse, error)) MockOption {
	return func(m *MockClient) {
		m.image = fn
	}
}

// WithResponse overrides the canned JSON for one document field.
func WithResponse(field, response string) MockOption {
	return func(m *MockClient) {
		m.responses[field] = response
	}
}

// WithDelay holds each text response for the returned duration.
func WithDelay(fn func(prompt string) time.Duration) MockOption {
	return func(m *MockClient) {
		m.delay = fn
	}
}

// NewMockClient creates a mock client
func NewMockClient(opts ...MockOption) *MockClient {
	m := &MockClient{
		responses: map[string]string{
			"metadata": `{
				"title": "The Adventures of Timmy",
				"author": "Wanda Wordsmith",
				"year": 2023,
				"themes": ["friendship", "bravery"],
				"location": "Whispering Forest"
			}`,
			"characters": `{
				"characters": [
					{
						"name": "Timmy",
						"description": "A small green turtle with a mossy shell and bright curious eyes",
						"personality": "A shy turtle who discovers he is braver than he thought."
					},
					{
						"name": "Hazel",
						"description": "A quick red squirrel with a bushy tail and a tiny acorn hat",
						"personality": "Timmy's best friend, who never stops asking questions."
					}
				]
			}`,
			"outline": `{
				"synopsis": "Timmy the turtle leads his forest friends to safety when a storm floods the Whispering Forest.",
				"conflict": "A storm floods the burrows and the friends cannot find a way to higher ground.",
				"resolution": "Timmy carries the smallest animals across the stream on his shell and Hazel guides them from the trees.",
				"outlines": [
					{"chapter_number": 1, "title": "Rain Clouds", "synopsis": "Dark clouds gather while Timmy worries he is too slow to help anyone."},
					{"chapter_number": 2, "title": "The Flood", "synopsis": "The stream overflows and the animals are trapped on the wrong bank."},
					{"chapter_number": 3, "title": "The Brave Shell", "synopsis": "Timmy ferries his friends across and learns that slow and steady is brave too."}
				]
			}`,
		},
	}

	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MockClient) Complete(ctx context.Context, prompt string) (string, error) {
	return m.respond(ctx, prompt, false)
}

// CompleteJSON returns a mock JSON response
func (m *MockClient) CompleteJSON(ctx context.Context, prompt string) (string, error) {
	return m.respond(ctx, prompt, true)
}

func (m *MockClient) respond(ctx context.Context, prompt string, asJSON bool) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()

	if m.delay != nil {
		if d := m.delay(prompt); d > 0 {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
	}

	if m.complete != nil {
		return m.complete(ctx, prompt, asJSON)
	}

	if match := chapterPrompt.FindStringSubmatch(prompt); match != nil {
		n, _ := strconv.Atoi(match[1])
		out, err := json.Marshal(map[string]any{
			"chapter_number": n,
			"text":           fmt.Sprintf("This is the story of chapter %d. Timmy took a deep breath and kept going, one step at a time.", n),
		})
		return string(out), err
	}

	if match := characterPrompt.FindStringSubmatch(prompt); match != nil {
		return fmt.Sprintf("A gentle forest animal, character number %s, smiling warmly among ferns and soft morning light.", match[1]), nil
	}

	for _, field := range []string{"metadata", "characters", "outline"} {
		if strings.Contains(prompt, "`"+field+"`") {
			return m.responses[field], nil
		}
	}

	return `{"message": "Mock response"}`, nil
}

func (m *MockClient) GenerateImage(ctx context.Context, req ImageRequest) (ImageResponse, error) {
	m.mu.Lock()
	m.imageRequests = append(m.imageRequests, req)
	n := len(m.imageRequests)
	m.mu.Unlock()

	if m.image != nil {
		return m.image(ctx, req)
	}

	data := make([]ImageData, 0, req.Count)
	for i := 0; i < req.Count; i++ {
		data = append(data, ImageData{URL: fmt.Sprintf("https://images.invalid/mock/%d-%d.png", n, i)})
	}
	return ImageResponse{Data: data}, nil
}

// Prompts returns every text prompt received, in arrival order.
func (m *MockClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

func (m *MockClient) ImageRequests() []ImageRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ImageRequest(nil), m.imageRequests...)
}
