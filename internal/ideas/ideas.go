// Package ideas proposes card content from a free-text prompt.
//
// The board only depends on the Generator interface. GenAIGenerator is the
// production adapter backed by Google's Gemini API.
package ideas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrGeneration is returned when a generator could not produce a usable idea.
// No card is created when generation fails.
var ErrGeneration = errors.New("idea generation failed")

// Idea is the content proposed for a new card.
type Idea struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Generator turns a prompt into card content.
type Generator interface {
	Generate(ctx context.Context, prompt string) (Idea, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string) (Idea, error)

// Generate calls f(ctx, prompt).
func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (Idea, error) {
	return f(ctx, prompt)
}

// Disabled is used when no provider is configured. Every call fails with ErrGeneration.
var Disabled = GeneratorFunc(func(ctx context.Context, prompt string) (Idea, error) {
	return Idea{}, fmt.Errorf("%w: no idea provider configured", ErrGeneration)
})

// parseIdea extracts an Idea from a model response. Models sometimes wrap JSON
// in a fenced code block even when asked not to.
func parseIdea(text string) (Idea, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
		text = strings.TrimSpace(text)
	}

	var idea Idea
	if err := json.Unmarshal([]byte(text), &idea); err != nil {
		return Idea{}, fmt.Errorf("%w: response is not an idea object: %v", ErrGeneration, err)
	}

	idea.Title = strings.TrimSpace(idea.Title)
	idea.Description = strings.TrimSpace(idea.Description)
	if idea.Title == "" {
		return Idea{}, fmt.Errorf("%w: response has no title", ErrGeneration)
	}
	if idea.Tags == nil {
		idea.Tags = []string{}
	}
	return idea, nil
}
