package ideas

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const defaultModel = "gemini-2.0-flash"

const promptTemplate = `You propose work items for a kanban board.
Reply with a single JSON object with the fields "title" (short, imperative),
"description" (one or two sentences) and "tags" (array of at most three lowercase words).
Do not add any other text.

Request: %s`

// GenAIGenerator generates ideas using Google's Gemini API.
type GenAIGenerator struct {
	client *genai.Client
	model  string
}

// NewGenAIGenerator creates a new Gemini-backed generator.
func NewGenAIGenerator(ctx context.Context, apiKey, model string) (*GenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}

	if model == "" {
		model = defaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIGenerator{
		client: client,
		model:  model,
	}, nil
}

// Generate asks the model for one idea matching prompt.
func (g *GenAIGenerator) Generate(ctx context.Context, prompt string) (Idea, error) {
	result, err := g.client.Models.GenerateContent(ctx,
		g.model,
		genai.Text(fmt.Sprintf(promptTemplate, prompt)),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		return Idea{}, fmt.Errorf("%w: GenAI generate failed: %v", ErrGeneration, err)
	}

	return parseIdea(result.Text())
}

// Name returns the generator name.
func (g *GenAIGenerator) Name() string {
	return fmt.Sprintf("genai:%s", g.model)
}
