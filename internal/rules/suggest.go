package rules

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/dvolkov/homeledger/internal/domain"
)

// Suggester proposes a category for a description when neither a custom rule
// nor the keyword table produced one. Implementations may be remote; callers
// must treat failures as "no suggestion".
type Suggester interface {
	SuggestCategory(ctx context.Context, description string, categories []domain.Category) (string, error)
}

// GeminiSuggester asks a Gemini model to pick one of the user's categories.
type GeminiSuggester struct {
	model string
}

// NewGeminiSuggester creates a suggester for the given model name.
func NewGeminiSuggester(model string) *GeminiSuggester {
	return &GeminiSuggester{model: model}
}

// SuggestCategory returns the id of the category the model picked, or an
// error when the answer is unusable. The model is constrained to answer with
// exactly one category name from the provided list.
func (g *GeminiSuggester) SuggestCategory(ctx context.Context, description string, categories []domain.Category) (string, error) {
	if len(categories) == 0 {
		return "", fmt.Errorf("SuggestCategory: no categories to choose from")
	}

	names := make([]string, 0, len(categories))
	byName := make(map[string]string, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
		byName[Normalize(c.Name)] = c.ID
	}

	prompt := "You are a personal-finance categorizer.\n" +
		"Given a bank transaction description, answer with EXACTLY ONE of the\n" +
		"following category names and nothing else:\n" +
		strings.Join(names, ", ") + "\n\n" +
		"Transaction description: " + description + "\n"

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return "", fmt.Errorf("SuggestCategory: create genai client: %w", err)
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}
	resp, err := client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("SuggestCategory: generate content: %w", err)
	}

	answer := Normalize(resp.Text())
	if answer == "" {
		return "", fmt.Errorf("SuggestCategory: empty response from model")
	}
	if id, ok := byName[answer]; ok {
		return id, nil
	}
	// Tolerate minor decoration around the expected name.
	for name, id := range byName {
		if strings.Contains(answer, name) {
			return id, nil
		}
	}
	return "", fmt.Errorf("SuggestCategory: model answered %q, not a known category", answer)
}
