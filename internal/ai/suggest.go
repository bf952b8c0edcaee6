package ai

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/matthewjhunter/veille/internal/storage"
)

// MaxSuggestions caps the number of sources returned by SuggestSources.
const MaxSuggestions = 10

// Suggestion is a source proposed by the model.
type Suggestion struct {
	URL         string             `json:"url"`
	Kind        storage.SourceKind `json:"type"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
}

// Suggestions is the reply to SuggestSources. When the model declines,
// Refusal holds its reason and Suggestions is empty.
type Suggestions struct {
	Suggestions []Suggestion `json:"suggestions"`
	Refusal     string       `json:"refusal,omitempty"`
}

var suggestionKinds = []any{
	string(storage.SourceRSS),
	string(storage.SourceWeb),
	string(storage.SourceBlog),
	string(storage.SourceForum),
}

// SuggestSources asks the model for sources worth monitoring for the given
// keywords and sentiments. A refusal is reported in the result rather than as
// an error. Suggestions with an unusable URL or kind, and repeated URLs, are
// dropped; at most MaxSuggestions are returned.
func (p *AIProcessor) SuggestSources(ctx context.Context, keywords, sentiments []string) (*Suggestions, error) {
	promptTemplate, err := p.promptLoader.GetPrompt(PromptTypeSuggestion)
	if err != nil {
		return nil, fmt.Errorf("failed to load suggestion prompt: %w", err)
	}
	prompt, err := ExecutePrompt(promptTemplate, map[string]any{
		"Keywords":   strings.Join(keywords, ", "),
		"Sentiments": strings.Join(sentiments, ", "),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render suggestion prompt: %w", err)
	}

	schema, resolved, err := structuredSchema[Suggestions](func(s *jsonschema.Schema) {
		s.Properties["suggestions"].Items.Properties["type"].Enum = suggestionKinds
	})
	if err != nil {
		return nil, err
	}

	raw, err := p.generate(ctx, prompt, schema, p.promptLoader.GetTemperature(PromptTypeSuggestion))
	if err != nil {
		return nil, fmt.Errorf("source suggestion failed: %w", err)
	}

	result, err := decodeStructured[Suggestions](raw, resolved)
	var refusal *RefusalError
	if errors.As(err, &refusal) {
		return &Suggestions{Suggestions: []Suggestion{}, Refusal: refusal.Reason}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("source suggestion failed: %w", err)
	}

	result.Suggestions = cleanSuggestions(result.Suggestions)
	return &result, nil
}

func cleanSuggestions(in []Suggestion) []Suggestion {
	out := make([]Suggestion, 0, min(len(in), MaxSuggestions))
	seen := make(map[string]bool)
	for _, s := range in {
		if len(out) == MaxSuggestions {
			break
		}
		u, err := url.Parse(strings.TrimSpace(s.URL))
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			continue
		}
		kind, err := storage.ParseSourceKind(string(s.Kind))
		if err != nil || kind == storage.SourceManual {
			continue
		}
		key := u.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		s.URL = key
		s.Kind = kind
		s.Title = strings.TrimSpace(s.Title)
		s.Description = strings.TrimSpace(s.Description)
		out = append(out, s)
	}
	return out
}
