package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/matthewjhunter/veille/internal/storage"
)

// OtherSentiment is the category the model picks when none of the topic's
// sentiments fit.
const OtherSentiment = "other"

// Article is the text handed to the analyzer.
type Article struct {
	Title   string
	URL     string
	Content string
}

// Metrics are the open-ended figures attached to a card.
type Metrics struct {
	Mentions float64  `json:"mentions" jsonschema:"number of times the watch keywords are mentioned"`
	Concepts []string `json:"concepts" jsonschema:"key concepts discussed in the article"`
}

// Analysis is the structured result of analyzing one article for one topic.
type Analysis struct {
	Summary   string   `json:"summary" jsonschema:"summary focused on the watch subjects"`
	Entities  []string `json:"entities" jsonschema:"named entities mentioned in the article"`
	Sentiment string   `json:"sentiment" jsonschema:"one of the watch sentiment categories, or other"`
	Metrics   Metrics  `json:"metrics"`
	Refusal   string   `json:"refusal,omitempty" jsonschema:"reason for declining, only when the article cannot be analyzed"`
}

// MetricsMap converts the metrics to the map stored on a card.
func (a Analysis) MetricsMap() map[string]any {
	concepts := a.Metrics.Concepts
	if concepts == nil {
		concepts = []string{}
	}
	return map[string]any{
		"mentions": a.Metrics.Mentions,
		"concepts": concepts,
	}
}

// sentimentChoices is the topic's categories plus OtherSentiment, or nil
// when the topic defines none.
func sentimentChoices(topic storage.Topic) []any {
	var out []any
	seen := make(map[string]bool)
	for _, s := range append(append([]string{}, topic.Sentiments...), OtherSentiment) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	if len(out) == 1 {
		return nil
	}
	return out
}

// Analyze summarizes and classifies article for topic.
//
// Errors wrap ErrMissingCredential, ErrRefusal or ErrSchemaViolation when
// they have those causes; any other error is a transport failure.
func (p *AIProcessor) Analyze(ctx context.Context, topic storage.Topic, article Article) (*Analysis, error) {
	promptTemplate, err := p.promptLoader.GetPrompt(PromptTypeAnalysis)
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis prompt: %w", err)
	}

	data := map[string]any{
		"Name":       topic.Name,
		"Keywords":   strings.Join(topic.Keywords, ", "),
		"Sentiments": strings.Join(topic.Sentiments, ", "),
		"Title":      article.Title,
		"URL":        article.URL,
		"Content":    truncateText(article.Content, p.maxContentLen),
	}
	prompt, err := ExecutePrompt(promptTemplate, data)
	if err != nil {
		return nil, fmt.Errorf("failed to render analysis prompt: %w", err)
	}

	choices := sentimentChoices(topic)
	schema, resolved, err := structuredSchema[Analysis](func(s *jsonschema.Schema) {
		if choices != nil {
			s.Properties["sentiment"].Enum = choices
		}
	})
	if err != nil {
		return nil, err
	}

	raw, err := p.generate(ctx, prompt, schema, p.promptLoader.GetTemperature(PromptTypeAnalysis))
	if err != nil {
		return nil, fmt.Errorf("article analysis failed: %w", err)
	}

	result, err := decodeStructured[Analysis](raw, resolved)
	if err != nil {
		return nil, fmt.Errorf("article analysis failed: %w", err)
	}
	if result.Entities == nil {
		result.Entities = []string{}
	}
	result.Summary = strings.TrimSpace(result.Summary)

	p.logger.Debug("article analyzed", "topic", topic.ID, "url", article.URL,
		"sentiment", result.Sentiment, "entities", len(result.Entities))
	return &result, nil
}
