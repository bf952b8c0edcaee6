package ai

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/matthewjhunter/veille/internal/storage"
)

// Embedded default prompts
//
//go:embed prompts/analysis.txt
var defaultAnalysisPrompt string

//go:embed prompts/suggestion.txt
var defaultSuggestionPrompt string

// PromptType represents the type of AI prompt
type PromptType string

const (
	PromptTypeAnalysis   PromptType = "analysis"
	PromptTypeSuggestion PromptType = "suggestion"
)

// PromptLoader handles 2-tier prompt loading: config -> embedded
type PromptLoader struct {
	config *storage.Config
}

// NewPromptLoader creates a new prompt loader. config may be nil.
func NewPromptLoader(config *storage.Config) *PromptLoader {
	return &PromptLoader{config: config}
}

// GetPrompt loads a prompt template.
// Priority: config file -> embedded default
func (pl *PromptLoader) GetPrompt(promptType PromptType) (string, error) {
	if pl.config != nil {
		var configPrompt string
		switch promptType {
		case PromptTypeAnalysis:
			configPrompt = pl.config.Prompts.Analysis
		case PromptTypeSuggestion:
			configPrompt = pl.config.Prompts.Suggestion
		}
		if configPrompt != "" {
			return configPrompt, nil
		}
	}

	switch promptType {
	case PromptTypeAnalysis:
		return defaultAnalysisPrompt, nil
	case PromptTypeSuggestion:
		return defaultSuggestionPrompt, nil
	default:
		return "", fmt.Errorf("unknown prompt type: %s", promptType)
	}
}

// GetTemperature gets the temperature for a prompt type with fallback
// Priority: config file -> default
func (pl *PromptLoader) GetTemperature(promptType PromptType) float64 {
	if pl.config != nil {
		var configTemp float64
		switch promptType {
		case PromptTypeAnalysis:
			configTemp = pl.config.Temperatures.Analysis
		case PromptTypeSuggestion:
			configTemp = pl.config.Temperatures.Suggestion
		}
		if configTemp > 0 {
			return configTemp
		}
	}

	switch promptType {
	case PromptTypeAnalysis:
		return 0.3
	case PromptTypeSuggestion:
		return 0.7
	default:
		return 0.5
	}
}

// ExecutePrompt renders a prompt template with the given data
func ExecutePrompt(promptTemplate string, data any) (string, error) {
	tmpl, err := template.New("prompt").Parse(promptTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse prompt template: %w", err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}

	return buf.String(), nil
}
