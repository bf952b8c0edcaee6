package ai

import (
	"strings"
	"testing"

	"github.com/matthewjhunter/veille/internal/storage"
)

func TestGetPrompt_EmbeddedDefault(t *testing.T) {
	pl := NewPromptLoader(nil)

	for _, pt := range []PromptType{PromptTypeAnalysis, PromptTypeSuggestion} {
		t.Run(string(pt), func(t *testing.T) {
			prompt, err := pl.GetPrompt(pt)
			if err != nil {
				t.Fatalf("GetPrompt(%s) failed: %v", pt, err)
			}
			if prompt == "" {
				t.Errorf("GetPrompt(%s) returned empty string", pt)
			}
		})
	}
}

func TestGetPrompt_ConfigOverride(t *testing.T) {
	config := &storage.Config{}
	config.Prompts.Analysis = "custom analysis prompt"

	pl := NewPromptLoader(config)

	prompt, err := pl.GetPrompt(PromptTypeAnalysis)
	if err != nil {
		t.Fatalf("GetPrompt failed: %v", err)
	}
	if prompt != "custom analysis prompt" {
		t.Errorf("expected config override, got: %q", prompt)
	}

	// Other types should still return embedded defaults
	suggestion, err := pl.GetPrompt(PromptTypeSuggestion)
	if err != nil {
		t.Fatalf("GetPrompt(suggestion) failed: %v", err)
	}
	if suggestion != defaultSuggestionPrompt {
		t.Error("suggestion prompt should not be affected by analysis config override")
	}
}

func TestGetPrompt_UnknownType(t *testing.T) {
	pl := NewPromptLoader(nil)

	_, err := pl.GetPrompt(PromptType("nonexistent"))
	if err == nil {
		t.Fatal("expected error for unknown prompt type, got nil")
	}
}

func TestGetTemperature_Defaults(t *testing.T) {
	pl := NewPromptLoader(nil)

	tests := []struct {
		pt   PromptType
		want float64
	}{
		{PromptTypeAnalysis, 0.3},
		{PromptTypeSuggestion, 0.7},
		{PromptType("unknown"), 0.5},
	}

	for _, tt := range tests {
		t.Run(string(tt.pt), func(t *testing.T) {
			got := pl.GetTemperature(tt.pt)
			if got != tt.want {
				t.Errorf("GetTemperature(%s) = %v, want %v", tt.pt, got, tt.want)
			}
		})
	}
}

func TestGetTemperature_ConfigOverride(t *testing.T) {
	config := &storage.Config{}
	config.Temperatures.Analysis = 0.9

	pl := NewPromptLoader(config)

	if got := pl.GetTemperature(PromptTypeAnalysis); got != 0.9 {
		t.Errorf("expected config temperature 0.9, got %v", got)
	}
	// Zero in config falls back to the default
	if got := pl.GetTemperature(PromptTypeSuggestion); got != 0.7 {
		t.Errorf("expected default 0.7 for suggestion, got %v", got)
	}
}

func TestExecutePrompt(t *testing.T) {
	result, err := ExecutePrompt("Hello {{.Name}}, you have {{.Count}} items", map[string]any{
		"Name":  "Alice",
		"Count": 5,
	})
	if err != nil {
		t.Fatalf("ExecutePrompt failed: %v", err)
	}
	if result != "Hello Alice, you have 5 items" {
		t.Errorf("unexpected result: %q", result)
	}
}

func TestExecutePrompt_InvalidTemplate(t *testing.T) {
	_, err := ExecutePrompt("Hello {{.Name", nil)
	if err == nil {
		t.Fatal("expected error for invalid template, got nil")
	}
}

func TestDefaultPromptsRender(t *testing.T) {
	data := map[string]any{
		"Name": "n", "Keywords": "k", "Sentiments": "s",
		"Title": "title", "URL": "https://x", "Content": "body",
	}
	for _, tmpl := range []string{defaultAnalysisPrompt, defaultSuggestionPrompt} {
		out, err := ExecutePrompt(tmpl, data)
		if err != nil {
			t.Fatalf("ExecutePrompt failed: %v", err)
		}
		if strings.Contains(out, "{{") {
			t.Errorf("unrendered placeholder in %q", out)
		}
	}
}
