package ai

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewjhunter/veille/internal/storage"
)

var testTopic = storage.Topic{
	ID:         "t1",
	Name:       "Acme watch",
	Keywords:   []string{"acme", "anvil"},
	Sentiments: []string{"positif", "négatif"},
}

func TestAnalyze(t *testing.T) {
	fake := newFakeOllama(t, `{"summary":" Acme ships a new anvil. ","entities":["Acme","Acme"],"sentiment":"positif","metrics":{"mentions":3,"concepts":["launch"]}}`)
	p := newTestProcessor(t, testConfig(fake.URL))

	got, err := p.Analyze(t.Context(), testTopic, Article{
		Title:   "Acme launches",
		URL:     "https://news.example.com/acme",
		Content: "Acme has launched a new anvil.",
	})
	require.NoError(t, err)

	assert.Equal(t, "Acme ships a new anvil.", got.Summary)
	assert.Equal(t, []string{"Acme", "Acme"}, got.Entities)
	assert.Equal(t, "positif", got.Sentiment)
	assert.Equal(t, 3.0, got.Metrics.Mentions)
	assert.Equal(t, map[string]any{"mentions": 3.0, "concepts": []string{"launch"}}, got.MetricsMap())

	req := fake.lastRequest(t)
	assert.Equal(t, "test-model", req.Model)
	require.NotNil(t, req.Stream)
	assert.False(t, *req.Stream)
	assert.Equal(t, 0.3, req.Options["temperature"])
	assert.Contains(t, req.Prompt, "Acme watch")
	assert.Contains(t, req.Prompt, "acme, anvil")
	assert.Contains(t, req.Prompt, "https://news.example.com/acme")

	format := string(req.Format)
	assert.Contains(t, format, `"positif"`)
	assert.Contains(t, format, `"other"`)
	assert.Contains(t, format, `"summary"`)
}

func TestAnalyzeTruncatesContent(t *testing.T) {
	fake := newFakeOllama(t, `{"summary":"s","entities":[],"sentiment":"other","metrics":{"mentions":0,"concepts":[]}}`)
	cfg := testConfig(fake.URL)
	cfg.AI.MaxContentLen = 50
	p := newTestProcessor(t, cfg)

	_, err := p.Analyze(t.Context(), testTopic, Article{Title: "x", Content: strings.Repeat("z", 500)})
	require.NoError(t, err)

	req := fake.lastRequest(t)
	assert.NotContains(t, req.Prompt, strings.Repeat("z", 51))
	assert.Contains(t, req.Prompt, strings.Repeat("z", 50)+"...")
}

func TestAnalyzeErrors(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  error
	}{
		{"refusal field", `{"summary":"","entities":[],"sentiment":"other","metrics":{"mentions":0,"concepts":[]},"refusal":"cannot comply"}`, ErrRefusal},
		{"empty output", "   ", ErrRefusal},
		{"not json", "I think it is positive.", ErrSchemaViolation},
		{"sentiment outside categories", `{"summary":"s","entities":[],"sentiment":"joyeux","metrics":{"mentions":0,"concepts":[]}}`, ErrSchemaViolation},
		{"missing metrics", `{"summary":"s","entities":[],"sentiment":"positif"}`, ErrSchemaViolation},
		{"entities not a list", `{"summary":"s","entities":"Acme","sentiment":"positif","metrics":{"mentions":0,"concepts":[]}}`, ErrSchemaViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeOllama(t, tt.reply)
			p := newTestProcessor(t, testConfig(fake.URL))

			_, err := p.Analyze(t.Context(), testTopic, Article{Title: "x"})
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}
}

func TestAnalyzeRefusalReason(t *testing.T) {
	fake := newFakeOllama(t, `{"summary":"","entities":[],"sentiment":"other","metrics":{"mentions":0,"concepts":[]},"refusal":"paywalled"}`)
	p := newTestProcessor(t, testConfig(fake.URL))

	_, err := p.Analyze(t.Context(), testTopic, Article{Title: "x"})
	var refusal *RefusalError
	require.True(t, errors.As(err, &refusal))
	assert.Equal(t, "paywalled", refusal.Reason)
}

func TestAnalyzeMissingCredential(t *testing.T) {
	p := newTestProcessor(t, testConfig("https://models.example.com"))

	_, err := p.Analyze(t.Context(), testTopic, Article{Title: "x"})
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestAnalyzeTopicWithoutSentiments(t *testing.T) {
	fake := newFakeOllama(t, `{"summary":"s","entities":null,"sentiment":"anything","metrics":{"mentions":1,"concepts":[]}}`)
	p := newTestProcessor(t, testConfig(fake.URL))

	// entities must be a list even without a sentiment constraint.
	_, err := p.Analyze(t.Context(), storage.Topic{ID: "t", Name: "n"}, Article{Title: "x"})
	assert.ErrorIs(t, err, ErrSchemaViolation)

	fake.mu.Lock()
	fake.reply = `{"summary":"s","entities":[],"sentiment":"anything","metrics":{"mentions":1,"concepts":[]}}`
	fake.mu.Unlock()
	got, err := p.Analyze(t.Context(), storage.Topic{ID: "t", Name: "n"}, Article{Title: "x"})
	require.NoError(t, err)
	assert.Equal(t, "anything", got.Sentiment)
}

func TestAnalyzeServerError(t *testing.T) {
	p := newTestProcessor(t, testConfig("http://127.0.0.1:1"))

	_, err := p.Analyze(t.Context(), testTopic, Article{Title: "x"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRefusal))
	assert.False(t, errors.Is(err, ErrSchemaViolation))
	assert.False(t, errors.Is(err, ErrMissingCredential))
}

func TestSentimentChoices(t *testing.T) {
	assert.Equal(t, []any{"positif", "négatif", "other"}, sentimentChoices(testTopic))
	assert.Nil(t, sentimentChoices(storage.Topic{}))
	assert.Nil(t, sentimentChoices(storage.Topic{Sentiments: []string{"other", " "}}))
}
