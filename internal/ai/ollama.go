package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ollama/ollama/api"

	"github.com/matthewjhunter/veille/internal/storage"
)

var (
	// ErrMissingCredential means a remote model endpoint is configured without
	// an API key. Calls fail immediately and are never retried.
	ErrMissingCredential = errors.New("missing API key for remote model endpoint")

	// ErrRefusal means the model declined to answer.
	ErrRefusal = errors.New("model refused the request")

	// ErrSchemaViolation means the model's output was not JSON or did not
	// match the requested schema.
	ErrSchemaViolation = errors.New("model output does not match schema")
)

// AIProcessor talks to an Ollama-compatible endpoint and returns structured
// results.
type AIProcessor struct {
	client        *api.Client
	baseURL       *url.URL
	apiKey        string
	model         string
	maxContentLen int
	promptLoader  *PromptLoader
	logger        *slog.Logger
}

// Option configures an AIProcessor.
type Option func(*processorOptions)

type processorOptions struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// WithHTTPClient sets the HTTP client used to reach the model endpoint. The
// API key, when set, is still added to every request.
func WithHTTPClient(c *http.Client) Option {
	return func(o *processorOptions) { o.httpClient = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *processorOptions) { o.logger = l }
}

// NewAIProcessor creates a new AI processor from the ai, prompts and
// temperatures sections of cfg.
func NewAIProcessor(cfg *storage.Config, opts ...Option) (*AIProcessor, error) {
	o := processorOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	baseURL, err := url.Parse(cfg.AI.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: scheme and host required", cfg.AI.BaseURL)
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Duration(cfg.AI.TimeoutSeconds) * time.Second}
	}
	if cfg.AI.APIKey != "" {
		c := *httpClient
		c.Transport = &bearerTransport{token: cfg.AI.APIKey, base: c.Transport}
		httpClient = &c
	}

	return &AIProcessor{
		client:        api.NewClient(baseURL, httpClient),
		baseURL:       baseURL,
		apiKey:        cfg.AI.APIKey,
		model:         cfg.AI.Model,
		maxContentLen: cfg.AI.MaxContentLen,
		promptLoader:  NewPromptLoader(cfg),
		logger:        o.logger,
	}, nil
}

// Model returns the model name requests are sent to.
func (p *AIProcessor) Model() string {
	return p.model
}

// RequiresCredential reports whether the endpoint is remote and therefore
// needs an API key.
func (p *AIProcessor) RequiresCredential() bool {
	return !isLoopback(p.baseURL.Hostname())
}

type bearerTransport struct {
	token string
	base  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return base.RoundTrip(req)
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// generate sends one non-streaming request constrained to schema and returns
// the raw response text.
func (p *AIProcessor) generate(ctx context.Context, prompt string, schema json.RawMessage, temperature float64) (string, error) {
	if p.apiKey == "" && p.RequiresCredential() {
		return "", fmt.Errorf("%w (%s)", ErrMissingCredential, p.baseURL.Host)
	}

	req := &api.GenerateRequest{
		Model:  p.model,
		Prompt: prompt,
		Stream: new(bool), // false
		Format: schema,
		Options: map[string]any{
			"temperature": temperature,
		},
	}

	var fullResponse strings.Builder
	err := p.client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		fullResponse.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate failed: %w", err)
	}
	return fullResponse.String(), nil
}

// truncateText truncates text to maxLen bytes without splitting a UTF-8
// sequence.
func truncateText(text string, maxLen int) string {
	if maxLen <= 0 || len(text) <= maxLen {
		return text
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}

// extractJSON attempts to extract JSON from a text response that might contain extra text
func extractJSON(text string) string {
	// Find first { and last }
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
