package veille

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matthewjhunter/veille/internal/ai"
	"github.com/matthewjhunter/veille/internal/analysis"
	"github.com/matthewjhunter/veille/internal/feeds"
	"github.com/matthewjhunter/veille/internal/metrics"
	"github.com/matthewjhunter/veille/internal/scan"
	"github.com/matthewjhunter/veille/internal/storage"
)

// ErrTopicNotFound is returned when an operation names a topic that does not exist.
var ErrTopicNotFound = errors.New("topic not found")

// Analyzer is the model-backed half of the engine: article analysis for
// scans and source suggestions for topics.
type Analyzer interface {
	scan.Analyzer
	SuggestSources(ctx context.Context, keywords, sentiments []string) (*ai.Suggestions, error)
}

// Engine is the public API for veille: topics and their sources, scans that
// turn articles into cards, and the dashboard that aggregates them.
type Engine struct {
	store    storage.Store
	analyzer Analyzer
	scanner  *scan.Scanner
	logger   *slog.Logger
	recorder metrics.Recorder
	now      func() time.Time
	newID    func() string
	period   analysis.Period

	mu        sync.Mutex
	dashboard *analysis.Dashboard
	stale     bool
	revision  storage.Revision
}

// Option configures an Engine built with New.
type Option func(*Engine)

// WithLogger sets the logger used by the engine and its scanner.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRecorder sets the metrics recorder for scans.
func WithRecorder(r metrics.Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithClock sets the time source for record timestamps and timelines.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator sets the function producing new topic ids.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithDefaultPeriod sets the timeline period used when none is given.
func WithDefaultPeriod(days int) Option {
	return func(e *Engine) { e.period = analysis.LastDays(days) }
}

// NewEngine creates a veille engine backed by the SQLite database named in
// the config. The analyzer is created eagerly but only contacts the model
// when called.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	conf := cfg.Config
	if conf == nil {
		conf = storage.DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	store, err := storage.NewSQLiteStore(conf.Database.Path, storage.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	processor, err := ai.NewAIProcessor(conf, ai.WithLogger(logger))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create AI processor: %w", err)
	}

	fetcher := feeds.NewFetcher(conf, feeds.WithLogger(logger))

	opts := []Option{WithLogger(logger), WithDefaultPeriod(conf.Timeline.DefaultDays)}
	if cfg.Registerer != nil {
		opts = append(opts, WithRecorder(metrics.NewCollector(cfg.Registerer)))
	}
	return New(store, processor, fetcher, opts...), nil
}

// New assembles an engine from its collaborators. The engine owns store and
// closes it on Close.
func New(store storage.Store, analyzer Analyzer, fetcher scan.Fetcher, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		analyzer: analyzer,
		logger:   slog.Default(),
		recorder: metrics.NopCollector{},
		now:      time.Now,
		newID:    uuid.NewString,
		period:   analysis.LastDays(analysis.DefaultPeriodDays),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.scanner = scan.New(analyzer, fetcher, store,
		scan.WithLogger(e.logger),
		scan.WithRecorder(e.recorder),
		scan.WithClock(e.now))
	return e
}

// markStale makes the next Dashboard call reload from the store.
func (e *Engine) markStale() {
	e.mu.Lock()
	e.stale = true
	e.mu.Unlock()
}

// --- Topics ---

// CreateTopic stores a new topic under a fresh id. Blank and repeated
// keywords and sentiments are dropped.
func (e *Engine) CreateTopic(ctx context.Context, name string, keywords, sentiments []string) (*Topic, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("topic name is required")
	}
	topic := Topic{
		ID:         e.newID(),
		Name:       name,
		Keywords:   cleanList(keywords),
		Sentiments: cleanList(sentiments),
		CreatedAt:  e.now(),
	}
	if err := e.store.PutTopic(ctx, topic); err != nil {
		return nil, fmt.Errorf("store topic: %w", err)
	}
	e.markStale()
	e.logger.Info("topic created", "topic", topic.ID, "name", topic.Name)
	return &topic, nil
}

// SaveTopic replaces an existing topic. A zero CreatedAt keeps the stored one.
func (e *Engine) SaveTopic(ctx context.Context, topic Topic) error {
	existing, err := e.GetTopic(ctx, topic.ID)
	if err != nil {
		return err
	}
	topic.Name = strings.TrimSpace(topic.Name)
	if topic.Name == "" {
		return errors.New("topic name is required")
	}
	topic.Keywords = cleanList(topic.Keywords)
	topic.Sentiments = cleanList(topic.Sentiments)
	if topic.CreatedAt.IsZero() {
		topic.CreatedAt = existing.CreatedAt
	}
	if err := e.store.PutTopic(ctx, topic); err != nil {
		return fmt.Errorf("store topic: %w", err)
	}
	e.markStale()
	return nil
}

// GetTopic returns a topic by id, or an error wrapping ErrTopicNotFound.
func (e *Engine) GetTopic(ctx context.Context, id string) (*Topic, error) {
	topic, err := e.store.GetTopic(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrTopicNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get topic: %w", err)
	}
	return topic, nil
}

// ListTopics returns all topics in creation order.
func (e *Engine) ListTopics(ctx context.Context) ([]Topic, error) {
	topics, err := e.store.ListTopics(ctx)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	return topics, nil
}

// DeleteTopic removes a topic together with its sources and cards.
func (e *Engine) DeleteTopic(ctx context.Context, id string) error {
	if _, err := e.GetTopic(ctx, id); err != nil {
		return err
	}
	if err := e.store.DeleteTopic(ctx, id); err != nil {
		return err
	}
	e.markStale()
	e.logger.Info("topic deleted", "topic", id)
	return nil
}

// --- Sources ---

// AddSource attaches a URL to a topic. The URL is the source id: adding a
// URL that is already known replaces the previous source, even one that
// belonged to another topic.
func (e *Engine) AddSource(ctx context.Context, topicID, rawURL string, kind SourceKind, title, description string) (*Source, error) {
	if _, err := e.GetTopic(ctx, topicID); err != nil {
		return nil, err
	}
	sourceURL, err := validateSourceURL(rawURL)
	if err != nil {
		return nil, err
	}
	kind, err = storage.ParseSourceKind(string(kind))
	if err != nil {
		return nil, err
	}

	src := Source{
		ID:          sourceURL,
		TopicID:     topicID,
		URL:         sourceURL,
		Kind:        kind,
		AddedAt:     e.now(),
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
	}
	if err := e.store.PutSource(ctx, src); err != nil {
		return nil, fmt.Errorf("store source: %w", err)
	}
	e.logger.Debug("source added", "topic", topicID, "source", sourceURL, "kind", kind)
	return &src, nil
}

// AcceptSuggestion adds a suggested source to a topic.
func (e *Engine) AcceptSuggestion(ctx context.Context, topicID string, s Suggestion) (*Source, error) {
	return e.AddSource(ctx, topicID, s.URL, s.Kind, s.Title, s.Description)
}

// ListSources returns the sources of topicID, or every source when topicID
// is empty.
func (e *Engine) ListSources(ctx context.Context, topicID string) ([]Source, error) {
	all, err := e.store.ListSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	if topicID == "" {
		return all, nil
	}
	sources := []Source{}
	for _, s := range all {
		if s.TopicID == topicID {
			sources = append(sources, s)
		}
	}
	return sources, nil
}

// ImportOPML adds every feed in the OPML file at path as an rss source of
// topicID and returns how many were added.
func (e *Engine) ImportOPML(ctx context.Context, path, topicID string) (int, error) {
	if _, err := e.GetTopic(ctx, topicID); err != nil {
		return 0, err
	}
	list, err := feeds.ReadOPML(path)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, f := range list {
		if _, err := e.AddSource(ctx, topicID, f.XMLURL, storage.SourceRSS, f.Title, ""); err != nil {
			e.logger.Warn("skipping OPML feed", "topic", topicID, "source", f.XMLURL, "error", err)
			continue
		}
		added++
	}
	e.logger.Info("OPML imported", "topic", topicID, "path", path, "added", added, "found", len(list))
	return added, nil
}

// ExportOPML writes the rss sources of topicID as an OPML document.
func (e *Engine) ExportOPML(ctx context.Context, w io.Writer, topicID string) error {
	topic, err := e.GetTopic(ctx, topicID)
	if err != nil {
		return err
	}
	sources, err := e.ListSources(ctx, topicID)
	if err != nil {
		return err
	}
	return feeds.ExportOPML(w, topic.Name, sources)
}

// SuggestSources asks the model for sources matching a topic's keywords and
// sentiments. A refusal is reported in the result.
func (e *Engine) SuggestSources(ctx context.Context, topicID string) (*Suggestions, error) {
	topic, err := e.GetTopic(ctx, topicID)
	if err != nil {
		return nil, err
	}
	return e.analyzer.SuggestSources(ctx, topic.Keywords, topic.Sentiments)
}

// --- Scans ---

// Scan fetches the topic's sources and stores a card for every article not
// seen before. See scan.Scanner.ScanTopic for the error policy.
func (e *Engine) Scan(ctx context.Context, topicID string) (*ScanResult, error) {
	topic, err := e.GetTopic(ctx, topicID)
	if err != nil {
		return nil, err
	}
	sources, err := e.ListSources(ctx, topicID)
	if err != nil {
		return nil, err
	}
	result, err := e.scanner.ScanTopic(ctx, *topic, sources)
	if result != nil && result.CardsCreated > 0 {
		e.markStale()
	}
	return result, err
}

// ScanAll scans every topic in turn. It stops at the first error that ends
// a scan and returns the results gathered so far.
func (e *Engine) ScanAll(ctx context.Context) ([]*ScanResult, error) {
	topics, err := e.ListTopics(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]*ScanResult, 0, len(topics))
	for _, t := range topics {
		result, err := e.Scan(ctx, t.ID)
		if result != nil {
			results = append(results, result)
		}
		if err != nil {
			return results, fmt.Errorf("scan topic %s: %w", t.ID, err)
		}
	}
	return results, nil
}

// --- Dashboard ---

// Dashboard returns the aggregation dashboard over all stored cards. The
// same dashboard is returned across calls; it is reloaded from the store
// when this engine has changed topics or cards, or when the database
// revision moved because another process wrote to it.
func (e *Engine) Dashboard(ctx context.Context) (*analysis.Dashboard, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	rev, err := e.store.Revision(ctx)
	if err != nil {
		return nil, err
	}
	if e.dashboard == nil {
		e.dashboard = analysis.NewDashboard(e.store, analysis.WithClock(e.now))
		e.stale = true
	}
	if e.stale || rev != e.revision {
		if err := e.dashboard.Reload(ctx); err != nil {
			return nil, err
		}
		e.stale = false
		e.revision = rev
		e.logger.Debug("dashboard reloaded", "records", rev.Records)
	}
	return e.dashboard, nil
}

// DefaultPeriod is the timeline window used when the caller names none.
func (e *Engine) DefaultPeriod() analysis.Period {
	return e.period
}

// Close releases the store.
func (e *Engine) Close() error {
	return e.store.Close()
}

func validateSourceURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid source URL %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid source URL %q: want an absolute http(s) URL", raw)
	}
	return u.String(), nil
}

// cleanList trims entries and drops blanks and repeats, keeping first
// occurrences in order.
func cleanList(in []string) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
