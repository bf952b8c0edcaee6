// Package scan walks a topic's sources, analyzes articles that have no card
// yet and stores one card per article.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/matthewjhunter/veille/internal/ai"
	"github.com/matthewjhunter/veille/internal/feeds"
	"github.com/matthewjhunter/veille/internal/metrics"
	"github.com/matthewjhunter/veille/internal/storage"
)

// Analyzer turns one article into an analysis for a topic.
type Analyzer interface {
	Analyze(ctx context.Context, topic storage.Topic, article ai.Article) (*ai.Analysis, error)
}

// Fetcher returns the current articles of a source.
type Fetcher interface {
	Fetch(ctx context.Context, src storage.Source) (*feeds.FetchResult, error)
}

// Committer is implemented by fetchers that cache validators for
// conditional requests. The scanner commits a source's validators only when
// none of its articles is left to retry.
type Committer interface {
	Commit(url string, v feeds.Validators)
}

var _ Committer = (*feeds.Fetcher)(nil)

// CardStore is the part of the store a scan writes to.
type CardStore interface {
	HasCard(ctx context.Context, id string) (bool, error)
	PutCard(ctx context.Context, card storage.Card) error
}

// Result summarizes one scan.
type Result struct {
	TopicID          string   `json:"topic_id"`
	Sources          int      `json:"sources"`
	Articles         int      `json:"articles"`
	CardsCreated     int      `json:"cards_created"`
	Duplicates       int      `json:"duplicates"`
	NotModified      int      `json:"not_modified"`
	Refusals         int      `json:"refusals"`
	SchemaViolations int      `json:"schema_violations"`
	AnalyzerErrors   int      `json:"analyzer_errors"`
	FetchErrors      int      `json:"fetch_errors"`
	Warnings         []string `json:"warnings,omitempty"`
}

func (r *Result) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Scanner runs scans sequentially: one source at a time, one article at a
// time. It holds no per-scan state and may be reused.
type Scanner struct {
	analyzer Analyzer
	fetcher  Fetcher
	store    CardStore
	recorder metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Scanner) { s.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scanner) { s.logger = l }
}

// WithClock sets the function used to stamp new cards.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) { s.now = now }
}

// New creates a Scanner.
func New(analyzer Analyzer, fetcher Fetcher, store CardStore, opts ...Option) *Scanner {
	s := &Scanner{
		analyzer: analyzer,
		fetcher:  fetcher,
		store:    store,
		recorder: metrics.NopCollector{},
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ScanTopic fetches every source, skips articles that already have a card
// for topic and stores a card for each newly analyzed article.
//
// A fetch failure skips the source. A refusal, a schema violation or any
// other analyzer failure skips the article; after a schema violation or
// other failure the source's validators are not committed, so the next scan
// fetches it in full and retries the article. A missing credential, a storage
// failure or a cancelled context stops the scan; the partial result is
// returned along with the error.
func (s *Scanner) ScanTopic(ctx context.Context, topic storage.Topic, sources []storage.Source) (*Result, error) {
	result := &Result{TopicID: topic.ID}
	s.recorder.RecordScan(topic.ID)
	log := s.logger.With("topic", topic.ID)

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Sources++

		fetched, err := s.fetcher.Fetch(ctx, src)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			result.FetchErrors++
			result.warn("fetch %s: %v", src.URL, err)
			s.recorder.RecordFetchFailure(src.URL)
			log.Warn("fetch failed", "source", src.URL, "error", err)
			continue
		}
		if fetched.NotModified {
			result.NotModified++
			log.Debug("source not modified", "source", src.URL)
			continue
		}

		retryBefore := result.SchemaViolations + result.AnalyzerErrors
		for _, article := range fetched.Articles {
			if err := s.scanArticle(ctx, log, topic, src, article, result); err != nil {
				return result, err
			}
		}
		// Articles that failed analysis must come back on the next fetch.
		if c, ok := s.fetcher.(Committer); ok && result.SchemaViolations+result.AnalyzerErrors == retryBefore {
			c.Commit(src.URL, fetched.Validators)
		}
	}

	log.Info("scan complete",
		"sources", result.Sources,
		"articles", result.Articles,
		"created", result.CardsCreated,
		"duplicates", result.Duplicates,
		"warnings", len(result.Warnings))
	return result, nil
}

// scanArticle handles one article. It returns an error only when the whole
// scan has to stop.
func (s *Scanner) scanArticle(ctx context.Context, log *slog.Logger, topic storage.Topic, src storage.Source, article feeds.Article, result *Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	result.Articles++

	id := storage.CardID(topic.ID, article.URL)
	exists, err := s.store.HasCard(ctx, id)
	if err != nil {
		return fmt.Errorf("check card %s: %w", id, err)
	}
	if exists {
		result.Duplicates++
		s.recorder.RecordDuplicate(topic.ID)
		return nil
	}

	start := time.Now()
	analysis, err := s.analyzer.Analyze(ctx, topic, ai.Article{
		Title:   article.Title,
		URL:     article.URL,
		Content: article.Content,
	})
	s.recorder.RecordAnalyzerLatency(time.Since(start))
	switch {
	case err == nil:
	case errors.Is(err, ai.ErrMissingCredential):
		s.recorder.RecordAnalyzerFailure(metrics.FailureCredential)
		return err
	case errors.Is(err, ai.ErrRefusal):
		result.Refusals++
		result.warn("analysis of %s refused: %v", article.URL, err)
		s.recorder.RecordAnalyzerFailure(metrics.FailureRefusal)
		log.Warn("analysis refused", "card", id, "error", err)
		return nil
	case errors.Is(err, ai.ErrSchemaViolation):
		result.SchemaViolations++
		result.warn("analysis of %s rejected: %v", article.URL, err)
		s.recorder.RecordAnalyzerFailure(metrics.FailureSchema)
		log.Error("analysis did not match schema", "card", id, "error", err)
		return nil
	default:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		result.AnalyzerErrors++
		result.warn("analysis of %s failed: %v", article.URL, err)
		s.recorder.RecordAnalyzerFailure(metrics.FailureOther)
		log.Error("analysis failed", "card", id, "error", err)
		return nil
	}

	card := storage.Card{
		ID:        id,
		TopicID:   topic.ID,
		SourceID:  src.ID,
		Title:     article.Title,
		URL:       article.URL,
		Summary:   analysis.Summary,
		Entities:  analysis.Entities,
		Sentiment: analysis.Sentiment,
		Metrics:   analysis.MetricsMap(),
		CreatedAt: s.now(),
	}
	if err := s.store.PutCard(ctx, card); err != nil {
		return fmt.Errorf("store card %s: %w", id, err)
	}
	result.CardsCreated++
	s.recorder.RecordCardCreated(topic.ID)
	log.Debug("card created", "card", id, "sentiment", card.Sentiment)
	return nil
}
