package veille

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/matthewjhunter/veille/internal/ai"
	"github.com/matthewjhunter/veille/internal/analysis"
	"github.com/matthewjhunter/veille/internal/scan"
	"github.com/matthewjhunter/veille/internal/storage"
)

// EngineConfig configures the veille engine.
type EngineConfig struct {
	Config     *storage.Config       // nil means storage.DefaultConfig()
	Logger     *slog.Logger          // nil means slog.Default()
	Registerer prometheus.Registerer // when set, scan metrics are registered here
}

// Topic is a monitoring subject with its keywords and sentiment categories.
type Topic = storage.Topic

// Source is a URL scanned on behalf of a topic.
type Source = storage.Source

// SourceKind classifies how a source is fetched.
type SourceKind = storage.SourceKind

// Card is the analysis of one article for one topic.
type Card = storage.Card

// ScanResult summarizes one topic scan.
type ScanResult = scan.Result

// Suggestion is a source proposed by the model.
type Suggestion = ai.Suggestion

// Suggestions is the suggester's reply, possibly a refusal.
type Suggestions = ai.Suggestions

// Filter selects cards on the dashboard.
type Filter = analysis.Filter
