package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/matthewjhunter/veille/internal/storage"
)

// Loader is the part of the store a dashboard reads from.
type Loader interface {
	ListCards(ctx context.Context) ([]storage.Card, error)
	ListTopics(ctx context.Context) ([]storage.Topic, error)
}

// View is everything derived from one filter apart from the timeline.
type View struct {
	Cards  []storage.Card `json:"cards"`
	Groups Groups         `json:"groups"`
	Stats  Stats          `json:"stats"`
}

// Dashboard holds one materialized copy of the card collection and answers
// filter queries against it. Reload re-reads the store and drops the cached
// timeline.
type Dashboard struct {
	loader Loader
	cache  *TimelineCache
	now    func() time.Time

	mu         sync.RWMutex
	cards      []storage.Card
	topics     []storage.Topic
	sentiments []string
	entities   []string
}

// DashboardOption configures a Dashboard.
type DashboardOption func(*Dashboard)

// WithClock overrides the source of "today" for trailing periods.
func WithClock(now func() time.Time) DashboardOption {
	return func(d *Dashboard) { d.now = now }
}

// NewDashboard returns an empty dashboard; call Reload to populate it.
func NewDashboard(loader Loader, opts ...DashboardOption) *Dashboard {
	d := &Dashboard{
		loader: loader,
		cache:  NewTimelineCache(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Reload replaces the in-memory cards and topics with the store's current
// contents and recomputes the sentiment and entity universes.
func (d *Dashboard) Reload(ctx context.Context) error {
	cards, err := d.loader.ListCards(ctx)
	if err != nil {
		return fmt.Errorf("load cards: %w", err)
	}
	topics, err := d.loader.ListTopics(ctx)
	if err != nil {
		return fmt.Errorf("load topics: %w", err)
	}

	valid := make([]storage.Card, 0, len(cards))
	for _, c := range cards {
		if c.Valid() {
			valid = append(valid, c)
		}
	}

	d.mu.Lock()
	d.cards = valid
	d.topics = topics
	d.sentiments = SentimentUniverse(valid)
	d.entities = EntityUniverse(valid)
	d.cache.Invalidate()
	d.mu.Unlock()
	return nil
}

// Cards returns the loaded cards.
func (d *Dashboard) Cards() []storage.Card {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cards
}

// Topics returns the loaded topics.
func (d *Dashboard) Topics() []storage.Topic {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.topics
}

// Sentiments lists every sentiment present in the loaded cards.
func (d *Dashboard) Sentiments() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.sentiments
}

// Entities lists every entity present in the loaded cards.
func (d *Dashboard) Entities() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.entities
}

// TopicLabel names a group for display.
func (d *Dashboard) TopicLabel(topicID string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return Group{TopicID: topicID}.Label(d.topics)
}

// View filters the loaded cards and derives groups and stats from the result.
func (d *Dashboard) View(f Filter) View {
	d.mu.RLock()
	cards := d.cards
	d.mu.RUnlock()

	filtered := FilterCards(cards, f)
	return View{
		Cards:  filtered,
		Groups: GroupByTopic(filtered),
		Stats:  ComputeStats(filtered),
	}
}

// Timeline returns the sentiment timeline for f over period, from the cache
// when the same filter and bounds were requested last.
func (d *Dashboard) Timeline(f Filter, period Period) Timeline {
	from, to := period.Bounds(d.now())
	key := TimelineKey(f, from, to)

	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cache.GetOrBuild(key, func() Timeline {
		var universe []string
		if len(f.Sentiments) > 0 {
			universe = TimelineUniverse(f, nil)
		} else {
			universe = d.sentiments
		}
		return BuildTimelineAt(FilterCards(d.cards, f), Between(from, to), universe, d.now())
	})
}

// Cell returns the cards behind one point of the timeline for f and period.
func (d *Dashboard) Cell(f Filter, period Period, day, sentiment string) []storage.Card {
	tl := d.Timeline(f, period)
	d.mu.RLock()
	defer d.mu.RUnlock()
	return tl.Cell(FilterCards(d.cards, f), day, sentiment)
}

// CacheStats reports timeline cache hits and misses.
func (d *Dashboard) CacheStats() (hits, misses uint64) {
	return d.cache.Stats()
}
