// Package analysis turns the stored card collection into what the dashboard
// shows: filtered card lists, per-topic groups, frequency statistics and a
// day-bucketed sentiment timeline. Everything here is pure and synchronous
// over cards already loaded in memory; nothing mutates a card.
package analysis

import (
	"strings"
	"time"

	"github.com/matthewjhunter/veille/internal/storage"
)

// Filter is the dashboard's current selection. Empty or zero fields place no
// constraint. Sentiments and Entities are OR'ed within themselves; all
// fields are AND'ed together.
type Filter struct {
	TopicID    string    `json:"topic_id,omitempty"`
	Sentiments []string  `json:"sentiments,omitempty"`
	Entities   []string  `json:"entities,omitempty"`
	DateFrom   time.Time `json:"date_from,omitzero"`
	DateTo     time.Time `json:"date_to,omitzero"`
	Search     string    `json:"search,omitempty"`
}

// IsZero reports whether the filter places no constraint at all.
func (f Filter) IsZero() bool {
	return f.TopicID == "" && len(f.Sentiments) == 0 && len(f.Entities) == 0 &&
		f.DateFrom.IsZero() && f.DateTo.IsZero() && f.Search == ""
}

// matcher is a Filter with its sets and search term prepared once.
type matcher struct {
	f          Filter
	sentiments map[string]struct{}
	entities   map[string]struct{}
	search     string
}

func newMatcher(f Filter) matcher {
	return matcher{
		f:          f,
		sentiments: toSet(f.Sentiments),
		entities:   toSet(f.Entities),
		search:     strings.ToLower(f.Search),
	}
}

func (m matcher) match(c storage.Card) bool {
	if !c.Valid() {
		return false
	}
	if m.f.TopicID != "" && c.TopicID != m.f.TopicID {
		return false
	}
	if len(m.sentiments) > 0 {
		if _, ok := m.sentiments[c.Sentiment]; !ok {
			return false
		}
	}
	if len(m.entities) > 0 && !anyIn(c.Entities, m.entities) {
		return false
	}
	if !m.f.DateFrom.IsZero() && c.CreatedAt.Before(m.f.DateFrom) {
		return false
	}
	if !m.f.DateTo.IsZero() && c.CreatedAt.After(m.f.DateTo) {
		return false
	}
	if m.search != "" &&
		!strings.Contains(strings.ToLower(c.Title), m.search) &&
		!strings.Contains(strings.ToLower(c.Summary), m.search) {
		return false
	}
	return true
}

// Match reports whether a single card passes the filter.
func (f Filter) Match(c storage.Card) bool {
	return newMatcher(f).match(c)
}

// FilterCards returns the cards that satisfy every constraint of f, in the
// order they appear in cards. Cards missing their id, topic or creation time
// are treated as absent.
func FilterCards(cards []storage.Card, f Filter) []storage.Card {
	m := newMatcher(f)
	out := make([]storage.Card, 0, len(cards))
	for _, c := range cards {
		if m.match(c) {
			out = append(out, c)
		}
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func anyIn(values []string, set map[string]struct{}) bool {
	for _, v := range values {
		if _, ok := set[v]; ok {
			return true
		}
	}
	return false
}
