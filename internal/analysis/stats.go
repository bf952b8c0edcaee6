package analysis

import (
	"cmp"
	"slices"
	"time"

	"github.com/matthewjhunter/veille/internal/storage"
)

// DayLayout is the calendar-day key format used by stats and timelines.
const DayLayout = "2006-01-02"

// DayCount is the number of cards created on one local calendar day.
type DayCount struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

// Stats holds frequency counts over a set of cards.
type Stats struct {
	Total       int            `json:"total"`
	BySentiment map[string]int `json:"by_sentiment"`
	ByEntity    map[string]int `json:"by_entity"`
	ByDay       []DayCount     `json:"by_day"`
}

// EntityCount pairs an entity with its number of mentions.
type EntityCount struct {
	Entity string `json:"entity"`
	Count  int    `json:"count"`
}

// dayKey truncates t to its calendar day in the local time zone.
func dayKey(t time.Time) string {
	return t.Local().Format(DayLayout)
}

// ComputeStats counts cards per sentiment, per entity and per day. A card
// listing several entities counts once for each. ByDay is sorted ascending.
// Cards failing Card.Valid are not counted.
func ComputeStats(cards []storage.Card) Stats {
	stats := Stats{
		BySentiment: make(map[string]int),
		ByEntity:    make(map[string]int),
		ByDay:       []DayCount{},
	}
	byDay := make(map[string]int)
	for _, c := range cards {
		if !c.Valid() {
			continue
		}
		stats.Total++
		stats.BySentiment[c.Sentiment]++
		for _, e := range c.Entities {
			stats.ByEntity[e]++
		}
		byDay[dayKey(c.CreatedAt)]++
	}
	for day, n := range byDay {
		stats.ByDay = append(stats.ByDay, DayCount{Day: day, Count: n})
	}
	slices.SortFunc(stats.ByDay, func(a, b DayCount) int {
		return cmp.Compare(a.Day, b.Day)
	})
	return stats
}

// TopEntities returns the n most mentioned entities, ties broken by name.
// n <= 0 returns all of them.
func (s Stats) TopEntities(n int) []EntityCount {
	out := make([]EntityCount, 0, len(s.ByEntity))
	for e, c := range s.ByEntity {
		out = append(out, EntityCount{Entity: e, Count: c})
	}
	slices.SortFunc(out, func(a, b EntityCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Entity, b.Entity)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
