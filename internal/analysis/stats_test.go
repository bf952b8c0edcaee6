package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewjhunter/veille/internal/storage"
)

func TestComputeStats(t *testing.T) {
	cards := sampleCards()
	stats := ComputeStats(cards)

	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, map[string]int{"positif": 2, "négatif": 1, "neutre": 1}, stats.BySentiment)
	assert.Equal(t, map[string]int{"Acme": 2, "Globex": 1, "Initech": 1}, stats.ByEntity)
	assert.Equal(t, []DayCount{
		{Day: "2024-03-01", Count: 2},
		{Day: "2024-03-03", Count: 1},
		{Day: "2024-03-05", Count: 1},
	}, stats.ByDay)
}

func TestComputeStatsTotals(t *testing.T) {
	for _, f := range []Filter{{}, {TopicID: "t1"}, {Entities: []string{"Acme"}}, {Search: "zzz"}} {
		filtered := FilterCards(sampleCards(), f)
		stats := ComputeStats(filtered)

		sum := 0
		for _, n := range stats.BySentiment {
			sum += n
		}
		assert.Equal(t, len(filtered), sum)

		entitySum := 0
		for _, n := range stats.ByEntity {
			entitySum += n
		}
		every := 0
		for _, c := range filtered {
			every += len(c.Entities)
		}
		assert.Equal(t, every, entitySum)
	}
}

func TestComputeStatsSkipsInvalid(t *testing.T) {
	cards := append(sampleCards(),
		storage.Card{ID: "z", TopicID: "t1", Sentiment: "positif", Entities: []string{"Acme"}},
		storage.Card{ID: "", TopicID: "t1", Sentiment: "neutre", CreatedAt: day(2024, 3, 1, 9)},
	)
	stats := ComputeStats(cards)

	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, map[string]int{"positif": 2, "négatif": 1, "neutre": 1}, stats.BySentiment)
	assert.Equal(t, 2, stats.ByEntity["Acme"])
	for _, d := range stats.ByDay {
		assert.NotEqual(t, "0001-01-01", d.Day)
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	stats := ComputeStats(nil)
	assert.Zero(t, stats.Total)
	assert.NotNil(t, stats.BySentiment)
	assert.Empty(t, stats.BySentiment)
	assert.NotNil(t, stats.ByEntity)
	assert.NotNil(t, stats.ByDay)
	assert.Empty(t, stats.ByDay)
}

func TestTopEntities(t *testing.T) {
	stats := Stats{ByEntity: map[string]int{"b": 2, "a": 2, "c": 5, "d": 1}}

	top := stats.TopEntities(3)
	require.Len(t, top, 3)
	assert.Equal(t, []EntityCount{{"c", 5}, {"a", 2}, {"b", 2}}, top)
	assert.Len(t, stats.TopEntities(0), 4)
}

func TestUniverses(t *testing.T) {
	cards := sampleCards()
	cards = append(cards, card("e", "t1", "", day(2024, 3, 6, 1), "Acme"))

	assert.Equal(t, []string{"positif", "négatif", "neutre"}, SentimentUniverse(cards))
	assert.Equal(t, []string{"Acme", "Globex", "Initech"}, EntityUniverse(cards))

	assert.Equal(t, []string{"positif", "négatif", "neutre"}, TimelineUniverse(Filter{}, cards))
	assert.Equal(t, []string{"neutre", "positif"},
		TimelineUniverse(Filter{Sentiments: []string{"neutre", "positif", "neutre"}}, cards))
	assert.Empty(t, SentimentUniverse(nil))
}
