package analysis

import "github.com/matthewjhunter/veille/internal/storage"

// SentimentUniverse lists every distinct non-empty sentiment in cards, in
// first-seen order. It walks the whole collection on every call.
func SentimentUniverse(cards []storage.Card) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, c := range cards {
		out = appendNew(out, seen, c.Sentiment)
	}
	return out
}

// EntityUniverse lists every distinct non-empty entity in cards, in
// first-seen order. It walks the whole collection on every call.
func EntityUniverse(cards []storage.Card) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, c := range cards {
		for _, e := range c.Entities {
			out = appendNew(out, seen, e)
		}
	}
	return out
}

// TimelineUniverse picks the timeline's series: the filter's sentiments when
// any are selected, otherwise every sentiment observed in allCards. Pass the
// full collection, not the filtered one, so sentiments filtered out of view
// still get a flat line.
func TimelineUniverse(f Filter, allCards []storage.Card) []string {
	if len(f.Sentiments) == 0 {
		return SentimentUniverse(allCards)
	}
	seen := make(map[string]struct{})
	out := make([]string, 0, len(f.Sentiments))
	for _, s := range f.Sentiments {
		out = appendNew(out, seen, s)
	}
	return out
}

func appendNew(out []string, seen map[string]struct{}, v string) []string {
	if v == "" {
		return out
	}
	if _, ok := seen[v]; ok {
		return out
	}
	seen[v] = struct{}{}
	return append(out, v)
}
