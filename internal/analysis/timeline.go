package analysis

import (
	"time"

	"github.com/matthewjhunter/veille/internal/storage"
)

// DefaultPeriodDays is the trailing window used when no period is chosen.
const DefaultPeriodDays = 30

// Period selects the days a timeline covers: either a trailing window of
// Days ending today, or an explicit inclusive [From, To] range. The range
// wins when both of its ends are set.
type Period struct {
	Days int       `json:"days,omitempty"`
	From time.Time `json:"from,omitzero"`
	To   time.Time `json:"to,omitzero"`
}

// LastDays is a trailing window of n days ending today.
func LastDays(n int) Period {
	return Period{Days: n}
}

// Between is the inclusive range of days from..to.
func Between(from, to time.Time) Period {
	return Period{From: from, To: to}
}

// IsCustom reports whether the period is an explicit date range.
func (p Period) IsCustom() bool {
	return !p.From.IsZero() && !p.To.IsZero()
}

// Bounds resolves the period to local midnights relative to now.
func (p Period) Bounds(now time.Time) (from, to time.Time) {
	if p.IsCustom() {
		return startOfDay(p.From), startOfDay(p.To)
	}
	days := p.Days
	if days <= 0 {
		days = DefaultPeriodDays
	}
	to = startOfDay(now)
	return to.AddDate(0, 0, -(days - 1)), to
}

func startOfDay(t time.Time) time.Time {
	t = t.Local()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}

// Timeline is a day × sentiment count matrix: Series[s][i] is the number of
// cards created on Days[i] with sentiment s.
type Timeline struct {
	Days       []string         `json:"days"`
	Sentiments []string         `json:"sentiments"`
	Series     map[string][]int `json:"series"`
}

// Count returns the value at (day, sentiment), or 0 outside the matrix.
func (t Timeline) Count(day, sentiment string) int {
	series, ok := t.Series[sentiment]
	if !ok {
		return 0
	}
	for i, d := range t.Days {
		if d == day {
			return series[i]
		}
	}
	return 0
}

// Total sums every cell.
func (t Timeline) Total() int {
	n := 0
	for _, series := range t.Series {
		for _, v := range series {
			n += v
		}
	}
	return n
}

// Cell returns the cards behind one point of the chart: those in cards
// created on day with the given sentiment. It is empty when day or sentiment
// is not part of the timeline.
func (t Timeline) Cell(cards []storage.Card, day, sentiment string) []storage.Card {
	if _, ok := t.Series[sentiment]; !ok {
		return nil
	}
	inRange := false
	for _, d := range t.Days {
		if d == day {
			inRange = true
			break
		}
	}
	if !inRange {
		return nil
	}
	var out []storage.Card
	for _, c := range cards {
		if c.Valid() && c.Sentiment == sentiment && dayKey(c.CreatedAt) == day {
			out = append(out, c)
		}
	}
	return out
}

// Clone returns a deep copy.
func (t Timeline) Clone() Timeline {
	out := Timeline{
		Days:       append([]string(nil), t.Days...),
		Sentiments: append([]string(nil), t.Sentiments...),
		Series:     make(map[string][]int, len(t.Series)),
	}
	for s, v := range t.Series {
		out.Series[s] = append([]int(nil), v...)
	}
	return out
}

// BuildTimeline buckets cards by local day over period, with one series per
// sentiment in universe. See BuildTimelineAt.
func BuildTimeline(cards []storage.Card, period Period, universe []string) Timeline {
	return BuildTimelineAt(cards, period, universe, time.Now())
}

// BuildTimelineAt is BuildTimeline with "today" given explicitly.
//
// Every day of the period appears, including days without cards. Cards
// whose sentiment is not in universe, or whose day falls outside the period,
// are not counted. An inverted custom range yields no days.
func BuildTimelineAt(cards []storage.Card, period Period, universe []string, now time.Time) Timeline {
	from, to := period.Bounds(now)

	tl := Timeline{
		Days:       []string{},
		Sentiments: []string{},
		Series:     make(map[string][]int, len(universe)),
	}
	index := make(map[string]int)
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		key := d.Format(DayLayout)
		index[key] = len(tl.Days)
		tl.Days = append(tl.Days, key)
	}

	for _, s := range universe {
		if _, dup := tl.Series[s]; dup {
			continue
		}
		tl.Sentiments = append(tl.Sentiments, s)
		tl.Series[s] = make([]int, len(tl.Days))
	}

	for _, c := range cards {
		if !c.Valid() {
			continue
		}
		series, ok := tl.Series[c.Sentiment]
		if !ok {
			continue
		}
		if i, ok := index[dayKey(c.CreatedAt)]; ok {
			series[i]++
		}
	}
	return tl
}
