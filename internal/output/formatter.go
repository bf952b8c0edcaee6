package output

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/matthewjhunter/veille/internal/ai"
	"github.com/matthewjhunter/veille/internal/analysis"
	"github.com/matthewjhunter/veille/internal/scan"
	"github.com/matthewjhunter/veille/internal/storage"
)

type Format string

const (
	FormatJSON  Format = "json"
	FormatText  Format = "text"
	FormatHuman Format = "human"
)

// ParseFormat validates a --format flag value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatText, FormatHuman:
		return f, nil
	}
	return "", fmt.Errorf("unknown format %q (want json, text or human)", s)
}

type Formatter struct {
	format Format
	out    io.Writer
	err    io.Writer

	heading *color.Color
	dim     *color.Color
	warn    *color.Color
	bad     *color.Color
}

// NewFormatter creates a new output formatter
func NewFormatter(format Format) *Formatter {
	return newFormatter(format, os.Stdout, os.Stderr, false)
}

// NewFormatterWithWriters creates a formatter with custom output writers for testability.
// Colour is always off.
func NewFormatterWithWriters(format Format, out, errW io.Writer) *Formatter {
	return newFormatter(format, out, errW, true)
}

func newFormatter(format Format, out, errW io.Writer, plain bool) *Formatter {
	f := &Formatter{
		format:  format,
		out:     out,
		err:     errW,
		heading: color.New(color.Bold, color.FgCyan),
		dim:     color.New(color.Faint),
		warn:    color.New(color.FgYellow),
		bad:     color.New(color.FgRed),
	}
	if plain {
		for _, c := range []*color.Color{f.heading, f.dim, f.warn, f.bad} {
			c.DisableColor()
		}
	}
	return f
}

func (f *Formatter) encode(v any) error {
	enc := json.NewEncoder(f.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// OutputScanResult outputs the result of a topic scan
func (f *Formatter) OutputScanResult(result *scan.Result) error {
	switch f.format {
	case FormatJSON:
		return f.encode(result)
	case FormatText:
		fmt.Fprintf(f.out, "topic=%s\tsources=%d\tarticles=%d\tcreated=%d\tduplicates=%d\tnot_modified=%d\trefusals=%d\tschema_violations=%d\tanalyzer_errors=%d\tfetch_errors=%d\n",
			result.TopicID, result.Sources, result.Articles, result.CardsCreated, result.Duplicates,
			result.NotModified, result.Refusals, result.SchemaViolations, result.AnalyzerErrors, result.FetchErrors)
		return nil
	case FormatHuman:
		f.heading.Fprintf(f.out, "Scanned %d sources for %s\n", result.Sources, result.TopicID)
		fmt.Fprintf(f.out, "  %d articles, %d new cards, %d already known\n",
			result.Articles, result.CardsCreated, result.Duplicates)
		if result.NotModified > 0 {
			f.dim.Fprintf(f.out, "  %d sources unchanged since last scan\n", result.NotModified)
		}
		for _, w := range result.Warnings {
			f.warn.Fprintf(f.out, "  ! %s\n", w)
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputTopics outputs a list of topics
func (f *Formatter) OutputTopics(topics []storage.Topic) error {
	switch f.format {
	case FormatJSON:
		if topics == nil {
			topics = []storage.Topic{}
		}
		return f.encode(topics)
	case FormatText:
		for _, t := range topics {
			fmt.Fprintf(f.out, "id=%s\tname=%s\tkeywords=%s\tsentiments=%s\n",
				t.ID, t.Name, strings.Join(t.Keywords, ","), strings.Join(t.Sentiments, ","))
		}
		return nil
	case FormatHuman:
		if len(topics) == 0 {
			fmt.Fprintln(f.out, "No topics")
			return nil
		}
		for _, t := range topics {
			f.heading.Fprintln(f.out, t.Name)
			f.dim.Fprintf(f.out, "  id: %s\n", t.ID)
			if len(t.Keywords) > 0 {
				fmt.Fprintf(f.out, "  keywords: %s\n", strings.Join(t.Keywords, ", "))
			}
			if len(t.Sentiments) > 0 {
				fmt.Fprintf(f.out, "  sentiments: %s\n", strings.Join(t.Sentiments, ", "))
			}
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputSources outputs a list of sources
func (f *Formatter) OutputSources(sources []storage.Source) error {
	switch f.format {
	case FormatJSON:
		if sources == nil {
			sources = []storage.Source{}
		}
		return f.encode(sources)
	case FormatText:
		for _, s := range sources {
			fmt.Fprintf(f.out, "topic=%s\tkind=%s\turl=%s\ttitle=%s\n", s.TopicID, s.Kind, s.URL, s.Title)
		}
		return nil
	case FormatHuman:
		if len(sources) == 0 {
			fmt.Fprintln(f.out, "No sources")
			return nil
		}
		for _, s := range sources {
			title := s.Title
			if title == "" {
				title = s.URL
			}
			fmt.Fprintf(f.out, "[%s] %s\n", s.Kind, title)
			if title != s.URL {
				f.dim.Fprintf(f.out, "      %s\n", s.URL)
			}
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputSuggestions outputs suggested sources or the model's refusal
func (f *Formatter) OutputSuggestions(s *ai.Suggestions) error {
	switch f.format {
	case FormatJSON:
		return f.encode(s)
	case FormatText:
		if s.Refusal != "" {
			fmt.Fprintf(f.out, "refusal=%s\n", s.Refusal)
		}
		for _, sg := range s.Suggestions {
			fmt.Fprintf(f.out, "kind=%s\turl=%s\ttitle=%s\n", sg.Kind, sg.URL, sg.Title)
		}
		return nil
	case FormatHuman:
		if s.Refusal != "" {
			f.warn.Fprintf(f.out, "The model declined to suggest sources: %s\n", s.Refusal)
			return nil
		}
		if len(s.Suggestions) == 0 {
			fmt.Fprintln(f.out, "No suggestions")
			return nil
		}
		for i, sg := range s.Suggestions {
			f.heading.Fprintf(f.out, "%d. %s", i+1, sg.Title)
			fmt.Fprintf(f.out, " [%s]\n", sg.Kind)
			fmt.Fprintf(f.out, "   %s\n", sg.URL)
			if sg.Description != "" {
				f.dim.Fprintf(f.out, "   %s\n", truncate(sg.Description, 200))
			}
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// cardGroup is the JSON shape of one topic's cards.
type cardGroup struct {
	TopicID string         `json:"topic_id"`
	Label   string         `json:"label"`
	Cards   []storage.Card `json:"cards"`
}

// OutputCards outputs cards grouped by topic, labelled with topic names
func (f *Formatter) OutputCards(groups analysis.Groups, topics []storage.Topic) error {
	switch f.format {
	case FormatJSON:
		out := make([]cardGroup, 0, len(groups))
		for _, g := range groups {
			out = append(out, cardGroup{TopicID: g.TopicID, Label: g.Label(topics), Cards: g.Cards})
		}
		return f.encode(out)
	case FormatText:
		for _, g := range groups {
			for _, c := range g.Cards {
				fmt.Fprintf(f.out, "topic=%s\tcreated=%s\tsentiment=%s\tentities=%s\ttitle=%s\turl=%s\n",
					c.TopicID, c.CreatedAt.Format(time.RFC3339), c.Sentiment,
					strings.Join(c.Entities, ","), c.Title, c.URL)
			}
		}
		return nil
	case FormatHuman:
		if len(groups) == 0 {
			fmt.Fprintln(f.out, "No cards")
			return nil
		}
		for _, g := range groups {
			f.heading.Fprintf(f.out, "%s (%d cards)\n", g.Label(topics), len(g.Cards))
			fmt.Fprintln(f.out, strings.Repeat("=", 70))
			for _, c := range g.Cards {
				fmt.Fprintf(f.out, "  • %s ", c.Title)
				f.sentiment(c.Sentiment)
				fmt.Fprintln(f.out)
				f.dim.Fprintf(f.out, "    %s  %s\n", c.CreatedAt.Local().Format("2006-01-02 15:04"), c.URL)
				if c.Summary != "" {
					fmt.Fprintf(f.out, "    %s\n", truncate(c.Summary, 300))
				}
				if len(c.Entities) > 0 {
					f.dim.Fprintf(f.out, "    entities: %s\n", strings.Join(c.Entities, ", "))
				}
			}
			fmt.Fprintln(f.out)
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

func (f *Formatter) sentiment(s string) {
	if s == "" {
		return
	}
	if s == ai.OtherSentiment {
		f.dim.Fprintf(f.out, "[%s]", s)
		return
	}
	f.warn.Fprintf(f.out, "[%s]", s)
}

// OutputStats outputs card statistics with the top entities
func (f *Formatter) OutputStats(stats analysis.Stats, topEntities int) error {
	top := stats.TopEntities(topEntities)
	switch f.format {
	case FormatJSON:
		return f.encode(struct {
			analysis.Stats
			TopEntities []analysis.EntityCount `json:"top_entities"`
		}{stats, top})
	case FormatText:
		fmt.Fprintf(f.out, "total=%d\n", stats.Total)
		for _, s := range sortedKeys(stats.BySentiment) {
			fmt.Fprintf(f.out, "sentiment=%s\tcount=%d\n", s, stats.BySentiment[s])
		}
		for _, e := range top {
			fmt.Fprintf(f.out, "entity=%s\tcount=%d\n", e.Entity, e.Count)
		}
		for _, d := range stats.ByDay {
			fmt.Fprintf(f.out, "day=%s\tcount=%d\n", d.Day, d.Count)
		}
		return nil
	case FormatHuman:
		f.heading.Fprintf(f.out, "%d cards\n", stats.Total)
		if len(stats.BySentiment) > 0 {
			fmt.Fprintln(f.out, "\nBy sentiment:")
			for _, s := range sortedKeys(stats.BySentiment) {
				fmt.Fprintf(f.out, "  %-20s %5d\n", s, stats.BySentiment[s])
			}
		}
		if len(top) > 0 {
			fmt.Fprintln(f.out, "\nTop entities:")
			for _, e := range top {
				fmt.Fprintf(f.out, "  %-20s %5d\n", e.Entity, e.Count)
			}
		}
		if len(stats.ByDay) > 0 {
			fmt.Fprintln(f.out, "\nBy day:")
			for _, d := range stats.ByDay {
				fmt.Fprintf(f.out, "  %s %5d\n", d.Day, d.Count)
			}
		}
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// OutputTimeline outputs a per-day, per-sentiment table. The text format is
// the CSV export.
func (f *Formatter) OutputTimeline(tl analysis.Timeline) error {
	switch f.format {
	case FormatJSON:
		return f.encode(tl)
	case FormatText:
		return analysis.WriteCSV(f.out, tl)
	case FormatHuman:
		if len(tl.Sentiments) == 0 {
			fmt.Fprintln(f.out, "No sentiments to chart")
			return nil
		}
		widths := make([]int, len(tl.Sentiments))
		f.heading.Fprintf(f.out, "%-10s", "Date")
		for i, s := range tl.Sentiments {
			widths[i] = max(len([]rune(s)), 3)
			f.heading.Fprintf(f.out, "  %*s", widths[i], s)
		}
		fmt.Fprintln(f.out)
		for _, day := range tl.Days {
			fmt.Fprintf(f.out, "%-10s", day)
			for i, s := range tl.Sentiments {
				n := tl.Count(day, s)
				if n == 0 {
					f.dim.Fprintf(f.out, "  %*d", widths[i], n)
				} else {
					fmt.Fprintf(f.out, "  %*d", widths[i], n)
				}
			}
			fmt.Fprintln(f.out)
		}
		f.dim.Fprintf(f.out, "%d cards over %d days\n", tl.Total(), len(tl.Days))
		return nil
	}
	return fmt.Errorf("unknown format: %s", f.format)
}

// Error outputs an error message to stderr
func (f *Formatter) Error(format string, args ...any) {
	f.bad.Fprintf(f.err, format+"\n", args...)
}

// Warning outputs a warning message to stderr
func (f *Formatter) Warning(format string, args ...any) {
	f.warn.Fprintf(f.err, "Warning: "+format+"\n", args...)
}

// truncate shortens s to maxLen runes
func truncate(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}

func sortedKeys(m map[string]int) []string {
	return slices.Sorted(maps.Keys(m))
}
