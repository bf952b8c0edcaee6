package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/matthewjhunter/veille/internal/ai"
	"github.com/matthewjhunter/veille/internal/analysis"
	"github.com/matthewjhunter/veille/internal/scan"
	"github.com/matthewjhunter/veille/internal/storage"
)

func TestParseFormat(t *testing.T) {
	for _, in := range []string{"json", "TEXT", " human "} {
		if _, err := ParseFormat(in); err != nil {
			t.Errorf("ParseFormat(%q) failed: %v", in, err)
		}
	}
	if _, err := ParseFormat("yaml"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestOutputScanResult_JSON(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatJSON, &out, &errBuf)

	result := &scan.Result{
		TopicID:      "t1",
		Sources:      2,
		Articles:     5,
		CardsCreated: 3,
		Duplicates:   2,
		Warnings:     []string{"fetch https://x: timeout"},
	}
	if err := f.OutputScanResult(result); err != nil {
		t.Fatalf("OutputScanResult failed: %v", err)
	}

	var decoded scan.Result
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if decoded.CardsCreated != 3 {
		t.Errorf("CardsCreated = %d, want 3", decoded.CardsCreated)
	}
	if len(decoded.Warnings) != 1 {
		t.Errorf("Warnings = %v, want 1 entry", decoded.Warnings)
	}
}

func TestOutputScanResult_Text(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatText, &out, &errBuf)

	if err := f.OutputScanResult(&scan.Result{TopicID: "t1", CardsCreated: 4, Refusals: 1}); err != nil {
		t.Fatalf("OutputScanResult failed: %v", err)
	}
	got := out.String()
	for _, want := range []string{"topic=t1", "created=4", "refusals=1"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %s in output: %s", want, got)
		}
	}
}

func TestOutputScanResult_Human(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	result := &scan.Result{TopicID: "t1", Sources: 1, Articles: 2, CardsCreated: 1, Duplicates: 1, Warnings: []string{"analysis of https://x refused"}}
	if err := f.OutputScanResult(result); err != nil {
		t.Fatalf("OutputScanResult failed: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "Scanned 1 sources for t1") {
		t.Errorf("missing heading: %s", got)
	}
	if !strings.Contains(got, "! analysis of https://x refused") {
		t.Errorf("missing warning: %s", got)
	}
	if strings.Contains(got, "\x1b[") {
		t.Errorf("unexpected ANSI escapes in test output: %q", got)
	}
}

func TestOutputTopics(t *testing.T) {
	topics := []storage.Topic{{ID: "t1", Name: "Acme", Keywords: []string{"acme", "widgets"}, Sentiments: []string{"positif"}}}

	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatText, &out, &errBuf)
	if err := f.OutputTopics(topics); err != nil {
		t.Fatalf("OutputTopics failed: %v", err)
	}
	if got := out.String(); got != "id=t1\tname=Acme\tkeywords=acme,widgets\tsentiments=positif\n" {
		t.Errorf("unexpected text output: %q", got)
	}

	out.Reset()
	f = NewFormatterWithWriters(FormatJSON, &out, &errBuf)
	if err := f.OutputTopics(nil); err != nil {
		t.Fatalf("OutputTopics failed: %v", err)
	}
	if strings.TrimSpace(out.String()) != "[]" {
		t.Errorf("expected empty JSON array, got %q", out.String())
	}

	out.Reset()
	f = NewFormatterWithWriters(FormatHuman, &out, &errBuf)
	f.OutputTopics(nil)
	if !strings.Contains(out.String(), "No topics") {
		t.Errorf("expected 'No topics', got: %s", out.String())
	}
}

func TestOutputSources_Human(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	sources := []storage.Source{
		{URL: "https://example.com/feed", Kind: storage.SourceRSS, Title: "Example"},
		{URL: "https://example.com/page", Kind: storage.SourceWeb},
	}
	if err := f.OutputSources(sources); err != nil {
		t.Fatalf("OutputSources failed: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "[rss] Example") || !strings.Contains(got, "https://example.com/feed") {
		t.Errorf("missing titled source: %s", got)
	}
	if strings.Count(got, "https://example.com/page") != 1 {
		t.Errorf("untitled source URL should print once: %s", got)
	}
}

func TestOutputSuggestions(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	if err := f.OutputSuggestions(&ai.Suggestions{Refusal: "off-topic"}); err != nil {
		t.Fatalf("OutputSuggestions failed: %v", err)
	}
	if !strings.Contains(out.String(), "declined") {
		t.Errorf("expected refusal message, got: %s", out.String())
	}

	out.Reset()
	s := &ai.Suggestions{Suggestions: []ai.Suggestion{{URL: "https://blog.example.com", Kind: storage.SourceBlog, Title: "Blog"}}}
	f = NewFormatterWithWriters(FormatText, &out, &errBuf)
	f.OutputSuggestions(s)
	if got := out.String(); got != "kind=blog\turl=https://blog.example.com\ttitle=Blog\n" {
		t.Errorf("unexpected text output: %q", got)
	}
}

func sampleGroups() (analysis.Groups, []storage.Topic) {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	cards := []storage.Card{
		{ID: "t1:a", TopicID: "t1", Title: "Acme grows", URL: "https://x/a", Sentiment: "positif", Entities: []string{"Acme"}, Summary: "summary", CreatedAt: created},
		{ID: "gone:b", TopicID: "gone", Title: "Orphan", URL: "https://x/b", Sentiment: "neutre", CreatedAt: created},
	}
	return analysis.GroupByTopic(cards), []storage.Topic{{ID: "t1", Name: "Acme watch"}}
}

func TestOutputCards_JSON(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatJSON, &out, &errBuf)

	groups, topics := sampleGroups()
	if err := f.OutputCards(groups, topics); err != nil {
		t.Fatalf("OutputCards failed: %v", err)
	}

	var decoded []struct {
		TopicID string         `json:"topic_id"`
		Label   string         `json:"label"`
		Cards   []storage.Card `json:"cards"`
	}
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if len(decoded) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(decoded))
	}
	if decoded[0].Label != "Acme watch" {
		t.Errorf("label = %q, want Acme watch", decoded[0].Label)
	}
	if decoded[1].Label != analysis.UnknownTopicLabel {
		t.Errorf("orphan label = %q, want %q", decoded[1].Label, analysis.UnknownTopicLabel)
	}
}

func TestOutputCards_Human(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	groups, topics := sampleGroups()
	if err := f.OutputCards(groups, topics); err != nil {
		t.Fatalf("OutputCards failed: %v", err)
	}
	got := out.String()
	for _, want := range []string{"Acme watch (1 cards)", "Unknown topic (1 cards)", "• Acme grows [positif]", "entities: Acme"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in output:\n%s", want, got)
		}
	}

	out.Reset()
	f.OutputCards(nil, nil)
	if !strings.Contains(out.String(), "No cards") {
		t.Errorf("expected 'No cards', got: %s", out.String())
	}
}

func TestOutputStats(t *testing.T) {
	stats := analysis.Stats{
		Total:       3,
		BySentiment: map[string]int{"positif": 2, "négatif": 1},
		ByEntity:    map[string]int{"Acme": 2, "Globex": 1},
		ByDay:       []analysis.DayCount{{Day: "2024-03-01", Count: 3}},
	}

	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatText, &out, &errBuf)
	if err := f.OutputStats(stats, 1); err != nil {
		t.Fatalf("OutputStats failed: %v", err)
	}
	want := "total=3\nsentiment=négatif\tcount=1\nsentiment=positif\tcount=2\nentity=Acme\tcount=2\nday=2024-03-01\tcount=3\n"
	if got := out.String(); got != want {
		t.Errorf("text output = %q, want %q", got, want)
	}

	out.Reset()
	f = NewFormatterWithWriters(FormatJSON, &out, &errBuf)
	if err := f.OutputStats(stats, 5); err != nil {
		t.Fatalf("OutputStats failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if decoded["total"] != float64(3) {
		t.Errorf("total = %v, want 3", decoded["total"])
	}
	if top, ok := decoded["top_entities"].([]any); !ok || len(top) != 2 {
		t.Errorf("top_entities = %v, want 2 entries", decoded["top_entities"])
	}
}

func TestOutputTimeline(t *testing.T) {
	tl := analysis.Timeline{
		Days:       []string{"2024-03-01", "2024-03-02"},
		Sentiments: []string{"positif", "négatif"},
		Series: map[string][]int{
			"positif": {1, 0},
			"négatif": {0, 2},
		},
	}

	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatText, &out, &errBuf)
	if err := f.OutputTimeline(tl); err != nil {
		t.Fatalf("OutputTimeline failed: %v", err)
	}
	if got := out.String(); got != analysis.ToCSV(tl) {
		t.Errorf("text output should be the CSV export, got %q", got)
	}

	out.Reset()
	f = NewFormatterWithWriters(FormatHuman, &out, &errBuf)
	if err := f.OutputTimeline(tl); err != nil {
		t.Fatalf("OutputTimeline failed: %v", err)
	}
	got := out.String()
	if !strings.Contains(got, "3 cards over 2 days") {
		t.Errorf("missing footer: %s", got)
	}
	lines := strings.Split(got, "\n")
	if !strings.HasPrefix(lines[0], "Date") || !strings.Contains(lines[0], "négatif") {
		t.Errorf("unexpected header line: %q", lines[0])
	}
}

func TestUnknownFormat(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(Format("xml"), &out, &errBuf)
	if err := f.OutputTopics(nil); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestWarning(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	f.Warning("source %s unreachable", "https://x")

	if out.Len() != 0 {
		t.Errorf("Warning wrote to stdout: %q", out.String())
	}
	if got := errBuf.String(); got != "Warning: source https://x unreachable\n" {
		t.Errorf("unexpected warning output: %q", got)
	}
}

func TestError(t *testing.T) {
	var out, errBuf bytes.Buffer
	f := NewFormatterWithWriters(FormatHuman, &out, &errBuf)

	f.Error("scan failed: %v", "boom")

	if got := errBuf.String(); got != "scan failed: boom\n" {
		t.Errorf("unexpected error output: %q", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"  padded  ", 10, "padded"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 7, "this is..."},
		{"éléphant", 3, "élé..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}
