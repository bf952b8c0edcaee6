package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a record with the requested id does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrMalformedRecord marks a stored document that fails the minimal shape check.
	// List operations skip such records instead of returning this error.
	ErrMalformedRecord = errors.New("malformed record")
)

// Kind names one of the three record collections.
type Kind string

const (
	KindTopics  Kind = "topics"
	KindSources Kind = "sources"
	KindCards   Kind = "cards"
)

// Valid reports whether k is one of the known collections.
func (k Kind) Valid() bool {
	switch k {
	case KindTopics, KindSources, KindCards:
		return true
	}
	return false
}

// SourceKind classifies how a source is fetched.
type SourceKind string

const (
	SourceRSS    SourceKind = "rss"
	SourceWeb    SourceKind = "web"
	SourceBlog   SourceKind = "blog"
	SourceForum  SourceKind = "forum"
	SourceManual SourceKind = "manual"
)

// ParseSourceKind maps a user-supplied string onto a SourceKind.
func ParseSourceKind(s string) (SourceKind, error) {
	k := SourceKind(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case SourceRSS, SourceWeb, SourceBlog, SourceForum, SourceManual:
		return k, nil
	}
	return "", fmt.Errorf("unknown source kind %q", s)
}

// Topic is a monitoring subject ("veille").
type Topic struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Keywords   []string  `json:"keywords"`
	Sentiments []string  `json:"sentiments"`
	CreatedAt  time.Time `json:"created_at"`
}

// Source is a URL scanned for new content on behalf of a topic.
// The URL doubles as the id, so adding the same URL twice overwrites.
type Source struct {
	ID          string     `json:"id"`
	TopicID     string     `json:"topic_id"`
	URL         string     `json:"url"`
	Kind        SourceKind `json:"kind"`
	AddedAt     time.Time  `json:"added_at"`
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
}

// Card is one analysis result for one article under one topic.
type Card struct {
	ID        string         `json:"id"`
	TopicID   string         `json:"topic_id"`
	SourceID  string         `json:"source_id"`
	Title     string         `json:"title"`
	URL       string         `json:"url"`
	Summary   string         `json:"summary"`
	Entities  []string       `json:"entities"`
	Sentiment string         `json:"sentiment"`
	Metrics   map[string]any `json:"metrics,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// CardID builds the composite card key. The same article under the same
// topic always maps to the same id, which makes re-scans idempotent.
func CardID(topicID, articleURL string) string {
	return topicID + ":" + articleURL
}

// Valid reports whether the card carries the fields aggregation relies on.
func (c Card) Valid() bool {
	return c.ID != "" && c.TopicID != "" && !c.CreatedAt.IsZero()
}

// rawTopic, rawSource and rawCard mirror the stored documents with pointer
// fields so that missing keys can be told apart from zero values.
type rawTopic struct {
	ID         *string         `json:"id"`
	Name       *string         `json:"name"`
	Keywords   []string        `json:"keywords"`
	Sentiments []string        `json:"sentiments"`
	CreatedAt  json.RawMessage `json:"created_at"`
}

type rawSource struct {
	ID          *string         `json:"id"`
	TopicID     *string         `json:"topic_id"`
	URL         *string         `json:"url"`
	Kind        *string         `json:"kind"`
	AddedAt     json.RawMessage `json:"added_at"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
}

type rawCard struct {
	ID        *string         `json:"id"`
	TopicID   *string         `json:"topic_id"`
	SourceID  string          `json:"source_id"`
	Title     *string         `json:"title"`
	URL       string          `json:"url"`
	Summary   string          `json:"summary"`
	Entities  json.RawMessage `json:"entities"`
	Sentiment string          `json:"sentiment"`
	Metrics   map[string]any  `json:"metrics"`
	CreatedAt json.RawMessage `json:"created_at"`
}

func malformed(kind Kind, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrMalformedRecord, kind, fmt.Sprintf(format, args...))
}

// ParseTopic validates a stored topic document.
func ParseTopic(data []byte) (Topic, error) {
	var raw rawTopic
	if err := json.Unmarshal(data, &raw); err != nil {
		return Topic{}, malformed(KindTopics, "%v", err)
	}
	if raw.ID == nil || *raw.ID == "" {
		return Topic{}, malformed(KindTopics, "missing id")
	}
	if raw.Name == nil {
		return Topic{}, malformed(KindTopics, "%s: missing name", *raw.ID)
	}
	if raw.Keywords == nil || raw.Sentiments == nil {
		return Topic{}, malformed(KindTopics, "%s: missing keywords or sentiments", *raw.ID)
	}
	created, err := parseTimestamp(raw.CreatedAt)
	if err != nil {
		return Topic{}, malformed(KindTopics, "%s: created_at: %v", *raw.ID, err)
	}
	return Topic{
		ID:         *raw.ID,
		Name:       *raw.Name,
		Keywords:   raw.Keywords,
		Sentiments: raw.Sentiments,
		CreatedAt:  created,
	}, nil
}

// ParseSource validates a stored source document.
func ParseSource(data []byte) (Source, error) {
	var raw rawSource
	if err := json.Unmarshal(data, &raw); err != nil {
		return Source{}, malformed(KindSources, "%v", err)
	}
	if raw.ID == nil || *raw.ID == "" {
		return Source{}, malformed(KindSources, "missing id")
	}
	if raw.TopicID == nil || raw.URL == nil || raw.Kind == nil {
		return Source{}, malformed(KindSources, "%s: missing topic_id, url or kind", *raw.ID)
	}
	kind, err := ParseSourceKind(*raw.Kind)
	if err != nil {
		return Source{}, malformed(KindSources, "%s: %v", *raw.ID, err)
	}
	added, err := parseTimestamp(raw.AddedAt)
	if err != nil {
		return Source{}, malformed(KindSources, "%s: added_at: %v", *raw.ID, err)
	}
	return Source{
		ID:          *raw.ID,
		TopicID:     *raw.TopicID,
		URL:         *raw.URL,
		Kind:        kind,
		AddedAt:     added,
		Title:       raw.Title,
		Description: raw.Description,
	}, nil
}

// ParseCard validates a stored card document. Entities must be present as an
// array (possibly empty); a null or missing list makes the card malformed.
func ParseCard(data []byte) (Card, error) {
	var raw rawCard
	if err := json.Unmarshal(data, &raw); err != nil {
		return Card{}, malformed(KindCards, "%v", err)
	}
	if raw.ID == nil || *raw.ID == "" {
		return Card{}, malformed(KindCards, "missing id")
	}
	if raw.TopicID == nil || *raw.TopicID == "" {
		return Card{}, malformed(KindCards, "%s: missing topic_id", *raw.ID)
	}
	if raw.Title == nil {
		return Card{}, malformed(KindCards, "%s: missing title", *raw.ID)
	}
	entities := bytes.TrimSpace(raw.Entities)
	if len(entities) == 0 || entities[0] != '[' {
		return Card{}, malformed(KindCards, "%s: entities is not a list", *raw.ID)
	}
	var list []string
	if err := json.Unmarshal(entities, &list); err != nil {
		return Card{}, malformed(KindCards, "%s: entities: %v", *raw.ID, err)
	}
	created, err := parseTimestamp(raw.CreatedAt)
	if err != nil {
		return Card{}, malformed(KindCards, "%s: created_at: %v", *raw.ID, err)
	}
	return Card{
		ID:        *raw.ID,
		TopicID:   *raw.TopicID,
		SourceID:  raw.SourceID,
		Title:     *raw.Title,
		URL:       raw.URL,
		Summary:   raw.Summary,
		Entities:  list,
		Sentiment: raw.Sentiment,
		Metrics:   raw.Metrics,
		CreatedAt: created,
	}, nil
}

// parseTimestamp accepts an RFC 3339 string or a Unix millisecond number.
// The numeric form is what browser-side exports of the same data contain.
func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, errors.New("missing")
	}
	if raw[0] == '"' {
		var t time.Time
		if err := json.Unmarshal(raw, &t); err != nil {
			return time.Time{}, err
		}
		if t.IsZero() {
			return time.Time{}, errors.New("zero time")
		}
		return t, nil
	}
	var ms json.Number
	if err := json.Unmarshal(raw, &ms); err != nil {
		return time.Time{}, err
	}
	n, err := ms.Int64()
	if err != nil {
		f, ferr := ms.Float64()
		if ferr != nil {
			return time.Time{}, err
		}
		n = int64(f)
	}
	if n <= 0 {
		return time.Time{}, errors.New("non-positive timestamp")
	}
	return time.UnixMilli(n), nil
}
