package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewSQLiteStore(t *testing.T) {
	store := newTestStore(t)
	if store.db == nil {
		t.Fatal("Database connection is nil")
	}
}

func TestPutAndGetTopic(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	topic := Topic{
		ID:         "t1",
		Name:       "Acme watch",
		Keywords:   []string{"acme", "anvil"},
		Sentiments: []string{"positif", "négatif"},
		CreatedAt:  time.Now(),
	}
	if err := store.PutTopic(ctx, topic); err != nil {
		t.Fatalf("PutTopic failed: %v", err)
	}

	got, err := store.GetTopic(ctx, "t1")
	if err != nil {
		t.Fatalf("GetTopic failed: %v", err)
	}
	if got.Name != "Acme watch" {
		t.Errorf("Name = %q, want Acme watch", got.Name)
	}
	if len(got.Sentiments) != 2 || got.Sentiments[1] != "négatif" {
		t.Errorf("Sentiments = %v", got.Sentiments)
	}

	// Full replacement on edit
	topic.Name = "Acme & Globex"
	topic.Keywords = []string{"acme"}
	if err := store.PutTopic(ctx, topic); err != nil {
		t.Fatalf("PutTopic (replace) failed: %v", err)
	}
	topics, err := store.ListTopics(ctx)
	if err != nil {
		t.Fatalf("ListTopics failed: %v", err)
	}
	if len(topics) != 1 {
		t.Fatalf("Expected 1 topic after replace, got %d", len(topics))
	}
	if topics[0].Name != "Acme & Globex" || len(topics[0].Keywords) != 1 {
		t.Errorf("replacement not applied: %+v", topics[0])
	}
}

func TestGetMissingRecord(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetTopic(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSourceURLIsKey(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	url := "https://example.com/feed.xml"
	first := Source{ID: url, TopicID: "t1", URL: url, Kind: SourceRSS, AddedAt: time.Now(), Title: "first"}
	second := Source{ID: url, TopicID: "t2", URL: url, Kind: SourceRSS, AddedAt: time.Now(), Title: "second"}

	if err := store.PutSource(ctx, first); err != nil {
		t.Fatalf("PutSource failed: %v", err)
	}
	if err := store.PutSource(ctx, second); err != nil {
		t.Fatalf("PutSource failed: %v", err)
	}

	sources, err := store.ListSources(ctx)
	if err != nil {
		t.Fatalf("ListSources failed: %v", err)
	}
	if len(sources) != 1 {
		t.Fatalf("Expected 1 source (same URL overwrites), got %d", len(sources))
	}
	if sources[0].TopicID != "t2" || sources[0].Title != "second" {
		t.Errorf("expected the second write to win, got %+v", sources[0])
	}
}

func TestCardsInsertionOrderAndHasCard(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	now := time.Now()
	for _, url := range []string{"https://a/3", "https://a/1", "https://a/2"} {
		card := Card{
			ID:        CardID("t1", url),
			TopicID:   "t1",
			Title:     url,
			URL:       url,
			Sentiment: "positif",
			CreatedAt: now,
		}
		if err := store.PutCard(ctx, card); err != nil {
			t.Fatalf("PutCard failed: %v", err)
		}
	}

	cards, err := store.ListCards(ctx)
	if err != nil {
		t.Fatalf("ListCards failed: %v", err)
	}
	want := []string{"https://a/3", "https://a/1", "https://a/2"}
	if len(cards) != len(want) {
		t.Fatalf("Expected %d cards, got %d", len(want), len(cards))
	}
	for i, c := range cards {
		if c.URL != want[i] {
			t.Errorf("cards[%d].URL = %s, want %s", i, c.URL, want[i])
		}
		if c.Entities == nil {
			t.Errorf("cards[%d].Entities should be an empty list, not nil", i)
		}
	}

	ok, err := store.HasCard(ctx, "t1:https://a/1")
	if err != nil || !ok {
		t.Errorf("HasCard existing = %v, %v", ok, err)
	}
	ok, err = store.HasCard(ctx, "t2:https://a/1")
	if err != nil || ok {
		t.Errorf("HasCard other topic = %v, %v", ok, err)
	}
}

func TestListSkipsMalformedRecords(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	good := Card{ID: "t1:u", TopicID: "t1", Title: "ok", CreatedAt: time.Now(), Entities: []string{"Acme"}}
	if err := store.PutCard(ctx, good); err != nil {
		t.Fatalf("PutCard failed: %v", err)
	}
	bad := []Record{
		{Kind: KindCards, ID: "bad-json", Data: []byte(`{not json`)},
		{Kind: KindCards, ID: "no-entities", Data: []byte(`{"id":"no-entities","topic_id":"t1","title":"x","created_at":"2024-01-01T00:00:00Z"}`)},
		{Kind: KindCards, ID: "no-date", Data: []byte(`{"id":"no-date","topic_id":"t1","title":"x","entities":[]}`)},
	}
	for _, rec := range bad {
		if err := store.Put(ctx, rec); err != nil {
			t.Fatalf("Put raw failed: %v", err)
		}
	}

	cards, err := store.ListCards(ctx)
	if err != nil {
		t.Fatalf("ListCards failed: %v", err)
	}
	if len(cards) != 1 || cards[0].ID != "t1:u" {
		t.Fatalf("expected only the well-formed card, got %+v", cards)
	}

	if _, err := store.GetCard(ctx, "no-entities"); !errors.Is(err, ErrMalformedRecord) {
		t.Errorf("GetCard malformed: expected ErrMalformedRecord, got %v", err)
	}
}

func TestDeleteTopicCascades(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	now := time.Now()

	for _, id := range []string{"t1", "t2"} {
		if err := store.PutTopic(ctx, Topic{ID: id, Name: id, CreatedAt: now}); err != nil {
			t.Fatalf("PutTopic failed: %v", err)
		}
		url := "https://example.com/" + id
		if err := store.PutSource(ctx, Source{ID: url, TopicID: id, URL: url, Kind: SourceWeb, AddedAt: now}); err != nil {
			t.Fatalf("PutSource failed: %v", err)
		}
		if err := store.PutCard(ctx, Card{ID: CardID(id, url), TopicID: id, Title: "x", CreatedAt: now}); err != nil {
			t.Fatalf("PutCard failed: %v", err)
		}
	}

	if err := store.DeleteTopic(ctx, "t1"); err != nil {
		t.Fatalf("DeleteTopic failed: %v", err)
	}

	topics, _ := store.ListTopics(ctx)
	sources, _ := store.ListSources(ctx)
	cards, _ := store.ListCards(ctx)
	if len(topics) != 1 || topics[0].ID != "t2" {
		t.Errorf("topics after delete: %+v", topics)
	}
	if len(sources) != 1 || sources[0].TopicID != "t2" {
		t.Errorf("sources after delete: %+v", sources)
	}
	if len(cards) != 1 || cards[0].TopicID != "t2" {
		t.Errorf("cards after delete: %+v", cards)
	}
}

func TestUnknownKind(t *testing.T) {
	store := newTestStore(t)
	if _, err := store.GetAll(context.Background(), Kind("users")); err == nil {
		t.Fatal("expected error for unknown kind")
	}
}

func TestRevisionSeesOtherConnections(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")
	reader, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer reader.Close()
	writer, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer writer.Close()

	before, err := reader.Revision(ctx)
	if err != nil {
		t.Fatalf("Revision failed: %v", err)
	}
	again, err := reader.Revision(ctx)
	if err != nil {
		t.Fatalf("Revision failed: %v", err)
	}
	if again != before {
		t.Errorf("revision moved without writes: %+v -> %+v", before, again)
	}

	topic := Topic{ID: "t1", Name: "Acme", CreatedAt: time.Now()}
	if err := writer.PutTopic(ctx, topic); err != nil {
		t.Fatalf("PutTopic failed: %v", err)
	}
	afterInsert, err := reader.Revision(ctx)
	if err != nil {
		t.Fatalf("Revision failed: %v", err)
	}
	if afterInsert == before {
		t.Error("revision did not move after another connection inserted")
	}

	topic.Name = "Acme Corp"
	if err := writer.PutTopic(ctx, topic); err != nil {
		t.Fatalf("PutTopic failed: %v", err)
	}
	afterUpdate, err := reader.Revision(ctx)
	if err != nil {
		t.Fatalf("Revision failed: %v", err)
	}
	if afterUpdate == afterInsert {
		t.Error("revision did not move after another connection updated in place")
	}
}

func TestRevisionSeesOwnDeletes(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	if err := store.PutTopic(ctx, Topic{ID: "t1", Name: "Acme", CreatedAt: time.Now()}); err != nil {
		t.Fatalf("PutTopic failed: %v", err)
	}
	before, err := store.Revision(ctx)
	if err != nil {
		t.Fatalf("Revision failed: %v", err)
	}
	if err := store.DeleteTopic(ctx, "t1"); err != nil {
		t.Fatalf("DeleteTopic failed: %v", err)
	}
	after, err := store.Revision(ctx)
	if err != nil {
		t.Fatalf("Revision failed: %v", err)
	}
	if after == before {
		t.Error("revision did not move after delete")
	}
}
