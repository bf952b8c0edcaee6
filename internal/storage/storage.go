package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the Store implementation backed by a single SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ Store = (*SQLiteStore)(nil)

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithLogger sets the logger used to report skipped malformed records.
func WithLogger(l *slog.Logger) Option {
	return func(s *SQLiteStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSQLiteStore opens the database at dbPath and initializes the schema.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath+"?_time_format=sqlite")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// modernc's driver is safe for concurrent use but SQLite serializes
	// writers; a single connection avoids SQLITE_BUSY on the write path.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteStore{db: db, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Revision combines SQLite's data_version, which moves when another
// connection commits, with the record count and highest rowid, which move on
// this connection's own inserts and deletes.
func (s *SQLiteStore) Revision(ctx context.Context) (Revision, error) {
	var rev Revision
	if err := s.db.QueryRowContext(ctx, "PRAGMA data_version").Scan(&rev.DataVersion); err != nil {
		return rev, fmt.Errorf("read data version: %w", err)
	}
	query, args, err := sq.Select("COUNT(*)", "COALESCE(MAX(rowid), 0)").From("records").ToSql()
	if err != nil {
		return rev, fmt.Errorf("build revision query: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&rev.Records, &rev.MaxRowID); err != nil {
		return rev, fmt.Errorf("read revision: %w", err)
	}
	return rev, nil
}

// Raw key-value access

// Get returns the record stored under (kind, id), or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, kind Kind, id string) (*Record, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
	query, args, err := sq.Select("topic_id", "data").
		From("records").
		Where(sq.Eq{"kind": string(kind), "id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get query: %w", err)
	}

	var topicID sql.NullString
	var data string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&topicID, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %q: %w", kind, id, err)
	}
	return &Record{Kind: kind, ID: id, TopicID: topicID.String, Data: []byte(data)}, nil
}

// GetAll returns every record of a kind in insertion order.
func (s *SQLiteStore) GetAll(ctx context.Context, kind Kind) ([]Record, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown record kind %q", kind)
	}
	query, args, err := sq.Select("id", "topic_id", "data").
		From("records").
		Where(sq.Eq{"kind": string(kind)}).
		OrderBy("rowid").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var topicID sql.NullString
		var data string
		if err := rows.Scan(&rec.ID, &topicID, &data); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		rec.Kind = kind
		rec.TopicID = topicID.String
		rec.Data = []byte(data)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Put upserts a record by (kind, id).
func (s *SQLiteStore) Put(ctx context.Context, rec Record) error {
	return s.put(ctx, s.db, rec)
}

// Delete removes a single record. Deleting an absent record is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, kind Kind, id string) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown record kind %q", kind)
	}
	query, args, err := sq.Delete("records").
		Where(sq.Eq{"kind": string(kind), "id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete %s %q: %w", kind, id, err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) put(ctx context.Context, db execer, rec Record) error {
	if !rec.Kind.Valid() {
		return fmt.Errorf("unknown record kind %q", rec.Kind)
	}
	if rec.ID == "" {
		return fmt.Errorf("put %s: empty id", rec.Kind)
	}
	var topicID any
	if rec.TopicID != "" {
		topicID = rec.TopicID
	}
	query, args, err := sq.Insert("records").
		Columns("kind", "id", "topic_id", "data").
		Values(string(rec.Kind), rec.ID, topicID, string(rec.Data)).
		Suffix(`ON CONFLICT(kind, id) DO UPDATE SET
			topic_id = excluded.topic_id,
			data = excluded.data,
			updated_at = CURRENT_TIMESTAMP`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build put query: %w", err)
	}
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("put %s %q: %w", rec.Kind, rec.ID, err)
	}
	return nil
}

func (s *SQLiteStore) putJSON(ctx context.Context, kind Kind, id, topicID string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s %q: %w", kind, id, err)
	}
	return s.Put(ctx, Record{Kind: kind, ID: id, TopicID: topicID, Data: data})
}

// listParsed reads every record of a kind through parse, skipping the ones
// that fail validation.
func listParsed[T any](ctx context.Context, s *SQLiteStore, kind Kind, parse func([]byte) (T, error)) ([]T, error) {
	records, err := s.GetAll(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(records))
	for _, rec := range records {
		v, err := parse(rec.Data)
		if err != nil {
			s.logger.Debug("skipping malformed record", "kind", kind, "id", rec.ID, "error", err)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

func getParsed[T any](ctx context.Context, s *SQLiteStore, kind Kind, id string, parse func([]byte) (T, error)) (*T, error) {
	rec, err := s.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	v, err := parse(rec.Data)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Topics

// GetTopic returns a topic by id.
func (s *SQLiteStore) GetTopic(ctx context.Context, id string) (*Topic, error) {
	return getParsed(ctx, s, KindTopics, id, ParseTopic)
}

// ListTopics returns all well-formed topics in insertion order.
func (s *SQLiteStore) ListTopics(ctx context.Context) ([]Topic, error) {
	return listParsed(ctx, s, KindTopics, ParseTopic)
}

// PutTopic stores a topic, replacing any previous version.
func (s *SQLiteStore) PutTopic(ctx context.Context, topic Topic) error {
	if topic.Keywords == nil {
		topic.Keywords = []string{}
	}
	if topic.Sentiments == nil {
		topic.Sentiments = []string{}
	}
	return s.putJSON(ctx, KindTopics, topic.ID, "", topic)
}

// DeleteTopic removes a topic together with its sources and cards.
func (s *SQLiteStore) DeleteTopic(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete topic: %w", err)
	}
	defer tx.Rollback()

	deletes := []sq.DeleteBuilder{
		sq.Delete("records").Where(sq.Eq{"kind": []string{string(KindSources), string(KindCards)}, "topic_id": id}),
		sq.Delete("records").Where(sq.Eq{"kind": string(KindTopics), "id": id}),
	}
	for _, d := range deletes {
		query, args, err := d.ToSql()
		if err != nil {
			return fmt.Errorf("build delete topic query: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("delete topic %q: %w", id, err)
		}
	}
	return tx.Commit()
}

// Sources

// GetSource returns a source by id (its URL).
func (s *SQLiteStore) GetSource(ctx context.Context, id string) (*Source, error) {
	return getParsed(ctx, s, KindSources, id, ParseSource)
}

// ListSources returns all well-formed sources. Callers filter by topic.
func (s *SQLiteStore) ListSources(ctx context.Context) ([]Source, error) {
	return listParsed(ctx, s, KindSources, ParseSource)
}

// PutSource stores a source keyed by its id.
func (s *SQLiteStore) PutSource(ctx context.Context, source Source) error {
	return s.putJSON(ctx, KindSources, source.ID, source.TopicID, source)
}

// DeleteSource removes a single source.
func (s *SQLiteStore) DeleteSource(ctx context.Context, id string) error {
	return s.Delete(ctx, KindSources, id)
}

// Cards

// GetCard returns a card by its composite id.
func (s *SQLiteStore) GetCard(ctx context.Context, id string) (*Card, error) {
	return getParsed(ctx, s, KindCards, id, ParseCard)
}

// HasCard reports whether a card with the given id has been stored.
func (s *SQLiteStore) HasCard(ctx context.Context, id string) (bool, error) {
	query, args, err := sq.Select("1").
		From("records").
		Where(sq.Eq{"kind": string(KindCards), "id": id}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build card lookup: %w", err)
	}
	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup card %q: %w", id, err)
	}
	return true, nil
}

// ListCards returns all well-formed cards in insertion order.
func (s *SQLiteStore) ListCards(ctx context.Context) ([]Card, error) {
	return listParsed(ctx, s, KindCards, ParseCard)
}

// PutCard stores a card.
func (s *SQLiteStore) PutCard(ctx context.Context, card Card) error {
	if card.Entities == nil {
		card.Entities = []string{}
	}
	return s.putJSON(ctx, KindCards, card.ID, card.TopicID, card)
}
