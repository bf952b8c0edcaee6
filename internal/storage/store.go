package storage

import "context"

// Record is a raw stored document with its key.
type Record struct {
	Kind    Kind
	ID      string
	TopicID string
	Data    []byte
}

// Revision identifies the database contents at one point in time. Two
// revisions differ when any record was written or deleted in between, by
// this process or another one.
type Revision struct {
	DataVersion int64
	Records     int64
	MaxRowID    int64
}

// Store defines the storage interface for veille's data layer.
type Store interface {
	Close() error

	// Revision reports the current database revision. Readers holding
	// materialized copies compare revisions to decide when to reload.
	Revision(ctx context.Context) (Revision, error)

	// Raw key-value access
	Get(ctx context.Context, kind Kind, id string) (*Record, error)
	GetAll(ctx context.Context, kind Kind) ([]Record, error)
	Put(ctx context.Context, rec Record) error
	Delete(ctx context.Context, kind Kind, id string) error

	// Topics
	GetTopic(ctx context.Context, id string) (*Topic, error)
	ListTopics(ctx context.Context) ([]Topic, error)
	PutTopic(ctx context.Context, topic Topic) error
	DeleteTopic(ctx context.Context, id string) error

	// Sources
	GetSource(ctx context.Context, id string) (*Source, error)
	ListSources(ctx context.Context) ([]Source, error)
	PutSource(ctx context.Context, source Source) error
	DeleteSource(ctx context.Context, id string) error

	// Cards
	GetCard(ctx context.Context, id string) (*Card, error)
	HasCard(ctx context.Context, id string) (bool, error)
	ListCards(ctx context.Context) ([]Card, error)
	PutCard(ctx context.Context, card Card) error
}
