package storage

// Schema stores every record kind in one flat key-value table. The JSON
// document is the record; topic_id is denormalized so topic deletion can
// cascade without parsing documents.
const Schema = `
CREATE TABLE IF NOT EXISTS records (
    kind TEXT NOT NULL,
    id TEXT NOT NULL,
    topic_id TEXT,
    data TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (kind, id)
);

CREATE INDEX IF NOT EXISTS idx_records_topic ON records(kind, topic_id);
`
