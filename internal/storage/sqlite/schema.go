// ABOUTME: SQLite database schema for device fact storage
// ABOUTME: One row per device collection, its facts, and one embedding per fact
package sqlite

// Schema contains all SQL statements for database initialization.
// seq columns carry creation order; timestamps are RFC3339Nano text.
const Schema = `
CREATE TABLE IF NOT EXISTS devices (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL DEFAULT 'N/A',
    created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS facts (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL,
    device_id TEXT NOT NULL REFERENCES devices(id) ON DELETE CASCADE,
    content TEXT NOT NULL,
    category TEXT NOT NULL,
    source TEXT,
    extra TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    UNIQUE (device_id, id)
);

CREATE TABLE IF NOT EXISTS embeddings (
    device_id TEXT NOT NULL,
    fact_id TEXT NOT NULL,
    model TEXT NOT NULL,
    vector BLOB NOT NULL,
    created_at TEXT NOT NULL,
    PRIMARY KEY (device_id, fact_id),
    FOREIGN KEY (device_id, fact_id) REFERENCES facts(device_id, id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_facts_device_category ON facts(device_id, category);
`

// SchemaVersion is the current schema version for migrations
const SchemaVersion = 2
