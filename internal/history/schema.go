// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

const (
	// SchemaVersion tracks the database schema version for migrations
	SchemaVersion = 2
)

// Schema creates the history tables. Token columns are NULL when the server
// reported no usage, so absence survives a round trip.
const Schema = `
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
) WITHOUT ROWID;

CREATE TABLE IF NOT EXISTS history (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL UNIQUE,
    source_text TEXT NOT NULL,
    translated_text TEXT NOT NULL,
    model TEXT NOT NULL,
    pair_id TEXT NOT NULL DEFAULT '',
    prompt_tokens INTEGER,
    completion_tokens INTEGER,
    duration_ns INTEGER,
    eval_duration_ns INTEGER,
    created_at INTEGER NOT NULL  -- Unix nanoseconds
);

CREATE INDEX IF NOT EXISTS idx_history_created_at ON history(created_at);
CREATE INDEX IF NOT EXISTS idx_history_pair_id ON history(pair_id);
`

// migrations upgrade a database from the previous version to the key version.
var migrations = map[int]string{
	// v2 stores durations in nanoseconds and adds the generation time.
	2: `
ALTER TABLE history ADD COLUMN duration_ns INTEGER;
ALTER TABLE history ADD COLUMN eval_duration_ns INTEGER;
UPDATE history SET duration_ns = duration_ms * 1000000 WHERE duration_ms IS NOT NULL;
`,
}
