package store

import (
	"database/sql"
	"fmt"
)

// SchemaVersion is the newest migration the store understands. Opening a
// database written by a newer build fails rather than guessing.
const SchemaVersion = 1

type migration struct {
	version int
	sql     string
}

var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS analysis_records (
  code_hash TEXT PRIMARY KEY,
  code TEXT NOT NULL,
  symbol_table TEXT NOT NULL DEFAULT '{}',
  ast_graph TEXT NOT NULL DEFAULT '{}',
  undeclared TEXT NOT NULL DEFAULT '[]',
  created_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);
CREATE INDEX IF NOT EXISTS idx_analysis_created ON analysis_records(created_at_utc);

CREATE TABLE IF NOT EXISTS annotation_cache (
  code_hash TEXT NOT NULL,
  use_llm INTEGER NOT NULL DEFAULT 0,
  annotated_code TEXT NOT NULL,
  type_info TEXT NOT NULL DEFAULT '{}',
  annotations_count INTEGER NOT NULL DEFAULT 0,
  created_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP),
  PRIMARY KEY (code_hash, use_llm)
);

CREATE TABLE IF NOT EXISTS memory_store (
  pattern TEXT PRIMARY KEY,
  pattern_type TEXT NOT NULL DEFAULT '',
  usage_count INTEGER NOT NULL DEFAULT 1,
  confidence REAL NOT NULL DEFAULT 0.5,
  last_used_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);
CREATE INDEX IF NOT EXISTS idx_memory_type ON memory_store(pattern_type);

CREATE TABLE IF NOT EXISTS inference_history (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  code_hash TEXT NOT NULL,
  variable_name TEXT NOT NULL,
  inferred_type TEXT NOT NULL,
  source TEXT NOT NULL DEFAULT 'inferred',
  created_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);
CREATE INDEX IF NOT EXISTS idx_history_hash ON inference_history(code_hash);
`,
	},
}

func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at_utc TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
);
`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	var current int
	if err := db.QueryRow(`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&current); err != nil {
		return fmt.Errorf("read schema_migrations version: %w", err)
	}
	if current > SchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", current, SchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.version, err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations(version) VALUES (?)`, m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.version, err)
		}
	}

	return nil
}
