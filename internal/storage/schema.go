package storage

import (
	"context"
	"fmt"
)

// Tables lists every table Bootstrap creates.
var Tables = []string{"accounts", "endpoints", "webhook_logs"}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
  id         TEXT PRIMARY KEY,
  username   TEXT NOT NULL UNIQUE,
  key_hash   TEXT NOT NULL UNIQUE,
  created_at TEXT NOT NULL
);`,
	`CREATE TABLE IF NOT EXISTS endpoints (
  id         TEXT PRIMARY KEY,
  owner_id   TEXT NOT NULL REFERENCES accounts(id),
  name       TEXT NOT NULL,
  token      TEXT NOT NULL UNIQUE,
  is_active  INTEGER NOT NULL DEFAULT 1,
  created_at TEXT NOT NULL,
  UNIQUE (owner_id, name)
);`,
	`CREATE TABLE IF NOT EXISTS webhook_logs (
  id             INTEGER PRIMARY KEY AUTOINCREMENT,
  endpoint_id    TEXT NOT NULL REFERENCES endpoints(id),
  timestamp      TEXT NOT NULL,
  method         TEXT NOT NULL,
  headers        TEXT NOT NULL,
  body           TEXT NOT NULL,
  source_address TEXT NOT NULL DEFAULT '',
  client_agent   TEXT NOT NULL DEFAULT ''
);`,
	`CREATE INDEX IF NOT EXISTS endpoints_name_active_idx ON endpoints(name, is_active);`,
	`CREATE INDEX IF NOT EXISTS webhook_logs_endpoint_ts_idx ON webhook_logs(endpoint_id, timestamp, id);`,
}

// Constraint names follow <table>_<column>_key so IsUniqueViolation can
// recognise them.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
  id         TEXT PRIMARY KEY,
  username   TEXT NOT NULL,
  key_hash   TEXT NOT NULL,
  created_at TEXT NOT NULL,
  CONSTRAINT accounts_username_key UNIQUE (username),
  CONSTRAINT accounts_key_hash_key UNIQUE (key_hash)
);`,
	`CREATE TABLE IF NOT EXISTS endpoints (
  id         TEXT PRIMARY KEY,
  owner_id   TEXT NOT NULL REFERENCES accounts(id),
  name       TEXT NOT NULL,
  token      TEXT NOT NULL,
  is_active  BOOLEAN NOT NULL DEFAULT TRUE,
  created_at TEXT NOT NULL,
  CONSTRAINT endpoints_token_key UNIQUE (token),
  CONSTRAINT endpoints_name_key UNIQUE (owner_id, name)
);`,
	`CREATE TABLE IF NOT EXISTS webhook_logs (
  id             BIGSERIAL PRIMARY KEY,
  endpoint_id    TEXT NOT NULL REFERENCES endpoints(id),
  timestamp      TEXT NOT NULL,
  method         TEXT NOT NULL,
  headers        TEXT NOT NULL,
  body           TEXT NOT NULL,
  source_address TEXT NOT NULL DEFAULT '',
  client_agent   TEXT NOT NULL DEFAULT ''
);`,
	`CREATE INDEX IF NOT EXISTS endpoints_name_active_idx ON endpoints(name, is_active);`,
	`CREATE INDEX IF NOT EXISTS webhook_logs_endpoint_ts_idx ON webhook_logs(endpoint_id, timestamp, id);`,
}

// Bootstrap creates tables/indexes if missing.
func Bootstrap(ctx context.Context, db *DB) error {
	stmts := sqliteSchema
	if db.Dialect == DialectPostgres {
		stmts = postgresSchema
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("bootstrap %s: %w", db.Dialect, err)
		}
	}
	return nil
}

// MissingTables returns the entries of Tables not present in the database.
func MissingTables(ctx context.Context, db *DB) ([]string, error) {
	query := `SELECT name FROM sqlite_master WHERE type='table' AND name = ?;`
	if db.Dialect == DialectPostgres {
		query = `SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = ?;`
	}

	var missing []string
	for _, table := range Tables {
		var name string
		err := db.QueryRowContext(ctx, db.Rebind(query), table).Scan(&name)
		if err != nil {
			if isNoRows(err) {
				missing = append(missing, table)
				continue
			}
			return nil, fmt.Errorf("check table %s: %w", table, err)
		}
	}
	return missing, nil
}
