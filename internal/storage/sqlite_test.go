package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "hookbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenSQLiteBootstrapsTables(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	missing, err := MissingTables(context.Background(), db)
	require.NoError(t, err)
	assert.Empty(t, missing)

	// Bootstrap is idempotent.
	require.NoError(t, Bootstrap(context.Background(), db))
}

func TestOpenSQLiteEnforcesForeignKeys(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	_, err := db.ExecContext(context.Background(), `
INSERT INTO endpoints(id, owner_id, name, token, is_active, created_at)
VALUES('e1', 'no-such-account', 'orders', 'tok', 1, '2024-01-01T00:00:00.000000000Z');`)
	assert.Error(t, err, "insert referencing a missing account should fail")
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), Options{Driver: "mysql"})
	assert.ErrorContains(t, err, "unsupported state driver")
}

func TestIsUniqueViolation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := openTestDB(t)
	now := FormatTime(time.Now())

	_, err := db.ExecContext(ctx, `INSERT INTO accounts(id, username, key_hash, created_at) VALUES('a1', 'alice', 'h1', ?);`, now)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, `INSERT INTO accounts(id, username, key_hash, created_at) VALUES('a2', 'alice', 'h2', ?);`, now)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err, "accounts", "username"))
	assert.False(t, IsUniqueViolation(err, "accounts", "key_hash"))

	insertEndpoint := `INSERT INTO endpoints(id, owner_id, name, token, is_active, created_at) VALUES(?, 'a1', ?, ?, 1, ?);`
	_, err = db.ExecContext(ctx, insertEndpoint, "e1", "orders", "tok-1", now)
	require.NoError(t, err)

	_, err = db.ExecContext(ctx, insertEndpoint, "e2", "orders", "tok-2", now)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err, "endpoints", "name"))
	assert.False(t, IsUniqueViolation(err, "endpoints", "token"))

	_, err = db.ExecContext(ctx, insertEndpoint, "e3", "billing", "tok-1", now)
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err, "endpoints", "token"))
	assert.False(t, IsUniqueViolation(err, "endpoints", "name"))

	assert.False(t, IsUniqueViolation(nil, "endpoints", "token"))
}

func TestRebind(t *testing.T) {
	t.Parallel()

	q := "SELECT id FROM endpoints WHERE owner_id = ? AND name = ?;"

	sqlite := &DB{Dialect: DialectSQLite}
	assert.Equal(t, q, sqlite.Rebind(q))

	pg := &DB{Dialect: DialectPostgres}
	assert.Equal(t, "SELECT id FROM endpoints WHERE owner_id = $1 AND name = $2;", pg.Rebind(q))
}

func TestFormatTimeSortsLexically(t *testing.T) {
	t.Parallel()

	base := time.Date(2024, 5, 1, 12, 0, 5, 0, time.UTC)
	a := FormatTime(base.Add(100 * time.Millisecond))
	b := FormatTime(base.Add(120 * time.Millisecond))
	assert.Less(t, a, b)
	assert.Len(t, a, len(b))

	parsed, err := ParseTime(b)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(base.Add(120*time.Millisecond)))

	parsed, err = ParseTime("2024-05-01T12:00:05Z")
	require.NoError(t, err)
	assert.True(t, parsed.Equal(base))

	_, err = ParseTime("yesterday")
	assert.Error(t, err)
}

func TestConnectLeavesSchemaAlone(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "hookbox.db")

	db, err := Connect(ctx, Options{Driver: "sqlite", Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	missing, err := MissingTables(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, Tables, missing)

	require.NoError(t, Bootstrap(ctx, db))
	missing, err = MissingTables(ctx, db)
	require.NoError(t, err)
	assert.Empty(t, missing)
}
