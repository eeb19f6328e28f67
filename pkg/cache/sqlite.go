package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS caches (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS entries (
	cache_name TEXT NOT NULL,
	key        TEXT NOT NULL,
	data       BLOB NOT NULL,
	PRIMARY KEY (cache_name, key)
);`

// SQLiteDriver stores caches in a SQLite database file.
type SQLiteDriver struct {
	db *sql.DB
}

// OpenSQLiteDriver opens (and creates if needed) a SQLite cache database.
func OpenSQLiteDriver(path string) (*SQLiteDriver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// SQLite allows one writer at a time
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteDriver{db: db}, nil
}

func (d *SQLiteDriver) Name() string { return "sqlite" }

func (d *SQLiteDriver) CreateCache(ctx context.Context, name string) error {
	if _, err := d.db.ExecContext(ctx, `INSERT OR IGNORE INTO caches (name) VALUES (?)`, name); err != nil {
		return fmt.Errorf("insert cache: %w", err)
	}
	return nil
}

func (d *SQLiteDriver) CacheNames(ctx context.Context) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT name FROM caches ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query caches: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (d *SQLiteDriver) HasCache(ctx context.Context, name string) (bool, error) {
	var id int64
	err := d.db.QueryRowContext(ctx, `SELECT id FROM caches WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query cache: %w", err)
	}
	return true, nil
}

func (d *SQLiteDriver) DropCache(ctx context.Context, name string) (bool, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE cache_name = ?`, name); err != nil {
		return false, fmt.Errorf("delete entries: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM caches WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("delete cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return n > 0, nil
}

func (d *SQLiteDriver) Get(ctx context.Context, name, key string) ([]byte, error) {
	var data []byte
	err := d.db.QueryRowContext(ctx,
		`SELECT data FROM entries WHERE cache_name = ? AND key = ?`, name, key,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("query entry: %w", err)
	}
	return data, nil
}

func (d *SQLiteDriver) SetAll(ctx context.Context, name string, records []Record) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO caches (name) VALUES (?)`, name); err != nil {
		return fmt.Errorf("insert cache: %w", err)
	}
	for _, r := range records {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO entries (cache_name, key, data) VALUES (?, ?, ?)
			 ON CONFLICT (cache_name, key) DO UPDATE SET data = excluded.data`,
			name, r.Key, r.Data,
		)
		if err != nil {
			return fmt.Errorf("upsert entry %q: %w", r.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (d *SQLiteDriver) Delete(ctx context.Context, name, key string) (bool, error) {
	res, err := d.db.ExecContext(ctx, `DELETE FROM entries WHERE cache_name = ? AND key = ?`, name, key)
	if err != nil {
		return false, fmt.Errorf("delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (d *SQLiteDriver) List(ctx context.Context, name string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT key FROM entries WHERE cache_name = ? ORDER BY key`, name)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()
	return scanStrings(rows)
}

func (d *SQLiteDriver) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close releases the underlying SQLite connection.
func (d *SQLiteDriver) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}
