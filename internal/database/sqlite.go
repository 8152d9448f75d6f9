package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

type SQLiteDialect struct{}

// NewSQLiteDriver opens path, or a private in-memory database when path is
// empty or ":memory:".
func NewSQLiteDriver(ctx context.Context, path string) (*SQLDriver, error) {
	path = strings.TrimSpace(path)
	inMemory := path == "" || path == ":memory:"
	dsn := ":memory:"
	if !inMemory {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if inMemory {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}
	return NewSQLDriver(db, SQLiteDialect{}), nil
}

func (SQLiteDialect) Name() string { return "sqlite" }

func (SQLiteDialect) Placeholder(int) string { return "?" }

func (SQLiteDialect) CreateTable(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, doc TEXT NOT NULL)", table)
}

func (SQLiteDialect) Field(field string) string {
	return fmt.Sprintf("json_extract(doc, '$.%s')", field)
}

func (SQLiteDialect) Ordered(expr string) string {
	return expr
}

func (SQLiteDialect) CreateUniqueIndex(table, field string) string {
	return fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s_%s_key ON %s (json_extract(doc, '$.%s'))", table, field, table, field)
}

func (SQLiteDialect) Merge(placeholder string) string {
	return fmt.Sprintf("json_patch(doc, %s)", placeholder)
}

func (SQLiteDialect) IsUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3lib.SQLITE_CONSTRAINT || code == sqlite3lib.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY
}

func (SQLiteDialect) IgnorableIndexError(err error) bool {
	return false
}
