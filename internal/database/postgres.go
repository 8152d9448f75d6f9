package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const pgUniqueViolation = "23505"

type PostgresDialect struct{}

func NewPostgresDriver(ctx context.Context, dsn string) (*SQLDriver, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return NewSQLDriver(db, PostgresDialect{}), nil
}

func (PostgresDialect) Name() string { return "postgres" }

func (PostgresDialect) Placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func (PostgresDialect) CreateTable(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, doc JSONB NOT NULL)", table)
}

func (PostgresDialect) Field(field string) string {
	return fmt.Sprintf("doc->>'%s'", field)
}

func (PostgresDialect) Ordered(expr string) string {
	return fmt.Sprintf(`(%s) COLLATE "C"`, expr)
}

func (PostgresDialect) CreateUniqueIndex(table, field string) string {
	return fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s_%s_key ON %s ((doc->>'%s'))", table, field, table, field)
}

func (PostgresDialect) Merge(placeholder string) string {
	return fmt.Sprintf("doc || %s::jsonb", placeholder)
}

func (PostgresDialect) IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

func (PostgresDialect) IgnorableIndexError(err error) bool {
	return false
}
