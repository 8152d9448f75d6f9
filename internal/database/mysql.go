package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

const (
	mysqlDuplicateEntry   = 1062
	mysqlDuplicateKeyName = 1061
)

type MySQLDialect struct{}

func NewMySQLDriver(ctx context.Context, dsn string) (*SQLDriver, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ParseTime = true
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	return NewSQLDriver(db, MySQLDialect{}), nil
}

func (MySQLDialect) Name() string { return "mysql" }

func (MySQLDialect) Placeholder(int) string { return "?" }

func (MySQLDialect) CreateTable(table string) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id VARCHAR(64) PRIMARY KEY, doc JSON NOT NULL)", table)
}

func (MySQLDialect) Field(field string) string {
	return fmt.Sprintf("JSON_UNQUOTE(JSON_EXTRACT(doc, '$.%s'))", field)
}

func (MySQLDialect) Ordered(expr string) string {
	return fmt.Sprintf("(%s COLLATE utf8mb4_bin)", expr)
}

// CreateUniqueIndex uses a functional index; MySQL has no IF NOT EXISTS for
// indexes, so a duplicate key name is ignored instead.
func (MySQLDialect) CreateUniqueIndex(table, field string) string {
	return fmt.Sprintf("CREATE UNIQUE INDEX %s_%s_key ON %s ((CAST(doc->>'$.%s' AS CHAR(255)) COLLATE utf8mb4_bin))", table, field, table, field)
}

func (MySQLDialect) Merge(placeholder string) string {
	return fmt.Sprintf("JSON_MERGE_PATCH(doc, %s)", placeholder)
}

func (MySQLDialect) IsUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

func (MySQLDialect) IgnorableIndexError(err error) bool {
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateKeyName
}
