package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Dialect captures the SQL differences between the relational backends.
// Every backend stores a collection as a table of (id, doc) where doc is
// the JSON encoding of the document.
type Dialect interface {
	Name() string
	Placeholder(n int) string
	CreateTable(table string) string
	// Field extracts a top-level document field as text.
	Field(field string) string
	// Ordered wraps an extracted field so it compares bytewise.
	Ordered(expr string) string
	CreateUniqueIndex(table, field string) string
	// Merge returns an expression applying a JSON merge patch to doc.
	Merge(placeholder string) string
	IsUniqueViolation(err error) bool
	IgnorableIndexError(err error) bool
}

type SQLDriver struct {
	db      *sql.DB
	dialect Dialect
}

type SQLRow struct {
	doc []byte
}

func (sr *SQLRow) Scan(dest interface{}) error {
	return json.Unmarshal(sr.doc, dest)
}

func NewSQLDriver(db *sql.DB, dialect Dialect) *SQLDriver {
	return &SQLDriver{db: db, dialect: dialect}
}

func (sd *SQLDriver) Name() string {
	return sd.dialect.Name()
}

func (sd *SQLDriver) Ping(ctx context.Context) error {
	return sd.db.PingContext(ctx)
}

func (sd *SQLDriver) Close(ctx context.Context) error {
	return sd.db.Close()
}

func (sd *SQLDriver) EnsureCollection(ctx context.Context, collection string) error {
	_, err := sd.db.ExecContext(ctx, sd.dialect.CreateTable(collection))
	return err
}

func (sd *SQLDriver) EnsureUnique(ctx context.Context, collection, field string) error {
	_, err := sd.db.ExecContext(ctx, sd.dialect.CreateUniqueIndex(collection, field))
	if err != nil && sd.dialect.IgnorableIndexError(err) {
		return nil
	}
	return err
}

func (sd *SQLDriver) Insert(ctx context.Context, collection string, doc Fields) error {
	id, ok := doc[IDField].(string)
	if !ok {
		return fmt.Errorf("document has no string %s", IDField)
	}
	body, err := encodeJSON(doc)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("INSERT INTO %s (id, doc) VALUES (%s, %s)",
		collection, sd.dialect.Placeholder(1), sd.dialect.Placeholder(2))
	_, err = sd.db.ExecContext(ctx, query, id, string(body))
	return sd.translate(err)
}

func (sd *SQLDriver) Find(ctx context.Context, collection string, filter Filter, opts FindOptions) ([]Row, error) {
	where, args, err := sd.where(filter, 1)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT doc FROM %s%s", collection, where)
	if opts.Sort != "" {
		dir := "ASC"
		if opts.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY %s %s", sd.dialect.Ordered(sd.dialect.Field(opts.Sort)), dir)
	}
	if opts.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", opts.Limit)
	}

	rows, err := sd.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		out = append(out, &SQLRow{doc: doc})
	}
	return out, rows.Err()
}

func (sd *SQLDriver) Update(ctx context.Context, collection string, filter Filter, patch Fields) (int64, error) {
	id, found, err := sd.firstID(ctx, collection, filter)
	if err != nil || !found {
		return 0, err
	}
	body, err := encodeJSON(patch)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf("UPDATE %s SET doc = %s WHERE id = %s",
		collection, sd.dialect.Merge(sd.dialect.Placeholder(1)), sd.dialect.Placeholder(2))
	if _, err := sd.db.ExecContext(ctx, query, string(body), id); err != nil {
		return 0, sd.translate(err)
	}
	return 1, nil
}

func (sd *SQLDriver) Delete(ctx context.Context, collection string, filter Filter, many bool) (int64, error) {
	if !many {
		id, found, err := sd.firstID(ctx, collection, filter)
		if err != nil || !found {
			return 0, err
		}
		filter = ByID(id)
	}
	where, args, err := sd.where(filter, 1)
	if err != nil {
		return 0, err
	}
	res, err := sd.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s%s", collection, where), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (sd *SQLDriver) Drop(ctx context.Context, collection string) error {
	if err := checkIdentifier("collection", collection); err != nil {
		return err
	}
	_, err := sd.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", collection))
	return err
}

func (sd *SQLDriver) firstID(ctx context.Context, collection string, filter Filter) (string, bool, error) {
	where, args, err := sd.where(filter, 1)
	if err != nil {
		return "", false, err
	}
	var id string
	err = sd.db.QueryRowContext(ctx, fmt.Sprintf("SELECT id FROM %s%s LIMIT 1", collection, where), args...).Scan(&id)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// where renders the filter with placeholders numbered from start. The id
// column stands in for the _id field.
func (sd *SQLDriver) where(filter Filter, start int) (string, []interface{}, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}
	n := start
	var (
		clauses []string
		args    []interface{}
	)
	for _, c := range filter {
		expr := "id"
		if c.Field != IDField {
			expr = sd.dialect.Field(c.Field)
		}
		switch c.Op {
		case OpEq:
			if c.Value == nil {
				clauses = append(clauses, expr+" IS NULL")
				continue
			}
			arg, err := sqlArg(c.Value)
			if err != nil {
				return "", nil, err
			}
			clauses = append(clauses, fmt.Sprintf("%s = %s", expr, sd.dialect.Placeholder(n)))
			args = append(args, arg)
			n++
		case OpIn:
			values := c.Value.([]interface{})
			if len(values) == 0 {
				clauses = append(clauses, "1 = 0")
				continue
			}
			marks := make([]string, len(values))
			for i, v := range values {
				arg, err := sqlArg(v)
				if err != nil {
					return "", nil, err
				}
				marks[i] = sd.dialect.Placeholder(n)
				args = append(args, arg)
				n++
			}
			clauses = append(clauses, fmt.Sprintf("%s IN (%s)", expr, strings.Join(marks, ", ")))
		case OpLte:
			arg, err := sqlArg(c.Value)
			if err != nil {
				return "", nil, err
			}
			clauses = append(clauses, fmt.Sprintf("%s <= %s", sd.dialect.Ordered(expr), sd.dialect.Placeholder(n)))
			args = append(args, arg)
			n++
		default:
			return "", nil, fmt.Errorf("unsupported filter operator %s", c.Op)
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

// sqlArg converts a filter value to the text form stored in the document
// column. Only values with a stable text encoding can be filtered on.
func sqlArg(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case time.Time:
		return t.UTC().Format(sqlTimeLayout), nil
	default:
		return nil, fmt.Errorf("cannot filter on %T in SQL backends", v)
	}
}

func (sd *SQLDriver) translate(err error) error {
	if err != nil && sd.dialect.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	}
	return err
}
