package database

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	ErrAlreadyExists = errors.New("record already exists")
	ErrClosed        = errors.New("database driver is closed")
)

// Fields is the backend-neutral shape of a stored document.
type Fields map[string]interface{}

type Row interface {
	Scan(dest interface{}) error
}

type FindOptions struct {
	Sort  string
	Desc  bool
	Limit int64
}

// DatabaseDriver is implemented by every storage backend. Documents are
// addressed by collection name; Update and Delete with many=false touch the
// first match only.
type DatabaseDriver interface {
	Name() string
	EnsureCollection(ctx context.Context, collection string) error
	EnsureUnique(ctx context.Context, collection, field string) error
	Insert(ctx context.Context, collection string, doc Fields) error
	Find(ctx context.Context, collection string, filter Filter, opts FindOptions) ([]Row, error)
	Update(ctx context.Context, collection string, filter Filter, patch Fields) (int64, error)
	Delete(ctx context.Context, collection string, filter Filter, many bool) (int64, error)
	Drop(ctx context.Context, collection string) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// checkIdentifier guards collection and field names that end up inside
// generated SQL or index names.
func checkIdentifier(kind, name string) error {
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("invalid %s name %q", kind, name)
	}
	return nil
}
