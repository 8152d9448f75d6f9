package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const (
	IDField        = "_id"
	CreatedAtField = "createdAt"
	UpdatedAtField = "updatedAt"
)

// Doc carries the fields every stored document shares. Embed it with
// `bson:",inline"`; stored types must use identical bson and json tag names
// because the SQL backends decode through encoding/json.
type Doc struct {
	ID        string    `bson:"_id" json:"_id"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

type Clock func() time.Time

// Collection is a typed view over one named collection of a driver.
type Collection[T any] struct {
	name   string
	driver DatabaseDriver
	now    Clock
}

func NewCollection[T any](ctx context.Context, driver DatabaseDriver, name string, now Clock) (*Collection[T], error) {
	if err := checkIdentifier("collection", name); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	if err := driver.EnsureCollection(ctx, name); err != nil {
		return nil, fmt.Errorf("ensure collection %s: %w", name, err)
	}
	return &Collection[T]{name: name, driver: driver, now: now}, nil
}

func (c *Collection[T]) Name() string {
	return c.name
}

func (c *Collection[T]) Now() time.Time {
	return c.now().UTC().Truncate(time.Millisecond)
}

// CreateUniqueIndex declares a uniqueness constraint. Documents that omit
// the field are not indexed.
func (c *Collection[T]) CreateUniqueIndex(ctx context.Context, field string) error {
	if err := checkIdentifier("field", field); err != nil {
		return err
	}
	if err := c.driver.EnsureUnique(ctx, c.name, field); err != nil {
		return fmt.Errorf("create unique index %s.%s: %w", c.name, field, err)
	}
	return nil
}

// CreateOne assigns id and timestamps, stores the document, and returns the id.
func (c *Collection[T]) CreateOne(ctx context.Context, doc T) (string, error) {
	fields, err := toFields(doc)
	if err != nil {
		return "", err
	}
	now := c.Now()
	id := uuid.New().String()
	fields[IDField] = id
	fields[CreatedAtField] = now
	fields[UpdatedAtField] = now
	if err := c.driver.Insert(ctx, c.name, fields); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return "", err
		}
		return "", fmt.Errorf("insert into %s: %w", c.name, err)
	}
	return id, nil
}

// ReadOne returns nil without error when nothing matches.
func (c *Collection[T]) ReadOne(ctx context.Context, filter Filter) (*T, error) {
	docs, err := c.ReadMany(ctx, filter, FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return &docs[0], nil
}

func (c *Collection[T]) ReadMany(ctx context.Context, filter Filter, opts FindOptions) ([]T, error) {
	if err := filter.validate(); err != nil {
		return nil, err
	}
	if opts.Sort != "" {
		if err := checkIdentifier("field", opts.Sort); err != nil {
			return nil, err
		}
	}
	rows, err := c.driver.Find(ctx, c.name, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find in %s where %s: %w", c.name, filter, err)
	}
	docs := make([]T, 0, len(rows))
	for _, row := range rows {
		var doc T
		if err := row.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan %s document: %w", c.name, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// PartialUpdateOne sets the non-nil patch values on the first match and
// refreshes updatedAt. It reports how many documents matched (0 or 1).
func (c *Collection[T]) PartialUpdateOne(ctx context.Context, filter Filter, patch Fields) (int64, error) {
	if err := filter.validate(); err != nil {
		return 0, err
	}
	set := make(Fields, len(patch)+1)
	for k, v := range patch {
		if v == nil {
			continue
		}
		switch k {
		case IDField, CreatedAtField:
			return 0, fmt.Errorf("field %s is immutable", k)
		}
		if err := checkIdentifier("field", k); err != nil {
			return 0, err
		}
		set[k] = normalize(v)
	}
	set[UpdatedAtField] = c.Now()
	n, err := c.driver.Update(ctx, c.name, filter, set)
	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return 0, err
		}
		return 0, fmt.Errorf("update %s where %s: %w", c.name, filter, err)
	}
	return n, nil
}

func (c *Collection[T]) DeleteOne(ctx context.Context, filter Filter) (int64, error) {
	return c.delete(ctx, filter, false)
}

func (c *Collection[T]) DeleteMany(ctx context.Context, filter Filter) (int64, error) {
	return c.delete(ctx, filter, true)
}

func (c *Collection[T]) delete(ctx context.Context, filter Filter, many bool) (int64, error) {
	if err := filter.validate(); err != nil {
		return 0, err
	}
	n, err := c.driver.Delete(ctx, c.name, filter, many)
	if err != nil {
		return 0, fmt.Errorf("delete from %s where %s: %w", c.name, filter, err)
	}
	return n, nil
}
