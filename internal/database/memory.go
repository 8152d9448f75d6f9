package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryDriver keeps collections in process. Documents are held in
// insertion order, which is also the order Find returns them in when no
// sort is requested.
type MemoryDriver struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
	closed      bool
}

type memCollection struct {
	docs   []Fields
	unique map[string]struct{}
}

type memRow struct {
	fields Fields
}

func (mr *memRow) Scan(dest interface{}) error {
	return scanFields(mr.fields, dest)
}

func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{collections: make(map[string]*memCollection)}
}

func (md *MemoryDriver) Name() string {
	return "memory"
}

func (md *MemoryDriver) collection(name string) (*memCollection, error) {
	if md.closed {
		return nil, ErrClosed
	}
	c, ok := md.collections[name]
	if !ok {
		c = &memCollection{unique: make(map[string]struct{})}
		md.collections[name] = c
	}
	return c, nil
}

func (md *MemoryDriver) EnsureCollection(ctx context.Context, collection string) error {
	md.mu.Lock()
	defer md.mu.Unlock()
	_, err := md.collection(collection)
	return err
}

func (md *MemoryDriver) EnsureUnique(ctx context.Context, collection, field string) error {
	md.mu.Lock()
	defer md.mu.Unlock()
	c, err := md.collection(collection)
	if err != nil {
		return err
	}
	seen := make(map[interface{}]struct{})
	for _, doc := range c.docs {
		key, ok := uniqueKey(doc, field)
		if !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("existing documents violate unique %s: %w", field, ErrAlreadyExists)
		}
		seen[key] = struct{}{}
	}
	c.unique[field] = struct{}{}
	return nil
}

// uniqueKey reports the indexed value of field. Missing, nil and empty
// string values are not indexed.
func uniqueKey(doc Fields, field string) (interface{}, bool) {
	v, ok := doc[field]
	if !ok || v == nil || v == "" {
		return nil, false
	}
	return fmt.Sprintf("%T:%v", v, v), true
}

// conflicts reports whether candidate collides with any document other than
// skip on a unique field.
func (c *memCollection) conflicts(candidate Fields, skip int) bool {
	for field := range c.unique {
		key, ok := uniqueKey(candidate, field)
		if !ok {
			continue
		}
		for i, doc := range c.docs {
			if i == skip {
				continue
			}
			if other, ok := uniqueKey(doc, field); ok && other == key {
				return true
			}
		}
	}
	return false
}

func (md *MemoryDriver) Insert(ctx context.Context, collection string, doc Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	md.mu.Lock()
	defer md.mu.Unlock()
	c, err := md.collection(collection)
	if err != nil {
		return err
	}
	for _, existing := range c.docs {
		if equal(existing[IDField], doc[IDField]) {
			return ErrAlreadyExists
		}
	}
	if c.conflicts(doc, -1) {
		return ErrAlreadyExists
	}
	c.docs = append(c.docs, cloneFields(doc))
	return nil
}

func (md *MemoryDriver) Find(ctx context.Context, collection string, filter Filter, opts FindOptions) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	md.mu.RLock()
	defer md.mu.RUnlock()
	if md.closed {
		return nil, ErrClosed
	}
	c, ok := md.collections[collection]
	if !ok {
		return nil, nil
	}
	var matched []Fields
	for _, doc := range c.docs {
		if filter.Matches(doc) {
			matched = append(matched, cloneFields(doc))
		}
	}
	if opts.Sort != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			cmp, ok := compare(matched[i][opts.Sort], matched[j][opts.Sort])
			if !ok {
				return false
			}
			if opts.Desc {
				return cmp > 0
			}
			return cmp < 0
		})
	}
	if opts.Limit > 0 && int64(len(matched)) > opts.Limit {
		matched = matched[:opts.Limit]
	}
	rows := make([]Row, len(matched))
	for i, doc := range matched {
		rows[i] = &memRow{fields: doc}
	}
	return rows, nil
}

func (md *MemoryDriver) Update(ctx context.Context, collection string, filter Filter, patch Fields) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	md.mu.Lock()
	defer md.mu.Unlock()
	c, err := md.collection(collection)
	if err != nil {
		return 0, err
	}
	for i, doc := range c.docs {
		if !filter.Matches(doc) {
			continue
		}
		updated := cloneFields(doc)
		for k, v := range patch {
			updated[k] = v
		}
		if c.conflicts(updated, i) {
			return 0, ErrAlreadyExists
		}
		c.docs[i] = updated
		return 1, nil
	}
	return 0, nil
}

func (md *MemoryDriver) Delete(ctx context.Context, collection string, filter Filter, many bool) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	md.mu.Lock()
	defer md.mu.Unlock()
	c, err := md.collection(collection)
	if err != nil {
		return 0, err
	}
	kept := c.docs[:0]
	var n int64
	for _, doc := range c.docs {
		if filter.Matches(doc) && (many || n == 0) {
			n++
			continue
		}
		kept = append(kept, doc)
	}
	for i := len(kept); i < len(c.docs); i++ {
		c.docs[i] = nil
	}
	c.docs = kept
	return n, nil
}

func (md *MemoryDriver) Drop(ctx context.Context, collection string) error {
	md.mu.Lock()
	defer md.mu.Unlock()
	if md.closed {
		return ErrClosed
	}
	delete(md.collections, collection)
	return nil
}

func (md *MemoryDriver) Ping(ctx context.Context) error {
	md.mu.RLock()
	defer md.mu.RUnlock()
	if md.closed {
		return ErrClosed
	}
	return nil
}

func (md *MemoryDriver) Close(ctx context.Context) error {
	md.mu.Lock()
	defer md.mu.Unlock()
	md.closed = true
	md.collections = nil
	return nil
}
