package database

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

type Op int

const (
	OpEq Op = iota
	OpIn
	OpLte
)

func (o Op) String() string {
	switch o {
	case OpEq:
		return "eq"
	case OpIn:
		return "in"
	case OpLte:
		return "lte"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

type Cond struct {
	Field string
	Op    Op
	Value interface{}
}

// Filter is a conjunction of conditions. An empty filter matches every
// document in the collection.
type Filter []Cond

func Where(conds ...Cond) Filter {
	return Filter(conds)
}

func Eq(field string, value interface{}) Cond {
	return Cond{Field: field, Op: OpEq, Value: normalize(value)}
}

func ByID(id string) Filter {
	return Where(Eq(IDField, id))
}

func In(field string, values ...interface{}) Cond {
	normalized := make([]interface{}, len(values))
	for i, v := range values {
		normalized[i] = normalize(v)
	}
	return Cond{Field: field, Op: OpIn, Value: normalized}
}

// InStrings is In for the common case of id lists.
func InStrings(field string, values []string) Cond {
	args := make([]interface{}, len(values))
	for i, v := range values {
		args[i] = v
	}
	return In(field, args...)
}

func Lte(field string, value interface{}) Cond {
	return Cond{Field: field, Op: OpLte, Value: normalize(value)}
}

func (f Filter) validate() error {
	for _, c := range f {
		if err := checkIdentifier("field", c.Field); err != nil {
			return err
		}
	}
	return nil
}

func (f Filter) String() string {
	parts := make([]string, len(f))
	for i, c := range f {
		parts[i] = fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Value)
	}
	return strings.Join(parts, " and ")
}

// Matches evaluates the filter against a decoded document.
func (f Filter) Matches(doc Fields) bool {
	for _, c := range f {
		value, ok := doc[c.Field]
		switch c.Op {
		case OpEq:
			if c.Value == nil {
				if value != nil {
					return false
				}
				continue
			}
			if !ok || !equal(value, c.Value) {
				return false
			}
		case OpIn:
			if !ok {
				return false
			}
			found := false
			for _, candidate := range c.Value.([]interface{}) {
				if equal(value, candidate) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		case OpLte:
			if !ok {
				return false
			}
			cmp, comparable := compare(value, c.Value)
			if !comparable || cmp > 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// normalize maps values onto the small set of types the backends compare:
// UTC millisecond times, int64, float64, string and bool.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Truncate(time.Millisecond)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC().Truncate(time.Millisecond)
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case int16:
		return int64(t)
	case int8:
		return int64(t)
	case uint32:
		return int64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}

func equal(a, b interface{}) bool {
	a, b = normalize(a), normalize(b)
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

// compare orders two values of the same normalized type. The second result
// is false when the values cannot be ordered against each other.
func compare(a, b interface{}) (int, bool) {
	a, b = normalize(a), normalize(b)
	switch av := a.(type) {
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return av.Compare(bv), true
	case int64:
		bv, ok := b.(int64)
		if !ok {
			return 0, false
		}
		return cmpOrdered(av, bv), true
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		return cmpOrdered(av, bv), true
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		default:
			return 1, true
		}
	}
	return 0, false
}

func cmpOrdered[T int64 | float64](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
