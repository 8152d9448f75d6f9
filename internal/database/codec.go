package database

import (
	"encoding/json"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// sqlTimeLayout is fixed width so that stored timestamps order correctly as
// text in every SQL dialect.
const sqlTimeLayout = "2006-01-02T15:04:05.000Z"

// toFields flattens a bson-tagged document into Fields.
func toFields(doc interface{}) (Fields, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return fieldsFromBSON(m), nil
}

func fieldsFromBSON(m bson.M) Fields {
	out := make(Fields, len(m))
	for k, v := range m {
		out[k] = fromBSONValue(v)
	}
	return out
}

func fromBSONValue(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.DateTime:
		return t.Time().UTC()
	case bson.M:
		return fieldsFromBSON(t)
	case primitive.D:
		return fieldsFromBSON(t.Map())
	case primitive.A:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = fromBSONValue(item)
		}
		return out
	default:
		return normalize(v)
	}
}

// scanFields decodes Fields into a bson-tagged destination.
func scanFields(f Fields, dest interface{}) error {
	raw, err := bson.Marshal(map[string]interface{}(f))
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	if err := bson.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode fields: %w", err)
	}
	return nil
}

func cloneFields(f Fields) Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		switch t := v.(type) {
		case Fields:
			out[k] = cloneFields(t)
		case []interface{}:
			items := make([]interface{}, len(t))
			copy(items, t)
			out[k] = items
		default:
			out[k] = v
		}
	}
	return out
}

// encodeJSON renders Fields for the SQL backends' document column.
func encodeJSON(f Fields) ([]byte, error) {
	return json.Marshal(jsonValue(f))
}

func jsonValue(v interface{}) interface{} {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(sqlTimeLayout)
	case Fields:
		out := make(map[string]interface{}, len(t))
		for k, item := range t {
			out[k] = jsonValue(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = jsonValue(item)
		}
		return out
	default:
		return v
	}
}
