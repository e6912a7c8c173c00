package driver

import (
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/soundprediction/careergraph/pkg/types"
)

// TypeConversionError represents an error during type conversion from database types.
type TypeConversionError struct {
	Expected string
	Actual   string
	Field    string
}

func (e *TypeConversionError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("type conversion error for field %q: expected %s, got %s", e.Field, e.Expected, e.Actual)
	}
	return fmt.Sprintf("type conversion error: expected %s, got %s", e.Expected, e.Actual)
}

// NewTypeConversionError creates a new TypeConversionError.
func NewTypeConversionError(expected, actual, field string) *TypeConversionError {
	return &TypeConversionError{
		Expected: expected,
		Actual:   actual,
		Field:    field,
	}
}

// AsDBNode safely converts an interface{} to dbtype.Node.
func AsDBNode(v any) (dbtype.Node, bool) {
	if v == nil {
		return dbtype.Node{}, false
	}
	node, ok := v.(dbtype.Node)
	return node, ok
}

// AsString safely converts an interface{} to string.
func AsString(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// AsInt64 safely converts an interface{} to int64.
func AsInt64(v any) (int64, bool) {
	if v == nil {
		return 0, false
	}
	i, ok := v.(int64)
	return i, ok
}

// AsStringSlice converts a Cypher list to []string, skipping nulls and
// non-string elements. The driver returns lists as []any.
func AsStringSlice(v any) ([]string, bool) {
	switch s := v.(type) {
	case []string:
		return s, true
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

// MustDBNode converts an interface{} to dbtype.Node or returns an error.
func MustDBNode(v any, field string) (dbtype.Node, error) {
	node, ok := AsDBNode(v)
	if !ok {
		return dbtype.Node{}, NewTypeConversionError("dbtype.Node", fmt.Sprintf("%T", v), field)
	}
	return node, nil
}

// MustInt64 converts an interface{} to int64 or returns an error.
func MustInt64(v any, field string) (int64, error) {
	i, ok := AsInt64(v)
	if !ok {
		return 0, NewTypeConversionError("int64", fmt.Sprintf("%T", v), field)
	}
	return i, nil
}

// recordString reads an optional string column; null yields "".
func recordString(record *db.Record, key string) string {
	v, _ := record.Get(key)
	s, _ := AsString(v)
	return s
}

// recordStrings reads a list column.
func recordStrings(record *db.Record, key string) []string {
	v, _ := record.Get(key)
	s, _ := AsStringSlice(v)
	return s
}

// recordInt64 reads a required integer column.
func recordInt64(record *db.Record, key string) (int64, error) {
	v, _ := record.Get(key)
	return MustInt64(v, key)
}

// recordNode reads a node column as Properties.
func recordNode(record *db.Record, key string) (types.Properties, error) {
	v, _ := record.Get(key)
	node, err := MustDBNode(v, key)
	if err != nil {
		return nil, err
	}
	return types.Properties(node.Props), nil
}
