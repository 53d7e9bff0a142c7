package records

import (
	"errors"
	"fmt"
	"strconv"
)

// Static errors for row shape checks
var (
	ErrMissingField = errors.New("required field is missing")
	ErrShape        = errors.New("unexpected value shape")
)

// Field is one position of a normalized tuple. A field is either a scalar
// (possibly null) or a list of strings.
type Field struct {
	Values  []string
	List    bool
	Null    bool
	Ordered bool // list order is significant (e.g. coordinate pairs)
}

// Scalar builds a scalar field
func Scalar(value string) Field {
	return Field{Values: []string{value}}
}

// NullScalar builds a null scalar field
func NullScalar() Field {
	return Field{Null: true}
}

// List builds a set-like list field. Duplicates are removed, first-seen order kept.
func List(values []string) Field {
	return Field{Values: unique(values), List: true}
}

// OrderedList builds a list field whose element order and multiplicity are significant
func OrderedList(values []string) Field {
	out := make([]string, len(values))
	copy(out, values)
	return Field{Values: out, List: true, Ordered: true}
}

// Tuple is a normalized row: fields in header order
type Tuple []Field

func unique(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// Row is one raw database row decoded from JSON
type Row map[string]interface{}

// Require returns the value stored under key, failing when the key is absent
func (r Row) Require(key string) (interface{}, error) {
	v, ok := r[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingField, key)
	}
	return v, nil
}

// RequireScalar returns a required scalar field. A present null is kept as null.
func (r Row) RequireScalar(key string) (Field, error) {
	v, err := r.Require(key)
	if err != nil {
		return Field{}, err
	}
	return scalarField(key, v)
}

// Scalar returns an optional scalar field; absent and null both yield a null field
func (r Row) Scalar(key string) (Field, error) {
	return scalarField(key, r[key])
}

func scalarField(key string, v interface{}) (Field, error) {
	if v == nil {
		return NullScalar(), nil
	}
	s, err := Stringify(v)
	if err != nil {
		return Field{}, fmt.Errorf("%s: %w", key, err)
	}
	return Scalar(s), nil
}

// Collection returns the array stored under key. Absent and null yield an empty slice.
func (r Row) Collection(key string) ([]interface{}, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return nil, nil
	}
	items, ok := v.([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %s is %T, not an array", ErrShape, key, v)
	}
	return items, nil
}

// Object returns the nested object stored under key, or nil when absent or null
func (r Row) Object(key string) (Row, error) {
	v, ok := r[key]
	if !ok || v == nil {
		return nil, nil
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: %s is %T, not an object", ErrShape, key, v)
	}
	return Row(obj), nil
}

// Pluck extracts the sub field of every object in the collection under key.
// Null objects and null sub values are skipped; an object without sub is a shape error.
func (r Row) Pluck(key, sub string) ([]string, error) {
	items, err := r.Collection(key)
	if err != nil {
		return nil, err
	}
	return PluckAll(key, items, sub)
}

// PluckAll extracts sub from every object in items
func PluckAll(key string, items []interface{}, sub string) ([]string, error) {
	out := make([]string, 0, len(items))
	for i, item := range items {
		if item == nil {
			continue
		}
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d] is %T, not an object", ErrShape, key, i, item)
		}
		v, ok := obj[sub]
		if !ok {
			return nil, fmt.Errorf("%w: %s[%d].%s", ErrMissingField, key, i, sub)
		}
		if v == nil {
			continue
		}
		s, err := Stringify(v)
		if err != nil {
			return nil, fmt.Errorf("%s[%d].%s: %w", key, i, sub, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// Strings converts the array under key to strings, skipping nulls
func (r Row) Strings(key string) ([]string, error) {
	items, err := r.Collection(key)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		if item == nil {
			continue
		}
		s, err := Stringify(item)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// Stringify renders a decoded JSON scalar as text
func Stringify(v interface{}) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	default:
		return "", fmt.Errorf("%w: %T is not a scalar", ErrShape, v)
	}
}
