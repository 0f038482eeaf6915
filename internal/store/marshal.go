package store

import (
	"database/sql"
	"fmt"

	"github.com/roach88/uispec/internal/ir"
)

// marshalValue converts a Value to canonical JSON TEXT for storage.
// Uses RFC 8785 canonical JSON so a stored patch hashes the same as the
// patch that was applied. An undefined value is stored as NULL.
func marshalValue(v ir.Value) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal value: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// marshalParams converts action params to canonical JSON TEXT.
func marshalParams(params ir.Object) (string, error) {
	if params == nil {
		params = ir.Object{}
	}
	data, err := ir.MarshalCanonical(params)
	if err != nil {
		return "", fmt.Errorf("marshal params: %w", err)
	}
	return string(data), nil
}

// unmarshalValue parses stored JSON TEXT. NULL yields an undefined value.
func unmarshalValue(data sql.NullString) (ir.Value, error) {
	if !data.Valid {
		return nil, nil
	}
	v, err := ir.UnmarshalValue([]byte(data.String))
	if err != nil {
		return nil, fmt.Errorf("unmarshal value: %w", err)
	}
	return v, nil
}

// unmarshalParams parses stored params. Empty text yields an empty object.
func unmarshalParams(data string) (ir.Object, error) {
	if data == "" || data == "{}" {
		return ir.Object{}, nil
	}
	v, err := ir.UnmarshalValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal params: %w", err)
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("unmarshal params: expected object, got %s", ir.Kind(v))
	}
	return obj, nil
}
