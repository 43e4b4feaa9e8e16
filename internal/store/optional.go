package store

import (
	"bytes"
	"encoding/json"
)

// Optional distinguishes a field that was not supplied from one that was
// explicitly cleared. The zero value means "absent, leave unchanged".
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns a set, non-null Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Clear returns an Optional that explicitly unsets the field.
func Clear[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

// UnmarshalJSON marks the field as set. A JSON null marks it as cleared.
// Absent keys never reach UnmarshalJSON and so stay unset.
func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(b, &o.Value)
}
