package models

import "encoding/json"

// Field is an optional JSON value that tells "absent" apart from "null".
// Set is false when the key was missing.
type Field[T any] struct {
	Set   bool
	Value *T
}

// SetField returns a field holding v.
func SetField[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: &v}
}

// Null returns a field explicitly set to null.
func Null[T any]() Field[T] {
	return Field[T]{Set: true}
}

// IsNull reports whether the field was present with a null value.
func (f Field[T]) IsNull() bool {
	return f.Set && f.Value == nil
}

// UnmarshalJSON only runs when the key is present.
func (f *Field[T]) UnmarshalJSON(b []byte) error {
	f.Set = true
	if string(b) == "null" {
		f.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	f.Value = &v
	return nil
}

// MarshalJSON writes null for an unset value. Pair with the omitzero tag
// option so absent fields are left out.
func (f Field[T]) MarshalJSON() ([]byte, error) {
	if f.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*f.Value)
}

// Sentinels accepted in a CardPatch to clear a field.
const (
	Unassigned = "unassigned"
	NoTag      = "none"
)

// CardPatch is a partial card update. Absent fields are left alone. Null, an
// empty due date, Unassigned and NoTag clear the corresponding field.
type CardPatch struct {
	Title       Field[string] `json:"title,omitzero"`
	Description Field[string] `json:"description,omitzero"`
	DueDate     Field[string] `json:"due_date,omitzero"`
	Priority    Field[string] `json:"priority,omitzero"`
	AssigneeID  Field[string] `json:"assignee_id,omitzero"`
	Tag         Field[string] `json:"tag,omitzero"`
}

// Empty reports whether the patch changes nothing.
func (p CardPatch) Empty() bool {
	return !p.Title.Set && !p.Description.Set && !p.DueDate.Set &&
		!p.Priority.Set && !p.AssigneeID.Set && !p.Tag.Set
}
