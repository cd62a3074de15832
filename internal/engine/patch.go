package engine

import (
	"bytes"
	"encoding/json"
	"reflect"
	"strings"

	"taskdeck/internal/domain"
)

// Field is one optional patch value. Set records that the key was present,
// Null that it was present as JSON null.
type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

func (f *Field[T]) UnmarshalJSON(b []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		var zero T
		f.Null, f.Value = true, zero
		return nil
	}
	return json.Unmarshal(b, &f.Value)
}

// TaskPatch declares the task fields a client may change. Its json tags are
// the update allow-list: DecodeTaskPatch rejects any other key and Apply
// writes exactly the fields that were present.
type TaskPatch struct {
	Title       Field[string]          `json:"title"`
	Description Field[string]          `json:"description"`
	Status      Field[domain.Status]   `json:"status"`
	Priority    Field[domain.Priority] `json:"priority"`
	DueDate     Field[string]          `json:"dueDate"`
}

const invalidUpdates = "Invalid updates"

var patchFields = allowList(reflect.TypeOf(TaskPatch{}))

func allowList(t reflect.Type) map[string]struct{} {
	fields := make(map[string]struct{}, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			fields[name] = struct{}{}
		}
	}
	return fields
}

// DecodeTaskPatch parses a JSON object into a TaskPatch. Any key outside the
// allow-list, or a body that is not an object, fails the whole patch.
func DecodeTaskPatch(raw []byte) (TaskPatch, error) {
	var patch TaskPatch
	if len(bytes.TrimSpace(raw)) == 0 {
		return patch, nil
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil || keys == nil {
		return patch, invalid(invalidUpdates)
	}
	for k := range keys {
		if _, ok := patchFields[k]; !ok {
			return patch, invalid(invalidUpdates)
		}
	}
	if err := json.Unmarshal(raw, &patch); err != nil {
		return patch, invalid(invalidUpdates)
	}
	return patch, patch.Validate()
}

// Validate checks value constraints of the present fields.
func (p TaskPatch) Validate() error {
	if p.Title.Set && (p.Title.Null || strings.TrimSpace(p.Title.Value) == "") {
		return invalid("Title cannot be empty")
	}
	if p.Status.Set && !p.Status.Value.Valid() {
		return invalid("Status must be one of: todo, in-progress, done")
	}
	if p.Priority.Set && !p.Priority.Value.Valid() {
		return invalid("Priority must be one of: low, medium, high")
	}
	if p.DueDate.Set && !p.DueDate.Null && strings.TrimSpace(p.DueDate.Value) != "" {
		if _, err := domain.ParseDate(p.DueDate.Value); err != nil {
			return invalid("Invalid due date")
		}
	}
	return nil
}

// Apply writes the present fields onto t. Callers validate first.
func (p TaskPatch) Apply(t *domain.Task) {
	if p.Title.Set {
		t.Title = strings.TrimSpace(p.Title.Value)
	}
	if p.Description.Set {
		t.Description = p.Description.Value
	}
	if p.Status.Set {
		t.Status = p.Status.Value
	}
	if p.Priority.Set {
		t.Priority = p.Priority.Value
	}
	if p.DueDate.Set {
		t.DueDate = nil
		if !p.DueDate.Null && strings.TrimSpace(p.DueDate.Value) != "" {
			if due, err := domain.ParseDate(p.DueDate.Value); err == nil {
				t.DueDate = &due
			}
		}
	}
}
