package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const (
	// TimeLayout is the textual timestamp format of persisted records.
	TimeLayout = "2006-01-02T15:04:05.000000"
	ClassField = "__class__"
)

// Record converts e to its plain key-value record, including __class__ and
// formatted timestamps.
func Record(e Entity) (map[string]any, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, &ValidationError{Field: string(e.Kind()), Message: err.Error()}
	}
	m := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		return nil, &ValidationError{Field: string(e.Kind()), Message: err.Error()}
	}

	meta := e.Meta()
	m[ClassField] = string(e.Kind())
	m["created_at"] = meta.CreatedAt.UTC().Format(TimeLayout)
	m["updated_at"] = meta.UpdatedAt.UTC().Format(TimeLayout)
	return m, nil
}

// ToMap is Record for rendering. An entity that cannot be encoded renders as
// its identity fields only; writers go through Record.
func ToMap(e Entity) map[string]any {
	m, err := Record(e)
	if err != nil {
		meta := e.Meta()
		return map[string]any{
			ClassField:   string(e.Kind()),
			"id":         meta.ID,
			"created_at": meta.CreatedAt.UTC().Format(TimeLayout),
			"updated_at": meta.UpdatedAt.UTC().Format(TimeLayout),
		}
	}
	return m
}

// Decode rebuilds an entity from a stored record, dispatching on __class__.
// Unknown discriminators yield ErrUnknownKind so that readers can skip them.
func Decode(rec map[string]any) (Entity, error) {
	class, _ := rec[ClassField].(string)
	if class == "" {
		return nil, &ValidationError{Field: ClassField, Message: "missing type discriminator"}
	}
	kind, ok := ParseKind(class)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, class)
	}
	return decodeAs(kind, rec)
}

func decodeAs(kind Kind, rec map[string]any) (Entity, error) {
	id, _ := rec["id"].(string)
	if id == "" {
		return nil, &ValidationError{Field: "id", Message: "missing id"}
	}
	e, err := zero(kind)
	if err != nil {
		return nil, err
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}
	if err := json.Unmarshal(b, e); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	meta := e.Meta()
	if meta.CreatedAt, err = parseTime(rec, "created_at"); err != nil {
		return nil, err
	}
	if meta.UpdatedAt, err = parseTime(rec, "updated_at"); err != nil {
		return nil, err
	}
	if meta.UpdatedAt.Before(meta.CreatedAt) {
		meta.UpdatedAt = meta.CreatedAt
	}
	return e, nil
}

// parseTime reads a record timestamp; records written without one get the
// current time, as freshly constructed entities do.
func parseTime(rec map[string]any, field string) (time.Time, error) {
	raw, ok := rec[field]
	if !ok || raw == nil {
		return now(), nil
	}
	s, ok := raw.(string)
	if !ok {
		return time.Time{}, &ValidationError{Field: field, Message: "timestamp must be a string"}
	}
	for _, layout := range []string{TimeLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &ValidationError{Field: field, Message: fmt.Sprintf("bad timestamp %q", s)}
}
