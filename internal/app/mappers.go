package app

import (
	"encoding/json"
	"errors"
	"fmt"

	"hbnb_api/internal/domain"
)

// View is the public JSON rendering of an entity: its record minus secrets.
type View map[string]any

func ViewOf(e domain.Entity) View {
	m := domain.ToMap(e)
	delete(m, "password")
	return View(m)
}

/********** field rules (single source of truth) **********/

var requiredFields = map[domain.Kind][]string{
	domain.KindState:   {"name"},
	domain.KindCity:    {"name"},
	domain.KindAmenity: {"name"},
	domain.KindUser:    {"email", "password"},
	domain.KindPlace:   {"name", "user_id"},
	domain.KindReview:  {"text", "user_id"},
}

// Never taken from a request body; amenity links have their own routes.
var alwaysIgnored = []string{"id", "created_at", "updated_at", domain.ClassField, "amenity_ids"}

// Additionally frozen once the entity exists.
var frozenOnUpdate = map[domain.Kind][]string{
	domain.KindCity:   {"state_id"},
	domain.KindUser:   {"email"},
	domain.KindPlace:  {"user_id", "city_id"},
	domain.KindReview: {"user_id", "place_id"},
}

func ignoredSet(extra []string) map[string]bool {
	set := make(map[string]bool, len(alwaysIgnored)+len(extra))
	for _, k := range alwaysIgnored {
		set[k] = true
	}
	for _, k := range extra {
		set[k] = true
	}
	return set
}

// checkRequired reports the first required field that is absent or null.
func checkRequired(kind domain.Kind, body map[string]any) error {
	for _, f := range requiredFields[kind] {
		if v, ok := body[f]; !ok || v == nil {
			return &domain.ValidationError{Field: f, Message: "Missing " + f}
		}
	}
	return nil
}

// applyPatch copies the allowed keys of patch onto e. Unknown keys are ignored.
func applyPatch(e domain.Entity, patch map[string]any, ignored map[string]bool) error {
	filtered := make(map[string]any, len(patch))
	for k, v := range patch {
		if !ignored[k] {
			filtered[k] = v
		}
	}
	b, err := json.Marshal(filtered)
	if err != nil {
		return &domain.ValidationError{Message: err.Error()}
	}
	if err := json.Unmarshal(b, e); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) {
			return &domain.ValidationError{Field: te.Field, Message: fmt.Sprintf("%s must be a %s", te.Field, te.Type)}
		}
		return &domain.ValidationError{Message: err.Error()}
	}
	return nil
}

// clone returns a detached copy of e, so edits never leak into a shared
// working set before they are staged.
func clone(e domain.Entity) (domain.Entity, error) {
	rec, err := domain.Record(e)
	if err != nil {
		return nil, err
	}
	return domain.Decode(rec)
}

func cacheKey(k domain.Key) string {
	return "entity:" + string(k.Kind) + ":" + k.ID
}
