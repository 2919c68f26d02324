// Package file keeps the working set in memory and persists it as a single
// JSON document.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/buger/jsonparser"
	"github.com/rs/zerolog/log"

	"hbnb_api/internal/domain"
)

const backend = "file"

// Storage is safe for concurrent use. The working set is shared by every
// caller, so Open hands out the same instance for each unit of work.
type Storage struct {
	path string

	mu      sync.RWMutex // guards objects
	objects map[domain.Key]domain.Entity

	writeMu sync.Mutex // one document replace at a time
}

func New(path string) *Storage {
	return &Storage{path: path, objects: map[domain.Key]domain.Entity{}}
}

// Open builds a Storage and loads the document at path.
func Open(ctx context.Context, path string) (*Storage, error) {
	s := New(path)
	if err := s.Reload(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) Path() string { return s.path }

func (s *Storage) New(_ context.Context, e domain.Entity) error {
	if e == nil {
		return &domain.ValidationError{Message: "nil entity"}
	}
	if e.Meta().ID == "" {
		return &domain.ValidationError{Field: "id", Message: "missing id"}
	}
	s.mu.Lock()
	s.objects[domain.KeyOf(e)] = e
	s.mu.Unlock()
	return nil
}

func (s *Storage) Get(_ context.Context, kind domain.Kind, id string) (domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for k, e := range s.objects {
		if k.Kind == kind && k.ID == id {
			return e, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Storage) All(_ context.Context, kind domain.Kind) (map[domain.Key]domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.Key]domain.Entity, len(s.objects))
	for k, e := range s.objects {
		if kind == "" || k.Kind == kind {
			out[k] = e
		}
	}
	return out, nil
}

func (s *Storage) Count(ctx context.Context, kind domain.Kind) (int, error) {
	all, err := s.All(ctx, kind)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

func (s *Storage) Delete(_ context.Context, e domain.Entity) error {
	if e == nil {
		return nil
	}
	s.mu.Lock()
	delete(s.objects, domain.KeyOf(e))
	s.mu.Unlock()
	return nil
}

// Save writes every tracked entity to a temp file next to the document and
// renames it into place.
func (s *Storage) Save(_ context.Context) error {
	// Snapshot under writeMu so a later writer never loses to an earlier one.
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.RLock()
	doc := make(map[string]map[string]any, len(s.objects))
	for k, e := range s.objects {
		rec, err := domain.Record(e)
		if err != nil {
			s.mu.RUnlock()
			return &domain.PersistenceError{Backend: backend, Op: "save", Err: fmt.Errorf("encode %s: %w", k, err)}
		}
		doc[k.String()] = rec
	}
	s.mu.RUnlock()

	body, err := json.Marshal(doc)
	if err != nil {
		return &domain.PersistenceError{Backend: backend, Op: "save", Err: err}
	}
	if err := replaceFile(s.path, body); err != nil {
		return &domain.PersistenceError{Backend: backend, Op: "save", Err: err}
	}
	return nil
}

func replaceFile(path string, body []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(body); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Reload replaces the working set with the document's contents. A missing,
// empty or unparsable document yields an empty working set; records of
// unknown type are skipped.
func (s *Storage) Reload(_ context.Context) error {
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		data = nil
	case err != nil:
		return &domain.PersistenceError{Backend: backend, Op: "reload", Err: err}
	}

	objects, err := decodeDocument(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.objects = objects
	s.mu.Unlock()
	return nil
}

func decodeDocument(data []byte) (map[domain.Key]domain.Entity, error) {
	objects := map[domain.Key]domain.Entity{}
	if len(bytes.TrimSpace(data)) == 0 {
		return objects, nil
	}
	if !json.Valid(data) {
		log.Warn().Int("bytes", len(data)).Msg("file storage document is corrupt, starting empty")
		return objects, nil
	}

	err := jsonparser.ObjectEach(data, func(key, value []byte, dt jsonparser.ValueType, _ int) error {
		if dt != jsonparser.Object {
			return &domain.ValidationError{Field: string(key), Message: "record is not an object"}
		}
		class, err := jsonparser.GetString(value, domain.ClassField)
		if err != nil {
			return &domain.ValidationError{Field: domain.ClassField, Message: fmt.Sprintf("record %s has no type discriminator", key)}
		}
		if _, ok := domain.ParseKind(class); !ok {
			log.Debug().Str("key", string(key)).Str("class", class).Msg("skipping record of unknown type")
			return nil
		}

		rec := map[string]any{}
		dec := json.NewDecoder(bytes.NewReader(value))
		dec.UseNumber()
		if err := dec.Decode(&rec); err != nil {
			return &domain.ValidationError{Field: string(key), Message: err.Error()}
		}
		e, err := domain.Decode(rec)
		if err != nil {
			return fmt.Errorf("record %s: %w", key, err)
		}
		objects[domain.KeyOf(e)] = e
		return nil
	})
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			return nil, err
		}
		log.Warn().Err(err).Msg("file storage document is corrupt, starting empty")
		return map[domain.Key]domain.Entity{}, nil
	}
	return objects, nil
}

// Close has nothing to release: the working set outlives every unit of work.
func (s *Storage) Close() error { return nil }

// Open implements domain.Provider by sharing the single working set.
func (s *Storage) Open(_ context.Context) (domain.Engine, error) { return s, nil }

var (
	_ domain.Engine   = (*Storage)(nil)
	_ domain.Provider = (*Storage)(nil)
)
