package relational

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"

	"gorm.io/gorm"

	"hbnb_api/internal/domain"
)

// Storage is one unit of work over a DB. Staged entities are visible to
// reads at once; staged deletions only take effect when Save commits them.
// A Storage is not meant to be shared between goroutines doing unrelated work,
// but its methods are guarded so a handler can fan out safely.
type Storage struct {
	db *DB

	mu sync.Mutex
	sc *scope // nil once closed
}

type scope struct {
	sess    *gorm.DB
	staged  map[domain.Key]domain.Entity
	removed map[domain.Key]domain.Entity
}

// NewStorage opens a fresh scope on db.
func NewStorage(db *DB) *Storage {
	return &Storage{db: db, sc: db.newScope()}
}

func (d *DB) newScope() *scope {
	return &scope{
		sess:    d.gdb.Session(&gorm.Session{NewDB: true}),
		staged:  map[domain.Key]domain.Entity{},
		removed: map[domain.Key]domain.Entity{},
	}
}

func (s *Storage) active(op string) (*scope, error) {
	if s.sc == nil {
		return nil, &domain.StateError{Op: op}
	}
	return s.sc, nil
}

func (s *Storage) New(_ context.Context, e domain.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, err := s.active("new")
	if err != nil {
		return err
	}
	if e == nil {
		return &domain.ValidationError{Message: "nil entity"}
	}
	if e.Meta().ID == "" {
		return &domain.ValidationError{Field: "id", Message: "missing id"}
	}
	k := domain.KeyOf(e)
	sc.staged[k] = e
	delete(sc.removed, k)
	return nil
}

func (s *Storage) Delete(_ context.Context, e domain.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, err := s.active("delete")
	if err != nil {
		return err
	}
	if e == nil {
		return nil
	}
	k := domain.KeyOf(e)
	delete(sc.staged, k)
	sc.removed[k] = e
	return nil
}

func (s *Storage) Get(ctx context.Context, kind domain.Kind, id string) (domain.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, err := s.active("get")
	if err != nil {
		return nil, err
	}
	if e, ok := sc.staged[domain.Key{Kind: kind, ID: id}]; ok {
		return e, nil
	}
	l, ok := loaders[kind]
	if !ok {
		return nil, domain.ErrNotFound
	}
	e, err := l.one(sc.sess.WithContext(ctx), id)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, domain.ErrNotFound
	case err != nil:
		return nil, &domain.PersistenceError{Backend: backend, Op: "get", Err: err}
	}
	return e, nil
}

func (s *Storage) All(ctx context.Context, kind domain.Kind) (map[domain.Key]domain.Entity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, err := s.active("all")
	if err != nil {
		return nil, err
	}

	kinds := domain.Kinds
	if kind != "" {
		kinds = []domain.Kind{kind}
	}
	out := map[domain.Key]domain.Entity{}
	for _, k := range kinds {
		l, ok := loaders[k]
		if !ok {
			continue
		}
		rows, err := l.all(sc.sess.WithContext(ctx))
		if err != nil {
			return nil, &domain.PersistenceError{Backend: backend, Op: "all", Err: err}
		}
		for _, e := range rows {
			out[domain.KeyOf(e)] = e
		}
	}
	for k, e := range sc.staged {
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

// Save commits staged upserts (parents first) and deletions (children first)
// in one transaction. On failure nothing is written and the staged changes
// are kept.
func (s *Storage) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sc, err := s.active("save")
	if err != nil {
		return err
	}
	if len(sc.staged) == 0 && len(sc.removed) == 0 {
		return nil
	}

	err = sc.sess.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, e := range ordered(sc.staged, false) {
			if err := upsert(tx, e); err != nil {
				return err
			}
		}
		for _, e := range ordered(sc.removed, true) {
			if err := remove(tx, e); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &domain.PersistenceError{Backend: backend, Op: "save", Err: err}
	}
	sc.staged = map[domain.Key]domain.Entity{}
	sc.removed = map[domain.Key]domain.Entity{}
	return nil
}

// Reload discards everything staged and starts a fresh scope. An unreachable
// database leaves the current scope as it was.
func (s *Storage) Reload(ctx context.Context) error {
	if err := s.db.sqlDB.PingContext(ctx); err != nil {
		return &domain.PersistenceError{Backend: backend, Op: "reload", Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sc = s.db.newScope()
	return nil
}

// Close releases the scope. Later calls other than Reload and Close fail
// with a StateError.
func (s *Storage) Close() error {
	s.mu.Lock()
	s.sc = nil
	s.mu.Unlock()
	return nil
}

func kindRank(k domain.Kind) int {
	return slices.Index(domain.Kinds, k)
}

func ordered(m map[domain.Key]domain.Entity, reverse bool) []domain.Entity {
	keys := make([]domain.Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := kindRank(keys[i].Kind), kindRank(keys[j].Kind)
		if ri != rj {
			if reverse {
				return ri > rj
			}
			return ri < rj
		}
		return keys[i].ID < keys[j].ID
	})
	out := make([]domain.Entity, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}

func upsert(tx *gorm.DB, e domain.Entity) error {
	if err := tx.Save(e).Error; err != nil {
		return err
	}
	p, ok := e.(*domain.Place)
	if !ok {
		return nil
	}
	if err := tx.Exec(deletePlaceLinksSQL, p.ID).Error; err != nil {
		return err
	}
	links := make([]placeAmenity, 0, len(p.AmenityIDs))
	seen := map[string]bool{}
	for _, id := range p.AmenityIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		links = append(links, placeAmenity{PlaceID: p.ID, AmenityID: id})
	}
	if len(links) == 0 {
		return nil
	}
	return tx.Create(&links).Error
}

func remove(tx *gorm.DB, e domain.Entity) error {
	switch v := e.(type) {
	case *domain.Place:
		if err := tx.Exec(deletePlaceLinksSQL, v.ID).Error; err != nil {
			return err
		}
	case *domain.Amenity:
		if err := tx.Exec(deleteAmenityLinksSQL, v.ID).Error; err != nil {
			return err
		}
	}
	return tx.Delete(e).Error
}

var _ domain.Engine = (*Storage)(nil)
