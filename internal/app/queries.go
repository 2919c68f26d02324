package app

import (
	"context"
	"errors"
	"sort"
	"strings"

	"hbnb_api/internal/domain"
)

type QueryService struct {
	cache      domain.Cache
	ttlSeconds int
	gens       *generations
}

// NewQueryService reads through c; a nil c disables caching.
func NewQueryService(c domain.Cache, ttlSeconds int) *QueryService {
	return newQueryService(c, ttlSeconds, &generations{})
}

func newQueryService(c domain.Cache, ttlSeconds int, g *generations) *QueryService {
	if c == nil {
		c = noopCache{}
	}
	return &QueryService{cache: c, ttlSeconds: ttlSeconds, gens: g}
}

// NewServices builds the query and command services over one cache. A read
// that races a write never stores the view the write invalidated.
func NewServices(c domain.Cache, ttlSeconds int) (*QueryService, *CommandService) {
	g := &generations{}
	return newQueryService(c, ttlSeconds, g), newCommandService(c, g)
}

func (s *QueryService) Get(ctx context.Context, eng domain.Engine, kind domain.Kind, id string) (View, error) {
	key := cacheKey(domain.Key{Kind: kind, ID: id})
	var v View
	if ok, _ := s.cache.Get(ctx, key, &v); ok {
		return v, nil
	}
	gen := s.gens.of(key)
	e, err := eng.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	v = ViewOf(e)
	if s.gens.of(key) != gen {
		return v, nil
	}
	_ = s.cache.Set(ctx, key, v, s.ttlSeconds)
	// an invalidation between the check and Set may have missed the entry
	if s.gens.of(key) != gen {
		_ = s.cache.Del(ctx, key)
	}
	return v, nil
}

// List renders every entity of kind, oldest first.
func (s *QueryService) List(ctx context.Context, eng domain.Engine, kind domain.Kind) ([]View, error) {
	all, err := eng.All(ctx, kind)
	if err != nil {
		return nil, err
	}
	return sortedViews(all, nil), nil
}

// ListChildren renders the entities of kind child that point at the given
// parent. The parent must exist.
func (s *QueryService) ListChildren(ctx context.Context, eng domain.Engine, parent domain.Kind, parentID string, child domain.Kind) ([]View, error) {
	if _, err := eng.Get(ctx, parent, parentID); err != nil {
		return nil, err
	}
	all, err := eng.All(ctx, child)
	if err != nil {
		return nil, err
	}
	return sortedViews(all, func(e domain.Entity) bool {
		return domain.Refs(e)[parent] == parentID
	}), nil
}

// Stats counts every kind, keyed by its lower-case name.
func (s *QueryService) Stats(ctx context.Context, eng domain.Engine) (map[string]int, error) {
	out := make(map[string]int, len(domain.Kinds))
	for _, k := range domain.Kinds {
		n, err := eng.Count(ctx, k)
		if err != nil {
			return nil, err
		}
		out[strings.ToLower(string(k))] = n
	}
	return out, nil
}

// PlaceAmenities renders the amenities linked to a place. Links to amenities
// that no longer exist are skipped.
func (s *QueryService) PlaceAmenities(ctx context.Context, eng domain.Engine, placeID string) ([]View, error) {
	e, err := eng.Get(ctx, domain.KindPlace, placeID)
	if err != nil {
		return nil, err
	}
	out := []View{}
	for _, id := range e.(*domain.Place).AmenityIDs {
		a, err := eng.Get(ctx, domain.KindAmenity, id)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			continue
		case err != nil:
			return nil, err
		}
		out = append(out, ViewOf(a))
	}
	return out, nil
}

func sortedViews(all map[domain.Key]domain.Entity, keep func(domain.Entity) bool) []View {
	es := make([]domain.Entity, 0, len(all))
	for _, e := range all {
		if keep == nil || keep(e) {
			es = append(es, e)
		}
	}
	sort.Slice(es, func(i, j int) bool {
		a, b := es[i].Meta(), es[j].Meta()
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	out := make([]View, len(es))
	for i, e := range es {
		out[i] = ViewOf(e)
	}
	return out
}

type noopCache struct{}

func (noopCache) Get(context.Context, string, any) (bool, error) { return false, nil }
func (noopCache) Set(context.Context, string, any, int) error    { return nil }
func (noopCache) Del(context.Context, string) error              { return nil }
