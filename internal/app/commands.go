package app

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"hbnb_api/internal/domain"
)

// Parent scopes a create under the entity named in the route.
type Parent struct {
	Kind domain.Kind
	ID   string
}

type CommandService struct {
	cache domain.Cache
	gens  *generations
	// HashCost is the bcrypt cost used for user passwords.
	HashCost int
}

func NewCommandService(c domain.Cache) *CommandService {
	return newCommandService(c, &generations{})
}

func newCommandService(c domain.Cache, g *generations) *CommandService {
	if c == nil {
		c = noopCache{}
	}
	return &CommandService{cache: c, gens: g, HashCost: bcrypt.DefaultCost}
}

// Create validates body, checks that every referenced entity exists and
// persists a new entity of kind.
func (s *CommandService) Create(ctx context.Context, eng domain.Engine, kind domain.Kind, parent *Parent, body map[string]any) (View, error) {
	if err := checkRequired(kind, body); err != nil {
		return nil, err
	}
	e, err := domain.New(kind)
	if err != nil {
		return nil, err
	}
	if err := applyPatch(e, body, ignoredSet(nil)); err != nil {
		return nil, err
	}
	if parent != nil {
		if !domain.SetRef(e, parent.Kind, parent.ID) {
			return nil, &domain.ValidationError{Field: string(parent.Kind), Message: "not a parent of " + string(kind)}
		}
	}
	// body-supplied references first, then the route parent
	refs := domain.Refs(e)
	for _, k := range []domain.Kind{domain.KindUser, domain.KindState, domain.KindCity, domain.KindPlace} {
		id, ok := refs[k]
		if !ok || (parent != nil && k == parent.Kind) {
			continue
		}
		if err := mustExist(ctx, eng, k, id); err != nil {
			return nil, err
		}
	}
	if parent != nil {
		if err := mustExist(ctx, eng, parent.Kind, parent.ID); err != nil {
			return nil, err
		}
	}
	if err := s.hashPassword(e); err != nil {
		return nil, err
	}

	if err := eng.New(ctx, e); err != nil {
		return nil, err
	}
	if err := eng.Save(ctx); err != nil {
		return nil, err
	}
	return ViewOf(e), nil
}

// Update applies the mutable keys of body to an existing entity.
func (s *CommandService) Update(ctx context.Context, eng domain.Engine, kind domain.Kind, id string, body map[string]any) (View, error) {
	cur, err := eng.Get(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	e, err := clone(cur)
	if err != nil {
		return nil, err
	}
	if err := applyPatch(e, body, ignoredSet(frozenOnUpdate[kind])); err != nil {
		return nil, err
	}
	// a null password leaves the stored hash alone
	if v, ok := body["password"]; ok && v != nil {
		if err := s.hashPassword(e); err != nil {
			return nil, err
		}
	}
	e.Meta().Touch()

	if err := eng.New(ctx, e); err != nil {
		return nil, err
	}
	if err := eng.Save(ctx); err != nil {
		return nil, err
	}
	s.invalidate(ctx, domain.KeyOf(e))
	return ViewOf(e), nil
}

// Delete removes an entity with everything that references it: a state takes
// its cities, a city its places, a user its places and reviews, a place its
// reviews. Deleting an amenity unlinks it from every place.
func (s *CommandService) Delete(ctx context.Context, eng domain.Engine, kind domain.Kind, id string) error {
	e, err := eng.Get(ctx, kind, id)
	if err != nil {
		return err
	}
	removed := map[domain.Key]bool{}
	if err := s.cascade(ctx, eng, e, removed); err != nil {
		return err
	}
	if a, ok := e.(*domain.Amenity); ok {
		if err := s.unlinkEverywhere(ctx, eng, a.ID, removed); err != nil {
			return err
		}
	}
	if err := eng.Save(ctx); err != nil {
		return err
	}
	for k := range removed {
		s.invalidate(ctx, k)
	}
	return nil
}

func (s *CommandService) cascade(ctx context.Context, eng domain.Engine, e domain.Entity, removed map[domain.Key]bool) error {
	key := domain.KeyOf(e)
	if removed[key] {
		return nil
	}
	removed[key] = true
	for _, child := range domain.Children(key.Kind) {
		all, err := eng.All(ctx, child)
		if err != nil {
			return err
		}
		for _, c := range all {
			if domain.Refs(c)[key.Kind] != key.ID {
				continue
			}
			if err := s.cascade(ctx, eng, c, removed); err != nil {
				return err
			}
		}
	}
	return eng.Delete(ctx, e)
}

func (s *CommandService) unlinkEverywhere(ctx context.Context, eng domain.Engine, amenityID string, removed map[domain.Key]bool) error {
	places, err := eng.All(ctx, domain.KindPlace)
	if err != nil {
		return err
	}
	for k, e := range places {
		if removed[k] || !e.(*domain.Place).HasAmenity(amenityID) {
			continue
		}
		c, err := clone(e)
		if err != nil {
			return err
		}
		p := c.(*domain.Place)
		p.UnlinkAmenity(amenityID)
		p.Touch()
		if err := eng.New(ctx, p); err != nil {
			return err
		}
		removed[k] = true // cached view is stale
	}
	return nil
}

// LinkAmenity attaches an amenity to a place. It reports false when the link
// already existed.
func (s *CommandService) LinkAmenity(ctx context.Context, eng domain.Engine, placeID, amenityID string) (View, bool, error) {
	place, amenity, err := s.placeAndAmenity(ctx, eng, placeID, amenityID)
	if err != nil {
		return nil, false, err
	}
	if place.HasAmenity(amenityID) {
		return ViewOf(amenity), false, nil
	}
	c, err := clone(place)
	if err != nil {
		return nil, false, err
	}
	p := c.(*domain.Place)
	p.AmenityIDs = append(p.AmenityIDs, amenityID)
	p.Touch()
	if err := s.stage(ctx, eng, p); err != nil {
		return nil, false, err
	}
	return ViewOf(amenity), true, nil
}

// UnlinkAmenity detaches an amenity from a place; ErrNotFound when it was
// not linked.
func (s *CommandService) UnlinkAmenity(ctx context.Context, eng domain.Engine, placeID, amenityID string) error {
	place, _, err := s.placeAndAmenity(ctx, eng, placeID, amenityID)
	if err != nil {
		return err
	}
	c, err := clone(place)
	if err != nil {
		return err
	}
	p := c.(*domain.Place)
	if !p.UnlinkAmenity(amenityID) {
		return domain.ErrNotFound
	}
	p.Touch()
	return s.stage(ctx, eng, p)
}

func (s *CommandService) placeAndAmenity(ctx context.Context, eng domain.Engine, placeID, amenityID string) (*domain.Place, domain.Entity, error) {
	p, err := eng.Get(ctx, domain.KindPlace, placeID)
	if err != nil {
		return nil, nil, err
	}
	a, err := eng.Get(ctx, domain.KindAmenity, amenityID)
	if err != nil {
		return nil, nil, err
	}
	return p.(*domain.Place), a, nil
}

func (s *CommandService) stage(ctx context.Context, eng domain.Engine, e domain.Entity) error {
	if err := eng.New(ctx, e); err != nil {
		return err
	}
	if err := eng.Save(ctx); err != nil {
		return err
	}
	s.invalidate(ctx, domain.KeyOf(e))
	return nil
}

func (s *CommandService) hashPassword(e domain.Entity) error {
	u, ok := e.(*domain.User)
	if !ok {
		return nil
	}
	h, err := bcrypt.GenerateFromPassword([]byte(u.Password), s.HashCost)
	if err != nil {
		return &domain.ValidationError{Field: "password", Message: err.Error()}
	}
	u.Password = string(h)
	return nil
}

func (s *CommandService) invalidate(ctx context.Context, k domain.Key) {
	key := cacheKey(k)
	s.gens.bump(key)
	_ = s.cache.Del(ctx, key)
}

func mustExist(ctx context.Context, eng domain.Engine, kind domain.Kind, id string) error {
	if id == "" {
		return domain.ErrNotFound
	}
	if _, err := eng.Get(ctx, kind, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNotFound
		}
		return err
	}
	return nil
}
