package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind is the type discriminator stored as __class__ and as the key prefix.
type Kind string

const (
	KindState   Kind = "State"
	KindCity    Kind = "City"
	KindAmenity Kind = "Amenity"
	KindUser    Kind = "User"
	KindPlace   Kind = "Place"
	KindReview  Kind = "Review"
)

// Kinds lists every entity type in parent-before-child order.
var Kinds = []Kind{KindState, KindAmenity, KindUser, KindCity, KindPlace, KindReview}

func ParseKind(s string) (Kind, bool) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// Key addresses an entity across types: ids are only unique per kind.
type Key struct {
	Kind Kind
	ID   string
}

func (k Key) String() string { return string(k.Kind) + "." + k.ID }

// Base carries identity and timestamps shared by every entity.
type Base struct {
	ID        string    `gorm:"primaryKey;size:60" json:"id"`
	CreatedAt time.Time `gorm:"not null;precision:6;autoCreateTime:false" json:"-"`
	UpdatedAt time.Time `gorm:"not null;precision:6;autoUpdateTime:false" json:"-"`
}

// now is truncated to the precision of the stored time format so that values
// survive a save/reload cycle unchanged.
func now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

func NewBase() Base {
	t := now()
	return Base{ID: uuid.NewString(), CreatedAt: t, UpdatedAt: t}
}

func (b *Base) Meta() *Base { return b }

// Touch refreshes UpdatedAt, keeping it at or after CreatedAt.
func (b *Base) Touch() {
	t := now()
	if t.Before(b.CreatedAt) {
		t = b.CreatedAt
	}
	b.UpdatedAt = t
}

type Entity interface {
	Kind() Kind
	Meta() *Base
}

func KeyOf(e Entity) Key { return Key{Kind: e.Kind(), ID: e.Meta().ID} }

// New returns a fresh entity of kind with a generated id and timestamps.
func New(kind Kind) (Entity, error) {
	e, err := zero(kind)
	if err != nil {
		return nil, err
	}
	*e.Meta() = NewBase()
	return e, nil
}

func zero(kind Kind) (Entity, error) {
	switch kind {
	case KindState:
		return &State{}, nil
	case KindCity:
		return &City{}, nil
	case KindAmenity:
		return &Amenity{}, nil
	case KindUser:
		return &User{}, nil
	case KindPlace:
		return &Place{}, nil
	case KindReview:
		return &Review{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}
