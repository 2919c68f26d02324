package domain

import "context"

// Engine is the storage contract shared by the file and relational backends.
// Get returns ErrNotFound for a missing id. All and Count take an empty kind
// to mean every kind.
type Engine interface {
	New(ctx context.Context, e Entity) error
	Save(ctx context.Context) error
	Get(ctx context.Context, kind Kind, id string) (Entity, error)
	All(ctx context.Context, kind Kind) (map[Key]Entity, error)
	Count(ctx context.Context, kind Kind) (int, error)
	Delete(ctx context.Context, e Entity) error
	Reload(ctx context.Context) error
	Close() error
}

// Provider hands out one Engine per unit of work. It is built once at
// process start and closed at shutdown.
type Provider interface {
	Open(ctx context.Context) (Engine, error)
	Close() error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
