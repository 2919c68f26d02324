package storage

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"hbnb_api/internal/adapters/observability"
	"hbnb_api/internal/domain"
)

type instrumentedProvider struct {
	next    domain.Provider
	backend string
}

// Instrument records metrics and debug logs for every engine p opens.
func Instrument(p domain.Provider, backend string) domain.Provider {
	return &instrumentedProvider{next: p, backend: backend}
}

func (p *instrumentedProvider) Open(ctx context.Context) (domain.Engine, error) {
	e, err := p.next.Open(ctx)
	if err != nil {
		return nil, err
	}
	return &instrumentedEngine{next: e, backend: p.backend}, nil
}

func (p *instrumentedProvider) Close() error { return p.next.Close() }

type instrumentedEngine struct {
	next    domain.Engine
	backend string
}

func (e *instrumentedEngine) observe(op string, start time.Time, err error) {
	dur := time.Since(start)
	observability.ObserveStorage(e.backend, op, err, dur)
	log.Debug().
		Str("backend", e.backend).
		Str("op", op).
		Str("outcome", observability.Outcome(err)).
		Dur("duration", dur).
		Msg("storage")
}

func (e *instrumentedEngine) New(ctx context.Context, ent domain.Entity) (err error) {
	defer func(t time.Time) { e.observe("new", t, err) }(time.Now())
	return e.next.New(ctx, ent)
}

func (e *instrumentedEngine) Save(ctx context.Context) (err error) {
	defer func(t time.Time) { e.observe("save", t, err) }(time.Now())
	return e.next.Save(ctx)
}

func (e *instrumentedEngine) Get(ctx context.Context, kind domain.Kind, id string) (ent domain.Entity, err error) {
	defer func(t time.Time) { e.observe("get", t, err) }(time.Now())
	return e.next.Get(ctx, kind, id)
}

func (e *instrumentedEngine) All(ctx context.Context, kind domain.Kind) (m map[domain.Key]domain.Entity, err error) {
	defer func(t time.Time) { e.observe("all", t, err) }(time.Now())
	return e.next.All(ctx, kind)
}

func (e *instrumentedEngine) Count(ctx context.Context, kind domain.Kind) (n int, err error) {
	defer func(t time.Time) { e.observe("count", t, err) }(time.Now())
	return e.next.Count(ctx, kind)
}

func (e *instrumentedEngine) Delete(ctx context.Context, ent domain.Entity) (err error) {
	defer func(t time.Time) { e.observe("delete", t, err) }(time.Now())
	return e.next.Delete(ctx, ent)
}

func (e *instrumentedEngine) Reload(ctx context.Context) (err error) {
	defer func(t time.Time) { e.observe("reload", t, err) }(time.Now())
	return e.next.Reload(ctx)
}

func (e *instrumentedEngine) Close() error { return e.next.Close() }
