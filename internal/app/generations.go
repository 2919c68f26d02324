package app

import (
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// generations counts cache invalidations per key, striped so memory stays
// fixed. Two keys sharing a stripe only cost a skipped cache fill.
type generations struct {
	stripes [256]atomic.Uint64
}

func (g *generations) of(key string) uint64 { return g.stripe(key).Load() }

func (g *generations) bump(key string) { g.stripe(key).Add(1) }

func (g *generations) stripe(key string) *atomic.Uint64 {
	return &g.stripes[xxhash.Sum64String(key)%uint64(len(g.stripes))]
}
