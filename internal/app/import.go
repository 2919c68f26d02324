package app

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"hbnb_api/internal/domain"
)

// importPhases orders kinds so that association rows always find their
// parents: amenities exist before any place links to them.
var importPhases = [][]domain.Kind{
	{domain.KindState, domain.KindAmenity, domain.KindUser, domain.KindCity},
	{domain.KindPlace, domain.KindReview},
}

type ImportReport struct {
	Imported int
	Failed   int
}

type ImportService struct {
	dst     domain.Provider
	workers int64
	batch   int
}

func NewImportService(dst domain.Provider, workers, batch int) *ImportService {
	if workers < 1 {
		workers = 1
	}
	if batch < 1 {
		batch = 1
	}
	return &ImportService{dst: dst, workers: int64(workers), batch: batch}
}

// Import copies every entity of src into the destination provider. Batches
// commit in independent units of work; a failed batch is logged and counted
// without stopping the others.
func (s *ImportService) Import(ctx context.Context, src domain.Engine) (ImportReport, error) {
	var (
		rep ImportReport
		mu  sync.Mutex
	)
	sem := semaphore.NewWeighted(s.workers)

	for _, phase := range importPhases {
		var batches [][]domain.Entity
		for _, kind := range phase {
			all, err := src.All(ctx, kind)
			if err != nil {
				return rep, err
			}
			batches = append(batches, chunk(sortedEntities(all), s.batch)...)
		}

		var wg sync.WaitGroup
		for _, b := range batches {
			// acquire before launching the goroutine; release inside it
			if err := sem.Acquire(ctx, 1); err != nil {
				wg.Wait()
				return rep, err
			}
			wg.Add(1)
			go func(batch []domain.Entity) {
				defer wg.Done()
				defer sem.Release(1)

				err := s.commit(ctx, batch)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					rep.Failed += len(batch)
					log.Warn().Err(err).
						Str("first", domain.KeyOf(batch[0]).String()).
						Int("size", len(batch)).
						Msg("import batch failed")
					return
				}
				rep.Imported += len(batch)
			}(b)
		}
		wg.Wait()
	}
	return rep, ctx.Err()
}

func (s *ImportService) commit(ctx context.Context, batch []domain.Entity) error {
	eng, err := s.dst.Open(ctx)
	if err != nil {
		return err
	}
	defer eng.Close()
	for _, e := range batch {
		if err := eng.New(ctx, e); err != nil {
			return err
		}
	}
	return eng.Save(ctx)
}

func sortedEntities(all map[domain.Key]domain.Entity) []domain.Entity {
	keys := make([]domain.Key, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].ID < keys[j].ID })
	out := make([]domain.Entity, len(keys))
	for i, k := range keys {
		out[i] = all[k]
	}
	return out
}

func chunk(es []domain.Entity, n int) [][]domain.Entity {
	var out [][]domain.Entity
	for len(es) > n {
		out = append(out, es[:n:n])
		es = es[n:]
	}
	if len(es) > 0 {
		out = append(out, es)
	}
	return out
}
