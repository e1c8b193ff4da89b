package extract

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// PrefetchConfig holds prefetch worker pool configuration.
type PrefetchConfig struct {
	// MaxConcurrency is the number of parallel extraction workers
	MaxConcurrency int
	// Timeout per unit extraction
	Timeout time.Duration
}

// DefaultPrefetchConfig returns a configuration suited to local extraction.
func DefaultPrefetchConfig() PrefetchConfig {
	return PrefetchConfig{
		MaxConcurrency: 4,
		Timeout:        30 * time.Second,
	}
}

// unitResult is the outcome of extracting a single unit.
type unitResult struct {
	UnitID int
	Text   string
	Err    error
}

// Prefetch extracts unitIDs in parallel. Extraction is local work and is not
// subject to the generation quota, so warming a Cached extractor before a
// session keeps the sequential batch loop waiting only on the remote service.
//
// The returned map holds every unit that succeeded. On failure the first
// error is returned together with the partial results.
func Prefetch(ctx context.Context, ex Extractor, unitIDs []int, cfg PrefetchConfig) (map[int]string, error) {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	start := time.Now()

	results := make(map[int]string, len(unitIDs))
	if len(unitIDs) == 0 {
		return results, nil
	}

	queue := make(chan int, len(unitIDs))
	out := make(chan unitResult, len(unitIDs))
	for _, id := range unitIDs {
		queue <- id
	}
	close(queue)

	var wg sync.WaitGroup
	for i := 0; i < min(cfg.MaxConcurrency, len(unitIDs)); i++ {
		wg.Add(1)
		go prefetchWorker(ctx, ex, cfg.Timeout, queue, out, &wg, i)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	var (
		firstErr error
		failed   int
	)
	for r := range out {
		if r.Err != nil {
			failed++
			if firstErr == nil {
				firstErr = r.Err
			}
			log.Warn().
				Err(r.Err).
				Int("unit", r.UnitID).
				Msg("Unit prefetch failed")
			continue
		}
		results[r.UnitID] = r.Text
	}

	log.Info().
		Int("units", len(results)).
		Int("failed", failed).
		Dur("duration", time.Since(start)).
		Msg("Prefetch complete")

	if firstErr != nil {
		return results, fmt.Errorf("prefetch (partial data: %d/%d units): %w", len(results), len(unitIDs), firstErr)
	}
	return results, nil
}

// prefetchWorker processes units from the queue.
func prefetchWorker(ctx context.Context, ex Extractor, timeout time.Duration, queue <-chan int, out chan<- unitResult, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for id := range queue {
		if ctx.Err() != nil {
			out <- unitResult{UnitID: id, Err: &Error{UnitID: id, Err: ctx.Err()}}
			continue
		}

		unitCtx, cancel := context.WithTimeout(ctx, timeout)
		text, err := ex.Extract(unitCtx, id)
		cancel()

		out <- unitResult{UnitID: id, Text: text, Err: err}
		processed++
	}

	log.Debug().
		Int("worker_id", workerID).
		Int("units_processed", processed).
		Msg("Prefetch worker completed")
}
