package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// DefaultBatchWorkers bounds concurrent requests for providers without a
// native batch endpoint.
const DefaultBatchWorkers = 4

// fanOut calls generate for every text on an ants pool and writes each vector
// into its input slot, so output order never depends on completion order.
func fanOut(ctx context.Context, workers int, texts []string, generate func(context.Context, string) ([]float32, error)) ([][]float32, error) {
	out := make([][]float32, len(texts))
	if len(texts) == 0 {
		return out, nil
	}

	if workers <= 0 {
		workers = DefaultBatchWorkers
	}
	if workers > len(texts) {
		workers = len(texts)
	}

	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	defer pool.Release()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for i, text := range texts {
		i, text := i, text
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			vec, err := generate(ctx, text)
			if err != nil {
				fail(fmt.Errorf("batch item %d: %w", i, err))
				return
			}
			out[i] = vec
		})
		if submitErr != nil {
			wg.Done()
			fail(submitErr)
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
