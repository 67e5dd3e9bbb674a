package ingest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
)

// maxLineSize bounds a single input line. Wiktionary records for common
// words run to a few hundred kilobytes.
const maxLineSize = 64 * 1024 * 1024

// StreamOptions configures StreamBatches.
type StreamOptions struct {
	// BatchSize is the number of lines read, processed and awaited together.
	BatchSize int
	// Workers is the number of goroutines parsing lines of a batch.
	Workers int
	// OnSkip is called, in line order, for every line whose parse failed.
	OnSkip func(line int, err error)
	// OnBatch is called after each batch has been applied.
	OnBatch func(stats StreamStats)
}

// StreamStats counts the work done by StreamBatches.
type StreamStats struct {
	Read      int
	Processed int
	Skipped   int
	Batches   int
}

type lineResult[T any] struct {
	value T
	err   error
}

// StreamBatches reads r line by line in windows of at most BatchSize
// non-blank lines. Each window is parsed concurrently on a worker pool and
// awaited as a group; the parsed values are then passed to apply in input
// order before the next window is read. At most BatchSize lines are held
// or in flight at any time.
func StreamBatches[T any](ctx context.Context, r io.Reader, opts StreamOptions, parse func(ctx context.Context, line []byte) (T, error), apply func(T)) (StreamStats, error) {
	var stats StreamStats
	if opts.BatchSize <= 0 {
		return stats, fmt.Errorf("batch size must be positive, got %d", opts.BatchSize)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := NewWorkerPool(opts.Workers, opts.BatchSize)
	pool.Start(ctx)
	defer pool.Close()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), maxLineSize)

	lineNo := 0
	batch := make([][]byte, 0, opts.BatchSize)
	numbers := make([]int, 0, opts.BatchSize)
	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		batch, numbers = batch[:0], numbers[:0]
		for len(batch) < opts.BatchSize && scanner.Scan() {
			lineNo++
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			batch = append(batch, append([]byte(nil), line...))
			numbers = append(numbers, lineNo)
		}
		if err := scanner.Err(); err != nil {
			return stats, fmt.Errorf("read line %d: %w", lineNo+1, err)
		}
		if len(batch) == 0 {
			break
		}
		stats.Read += len(batch)

		results := make([]lineResult[T], len(batch))
		finished := make(chan struct{}, len(batch))
		for i := range batch {
			idx := i
			job := func(ctx context.Context) error {
				v, err := parse(ctx, batch[idx])
				results[idx] = lineResult[T]{value: v, err: err}
				finished <- struct{}{}
				return err
			}
			if err := pool.SubmitCtx(ctx, job); err != nil {
				return stats, err
			}
		}
		for range batch {
			select {
			case <-finished:
				stats.Processed++
			case <-ctx.Done():
				return stats, ctx.Err()
			}
		}

		stats.Batches++
		for i, res := range results {
			switch {
			case res.err != nil:
				stats.Skipped++
				if opts.OnSkip != nil {
					opts.OnSkip(numbers[i], res.err)
				}
			default:
				apply(res.value)
			}
		}
		if opts.OnBatch != nil {
			opts.OnBatch(stats)
		}
	}
	return stats, nil
}
