package ctc

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ItemResult holds the hypotheses of one batch item, or the error that
// stopped it. A failed item does not affect the rest of the batch.
type ItemResult struct {
	Outputs []Output
	Err     error
}

// BatchOption configures DecodeBatch.
type BatchOption func(*batchOptions)

type batchOptions struct {
	progress func(done, total int)
}

// WithProgress registers fn to be called after every decoded item.
// Calls are serialized; done counts completed items.
func WithProgress(fn func(done, total int)) BatchOption {
	return func(o *batchOptions) {
		o.progress = fn
	}
}

// DecodeBatch decodes every matrix of a batch with a new Decoder.
// See (*Decoder).DecodeBatch.
func DecodeBatch(probs [][][]float64, seqLens []int, cfg Config, numClasses int, opts ...BatchOption) ([]ItemResult, error) {
	d, err := NewDecoder(cfg, numClasses)
	if err != nil {
		return nil, err
	}
	return d.DecodeBatch(probs, seqLens, opts...)
}

// DecodeBatch decodes every matrix of a batch independently and returns the
// results in input order. seqLens holds the declared length of every item;
// nil means every item is decoded in full.
//
// Items are spread over NumProcesses workers. The results do not depend on
// the number of workers.
func (d *Decoder) DecodeBatch(probs [][][]float64, seqLens []int, opts ...BatchOption) ([]ItemResult, error) {
	if seqLens != nil && len(seqLens) != len(probs) {
		return nil, fmt.Errorf("%w: %d sequence lengths for %d items", ErrDimensionMismatch, len(seqLens), len(probs))
	}
	var o batchOptions
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	results := make([]ItemResult, len(probs))
	var mu sync.Mutex
	done := 0
	decodeItem := func(i int) {
		seqLen := len(probs[i])
		if seqLens != nil {
			seqLen = seqLens[i]
		}
		out, err := d.Decode(probs[i], seqLen)
		if err != nil {
			slog.Debug("CTC item failed", "item", i, "error", err)
		}
		results[i] = ItemResult{Outputs: out, Err: err}

		if o.progress != nil {
			mu.Lock()
			done++
			o.progress(done, len(probs))
			mu.Unlock()
		}
	}

	workers := min(d.cfg.NumProcesses, len(probs))
	if workers <= 1 {
		for i := range probs {
			decodeItem(i)
		}
	} else {
		queue := make(chan int, len(probs))
		for i := range probs {
			queue <- i
		}
		close(queue)

		var g errgroup.Group
		for range workers {
			g.Go(func() error {
				for i := range queue {
					decodeItem(i)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	slog.Debug("CTC batch decoded", "items", len(probs), "workers", max(workers, 1), "duration", time.Since(start))
	return results, nil
}
