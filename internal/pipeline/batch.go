package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultSuffix selects SpliceAI-annotated inputs in a batch directory.
const DefaultSuffix = ".spliceai.vcf.gz"

// job is one input queued for a batch worker.
type job struct {
	Seq   int
	Input string
}

// jobResult is the outcome of one batch job.
type jobResult struct {
	Seq    int
	Result *Result
	Err    error
}

// FindInputs lists the regular files in dir whose names end in suffix,
// sorted by name. AppleDouble "._" files are skipped.
func FindInputs(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input directory: %w", err)
	}
	var inputs []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, "._") || !strings.HasSuffix(name, suffix) {
			continue
		}
		inputs = append(inputs, filepath.Join(dir, name))
	}
	sort.Strings(inputs)
	return inputs, nil
}

// RunBatch runs an independent pipeline for each input using a pool of
// workers. Each input gets its own sites file (see DerivePerInput). Results
// come back in input order, with nil entries for failed inputs; the
// returned error combines every per-input failure.
// If workers is 0, runtime.NumCPU() is used.
func (r *Runner) RunBatch(ctx context.Context, inputs []string, workers int) ([]*Result, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > len(inputs) {
		workers = max(len(inputs), 1)
	}

	jobs := make(chan job, len(inputs))
	for i, in := range inputs {
		jobs <- job{Seq: i, Input: in}
	}
	close(jobs)

	results := make(chan jobResult, 2*workers)

	var wg sync.WaitGroup
	wg.Add(workers)

	for range workers {
		go func() {
			defer wg.Done()
			for j := range jobs {
				res, err := r.run(ctx, j.Input, DerivePerInput)
				results <- jobResult{Seq: j.Seq, Result: res, Err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]*Result, len(inputs))
	var errs error
	collectOrdered(results, func(jr jobResult) {
		input := inputs[jr.Seq]
		if jr.Err != nil {
			r.logger.Warn("pipeline failed", zap.String("input", input), zap.Error(jr.Err))
			errs = multierr.Append(errs, jr.Err)
			return
		}
		out[jr.Seq] = jr.Result
		r.logger.Info("pipeline finished",
			zap.String("input", input),
			zap.String("subset", jr.Result.Paths.Subset))
	})

	return out, errs
}

// collectOrdered calls fn for each result in sequence-number order.
// Out-of-order results wait in a pending map until their turn.
func collectOrdered(results <-chan jobResult, fn func(jobResult)) {
	pending := make(map[int]jobResult)
	nextSeq := 0

	for r := range results {
		pending[r.Seq] = r

		for {
			rr, ok := pending[nextSeq]
			if !ok {
				break
			}
			delete(pending, nextSeq)
			nextSeq++
			fn(rr)
		}
	}
}
