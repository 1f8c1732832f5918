package engine

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-hclog"

	"crunch/internal/events"
	"crunch/internal/stats"
)

// DefaultWorkers is half the CPUs, kept between 2 and 8 so large images do
// not saturate disk or memory.
func DefaultWorkers() int {
	return min(max((runtime.NumCPU()+1)/2, 2), 8)
}

// Local converts images in-process.
type Local struct {
	emitter events.Emitter
	logger  hclog.Logger
	workers int
}

// NewLocal returns an engine that reports to emitter. workers <= 0 selects
// DefaultWorkers.
func NewLocal(emitter events.Emitter, logger hclog.Logger, workers int) *Local {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	return &Local{emitter: emitter, logger: logger, workers: workers}
}

type job struct {
	input  string
	output string
}

// Submit converts every input and returns once the completion event has been
// emitted. Per-item failures are reported as failed results, not as an error.
// Cancelling ctx stops scheduling new items and returns ctx.Err() without a
// completion event.
func (l *Local) Submit(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	if err := os.MkdirAll(req.OutputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	total := len(req.Inputs)
	outputs := outputPaths(req.Inputs, req.OutputDir, req.Options.Format.Extension())
	logger := l.logger.With("generation", req.Generation)
	logger.Info("batch started", "files", total, "workers", l.workers, "format", req.Options.Format)

	jobs := make(chan job)
	results := make(chan events.ItemResult)
	var attempted atomic.Int64

	workers := min(l.workers, total)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := range jobs {
				if ctx.Err() != nil {
					return
				}
				current := int(attempted.Add(1))
				l.emit(ctx, logger, events.NameProgress, req.Generation, events.Progress{
					Current:     current,
					Total:       total,
					CurrentFile: j.input,
					Percent:     float64(current) / float64(total) * 100,
				})

				res := convert(j.input, j.output, req.Options)
				if !res.Success {
					logger.Warn("item failed", "path", j.input, "error", res.Error)
				}
				l.emit(ctx, logger, events.NameResult, req.Generation, res)
				results <- res
			}
		}()
	}

	collected := make([]stats.Result, 0, total)
	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)
		for res := range results {
			collected = append(collected, res.StatsResult())
		}
	}()

	go func() {
		defer close(jobs)
		for i, input := range req.Inputs {
			select {
			case jobs <- job{input: input, output: outputs[i]}:
			case <-ctx.Done():
				return
			}
		}
	}()

	wg.Wait()
	close(results)
	<-collectorDone

	if err := ctx.Err(); err != nil {
		logger.Warn("batch interrupted", "attempted", attempted.Load(), "error", err)
		return err
	}

	batch := stats.Calculate(collected)
	l.emit(ctx, logger, events.NameComplete, req.Generation, batch)
	logger.Info("batch finished",
		"successful", batch.SuccessfulFiles,
		"failed", batch.FailedFiles,
		"reduction_percent", fmt.Sprintf("%.1f", batch.OverallReductionPercent))
	return nil
}

// emit publishes one event. A failed emit is logged; the batch keeps going.
func (l *Local) emit(ctx context.Context, logger hclog.Logger, name events.Name, generation uint64, payload any) {
	err := l.emitter.Emit(ctx, events.Event{Name: name, Generation: generation, Payload: payload})
	if err != nil {
		logger.Warn("emit failed", "event", name, "error", err)
	}
}
