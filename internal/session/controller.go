// Package session drives one batch at a time: it validates the file list,
// subscribes to engine events, submits the batch and reconciles every event
// into the registry.
//
// Every event carries the generation of the run that produced it. The
// controller advances its generation on each start and cancel and applies an
// event only when the generations match and a batch is processing, so late
// events from a cancelled run are dropped.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"crunch/internal/engine"
	"crunch/internal/events"
	"crunch/internal/notify"
	"crunch/internal/options"
	"crunch/internal/registry"
	"crunch/internal/stats"
)

const (
	fallbackItemError = "Unknown error"
	notifyTimeout     = 5 * time.Second
)

// Submitter runs a batch and reports through events. Submit blocks until the
// batch ends.
type Submitter interface {
	Submit(ctx context.Context, req engine.Request) error
}

// Observer is called with a fresh View after every state change. It runs on
// the goroutine that caused the change and must not block.
type Observer func(View)

type Controller struct {
	bus      *events.Bus
	engine   Submitter
	notifier notify.Notifier
	logger   hclog.Logger
	options  *options.Store

	mu         sync.Mutex
	registry   *registry.Registry
	state      State
	sessionID  string
	generation uint64
	progress   *events.Progress
	stats      *stats.Batch
	errMsg     string
	subs       *events.Group
	completed  bool
	observers  []Observer
}

// Option configures a Controller.
type Option func(*Controller)

func WithNotifier(n notify.Notifier) Option {
	return func(c *Controller) {
		if n != nil {
			c.notifier = n
		}
	}
}

func WithLogger(l hclog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithOptions(store *options.Store) Option {
	return func(c *Controller) {
		if store != nil {
			c.options = store
		}
	}
}

func WithObserver(o Observer) Option {
	return func(c *Controller) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}

func New(bus *events.Bus, eng Submitter, opts ...Option) *Controller {
	c := &Controller{
		bus:      bus,
		engine:   eng,
		notifier: notify.Nop{},
		logger:   hclog.NewNullLogger(),
		options:  options.NewStore(options.Default(), ""),
		registry: registry.New(),
		state:    StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Options is the store the next batch reads its configuration from.
func (c *Controller) Options() *options.Store {
	return c.options
}

func (c *Controller) SetOutputDir(dir string) {
	c.options.SetOutputDir(dir)
	c.publish()
}

// AddFiles adds paths to the list, dropping duplicates, and returns how many
// were new.
func (c *Controller) AddFiles(paths ...string) (int, error) {
	c.mu.Lock()
	if c.state == StateProcessing {
		c.mu.Unlock()
		return 0, ErrSessionActive
	}
	added := c.registry.AddPaths(paths...)
	c.mu.Unlock()

	if added > 0 {
		c.logger.Debug("files added", "added", added, "offered", len(paths))
		c.publish()
	}
	return added, nil
}

// RemoveFile drops a pending file. It is refused while a batch is processing.
func (c *Controller) RemoveFile(path string) error {
	c.mu.Lock()
	if c.state == StateProcessing {
		c.mu.Unlock()
		return ErrSessionActive
	}
	item, ok := c.registry.Get(path)
	if !ok {
		c.mu.Unlock()
		return ErrUnknownFile
	}
	if item.Status != registry.StatusPending {
		c.mu.Unlock()
		return ErrFileNotPending
	}
	c.registry.Remove(path)
	c.mu.Unlock()

	c.publish()
	return nil
}

// ClearFiles empties the list and forgets any statistics. A processing batch
// is cancelled first.
func (c *Controller) ClearFiles() {
	c.mu.Lock()
	if c.state == StateProcessing {
		c.cancelLocked()
	}
	c.registry.Clear()
	c.stats = nil
	c.progress = nil
	c.errMsg = ""
	c.state = StateIdle
	c.mu.Unlock()

	c.publish()
}

// ClearError dismisses the last user-visible error.
func (c *Controller) ClearError() {
	c.mu.Lock()
	c.errMsg = ""
	c.mu.Unlock()
	c.publish()
}

// Cancel abandons the processing batch locally. The engine is not signalled;
// its remaining events are ignored.
func (c *Controller) Cancel() {
	c.mu.Lock()
	if c.state != StateProcessing {
		c.mu.Unlock()
		return
	}
	c.cancelLocked()
	c.mu.Unlock()

	c.publish()
}

func (c *Controller) cancelLocked() {
	c.logger.Info("batch cancelled", "session_id", c.sessionID, "generation", c.generation)
	c.generation++
	c.state = StateIdle
	c.progress = nil
	if c.subs != nil {
		c.subs.Close()
		c.subs = nil
	}
}

// Start runs one batch over every file in the list and blocks until the
// engine returns. It fails with *ValidationError before any side effect when
// the list or output directory is empty, with ErrSessionActive when a batch
// is already processing, and with *SubmissionError when the engine fails.
func (c *Controller) Start(ctx context.Context) error {
	outputDir := c.options.OutputDir()
	opts := c.options.Options()

	c.mu.Lock()
	if c.state == StateProcessing {
		c.mu.Unlock()
		return ErrSessionActive
	}
	if c.registry.Len() == 0 {
		c.mu.Unlock()
		return &ValidationError{Field: "files", Message: "no files selected"}
	}
	if outputDir == "" {
		c.mu.Unlock()
		return &ValidationError{Field: "output_dir", Message: "no output directory selected"}
	}
	if err := opts.Validate(); err != nil {
		c.mu.Unlock()
		return &ValidationError{Field: "options", Message: err.Error()}
	}

	c.generation++
	gen := c.generation
	c.sessionID = uuid.NewString()
	c.state = StateProcessing
	c.stats = nil
	c.errMsg = ""
	c.progress = nil
	c.completed = false
	c.registry.ResetStatuses()
	inputs := c.registry.Paths()

	subs := &events.Group{}
	c.subs = subs
	logger := c.logger.With("session_id", c.sessionID, "generation", gen)
	if err := c.subscribe(ctx, subs, gen, logger); err != nil {
		subs.Close()
		c.subs = nil
		c.state = StateError
		c.errMsg = "Processing failed: " + err.Error()
		c.mu.Unlock()
		c.publish()
		return &SubmissionError{Err: err}
	}
	c.mu.Unlock()

	defer func() {
		logger.Debug("releasing subscriptions", "delivered", subs.Delivered())
		subs.Close()
	}()
	c.publish()

	logger.Info("batch submitted", "files", len(inputs), "output_dir", outputDir, "format", opts.Format)
	err := c.engine.Submit(ctx, engine.Request{
		Generation: gen,
		Inputs:     inputs,
		OutputDir:  outputDir,
		Options:    opts,
	})
	return c.finish(ctx, gen, err, logger)
}

// subscribe opens the progress, result and completion subscriptions. They are
// active on return, before anything is submitted.
func (c *Controller) subscribe(ctx context.Context, subs *events.Group, gen uint64, logger hclog.Logger) error {
	progress, err := events.OnProgress(c.bus, func(evGen uint64, p events.Progress) {
		c.applyProgress(gen, evGen, p)
	})
	if err != nil {
		return err
	}
	subs.Add(progress)

	result, err := events.OnResult(c.bus, func(evGen uint64, r events.ItemResult) {
		c.applyResult(gen, evGen, r)
	})
	if err != nil {
		return err
	}
	subs.Add(result)

	complete, err := events.OnComplete(c.bus, func(evGen uint64, b events.Complete) {
		if c.applyComplete(gen, evGen, b) {
			subs.Close()
			logger.Info("batch completed",
				"successful", b.SuccessfulFiles,
				"failed", b.FailedFiles,
				"reduction_percent", b.OverallReductionPercent)
			c.notify(ctx, b, logger)
		}
	})
	if err != nil {
		return err
	}
	subs.Add(complete)
	return nil
}

// current reports whether an event from evGen, delivered to a handler opened
// for gen, may change state. Callers hold c.mu.
func (c *Controller) current(gen, evGen uint64) bool {
	return gen == evGen && gen == c.generation && c.state == StateProcessing
}

func (c *Controller) applyProgress(gen, evGen uint64, p events.Progress) {
	c.mu.Lock()
	if !c.current(gen, evGen) {
		c.mu.Unlock()
		return
	}
	c.progress = &p
	c.registry.UpdateStatus(p.CurrentFile, registry.StatusProcessing, registry.Fields{})
	c.mu.Unlock()

	c.publish()
}

func (c *Controller) applyResult(gen, evGen uint64, r events.ItemResult) {
	c.mu.Lock()
	if !c.current(gen, evGen) {
		c.mu.Unlock()
		return
	}
	var applied bool
	if r.Success {
		applied = c.registry.UpdateStatus(r.OriginalPath, registry.StatusCompleted, registry.Fields{
			OriginalSizeBytes: &r.OriginalSize,
			OutputPath:        &r.OutputPath,
			OutputSizeBytes:   &r.OutputSize,
			ReductionPercent:  &r.ReductionPercent,
		})
	} else {
		msg := r.Error
		if msg == "" {
			msg = fallbackItemError
		}
		applied = c.registry.UpdateStatus(r.OriginalPath, registry.StatusError, registry.Fields{
			ErrorMessage: &msg,
		})
	}
	c.mu.Unlock()

	if !applied {
		c.logger.Debug("result ignored", "path", r.OriginalPath, "generation", evGen)
		return
	}
	c.publish()
}

// applyComplete stores the batch statistics exactly as the engine reported
// them and reports whether they were applied.
func (c *Controller) applyComplete(gen, evGen uint64, b events.Complete) bool {
	c.mu.Lock()
	if !c.current(gen, evGen) {
		c.mu.Unlock()
		return false
	}
	c.stats = &b
	c.state = StateCompleted
	c.progress = nil
	c.completed = true
	c.subs = nil
	c.mu.Unlock()

	c.publish()
	return true
}

func (c *Controller) notify(ctx context.Context, b stats.Batch, logger hclog.Logger) {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	if err := c.notifier.Notify(nctx, notify.ForBatch(b)); err != nil {
		var nerr *notify.NotificationError
		if !errors.As(err, &nerr) {
			nerr = &notify.NotificationError{Err: err}
		}
		logger.Warn("notification failed", "error", nerr)
	}
}

// finish settles the session once Submit has returned.
func (c *Controller) finish(ctx context.Context, gen uint64, submitErr error, logger hclog.Logger) error {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		logger.Debug("engine returned after cancel", "error", submitErr)
		return ErrCancelled
	}

	switch {
	case submitErr != nil && ctx.Err() != nil && errors.Is(submitErr, ctx.Err()):
		c.cancelLocked()
		c.mu.Unlock()
		c.publish()
		return submitErr

	case submitErr != nil && c.completed:
		c.mu.Unlock()
		logger.Warn("engine failed after reporting completion", "error", submitErr)
		return nil

	case submitErr != nil:
		c.state = StateError
		c.progress = nil
		c.subs = nil
		serr := &SubmissionError{Err: submitErr}
		c.errMsg = serr.Error()
		c.mu.Unlock()
		logger.Error("batch failed", "error", submitErr)
		c.publish()
		return serr

	case !c.completed:
		batch := c.statsFromRegistryLocked()
		c.stats = &batch
		c.state = StateCompleted
		c.progress = nil
		c.completed = true
		c.subs = nil
		c.mu.Unlock()
		logger.Warn("engine returned without a completion event; statistics recomputed",
			"successful", batch.SuccessfulFiles, "failed", batch.FailedFiles)
		c.publish()
		c.notify(ctx, batch, logger)
		return nil

	default:
		c.mu.Unlock()
		return nil
	}
}

// statsFromRegistryLocked recomputes batch statistics from the items that
// reached a terminal status. Callers hold c.mu.
func (c *Controller) statsFromRegistryLocked() stats.Batch {
	var results []stats.Result
	for _, item := range c.registry.Items() {
		switch item.Status {
		case registry.StatusCompleted:
			results = append(results, stats.Result{
				OriginalSize:     item.OriginalSizeBytes,
				OutputSize:       item.OutputSizeBytes,
				ReductionPercent: item.ReductionPercent,
				Success:          true,
			})
		case registry.StatusError:
			results = append(results, stats.Result{})
		}
	}
	return stats.Calculate(results)
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() View {
	outputDir := c.options.OutputDir()
	opts := c.options.Options()

	c.mu.Lock()
	defer c.mu.Unlock()

	v := View{
		SessionID:  c.sessionID,
		Generation: c.generation,
		State:      c.state,
		Items:      c.registry.Items(),
		Counts:     c.registry.Counts(),
		Error:      c.errMsg,
		OutputDir:  outputDir,
		Options:    opts,
	}
	if c.progress != nil {
		p := *c.progress
		v.Progress = &p
	}
	if c.stats != nil {
		s := *c.stats
		v.Stats = &s
	}
	return v
}

// Failures lists the files that failed in the last batch.
func (c *Controller) Failures() []ItemError {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []ItemError
	for _, item := range c.registry.Items() {
		if item.Status == registry.StatusError {
			out = append(out, ItemError{Path: item.Path, Message: item.ErrorMessage})
		}
	}
	return out
}

func (c *Controller) publish() {
	if len(c.observers) == 0 {
		return
	}
	v := c.Snapshot()
	for _, o := range c.observers {
		o(v)
	}
}
