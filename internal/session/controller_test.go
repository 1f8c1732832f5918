package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crunch/internal/engine"
	"crunch/internal/events"
	"crunch/internal/notify"
	"crunch/internal/options"
	"crunch/internal/registry"
	"crunch/internal/stats"
)

// fakeEngine runs script on Submit, emitting on the shared bus with the
// request's generation.
type fakeEngine struct {
	bus    *events.Bus
	script func(ctx context.Context, req engine.Request, emit func(events.Name, any)) error

	mu       sync.Mutex
	requests []engine.Request
}

func (f *fakeEngine) Submit(ctx context.Context, req engine.Request) error {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	emit := func(name events.Name, payload any) {
		_ = f.bus.Emit(context.Background(), events.Event{Name: name, Generation: req.Generation, Payload: payload})
	}
	if f.script == nil {
		return nil
	}
	return f.script(ctx, req, emit)
}

func newController(t *testing.T, script func(context.Context, engine.Request, func(events.Name, any)) error, opts ...Option) (*Controller, *events.Bus, *fakeEngine) {
	t.Helper()
	bus := events.NewBus(hclog.NewNullLogger())
	eng := &fakeEngine{bus: bus, script: script}
	store := options.NewStore(options.Default(), "/out")
	opts = append([]Option{WithOptions(store), WithLogger(hclog.NewNullLogger())}, opts...)
	return New(bus, eng, opts...), bus, eng
}

func subscriberCount(bus *events.Bus) int {
	return bus.SubscriberCount(events.NameProgress) +
		bus.SubscriberCount(events.NameResult) +
		bus.SubscriberCount(events.NameComplete)
}

func TestEndToEndTwoItems(t *testing.T) {
	var notified []notify.Notification
	notifier := notify.Func(func(_ context.Context, n notify.Notification) error {
		notified = append(notified, n)
		return nil
	})

	var afterProgress, afterA, afterB View
	var c *Controller
	c, bus, eng := newController(t, func(_ context.Context, _ engine.Request, emit func(events.Name, any)) error {
		emit(events.NameProgress, events.Progress{Current: 1, Total: 2, CurrentFile: "/in/a.png", Percent: 50})
		afterProgress = c.Snapshot()
		emit(events.NameResult, events.ItemResult{
			OriginalPath: "/in/a.png", OutputPath: "/out/a.webp",
			OriginalSize: 1000, OutputSize: 400, ReductionPercent: 60, Success: true,
		})
		afterA = c.Snapshot()
		emit(events.NameResult, events.ItemResult{OriginalPath: "/in/b.png", Success: false, Error: "decode failed"})
		afterB = c.Snapshot()
		emit(events.NameComplete, stats.Batch{
			TotalFiles: 2, ProcessedFiles: 2, SuccessfulFiles: 1, FailedFiles: 1,
			TotalOriginalSizeBytes: 1000, TotalOutputSizeBytes: 400,
			OverallReductionPercent: 60, AverageReductionPercent: 60, MedianReductionPercent: 60,
		})
		return nil
	}, WithNotifier(notifier))

	added, err := c.AddFiles("/in/a.png", "/in/b.png", "/in/a.png")
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	require.NoError(t, c.Start(context.Background()))

	require.Len(t, eng.requests, 1)
	assert.Equal(t, []string{"/in/a.png", "/in/b.png"}, eng.requests[0].Inputs)
	assert.Equal(t, "/out", eng.requests[0].OutputDir)

	assert.Equal(t, StateProcessing, afterProgress.State)
	require.NotNil(t, afterProgress.Progress)
	assert.Equal(t, "/in/a.png", afterProgress.Progress.CurrentFile)
	assert.Equal(t, registry.StatusProcessing, afterProgress.Items[0].Status)
	assert.Equal(t, registry.StatusPending, afterProgress.Items[1].Status)

	a := afterA.Items[0]
	assert.Equal(t, registry.StatusCompleted, a.Status)
	assert.Equal(t, "/out/a.webp", a.OutputPath)
	assert.Equal(t, int64(1000), a.OriginalSizeBytes)
	assert.Equal(t, int64(400), a.OutputSizeBytes)
	assert.InDelta(t, 60.0, a.ReductionPercent, 1e-9)

	b := afterB.Items[1]
	assert.Equal(t, registry.StatusError, b.Status)
	assert.Equal(t, "decode failed", b.ErrorMessage)

	v := c.Snapshot()
	assert.Equal(t, StateCompleted, v.State)
	assert.True(t, v.Done())
	assert.Nil(t, v.Progress)
	require.NotNil(t, v.Stats)
	assert.Equal(t, stats.Batch{
		TotalFiles: 2, ProcessedFiles: 2, SuccessfulFiles: 1, FailedFiles: 1,
		TotalOriginalSizeBytes: 1000, TotalOutputSizeBytes: 400,
		OverallReductionPercent: 60, AverageReductionPercent: 60, MedianReductionPercent: 60,
	}, *v.Stats)
	assert.Zero(t, subscriberCount(bus))

	require.Len(t, notified, 1)
	assert.Equal(t, "1 images processed, 60.0% smaller", notified[0].Body)

	failures := c.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "/in/b.png", failures[0].Path)
}

func TestStartValidation(t *testing.T) {
	c, bus, eng := newController(t, nil)

	err := c.Start(context.Background())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "files", verr.Field)
	assert.Equal(t, StateIdle, c.Snapshot().State)

	_, err = c.AddFiles("/in/a.png")
	require.NoError(t, err)
	c.SetOutputDir("")
	err = c.Start(context.Background())
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "output_dir", verr.Field)

	assert.Equal(t, StateIdle, c.Snapshot().State)
	assert.Empty(t, eng.requests)
	assert.Zero(t, subscriberCount(bus))
}

func TestSubmitFailure(t *testing.T) {
	c, bus, _ := newController(t, func(context.Context, engine.Request, func(events.Name, any)) error {
		return errors.New("engine unavailable")
	})
	_, err := c.AddFiles("/in/a.png")
	require.NoError(t, err)

	err = c.Start(context.Background())
	var serr *SubmissionError
	require.ErrorAs(t, err, &serr)

	v := c.Snapshot()
	assert.Equal(t, StateError, v.State)
	assert.Equal(t, "Processing failed: engine unavailable", v.Error)
	assert.Zero(t, subscriberCount(bus))

	c.ClearError()
	assert.Empty(t, c.Snapshot().Error)
}

func TestResultFallbackMessageAndUnknownPath(t *testing.T) {
	c, _, _ := newController(t, func(_ context.Context, _ engine.Request, emit func(events.Name, any)) error {
		emit(events.NameResult, events.ItemResult{OriginalPath: "/elsewhere/x.png", Success: true})
		emit(events.NameResult, events.ItemResult{OriginalPath: "/in/a.png", Success: false})
		emit(events.NameComplete, stats.Batch{TotalFiles: 1, FailedFiles: 1})
		return nil
	})
	_, err := c.AddFiles("/in/a.png")
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))

	v := c.Snapshot()
	require.Len(t, v.Items, 1)
	assert.Equal(t, registry.StatusError, v.Items[0].Status)
	assert.Equal(t, "Unknown error", v.Items[0].ErrorMessage)
}

func TestMissingCompletionRecomputesStats(t *testing.T) {
	c, bus, _ := newController(t, func(_ context.Context, _ engine.Request, emit func(events.Name, any)) error {
		emit(events.NameResult, events.ItemResult{OriginalPath: "/in/a.png", OriginalSize: 1000, OutputSize: 500, ReductionPercent: 50, Success: true})
		emit(events.NameResult, events.ItemResult{OriginalPath: "/in/b.png", OriginalSize: 2000, OutputSize: 1000, ReductionPercent: 50, Success: true})
		return nil
	})
	_, err := c.AddFiles("/in/a.png", "/in/b.png")
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))

	v := c.Snapshot()
	assert.Equal(t, StateCompleted, v.State)
	require.NotNil(t, v.Stats)
	assert.Equal(t, 2, v.Stats.SuccessfulFiles)
	assert.InDelta(t, 50.0, v.Stats.OverallReductionPercent, 1e-9)
	assert.Zero(t, subscriberCount(bus))
}

func TestCancelIgnoresLateEvents(t *testing.T) {
	release := make(chan struct{})
	c, bus, _ := newController(t, func(_ context.Context, _ engine.Request, emit func(events.Name, any)) error {
		<-release
		emit(events.NameProgress, events.Progress{Current: 1, Total: 1, CurrentFile: "/in/a.png", Percent: 100})
		emit(events.NameResult, events.ItemResult{OriginalPath: "/in/a.png", Success: true})
		emit(events.NameComplete, stats.Batch{TotalFiles: 1, SuccessfulFiles: 1})
		return nil
	})
	_, err := c.AddFiles("/in/a.png")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- c.Start(context.Background()) }()

	require.Eventually(t, func() bool { return c.Snapshot().State == StateProcessing }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, c.Start(context.Background()), ErrSessionActive)
	_, err = c.AddFiles("/in/b.png")
	assert.ErrorIs(t, err, ErrSessionActive)

	c.Cancel()
	assert.Zero(t, subscriberCount(bus))
	close(release)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrCancelled)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return")
	}

	v := c.Snapshot()
	assert.Equal(t, StateIdle, v.State)
	assert.Nil(t, v.Progress)
	assert.Nil(t, v.Stats)
	assert.Equal(t, registry.StatusPending, v.Items[0].Status)
}

func TestStaleGenerationIgnored(t *testing.T) {
	var bus *events.Bus
	c, bus, _ := newController(t, func(_ context.Context, req engine.Request, _ func(events.Name, any)) error {
		_ = bus.Emit(context.Background(), events.Event{
			Name:       events.NameResult,
			Generation: req.Generation - 1,
			Payload:    events.ItemResult{OriginalPath: "/in/a.png", Success: true},
		})
		return nil
	})
	_, err := c.AddFiles("/in/a.png")
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))

	v := c.Snapshot()
	assert.Equal(t, registry.StatusPending, v.Items[0].Status)
	require.NotNil(t, v.Stats)
	assert.Equal(t, 0, v.Stats.TotalFiles)
}

func TestContextCancelReturnsToIdle(t *testing.T) {
	c, bus, _ := newController(t, func(ctx context.Context, _ engine.Request, _ func(events.Name, any)) error {
		<-ctx.Done()
		return ctx.Err()
	})
	_, err := c.AddFiles("/in/a.png")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, c.Start(ctx), context.Canceled)
	assert.Equal(t, StateIdle, c.Snapshot().State)
	assert.Zero(t, subscriberCount(bus))
}

func TestNotificationFailureDoesNotAffectSession(t *testing.T) {
	failing := notify.Func(func(context.Context, notify.Notification) error {
		return errors.New("permission denied")
	})
	c, _, _ := newController(t, func(_ context.Context, _ engine.Request, emit func(events.Name, any)) error {
		emit(events.NameComplete, stats.Batch{TotalFiles: 1, SuccessfulFiles: 1})
		return nil
	}, WithNotifier(failing))
	_, err := c.AddFiles("/in/a.png")
	require.NoError(t, err)

	require.NoError(t, c.Start(context.Background()))
	v := c.Snapshot()
	assert.Equal(t, StateCompleted, v.State)
	assert.Empty(t, v.Error)
}

func TestRestartResetsStatuses(t *testing.T) {
	run := 0
	c, _, _ := newController(t, func(_ context.Context, _ engine.Request, emit func(events.Name, any)) error {
		run++
		if run == 1 {
			emit(events.NameResult, events.ItemResult{OriginalPath: "/in/a.png", Success: false, Error: "boom"})
			emit(events.NameComplete, stats.Batch{TotalFiles: 1, FailedFiles: 1})
		}
		return nil
	})
	_, err := c.AddFiles("/in/a.png", "/in/b.png")
	require.NoError(t, err)

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, registry.StatusError, c.Snapshot().Items[0].Status)

	require.NoError(t, c.Start(context.Background()))
	v := c.Snapshot()
	require.Len(t, v.Items, 2)
	for _, item := range v.Items {
		assert.Equal(t, registry.StatusPending, item.Status)
		assert.Empty(t, item.ErrorMessage)
		assert.Empty(t, item.OutputPath)
	}
}

func TestClearFiles(t *testing.T) {
	c, _, _ := newController(t, func(_ context.Context, _ engine.Request, emit func(events.Name, any)) error {
		emit(events.NameComplete, stats.Batch{TotalFiles: 1, SuccessfulFiles: 1})
		return nil
	})
	_, err := c.AddFiles("/in/a.png")
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	require.NotNil(t, c.Snapshot().Stats)

	c.ClearFiles()
	v := c.Snapshot()
	assert.Empty(t, v.Items)
	assert.Nil(t, v.Stats)
	assert.Equal(t, StateIdle, v.State)
}

func TestRemoveFile(t *testing.T) {
	c, _, _ := newController(t, func(_ context.Context, _ engine.Request, emit func(events.Name, any)) error {
		emit(events.NameResult, events.ItemResult{OriginalPath: "/in/a.png", Success: true})
		return nil
	})
	_, err := c.AddFiles("/in/a.png", "/in/b.png")
	require.NoError(t, err)

	assert.ErrorIs(t, c.RemoveFile("/in/zzz.png"), ErrUnknownFile)
	require.NoError(t, c.Start(context.Background()))

	assert.ErrorIs(t, c.RemoveFile("/in/a.png"), ErrFileNotPending)
	require.NoError(t, c.RemoveFile("/in/b.png"))
	assert.Len(t, c.Snapshot().Items, 1)
}

func TestObserverSeesEveryChange(t *testing.T) {
	var mu sync.Mutex
	var states []State
	c, _, _ := newController(t, func(_ context.Context, _ engine.Request, emit func(events.Name, any)) error {
		emit(events.NameComplete, stats.Batch{TotalFiles: 1, SuccessfulFiles: 1})
		return nil
	}, WithObserver(func(v View) {
		mu.Lock()
		states = append(states, v.State)
		mu.Unlock()
	}))
	_, err := c.AddFiles("/in/a.png")
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{StateIdle, StateProcessing, StateCompleted}, states)
}
