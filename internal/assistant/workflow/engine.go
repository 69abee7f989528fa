package workflow

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lyric-assistant-core/server/internal/assistant/model"
	logx "github.com/lyric-assistant-core/server/pkg/logger"
)

const DefaultStepDelay = 400 * time.Millisecond

var (
	ErrUnknownWorkflow = errors.New("unknown workflow")
	ErrRunActive       = errors.New("a workflow run is already active")
	ErrNotRunning      = errors.New("workflow is not running")
	ErrNotPaused       = errors.New("workflow is not paused")
	ErrNothingToSkip   = errors.New("no step to skip")
)

// Runner executes one tool call. *invoker.Invoker satisfies it.
type Runner interface {
	Execute(ctx context.Context, toolID string, params map[string]any) (*model.Result, error)
	Session() model.SessionContext
}

type Option func(*Engine)

func WithStepDelay(d time.Duration) Option {
	return func(e *Engine) { e.delay = d }
}

func WithCatalog(c *Catalog) Option {
	return func(e *Engine) { e.catalog = c }
}

func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// held is the last step's outcome when it settled while the run was paused.
type held struct {
	idx int
	out model.StepOutcome
}

// loop is one drive goroutine bound to the epoch it was started for.
type loop struct {
	epoch uint64
	done  chan struct{}
}

// Engine drives one workflow run at a time.
//
// Start and Resume block while they drive steps; Pause, Skip and Cancel may be
// called from other goroutines. An in-flight tool call is never aborted: when
// it settles, its result is dropped if the run was cancelled or moved past
// that step in the meantime.
type Engine struct {
	mu        sync.Mutex
	runner    Runner
	catalog   *Catalog
	delay     time.Duration
	observers []Observer

	run   *model.WorkflowRun
	epoch uint64
	loop  *loop
	held  *held
}

func NewEngine(runner Runner, opts ...Option) *Engine {
	e := &Engine{
		runner: runner,
		delay:  DefaultStepDelay,
		run:    model.NewIdleRun(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.catalog == nil {
		e.catalog = DefaultCatalog()
	}
	return e
}

// Run returns a snapshot of the current run.
func (e *Engine) Run() *model.WorkflowRun {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.run.Clone()
}

func (e *Engine) Progress() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.run.Progress()
}

// Start begins a fresh run of workflow id and drives it until it completes,
// fails, pauses or is cancelled.
func (e *Engine) Start(ctx context.Context, id string) error {
	return e.StartWith(ctx, id, nil)
}

// StartWith is Start with seed params merged into the first step's call.
func (e *Engine) StartWith(ctx context.Context, id string, seed map[string]any) error {
	wf, ok := e.catalog.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownWorkflow, id)
	}

	// A cancelled run may still have a call in flight; let it settle first.
	for {
		e.mu.Lock()
		if e.run.Status == model.RunRunning || e.run.Status == model.RunPaused {
			e.mu.Unlock()
			return ErrRunActive
		}
		prev := e.loop
		if prev == nil {
			break
		}
		e.mu.Unlock()
		select {
		case <-prev.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	e.epoch++
	e.held = nil
	e.run = &model.WorkflowRun{
		ID:          uuid.NewString(),
		Workflow:    wf,
		StepResults: map[int]model.StepOutcome{},
		Status:      model.RunRunning,
		StartedAt:   time.Now(),
	}
	l := e.startLoopLocked()
	ev := e.eventLocked(EventStatusChanged, -1)
	e.mu.Unlock()

	logx.Info().Str("workflow_id", wf.ID).Str("run_id", ev.RunID).Int("steps", len(wf.Steps)).Msg("workflow started")
	e.emit(ev)
	return e.drive(ctx, l, seed)
}

// Pause stops the run before its next step. A call already in flight finishes
// and its result is kept.
func (e *Engine) Pause() error {
	e.mu.Lock()
	if e.run.Status != model.RunRunning {
		e.mu.Unlock()
		return ErrNotRunning
	}
	e.run.Status = model.RunPaused
	ev := e.eventLocked(EventStatusChanged, e.run.CurrentStepIndex)
	e.mu.Unlock()

	e.emit(ev)
	return nil
}

// Resume continues a paused run from its current step. If the original drive
// loop is still waiting on a call it picks the run back up and Resume returns
// at once; otherwise Resume drives the remaining steps itself.
func (e *Engine) Resume(ctx context.Context) error {
	e.mu.Lock()
	if e.run.Status != model.RunPaused {
		e.mu.Unlock()
		return ErrNotPaused
	}
	e.run.Status = model.RunRunning
	ev := e.eventLocked(EventStatusChanged, e.run.CurrentStepIndex)
	if h := e.held; h != nil {
		e.held = nil
		events := append([]Event{ev}, e.storeLocked(h.idx, h.out)...)
		e.mu.Unlock()
		e.emit(events...)
		return nil
	}
	if e.loop != nil && e.loop.epoch == e.epoch {
		e.mu.Unlock()
		e.emit(ev)
		return nil
	}
	l := e.startLoopLocked()
	e.mu.Unlock()

	e.emit(ev)
	return e.drive(ctx, l, nil)
}

// Skip marks the current step skipped and advances. A result that later
// arrives for the skipped step is discarded.
func (e *Engine) Skip() error {
	e.mu.Lock()
	if e.run.Status != model.RunRunning && e.run.Status != model.RunPaused {
		e.mu.Unlock()
		return ErrNotRunning
	}
	idx := e.run.CurrentStepIndex
	if idx >= len(e.run.Workflow.Steps) {
		e.mu.Unlock()
		return ErrNothingToSkip
	}
	events := e.recordLocked(idx, model.StepOutcome{Skipped: true, Reason: ReasonUser})
	e.mu.Unlock()

	e.emit(events...)
	return nil
}

// Cancel resets the engine to an idle, empty run from any state.
func (e *Engine) Cancel() {
	e.mu.Lock()
	if e.run.Status == model.RunIdle && e.run.Workflow == nil {
		e.mu.Unlock()
		return
	}
	ev := e.eventLocked(EventStatusChanged, -1)
	ev.Status = model.RunIdle
	ev.Progress = 0
	e.epoch++
	e.held = nil
	e.run = model.NewIdleRun()
	e.mu.Unlock()

	logx.Info().Str("workflow_id", ev.WorkflowID).Str("run_id", ev.RunID).Msg("workflow cancelled")
	e.emit(ev)
}

// startLoopLocked registers a new drive loop for the current epoch.
func (e *Engine) startLoopLocked() *loop {
	l := &loop{epoch: e.epoch, done: make(chan struct{})}
	e.loop = l
	return l
}

func (e *Engine) endLoopLocked(l *loop) {
	if e.loop == l {
		e.loop = nil
	}
	close(l.done)
}

func (e *Engine) drive(ctx context.Context, l *loop, seed map[string]any) error {
	for {
		e.mu.Lock()
		if e.epoch != l.epoch || e.run.Status != model.RunRunning {
			e.endLoopLocked(l)
			e.mu.Unlock()
			return nil
		}
		idx := e.run.CurrentStepIndex
		step := e.run.Workflow.Steps[idx]
		prev := e.run.LastResult
		e.mu.Unlock()

		sc := e.runner.Session()
		if step.Condition != nil && !step.Condition(prev, sc) {
			e.mu.Lock()
			var events []Event
			if e.current(l, idx) {
				events = e.recordLocked(idx, model.StepOutcome{Skipped: true, Reason: ReasonCondition})
			}
			e.mu.Unlock()
			e.emit(events...)
			continue
		}

		params := map[string]any{}
		if step.Transform != nil {
			if p := step.Transform(prev); p != nil {
				params = p
			}
		}
		if seed != nil {
			merged := maps.Clone(seed)
			maps.Copy(merged, params)
			params = merged
			seed = nil
		}

		e.mu.Lock()
		started := e.eventLocked(EventStepStarted, idx)
		e.mu.Unlock()
		e.emit(started)

		res, err := e.runner.Execute(ctx, step.ToolID, params)

		e.mu.Lock()
		if !e.current(l, idx) {
			// cancelled or skipped while the call was in flight
			logx.Debug().Str("tool_id", step.ToolID).Int("step", idx).Msg("discarding stale step result")
			e.mu.Unlock()
			continue
		}
		if err != nil {
			e.run.Status = model.RunError
			e.run.Err = err
			e.run.FinishedAt = time.Now()
			ev := e.eventLocked(EventStatusChanged, idx)
			ev.Err = err
			e.endLoopLocked(l)
			e.mu.Unlock()

			logx.Error().Err(err).Str("workflow_id", ev.WorkflowID).Str("tool_id", step.ToolID).Int("step", idx).Msg("workflow step failed")
			e.emit(ev)
			return err
		}
		events := e.recordLocked(idx, model.StepOutcome{Result: res})
		more := e.run.Status == model.RunRunning
		e.mu.Unlock()
		e.emit(events...)

		if more && e.delay > 0 {
			if err := e.sleep(ctx, l); err != nil {
				return err
			}
		}
	}
}

// current reports whether l still owns the run and the run is still at idx.
func (e *Engine) current(l *loop, idx int) bool {
	return e.epoch == l.epoch && e.run.CurrentStepIndex == idx
}

// recordLocked advances past idx and stores its outcome. The last step's
// outcome is held while the run is paused so that only Resume completes it.
func (e *Engine) recordLocked(idx int, out model.StepOutcome) []Event {
	e.run.CurrentStepIndex = idx + 1
	if e.run.Status == model.RunPaused && e.run.CurrentStepIndex >= len(e.run.Workflow.Steps) {
		e.held = &held{idx: idx, out: out}
		return nil
	}
	return e.storeLocked(idx, out)
}

// storeLocked records the outcome for idx and completes the run after the last step.
func (e *Engine) storeLocked(idx int, out model.StepOutcome) []Event {
	e.run.StepResults[idx] = out
	if !out.Skipped {
		e.run.LastResult = out.Result
	}
	done := e.run.CurrentStepIndex >= len(e.run.Workflow.Steps)
	if done {
		e.run.Status = model.RunCompleted
		e.run.FinishedAt = time.Now()
	}

	typ := EventStepFinished
	if out.Skipped {
		typ = EventStepSkipped
	}
	ev := e.eventLocked(typ, idx)
	ev.Result = out.Result
	ev.Reason = out.Reason
	events := []Event{ev}

	if done {
		events = append(events, e.eventLocked(EventStatusChanged, -1))
		logx.Info().Str("workflow_id", e.run.Workflow.ID).Str("run_id", e.run.ID).Msg("workflow completed")
	}
	return events
}

func (e *Engine) sleep(ctx context.Context, l *loop) error {
	t := time.NewTimer(e.delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
	}

	e.mu.Lock()
	var events []Event
	if e.epoch == l.epoch && e.run.Status == model.RunRunning {
		e.run.Status = model.RunError
		e.run.Err = ctx.Err()
		e.run.FinishedAt = time.Now()
		ev := e.eventLocked(EventStatusChanged, e.run.CurrentStepIndex)
		ev.Err = ctx.Err()
		events = append(events, ev)
	}
	e.endLoopLocked(l)
	e.mu.Unlock()

	e.emit(events...)
	return ctx.Err()
}
