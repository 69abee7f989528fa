package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyric-assistant-core/server/internal/assistant/model"
	"github.com/lyric-assistant-core/server/internal/assistant/tools"
)

const waitFor = 2 * time.Second

type call struct {
	toolID string
	params map[string]any
}

type fakeRunner struct {
	mu      sync.Mutex
	results map[string]*model.Result
	errs    map[string]error
	gates   map[string]chan struct{}
	calls   []call
	entered chan string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		results: map[string]*model.Result{},
		errs:    map[string]error{},
		gates:   map[string]chan struct{}{},
		entered: make(chan string, 16),
	}
}

func (f *fakeRunner) Execute(ctx context.Context, toolID string, params map[string]any) (*model.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, call{toolID: toolID, params: params})
	gate := f.gates[toolID]
	res, err := f.results[toolID], f.errs[toolID]
	f.mu.Unlock()

	f.entered <- toolID
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = &model.Result{Variant: model.VariantPlainText, Text: toolID}
	}
	return res, nil
}

func (f *fakeRunner) Session() model.SessionContext {
	return model.SessionContext{ExistingText: "[Verse]\nla la la"}
}

func (f *fakeRunner) toolIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.toolID)
	}
	return out
}

func (f *fakeRunner) gate(toolID string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[toolID] = ch
	return ch
}

func (f *fakeRunner) waitEntered(t *testing.T, toolID string) {
	t.Helper()
	for {
		select {
		case got := <-f.entered:
			if got == toolID {
				return
			}
		case <-time.After(waitFor):
			t.Fatalf("tool %q was never called", toolID)
		}
	}
}

func analysis(score int, improvements ...string) *model.Result {
	return &model.Result{
		Variant:  model.VariantAnalysis,
		Analysis: &model.Analysis{Overall: score, Improvements: improvements},
	}
}

func startAsync(e *Engine, id string) <-chan error {
	done := make(chan error, 1)
	go func() { done <- e.Start(context.Background(), id) }()
	return done
}

func wait(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(waitFor):
		t.Fatal("workflow did not return")
		return nil
	}
}

func TestPolishSkipsOptimizeForHighScore(t *testing.T) {
	runner := newFakeRunner()
	runner.results[tools.ToolAnalyze] = analysis(90)
	e := NewEngine(runner, WithStepDelay(0))

	require.NoError(t, e.Start(context.Background(), WorkflowPolish))

	run := e.Run()
	assert.Equal(t, model.RunCompleted, run.Status)
	assert.Equal(t, []string{tools.ToolAnalyze, tools.ToolTags}, runner.toolIDs())
	assert.True(t, run.StepResults[1].Skipped)
	assert.Equal(t, ReasonCondition, run.StepResults[1].Reason)
	assert.InDelta(t, 1.0, run.Progress(), 1e-9)
}

func TestPolishOptimizesLowScore(t *testing.T) {
	runner := newFakeRunner()
	runner.results[tools.ToolAnalyze] = analysis(50, "tighten chorus", "fix meter")
	e := NewEngine(runner, WithStepDelay(0))

	require.NoError(t, e.Start(context.Background(), WorkflowPolish))

	assert.Equal(t, []string{tools.ToolAnalyze, tools.ToolOptimize, tools.ToolTags}, runner.toolIDs())
	assert.Equal(t, "tighten chorus, fix meter", runner.calls[1].params["focus"])
	assert.False(t, e.Run().StepResults[1].Skipped)
}

func TestTransformSeesOnlyPreviousResult(t *testing.T) {
	runner := newFakeRunner()
	runner.results[tools.ToolAnalyze] = analysis(40, "more imagery")
	runner.results[tools.ToolOptimize] = &model.Result{Variant: model.VariantLyrics, Text: "better"}
	e := NewEngine(runner, WithStepDelay(0))

	var prevs []*model.Result
	wf := &model.Workflow{ID: "probe", Name: "Probe", Steps: []model.WorkflowStep{
		{ToolID: tools.ToolAnalyze, Label: "a"},
		{ToolID: tools.ToolOptimize, Label: "b", Transform: func(p *model.Result) map[string]any { prevs = append(prevs, p); return nil }},
		{ToolID: tools.ToolTags, Label: "c", Transform: func(p *model.Result) map[string]any { prevs = append(prevs, p); return nil }},
	}}
	cat, err := NewCatalog(tools.Default(), *wf)
	require.NoError(t, err)
	e.catalog = cat

	require.NoError(t, e.Start(context.Background(), "probe"))

	require.Len(t, prevs, 2)
	assert.Equal(t, 40, prevs[0].Analysis.Overall)
	assert.Equal(t, "better", prevs[1].Text)
	assert.NotNil(t, runner.calls[1].params, "missing transform output becomes empty params")
}

func TestProgressMonotonic(t *testing.T) {
	runner := newFakeRunner()
	runner.results[tools.ToolAnalyze] = analysis(90)

	var events []Event
	e := NewEngine(runner, WithStepDelay(0), WithObserver(func(ev Event) { events = append(events, ev) }))
	require.NoError(t, e.Start(context.Background(), WorkflowFullSong))

	require.NotEmpty(t, events)
	last := -1.0
	for _, ev := range events {
		assert.GreaterOrEqual(t, ev.Progress, last)
		last = ev.Progress
		if ev.Progress == 1 {
			assert.Equal(t, model.RunCompleted, ev.Status)
		} else {
			assert.NotEqual(t, model.RunCompleted, ev.Status)
		}
	}
	assert.Equal(t, 1.0, e.Progress())
}

func TestStepErrorHaltsRun(t *testing.T) {
	runner := newFakeRunner()
	runner.results[tools.ToolAnalyze] = analysis(10)
	boom := errors.New("rate limited")
	runner.errs[tools.ToolOptimize] = boom
	e := NewEngine(runner, WithStepDelay(0))

	err := e.Start(context.Background(), WorkflowPolish)
	require.ErrorIs(t, err, boom)

	run := e.Run()
	assert.Equal(t, model.RunError, run.Status)
	assert.ErrorIs(t, run.Err, boom)
	assert.Equal(t, 1, run.CurrentStepIndex)
	assert.Equal(t, 10, run.StepResults[0].Result.Analysis.Overall, "earlier results stay inspectable")
	assert.NotContains(t, runner.toolIDs(), tools.ToolTags)
	assert.Less(t, run.Progress(), 1.0)

	assert.ErrorIs(t, e.Resume(context.Background()), ErrNotPaused)
}

func TestPauseAndResume(t *testing.T) {
	runner := newFakeRunner()
	runner.results[tools.ToolAnalyze] = analysis(50)
	gate := runner.gate(tools.ToolAnalyze)
	e := NewEngine(runner, WithStepDelay(0))

	done := startAsync(e, WorkflowPolish)
	runner.waitEntered(t, tools.ToolAnalyze)

	require.NoError(t, e.Pause())
	assert.Equal(t, model.RunPaused, e.Run().Status)
	close(gate)
	require.NoError(t, wait(t, done))

	run := e.Run()
	assert.Equal(t, model.RunPaused, run.Status)
	assert.Equal(t, 1, run.CurrentStepIndex, "the in-flight result is kept")
	assert.Equal(t, []string{tools.ToolAnalyze}, runner.toolIDs())

	require.NoError(t, e.Resume(context.Background()))
	assert.Equal(t, model.RunCompleted, e.Run().Status)
	assert.Equal(t, []string{tools.ToolAnalyze, tools.ToolOptimize, tools.ToolTags}, runner.toolIDs())
}

func TestResumeWhileCallInFlight(t *testing.T) {
	runner := newFakeRunner()
	runner.results[tools.ToolAnalyze] = analysis(95)
	gate := runner.gate(tools.ToolAnalyze)
	e := NewEngine(runner, WithStepDelay(0))

	done := startAsync(e, WorkflowPolish)
	runner.waitEntered(t, tools.ToolAnalyze)

	require.NoError(t, e.Pause())
	require.NoError(t, e.Resume(context.Background()))
	close(gate)

	require.NoError(t, wait(t, done))
	assert.Equal(t, model.RunCompleted, e.Run().Status)
	assert.Equal(t, []string{tools.ToolAnalyze, tools.ToolTags}, runner.toolIDs())
}

func TestSkipDiscardsLateResult(t *testing.T) {
	runner := newFakeRunner()
	runner.results[tools.ToolAnalyze] = analysis(95)
	gate := runner.gate(tools.ToolAnalyze)
	e := NewEngine(runner, WithStepDelay(0))

	done := startAsync(e, WorkflowPolish)
	runner.waitEntered(t, tools.ToolAnalyze)

	require.NoError(t, e.Skip())
	run := e.Run()
	assert.Equal(t, 1, run.CurrentStepIndex)
	assert.Equal(t, ReasonUser, run.StepResults[0].Reason)

	close(gate)
	require.NoError(t, wait(t, done))

	run = e.Run()
	assert.Equal(t, model.RunCompleted, run.Status)
	assert.True(t, run.StepResults[0].Skipped, "late analyze result is dropped")
	// no analysis score reached the condition, so optimize ran
	assert.Equal(t, []string{tools.ToolAnalyze, tools.ToolOptimize, tools.ToolTags}, runner.toolIDs())
}

func TestSkipLastStepCompletes(t *testing.T) {
	runner := newFakeRunner()
	runner.results[tools.ToolAnalyze] = analysis(95)
	gate := runner.gate(tools.ToolTags)
	e := NewEngine(runner, WithStepDelay(0))

	done := startAsync(e, WorkflowPolish)
	runner.waitEntered(t, tools.ToolTags)

	require.NoError(t, e.Skip())
	assert.Equal(t, model.RunCompleted, e.Run().Status)
	assert.Equal(t, 1.0, e.Progress())

	close(gate)
	require.NoError(t, wait(t, done))
	assert.ErrorIs(t, e.Skip(), ErrNotRunning)
}

func TestPauseDuringLastStepWaitsForResume(t *testing.T) {
	runner := newFakeRunner()
	runner.results[tools.ToolAnalyze] = analysis(95)
	gate := runner.gate(tools.ToolTags)
	e := NewEngine(runner, WithStepDelay(0))

	done := startAsync(e, WorkflowPolish)
	runner.waitEntered(t, tools.ToolTags)

	require.NoError(t, e.Pause())
	close(gate)
	require.NoError(t, wait(t, done))

	run := e.Run()
	assert.Equal(t, model.RunPaused, run.Status)
	assert.Less(t, run.Progress(), 1.0)
	assert.NotContains(t, run.StepResults, 2)

	require.NoError(t, e.Resume(context.Background()))
	run = e.Run()
	assert.Equal(t, model.RunCompleted, run.Status)
	assert.Equal(t, 1.0, run.Progress())
	assert.False(t, run.StepResults[2].Skipped)
	assert.Equal(t, tools.ToolTags, run.LastResult.Text)
	assert.Equal(t, []string{tools.ToolAnalyze, tools.ToolTags}, runner.toolIDs())
}

func TestSkipWhilePausedOnLastStep(t *testing.T) {
	runner := newFakeRunner()
	runner.results[tools.ToolAnalyze] = analysis(95)
	gate := runner.gate(tools.ToolTags)
	var statuses []model.RunStatus
	var mu sync.Mutex
	e := NewEngine(runner, WithStepDelay(0), WithObserver(func(ev Event) {
		if ev.Type == EventStatusChanged {
			mu.Lock()
			statuses = append(statuses, ev.Status)
			mu.Unlock()
		}
	}))

	done := startAsync(e, WorkflowPolish)
	runner.waitEntered(t, tools.ToolTags)

	require.NoError(t, e.Pause())
	require.NoError(t, e.Skip())
	assert.Equal(t, model.RunPaused, e.Run().Status)
	assert.ErrorIs(t, e.Skip(), ErrNothingToSkip)

	close(gate)
	require.NoError(t, wait(t, done))
	assert.Equal(t, model.RunPaused, e.Run().Status, "the late tags result does not complete the run")

	require.NoError(t, e.Resume(context.Background()))
	run := e.Run()
	assert.Equal(t, model.RunCompleted, run.Status)
	assert.True(t, run.StepResults[2].Skipped)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []model.RunStatus{model.RunRunning, model.RunPaused, model.RunRunning, model.RunCompleted}, statuses)
}

func TestCancelResetsFromAnyStatus(t *testing.T) {
	assertIdle := func(t *testing.T, e *Engine) {
		t.Helper()
		run := e.Run()
		assert.Equal(t, model.RunIdle, run.Status)
		assert.Empty(t, run.StepResults)
		assert.Zero(t, run.CurrentStepIndex)
		assert.Nil(t, run.Workflow)
		assert.Zero(t, e.Progress())
	}

	t.Run("running", func(t *testing.T) {
		runner := newFakeRunner()
		gate := runner.gate(tools.ToolAnalyze)
		e := NewEngine(runner, WithStepDelay(0))

		done := startAsync(e, WorkflowPolish)
		runner.waitEntered(t, tools.ToolAnalyze)
		e.Cancel()
		assertIdle(t, e)

		close(gate)
		require.NoError(t, wait(t, done))
		assertIdle(t, e)
		assert.Equal(t, []string{tools.ToolAnalyze}, runner.toolIDs())
	})

	t.Run("paused", func(t *testing.T) {
		runner := newFakeRunner()
		gate := runner.gate(tools.ToolAnalyze)
		e := NewEngine(runner, WithStepDelay(0))

		done := startAsync(e, WorkflowPolish)
		runner.waitEntered(t, tools.ToolAnalyze)
		require.NoError(t, e.Pause())
		close(gate)
		require.NoError(t, wait(t, done))

		e.Cancel()
		assertIdle(t, e)
	})

	t.Run("completed", func(t *testing.T) {
		e := NewEngine(newFakeRunner(), WithStepDelay(0))
		require.NoError(t, e.Start(context.Background(), WorkflowDeepReview))
		e.Cancel()
		assertIdle(t, e)
	})

	t.Run("error", func(t *testing.T) {
		runner := newFakeRunner()
		runner.errs[tools.ToolDeepAnalyze] = errors.New("offline")
		e := NewEngine(runner, WithStepDelay(0))
		require.Error(t, e.Start(context.Background(), WorkflowDeepReview))
		e.Cancel()
		assertIdle(t, e)
	})
}

func TestStartAfterCancelWaitsForInFlightCall(t *testing.T) {
	runner := newFakeRunner()
	gate := runner.gate(tools.ToolAnalyze)
	e := NewEngine(runner, WithStepDelay(0))

	first := startAsync(e, WorkflowPolish)
	runner.waitEntered(t, tools.ToolAnalyze)
	e.Cancel()

	second := make(chan error, 1)
	go func() { second <- e.Start(context.Background(), WorkflowDeepReview) }()

	close(gate)
	require.NoError(t, wait(t, first))
	require.NoError(t, wait(t, second))

	run := e.Run()
	assert.Equal(t, WorkflowDeepReview, run.Workflow.ID)
	assert.Equal(t, model.RunCompleted, run.Status)
}

func TestStartGuards(t *testing.T) {
	runner := newFakeRunner()
	gate := runner.gate(tools.ToolAnalyze)
	e := NewEngine(runner, WithStepDelay(0))

	assert.ErrorIs(t, e.Start(context.Background(), "nope"), ErrUnknownWorkflow)
	assert.ErrorIs(t, e.Pause(), ErrNotRunning)
	assert.ErrorIs(t, e.Skip(), ErrNotRunning)

	done := startAsync(e, WorkflowPolish)
	runner.waitEntered(t, tools.ToolAnalyze)
	assert.ErrorIs(t, e.Start(context.Background(), WorkflowPolish), ErrRunActive)

	e.Cancel()
	close(gate)
	require.NoError(t, wait(t, done))
}

func TestStartWithSeedsFirstStep(t *testing.T) {
	runner := newFakeRunner()
	e := NewEngine(runner, WithStepDelay(0))

	require.NoError(t, e.StartWith(context.Background(), WorkflowFullSong, map[string]any{"theme": "night drive"}))

	require.NotEmpty(t, runner.calls)
	assert.Equal(t, tools.ToolWrite, runner.calls[0].toolID)
	assert.Equal(t, "night drive", runner.calls[0].params["theme"])
	assert.NotContains(t, runner.calls[1].params, "theme")
}

func TestStepDelayHonoursContext(t *testing.T) {
	runner := newFakeRunner()
	e := NewEngine(runner, WithStepDelay(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Start(ctx, WorkflowDeepReview) }()
	runner.waitEntered(t, tools.ToolDeepAnalyze)
	cancel()

	assert.ErrorIs(t, wait(t, done), context.Canceled)
	assert.Equal(t, model.RunError, e.Run().Status)
}
