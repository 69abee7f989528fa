package workflow

import (
	"github.com/lyric-assistant-core/server/internal/assistant/model"
	logx "github.com/lyric-assistant-core/server/pkg/logger"
)

type EventType string

const (
	EventStatusChanged EventType = "status_changed"
	EventStepStarted   EventType = "step_started"
	EventStepFinished  EventType = "step_finished"
	EventStepSkipped   EventType = "step_skipped"
)

// Skip reasons recorded on StepOutcome.
const (
	ReasonCondition = "condition"
	ReasonUser      = "user"
)

// Event reports run progress to observers. Step is -1 for run-level events.
type Event struct {
	Type       EventType
	RunID      string
	WorkflowID string
	Step       int
	ToolID     string
	Status     model.RunStatus
	Progress   float64
	Result     *model.Result
	Reason     string
	Err        error
}

// Observer receives events synchronously, outside the engine lock.
type Observer func(Event)

func (e *Engine) eventLocked(typ EventType, step int) Event {
	ev := Event{
		Type:     typ,
		RunID:    e.run.ID,
		Step:     step,
		Status:   e.run.Status,
		Progress: e.run.Progress(),
	}
	if wf := e.run.Workflow; wf != nil {
		ev.WorkflowID = wf.ID
		if step >= 0 && step < len(wf.Steps) {
			ev.ToolID = wf.Steps[step].ToolID
		}
	}
	return ev
}

func (e *Engine) emit(events ...Event) {
	for _, ev := range events {
		logx.Debug().
			Str("workflow_id", ev.WorkflowID).
			Str("run_id", ev.RunID).
			Str("event", string(ev.Type)).
			Int("step", ev.Step).
			Str("status", string(ev.Status)).
			Float64("progress", ev.Progress).
			Msg("workflow event")
		for _, o := range e.observers {
			o(ev)
		}
	}
}
