package model

import "time"

// Condition decides whether a step runs, looking only at the previous
// non-skipped result and the session snapshot.
type Condition func(prev *Result, sc SessionContext) bool

// Transform turns the previous non-skipped result into the params of the next call.
type Transform func(prev *Result) map[string]any

type WorkflowStep struct {
	ToolID    string `validate:"required"`
	Label     string `validate:"required"`
	Condition Condition
	Transform Transform
}

type Workflow struct {
	ID          string `validate:"required"`
	Name        string `validate:"required"`
	Description string
	Steps       []WorkflowStep `validate:"min=1,dive"`
}

type RunStatus string

const (
	RunIdle      RunStatus = "idle"
	RunRunning   RunStatus = "running"
	RunPaused    RunStatus = "paused"
	RunCompleted RunStatus = "completed"
	RunError     RunStatus = "error"
)

// StepOutcome is what a run recorded for one step index.
type StepOutcome struct {
	Result  *Result
	Skipped bool
	// Reason is "condition" or "user" for skipped steps.
	Reason string
}

type WorkflowRun struct {
	ID               string
	Workflow         *Workflow
	CurrentStepIndex int
	StepResults      map[int]StepOutcome
	Status           RunStatus
	Err              error
	// LastResult is the most recent non-skipped result; conditions and transforms read it.
	LastResult *Result
	StartedAt  time.Time
	FinishedAt time.Time
}

// NewIdleRun returns the cleared state a run resets to on cancel.
func NewIdleRun() *WorkflowRun {
	return &WorkflowRun{Status: RunIdle, StepResults: map[int]StepOutcome{}}
}

// Progress is the share of steps completed or skipped.
func (r *WorkflowRun) Progress() float64 {
	if r == nil || r.Workflow == nil {
		return 0
	}
	total := len(r.Workflow.Steps)
	if total == 0 {
		if r.Status == RunCompleted {
			return 1
		}
		return 0
	}
	return float64(len(r.StepResults)) / float64(total)
}

// Clone copies the run so callers can inspect it without holding the engine lock.
func (r *WorkflowRun) Clone() *WorkflowRun {
	if r == nil {
		return nil
	}
	cp := *r
	cp.StepResults = make(map[int]StepOutcome, len(r.StepResults))
	for k, v := range r.StepResults {
		cp.StepResults[k] = v
	}
	return &cp
}
