// Package workflow sequences tool calls into scripted, controllable runs.
package workflow

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/lyric-assistant-core/server/internal/assistant/model"
	"github.com/lyric-assistant-core/server/internal/assistant/tools"
)

const (
	WorkflowPolish     = "polish"
	WorkflowFullSong   = "full_song"
	WorkflowDeepReview = "deep_review"
)

// PolishThreshold is the analysis score at or above which optimizing is skipped.
const PolishThreshold = 85

// Catalog is an id-keyed, read-only set of workflows.
type Catalog struct {
	byID map[string]*model.Workflow
	ids  []string
}

// NewCatalog validates each workflow and checks every step names a known tool.
func NewCatalog(toolCatalog *tools.Catalog, workflows ...model.Workflow) (*Catalog, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	c := &Catalog{byID: make(map[string]*model.Workflow, len(workflows))}
	for _, wf := range workflows {
		if err := validate.Struct(wf); err != nil {
			return nil, fmt.Errorf("workflow %q: %w", wf.ID, err)
		}
		if _, dup := c.byID[wf.ID]; dup {
			return nil, fmt.Errorf("workflow %q registered twice", wf.ID)
		}
		for i, step := range wf.Steps {
			if _, ok := toolCatalog.Lookup(step.ToolID); !ok {
				return nil, fmt.Errorf("workflow %q step %d: unknown tool %q", wf.ID, i, step.ToolID)
			}
		}
		c.byID[wf.ID] = &wf
		c.ids = append(c.ids, wf.ID)
	}
	sort.Strings(c.ids)
	return c, nil
}

// Lookup returns the workflow registered under id. Callers must not modify it.
func (c *Catalog) Lookup(id string) (*model.Workflow, bool) {
	wf, ok := c.byID[id]
	return wf, ok
}

func (c *Catalog) IDs() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// DefaultCatalog returns the built-in workflows over the default tool catalog.
func DefaultCatalog() *Catalog {
	defaultOnce.Do(func() {
		c, err := NewCatalog(tools.Default(), builtin()...)
		if err != nil {
			panic(fmt.Sprintf("workflow: invalid built-in catalog: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// Lookup finds a built-in workflow.
func Lookup(id string) (*model.Workflow, bool) {
	return DefaultCatalog().Lookup(id)
}

func builtin() []model.Workflow {
	return []model.Workflow{
		{
			ID:          WorkflowPolish,
			Name:        "Polish lyrics",
			Description: "Analyze the song, optimize it when the score is low, then suggest style tags.",
			Steps: []model.WorkflowStep{
				{ToolID: tools.ToolAnalyze, Label: "Analyze"},
				{ToolID: tools.ToolOptimize, Label: "Optimize", Condition: ScoreBelow(PolishThreshold), Transform: focusFromAnalysis},
				{ToolID: tools.ToolTags, Label: "Suggest tags"},
			},
		},
		{
			ID:          WorkflowFullSong,
			Name:        "Full song",
			Description: "Write a song from scratch, refine it and get a producer's verdict.",
			Steps: []model.WorkflowStep{
				{ToolID: tools.ToolWrite, Label: "Write"},
				{ToolID: tools.ToolAnalyze, Label: "Analyze"},
				{ToolID: tools.ToolOptimize, Label: "Optimize", Condition: ScoreBelow(PolishThreshold), Transform: focusFromAnalysis},
				{ToolID: tools.ToolTags, Label: "Suggest tags"},
				{ToolID: tools.ToolProducer, Label: "Producer review"},
			},
		},
		{
			ID:          WorkflowDeepReview,
			Name:        "Deep review",
			Description: "Expanded analysis, rhyme ideas and a producer review.",
			Steps: []model.WorkflowStep{
				{ToolID: tools.ToolDeepAnalyze, Label: "Deep analysis"},
				{ToolID: tools.ToolRhymes, Label: "Find rhymes", Transform: rhymeTargets},
				{ToolID: tools.ToolProducer, Label: "Producer review"},
			},
		},
	}
}

// ScoreBelow runs a step only when the previous result scored under threshold.
// Results without a score let the step run.
func ScoreBelow(threshold int) model.Condition {
	return func(prev *model.Result, _ model.SessionContext) bool {
		score, ok := prev.Score()
		return !ok || score < threshold
	}
}

func focusFromAnalysis(prev *model.Result) map[string]any {
	if prev == nil || prev.Analysis == nil || len(prev.Analysis.Improvements) == 0 {
		return map[string]any{}
	}
	return map[string]any{"focus": strings.Join(prev.Analysis.Improvements, ", ")}
}

func rhymeTargets(prev *model.Result) map[string]any {
	if prev == nil || prev.DeepAnalysis == nil || len(prev.DeepAnalysis.KeyInsights) == 0 {
		return map[string]any{}
	}
	return map[string]any{"context": strings.Join(prev.DeepAnalysis.KeyInsights, "; ")}
}
