// Package invoker runs one catalog tool against the remote backend and
// records the exchange in the session's message log.
package invoker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lyric-assistant-core/server/internal/assistant/messages"
	"github.com/lyric-assistant-core/server/internal/assistant/model"
	"github.com/lyric-assistant-core/server/internal/assistant/normalize"
	"github.com/lyric-assistant-core/server/internal/assistant/tools"
	errx "github.com/lyric-assistant-core/server/internal/core/error"
	logx "github.com/lyric-assistant-core/server/pkg/logger"
)

type Backend interface {
	Call(ctx context.Context, env *model.Envelope) ([]byte, error)
}

// Callbacks are invoked synchronously after a call resolves. Each is optional.
type Callbacks struct {
	OnLyricsAccepted      func(text string)
	OnTagsAccepted        func(tags []string)
	OnStylePromptAccepted func(prompt string)
}

type Config struct {
	Backend   Backend
	Catalog   *tools.Catalog
	Log       *messages.Log
	Session   func() model.SessionContext
	Callbacks Callbacks
}

type Invoker struct {
	mu        sync.Mutex
	backend   Backend
	catalog   *tools.Catalog
	log       *messages.Log
	session   func() model.SessionContext
	callbacks Callbacks
}

func New(cfg Config) *Invoker {
	inv := &Invoker{
		backend:   cfg.Backend,
		catalog:   cfg.Catalog,
		log:       cfg.Log,
		session:   cfg.Session,
		callbacks: cfg.Callbacks,
	}
	if inv.catalog == nil {
		inv.catalog = tools.Default()
	}
	if inv.log == nil {
		inv.log = messages.NewLog(uuid.NewString())
	}
	if inv.session == nil {
		inv.session = func() model.SessionContext { return model.SessionContext{} }
	}
	return inv
}

// Session returns the current session snapshot.
func (i *Invoker) Session() model.SessionContext {
	return i.session()
}

func (i *Invoker) Log() *messages.Log {
	return i.log
}

func (i *Invoker) Catalog() *tools.Catalog {
	return i.catalog
}

// Execute runs toolID once. Unknown tools and missing lyrics are rejected
// before the log is touched or the backend is called. Backend failures settle
// the pending message as failed and are returned classified.
func (i *Invoker) Execute(ctx context.Context, toolID string, params map[string]any) (*model.Result, error) {
	tool, ok := i.catalog.Lookup(toolID)
	if !ok {
		logx.Warn().Str("tool_id", toolID).Msg("unknown tool requested")
		return nil, errx.UnknownTool(toolID)
	}

	sc := i.session()
	if tool.RequiresExistingText && strings.TrimSpace(sc.ExistingText) == "" {
		return nil, errx.MissingText(toolID)
	}

	pending, err := i.begin(ctx, tool)
	if err != nil {
		return nil, err
	}

	if params == nil {
		params = map[string]any{}
	}
	env := &model.Envelope{Action: tool.Action, Params: params, Session: sc}

	start := time.Now()
	raw, err := i.backend.Call(ctx, env)
	if err != nil {
		err = errx.Classify(err)
		if _, ferr := i.log.Fail(ctx, pending.ID, errx.UserMessage(err), err); ferr != nil {
			logx.Warn().Err(ferr).Str("message_id", pending.ID).Msg("failed message was no longer pending")
		}
		logx.Error().Err(err).Str("tool_id", toolID).Str("message_id", pending.ID).Msg("tool call failed")
		return nil, err
	}

	res := normalize.Normalize(raw, tool.Action)
	if _, err := i.log.Resolve(ctx, pending.ID, Describe(res), res); err != nil {
		// Reset while in flight; the result is stale.
		logx.Warn().Err(err).Str("tool_id", toolID).Str("message_id", pending.ID).Msg("discarding result for settled message")
		return res, nil
	}

	logx.Info().
		Str("tool_id", toolID).
		Str("message_id", pending.ID).
		Str("variant", string(res.Variant)).
		Bool("degraded", res.Degraded).
		Dur("elapsed", time.Since(start)).
		Msg("tool call resolved")

	i.apply(tool, res)
	return res, nil
}

func (i *Invoker) begin(ctx context.Context, tool model.ToolDescriptor) (model.Message, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, busy := i.log.Pending(); busy {
		return model.Message{}, messages.ErrPendingExists
	}
	summary := tool.Summary
	if summary == "" {
		summary = tool.Label
	}
	i.log.Append(ctx, summary, tool.ID)
	return i.log.BeginPending(ctx, tool.ID)
}

func (i *Invoker) apply(tool model.ToolDescriptor, res *model.Result) {
	cb := i.callbacks
	if text, ok := res.Lyrics(); ok && tool.AutoApplyOnSuccess && cb.OnLyricsAccepted != nil {
		cb.OnLyricsAccepted(text)
	}
	if !tool.DirectApply {
		return
	}
	if res.Variant == model.VariantTagSet && len(res.Tags) > 0 && cb.OnTagsAccepted != nil {
		cb.OnTagsAccepted(append([]string(nil), res.Tags...))
	}
	if res.StylePrompt != "" && cb.OnStylePromptAccepted != nil {
		cb.OnStylePromptAccepted(res.StylePrompt)
	}
}

// Describe renders the chat text shown for a resolved result.
func Describe(res *model.Result) string {
	switch res.Variant {
	case model.VariantLyrics, model.VariantPlainText:
		return res.Text
	case model.VariantTagSet:
		return strings.Join(res.Tags, ", ")
	case model.VariantRhymeSet:
		lines := make([]string, 0, len(res.Rhymes))
		for _, g := range res.Rhymes {
			if g.Word == "" {
				lines = append(lines, strings.Join(g.Rhymes, ", "))
				continue
			}
			lines = append(lines, fmt.Sprintf("%s: %s", g.Word, strings.Join(g.Rhymes, ", ")))
		}
		return strings.Join(lines, "\n")
	case model.VariantAnalysis:
		return joinNonEmpty(fmt.Sprintf("Overall score: %d/100", res.Analysis.Overall), res.Analysis.Summary)
	case model.VariantDeepAnalysis:
		return joinNonEmpty(res.DeepAnalysis.NarrativeArc, res.DeepAnalysis.UniqueStrength)
	case model.VariantProducerReview:
		return joinNonEmpty(res.Review.Verdict, res.Review.Review)
	case model.VariantSuggestions:
		lines := append([]string(nil), res.Suggestions...)
		if len(lines) == 0 {
			for _, qa := range res.QuickActions {
				lines = append(lines, qa.Label)
			}
		}
		return strings.Join(lines, "\n")
	}
	return res.Text
}

func joinNonEmpty(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}
