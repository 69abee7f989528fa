// Package tools holds the static catalog of assistant tools.
package tools

import (
	"fmt"
	"maps"
	"sort"
	"sync"

	"github.com/cloudwego/eino/schema"
	"github.com/go-playground/validator/v10"

	"github.com/lyric-assistant-core/server/internal/assistant/model"
)

const (
	ToolWrite       = "write"
	ToolContinue    = "continue"
	ToolRewrite     = "rewrite"
	ToolOptimize    = "optimize"
	ToolRhymes      = "rhymes"
	ToolTags        = "tags"
	ToolStylePrompt = "style_prompt"
	ToolAnalyze     = "analyze"
	ToolDeepAnalyze = "deep_analyze"
	ToolProducer    = "producer"
	ToolSuggest     = "suggest"
	ToolChat        = "chat"
)

// Catalog is an id-keyed, read-only set of tool descriptors.
type Catalog struct {
	byID map[string]model.ToolDescriptor
	ids  []string
}

// NewCatalog validates the descriptors and indexes them by id.
func NewCatalog(descriptors ...model.ToolDescriptor) (*Catalog, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	c := &Catalog{byID: make(map[string]model.ToolDescriptor, len(descriptors))}
	for _, d := range descriptors {
		if err := validate.Struct(d); err != nil {
			return nil, fmt.Errorf("tool %q: %w", d.ID, err)
		}
		if _, dup := c.byID[d.ID]; dup {
			return nil, fmt.Errorf("tool %q registered twice", d.ID)
		}
		c.byID[d.ID] = d
		c.ids = append(c.ids, d.ID)
	}
	sort.Strings(c.ids)
	return c, nil
}

// Lookup returns a copy of the descriptor registered under id.
func (c *Catalog) Lookup(id string) (model.ToolDescriptor, bool) {
	d, ok := c.byID[id]
	d.Params = maps.Clone(d.Params)
	return d, ok
}

// IDs lists the registered tool ids in sorted order.
func (c *Catalog) IDs() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

// ToolInfos describes each backend action as an eino ToolInfo. The Gemini
// backend renders these into its system prompt.
func (c *Catalog) ToolInfos() []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, 0, len(c.ids))
	for _, id := range c.ids {
		d := c.byID[id]
		params := make(map[string]*schema.ParameterInfo, len(d.Params))
		for name, desc := range d.Params {
			params[name] = &schema.ParameterInfo{Type: schema.String, Desc: desc}
		}
		infos = append(infos, &schema.ToolInfo{
			Name:        d.Action,
			Desc:        fmt.Sprintf("%s. %s", d.Label, replyFormats[d.Output]),
			ParamsOneOf: schema.NewParamsOneOfByParams(params),
		})
	}
	return infos
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the built-in catalog. It is built once per process.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := NewCatalog(builtin...)
		if err != nil {
			panic(fmt.Sprintf("tools: invalid built-in catalog: %v", err))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}
