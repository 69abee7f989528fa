package model

import "encoding/json"

// Excerpt is the part of the lyrics the user has selected in the editor.
type Excerpt struct {
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// SessionContext is a read-only snapshot of the editor state passed to every tool call.
type SessionContext struct {
	ExistingText       string
	SelectedExcerpt    *Excerpt
	Genre              string
	Mood               string
	GlobalTags         []string
	StyleContextPrompt string
	ProjectContext     map[string]any
	TrackContext       map[string]any
}

// Envelope is the single JSON request sent to the backend for one tool call.
type Envelope struct {
	Action  string
	Params  map[string]any
	Session SessionContext
}

// MarshalJSON flattens params next to the context fields. Context fields are
// only emitted when set, and action always wins over a param of the same name.
func (e Envelope) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Params)+10)
	for k, v := range e.Params {
		out[k] = v
	}
	s := e.Session
	if s.ExistingText != "" {
		out["existingLyrics"] = s.ExistingText
	}
	if s.SelectedExcerpt != nil {
		out["selectedExcerptMeta"] = s.SelectedExcerpt
	}
	if s.Genre != "" {
		out["genre"] = s.Genre
	}
	if s.Mood != "" {
		out["mood"] = s.Mood
	}
	if len(s.GlobalTags) > 0 {
		out["globalTags"] = s.GlobalTags
	}
	if s.StyleContextPrompt != "" {
		out["styleContextPrompt"] = s.StyleContextPrompt
	}
	if len(s.ProjectContext) > 0 {
		out["projectContext"] = s.ProjectContext
	}
	if len(s.TrackContext) > 0 {
		out["trackContext"] = s.TrackContext
	}
	out["action"] = e.Action
	return json.Marshal(out)
}
