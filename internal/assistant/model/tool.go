package model

// ToolDescriptor is one immutable entry of the tool catalog.
type ToolDescriptor struct {
	ID     string  `validate:"required"`
	Label  string  `validate:"required"`
	Action string  `validate:"required"`
	Output Variant `validate:"required"`

	// Summary is the user message appended to the log when the tool runs.
	Summary string
	// Params documents the params the backend action understands (name -> description).
	Params map[string]string

	RequiresExistingText bool

	// AutoApplyOnSuccess lets a Lyrics result replace the editor text without user action.
	AutoApplyOnSuccess bool

	// DirectApply hands TagSet results and style prompts straight to the caller.
	DirectApply bool
}
