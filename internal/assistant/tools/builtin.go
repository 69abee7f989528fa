package tools

import "github.com/lyric-assistant-core/server/internal/assistant/model"

// replyFormats tells the backend which JSON shape each result variant expects.
var replyFormats = map[model.Variant]string{
	model.VariantLyrics:         `Reply with JSON {"lyrics": string, "structureChanges"?: [string], "tags"?: [string]}.`,
	model.VariantTagSet:         `Reply with JSON {"tags": [string], "stylePrompt"?: string}.`,
	model.VariantRhymeSet:       `Reply with JSON {"rhymes": [{"word": string, "rhymes": [string]}]}.`,
	model.VariantAnalysis:       `Reply with JSON {"analysis": {"overallScore": 0-100, "scores": {"meaning", "rhythm", "rhymes", "structure"}, "strengths": [string], "improvements": [string], "summary": string}}.`,
	model.VariantDeepAnalysis:   `Reply with JSON {"deepAnalysis": {"narrativeArc": string, "keyInsights": [string], "uniqueStrength": string, "scores": {"meaning", "rhythm", "rhymes", "structure"}}}.`,
	model.VariantProducerReview: `Reply with JSON {"producerReview": {"verdict": string, "review": string, "score": 0-100, "hitPotential": 0-100, "stylePrompt"?: string, "suggestedTags"?: [string]}}.`,
	model.VariantSuggestions:    `Reply with JSON {"suggestions": [string], "quickActions"?: [{"label": string, "toolId": string}]}.`,
	model.VariantPlainText:      `Reply with JSON {"message": string}.`,
}

var builtin = []model.ToolDescriptor{
	{
		ID:                 ToolWrite,
		Label:              "Write new lyrics",
		Action:             "write",
		Output:             model.VariantLyrics,
		Summary:            "Write lyrics",
		AutoApplyOnSuccess: true,
		Params: map[string]string{
			"theme":     "What the song is about",
			"structure": "Section layout, e.g. Verse-Chorus-Verse-Chorus-Bridge-Chorus",
			"language":  "Language of the lyrics",
		},
	},
	{
		ID:                   ToolContinue,
		Label:                "Continue the existing lyrics",
		Action:               "continue",
		Output:               model.VariantLyrics,
		Summary:              "Continue lyrics",
		RequiresExistingText: true,
		Params: map[string]string{
			"section": "Section to add next, e.g. Bridge",
		},
	},
	{
		ID:                   ToolRewrite,
		Label:                "Rewrite the selected excerpt",
		Action:               "rewrite",
		Output:               model.VariantLyrics,
		Summary:              "Rewrite selection",
		RequiresExistingText: true,
		Params: map[string]string{
			"instruction": "How the excerpt should change",
		},
	},
	{
		ID:                   ToolOptimize,
		Label:                "Improve rhythm, rhymes and imagery",
		Action:               "optimize",
		Output:               model.VariantLyrics,
		Summary:              "Optimize lyrics",
		RequiresExistingText: true,
		Params: map[string]string{
			"focus": "Weak areas to prioritise, comma separated",
		},
	},
	{
		ID:      ToolRhymes,
		Label:   "Find rhymes",
		Action:  "rhymes",
		Output:  model.VariantRhymeSet,
		Summary: "Find rhymes",
		Params: map[string]string{
			"word":    "Word to rhyme with",
			"context": "Themes the rhymes should fit",
		},
	},
	{
		ID:          ToolTags,
		Label:       "Generate style tags",
		Action:      "generate_tags",
		Output:      model.VariantTagSet,
		Summary:     "Generate style tags",
		DirectApply: true,
	},
	{
		ID:          ToolStylePrompt,
		Label:       "Write a style prompt for the music generator",
		Action:      "style_prompt",
		Output:      model.VariantPlainText,
		Summary:     "Write style prompt",
		DirectApply: true,
	},
	{
		ID:                   ToolAnalyze,
		Label:                "Score the lyrics",
		Action:               "analyze",
		Output:               model.VariantAnalysis,
		Summary:              "Analyze lyrics",
		RequiresExistingText: true,
	},
	{
		ID:                   ToolDeepAnalyze,
		Label:                "Deep analysis of narrative and craft",
		Action:               "deep_analysis",
		Output:               model.VariantDeepAnalysis,
		Summary:              "Deep analysis",
		RequiresExistingText: true,
	},
	{
		ID:                   ToolProducer,
		Label:                "Producer review",
		Action:               "producer_review",
		Output:               model.VariantProducerReview,
		Summary:              "Producer review",
		RequiresExistingText: true,
	},
	{
		ID:      ToolSuggest,
		Label:   "Suggest next steps",
		Action:  "suggest",
		Output:  model.VariantSuggestions,
		Summary: "Suggest ideas",
	},
	{
		ID:      ToolChat,
		Label:   "Free-form chat",
		Action:  "chat",
		Output:  model.VariantPlainText,
		Summary: "Chat",
		Params: map[string]string{
			"message": "The user's message",
		},
	},
}
