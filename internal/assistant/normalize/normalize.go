// Package normalize turns the backend's schema-less JSON replies into typed results.
package normalize

import (
	"encoding/json"
	"strings"

	"github.com/lyric-assistant-core/server/internal/assistant/model"
	logx "github.com/lyric-assistant-core/server/pkg/logger"
)

// FallbackText is the PlainText body used when a reply carries no usable text.
const FallbackText = "The assistant returned an empty response."

// analysisActions are backend actions whose replies are always read as Analysis
// unless a deep-analysis shape is present.
var analysisActions = map[string]bool{
	"analyze":        true,
	"analyze_lyrics": true,
	"full_analysis":  true,
}

// decoder tries one variant shape and reports whether it matched.
type decoder func(doc map[string]any, action string) (*model.Result, bool)

// pipeline is the first-match-wins priority order.
var pipeline = []decoder{
	decodeDeepAnalysis,
	decodeAnalysis,
	decodeProducerReview,
	decodeLyrics,
	decodeRhymes,
	decodeTags,
	decodeSuggestions,
}

// Normalize classifies raw into exactly one result variant. It never fails:
// invalid JSON, non-object payloads and unknown shapes degrade to PlainText.
func Normalize(raw []byte, action string) (res *model.Result) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("component", "normalizer").Str("action", action).Msgf("panic recovered: %v", r)
			res = degraded(FallbackText, action)
		}
	}()

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		text := strings.TrimSpace(string(raw))
		if text == "" {
			text = FallbackText
		}
		return degraded(text, action)
	}

	doc, ok := payload.(map[string]any)
	if !ok {
		if s, isStr := payload.(string); isStr && strings.TrimSpace(s) != "" {
			return degraded(s, action)
		}
		return degraded(FallbackText, action)
	}
	return NormalizeObject(doc, action)
}

// NormalizeObject is Normalize for an already decoded JSON object.
func NormalizeObject(doc map[string]any, action string) *model.Result {
	for _, decode := range pipeline {
		if res, ok := decode(doc, action); ok {
			augment(res, doc)
			return res
		}
	}
	res := degraded(firstString(doc, "message", "result", "text", "response", "content", "reply"), action)
	augment(res, doc)
	return res
}

func degraded(text, action string) *model.Result {
	if strings.TrimSpace(text) == "" {
		text = FallbackText
	}
	logx.Warn().Str("component", "normalizer").Str("action", action).Msg("payload matched no known shape; degraded to plain text")
	return &model.Result{Variant: model.VariantPlainText, Text: text, Degraded: true}
}

func decodeDeepAnalysis(doc map[string]any, _ string) (*model.Result, bool) {
	if !matches(deepAnalysisSchema, doc) {
		return nil, false
	}
	src := nestedOr(doc, "deepAnalysis")
	insights := stringList(src, "keyInsights", "insights")
	if insights == nil {
		insights = []string{}
	}
	return &model.Result{
		Variant: model.VariantDeepAnalysis,
		DeepAnalysis: &model.DeepAnalysis{
			NarrativeArc:   firstString(src, "narrativeArc", "narrative"),
			KeyInsights:    insights,
			UniqueStrength: firstString(src, "uniqueStrength", "uniqueStrengths"),
			Scores:         subScores(src),
		},
	}, true
}

func decodeAnalysis(doc map[string]any, action string) (*model.Result, bool) {
	if !analysisActions[action] && !matches(analysisSchema, doc) {
		return nil, false
	}
	src := nestedOr(doc, "analysis")
	strengths := stringList(src, "strengths")
	if strengths == nil {
		strengths = []string{}
	}
	improvements := stringList(src, "improvements", "weaknesses")
	if improvements == nil {
		improvements = []string{}
	}
	return &model.Result{
		Variant: model.VariantAnalysis,
		Analysis: &model.Analysis{
			Overall:      score(src, "overallScore", "overall", "score"),
			Scores:       subScores(src),
			Summary:      firstString(src, "summary", "feedback"),
			Strengths:    strengths,
			Improvements: improvements,
		},
	}, true
}

func decodeProducerReview(doc map[string]any, _ string) (*model.Result, bool) {
	if !matches(producerReviewSchema, doc) {
		return nil, false
	}
	src := nestedOr(doc, "producerReview")
	res := &model.Result{
		Variant: model.VariantProducerReview,
		Review: &model.ProducerReview{
			Verdict:      firstString(src, "verdict"),
			Review:       firstString(src, "review", "feedback", "comments"),
			Score:        score(src, "score", "overallScore"),
			HitPotential: score(src, "hitPotential"),
		},
		// carried for optional auto-apply by the caller
		StylePrompt: firstString(src, "stylePrompt", "suggestedStylePrompt"),
		Tags:        stringList(src, "suggestedTags", "tags"),
	}
	return res, true
}

func decodeLyrics(doc map[string]any, _ string) (*model.Result, bool) {
	if !matches(lyricsSchema, doc) {
		return nil, false
	}
	lyrics, _ := doc["lyrics"].(string)
	return &model.Result{Variant: model.VariantLyrics, Text: lyrics}, true
}

func decodeRhymes(doc map[string]any, _ string) (*model.Result, bool) {
	if !matches(rhymesSchema, doc) {
		return nil, false
	}
	arr, _ := doc["rhymes"].([]any)
	var groups []model.RhymeGroup
	var loose []string
	for _, el := range arr {
		switch v := el.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				loose = append(loose, s)
			}
		case map[string]any:
			g := model.RhymeGroup{
				Word:   firstString(v, "word", "target"),
				Rhymes: stringList(v, "rhymes", "matches", "words"),
			}
			if g.Word != "" || len(g.Rhymes) > 0 {
				groups = append(groups, g)
			}
		}
	}
	if len(loose) > 0 {
		groups = append(groups, model.RhymeGroup{Word: firstString(doc, "word", "target"), Rhymes: loose})
	}
	if groups == nil {
		groups = []model.RhymeGroup{}
	}
	return &model.Result{Variant: model.VariantRhymeSet, Rhymes: groups}, true
}

func decodeTags(doc map[string]any, _ string) (*model.Result, bool) {
	if !matches(tagsSchema, doc) {
		return nil, false
	}
	return &model.Result{Variant: model.VariantTagSet}, true
}

func decodeSuggestions(doc map[string]any, _ string) (*model.Result, bool) {
	if !matches(suggestionsSchema, doc) {
		return nil, false
	}
	return &model.Result{Variant: model.VariantSuggestions}, true
}

// augment merges the fields any variant may carry. Values set by the winning
// decoder are kept; list fields are merged without duplicates.
func augment(res *model.Result, doc map[string]any) {
	res.Tags = mergeUnique(res.Tags, stringList(doc, "tags")...)
	res.Tags = mergeUnique(res.Tags, stringList(doc, "suggestedTags")...)
	if len(res.Tags) == 0 {
		res.Tags = nil
	}
	res.QuickActions = append(res.QuickActions, quickActions(doc)...)
	res.Suggestions = mergeUnique(res.Suggestions, stringList(doc, "suggestions")...)
	if len(res.Suggestions) == 0 {
		res.Suggestions = nil
	}
	if res.StylePrompt == "" {
		res.StylePrompt = firstString(doc, "stylePrompt", "style_prompt", "style")
	}
	res.StructureChanges = mergeUnique(res.StructureChanges, stringList(doc, "structureChanges", "structuralChanges")...)
	if len(res.StructureChanges) == 0 {
		res.StructureChanges = nil
	}
}
