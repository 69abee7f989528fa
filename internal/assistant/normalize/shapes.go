package normalize

import (
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// Shapes a backend reply may take. They only pin down the discriminating
// fields; everything else is probed leniently by the decoders.
const (
	deepAnalysisShape = `{
		"type": "object",
		"anyOf": [
			{"required": ["deepAnalysis"], "properties": {"deepAnalysis": {"type": "object"}}},
			{"required": ["narrativeArc"]},
			{"required": ["keyInsights"], "properties": {"keyInsights": {"type": "array"}}}
		]
	}`
	analysisShape = `{
		"type": "object",
		"anyOf": [
			{"required": ["analysis"], "properties": {"analysis": {"type": "object"}}},
			{"required": ["overallScore"]},
			{"required": ["scores"], "properties": {"scores": {"type": "object"}}}
		]
	}`
	producerReviewShape = `{
		"type": "object",
		"anyOf": [
			{"required": ["producerReview"], "properties": {"producerReview": {"type": "object"}}},
			{"required": ["verdict", "review"]}
		]
	}`
	lyricsShape = `{
		"type": "object",
		"required": ["lyrics"],
		"properties": {"lyrics": {"type": "string"}}
	}`
	rhymesShape = `{
		"type": "object",
		"required": ["rhymes"],
		"properties": {"rhymes": {"type": "array"}}
	}`
	tagsShape = `{
		"type": "object",
		"required": ["tags"],
		"properties": {"tags": {"type": "array", "minItems": 1}}
	}`
	suggestionsShape = `{
		"type": "object",
		"anyOf": [
			{"required": ["suggestions"], "properties": {"suggestions": {"type": "array", "minItems": 1}}},
			{"required": ["quickActions"], "properties": {"quickActions": {"type": "array", "minItems": 1}}}
		]
	}`
)

var (
	deepAnalysisSchema   = mustCompile("deep_analysis", deepAnalysisShape)
	analysisSchema       = mustCompile("analysis", analysisShape)
	producerReviewSchema = mustCompile("producer_review", producerReviewShape)
	lyricsSchema         = mustCompile("lyrics", lyricsShape)
	rhymesSchema         = mustCompile("rhymes", rhymesShape)
	tagsSchema           = mustCompile("tags", tagsShape)
	suggestionsSchema    = mustCompile("suggestions", suggestionsShape)
)

func mustCompile(name, src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("normalize: compile %s shape: %v", name, err))
	}
	return s
}

// matches reports whether doc satisfies the shape. Validation errors count as no match.
func matches(s *gojsonschema.Schema, doc map[string]any) bool {
	res, err := s.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return false
	}
	return res.Valid()
}
