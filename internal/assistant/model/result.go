package model

// Variant tags the single shape a normalized backend reply resolved to.
type Variant string

const (
	VariantLyrics         Variant = "lyrics"
	VariantTagSet         Variant = "tag_set"
	VariantRhymeSet       Variant = "rhyme_set"
	VariantAnalysis       Variant = "analysis"
	VariantDeepAnalysis   Variant = "deep_analysis"
	VariantProducerReview Variant = "producer_review"
	VariantSuggestions    Variant = "suggestions"
	VariantPlainText      Variant = "plain_text"
)

// SubScores are the four fixed analysis categories, each 0..100.
type SubScores struct {
	Meaning   int `json:"meaning"`
	Rhythm    int `json:"rhythm"`
	Rhymes    int `json:"rhymes"`
	Structure int `json:"structure"`
}

// Mean is the rounded average of the four categories.
func (s SubScores) Mean() int {
	sum := s.Meaning + s.Rhythm + s.Rhymes + s.Structure
	return (sum + 2) / 4
}

type Analysis struct {
	Overall      int       `json:"overall"`
	Scores       SubScores `json:"scores"`
	Summary      string    `json:"summary,omitempty"`
	Strengths    []string  `json:"strengths"`
	Improvements []string  `json:"improvements"`
}

type DeepAnalysis struct {
	NarrativeArc   string    `json:"narrativeArc"`
	KeyInsights    []string  `json:"keyInsights"`
	UniqueStrength string    `json:"uniqueStrength"`
	Scores         SubScores `json:"scores"`
}

type ProducerReview struct {
	Verdict      string `json:"verdict"`
	Review       string `json:"review"`
	Score        int    `json:"score"`
	HitPotential int    `json:"hitPotential"`
}

type RhymeGroup struct {
	Word   string   `json:"word"`
	Rhymes []string `json:"rhymes"`
}

// QuickAction is a follow-up the backend proposes, usually another tool run.
type QuickAction struct {
	Label  string `json:"label"`
	ToolID string `json:"toolId,omitempty"`
	Prompt string `json:"prompt,omitempty"`
}

// Result is the tagged union produced by the normalizer. Exactly one of the
// variant payloads is meaningful for a given Variant; the augmentation fields
// may be present on any variant.
type Result struct {
	Variant Variant `json:"variant"`

	// Text holds the lyrics for VariantLyrics and the message for VariantPlainText.
	Text         string          `json:"text,omitempty"`
	Analysis     *Analysis       `json:"analysis,omitempty"`
	DeepAnalysis *DeepAnalysis   `json:"deepAnalysis,omitempty"`
	Review       *ProducerReview `json:"producerReview,omitempty"`
	Rhymes       []RhymeGroup    `json:"rhymes,omitempty"`

	Tags             []string      `json:"tags,omitempty"`
	QuickActions     []QuickAction `json:"quickActions,omitempty"`
	Suggestions      []string      `json:"suggestions,omitempty"`
	StylePrompt      string        `json:"stylePrompt,omitempty"`
	StructureChanges []string      `json:"structureChanges,omitempty"`

	// Degraded is set when the payload matched no known shape.
	Degraded bool `json:"degraded,omitempty"`
}

// Score returns the overall score carried by analysis-like results.
func (r *Result) Score() (int, bool) {
	if r == nil {
		return 0, false
	}
	switch {
	case r.Analysis != nil:
		return r.Analysis.Overall, true
	case r.DeepAnalysis != nil:
		return r.DeepAnalysis.Scores.Mean(), true
	case r.Review != nil && r.Variant == VariantProducerReview:
		return r.Review.Score, true
	}
	return 0, false
}

// Lyrics returns the lyrics text when the result is a Lyrics variant.
func (r *Result) Lyrics() (string, bool) {
	if r == nil || r.Variant != VariantLyrics {
		return "", false
	}
	return r.Text, true
}
