// Package rhythm scores how evenly lyric lines are metered. It works purely
// on the text and never calls the backend.
package rhythm

import (
	"fmt"
	"math"
	"strings"
	"unicode"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

const (
	errorPenalty    = 30
	warningPenalty  = 10
	longLinePenalty = 15

	shortLine = 4
	longLine  = 16
)

type Issue struct {
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// Syllable is one syllable of a line, or a word boundary marker when Boundary is set.
type Syllable struct {
	Text       string `json:"text"`
	IsStressed bool   `json:"isStressed"`
	Position   int    `json:"position"`
	Boundary   bool   `json:"boundary,omitempty"`
}

type LineAnalysis struct {
	Text          string     `json:"text"`
	Syllables     []Syllable `json:"syllables"`
	SyllableCount int        `json:"syllableCount"`
	StressPattern string     `json:"stressPattern"`
	Issues        []Issue    `json:"issues"`
	Score         int        `json:"score"`
	// Analyzed is false for blank lines and section markers.
	Analyzed bool `json:"analyzed"`
}

type Report struct {
	Lines            []LineAnalysis `json:"lines"`
	OverallScore     int            `json:"overallScore"`
	AverageSyllables float64        `json:"averageSyllables"`
}

type Analyzer struct {
	scripts []Script
}

// NewAnalyzer builds an analyzer for the given scripts, DefaultScripts when none.
func NewAnalyzer(scripts ...Script) *Analyzer {
	if len(scripts) == 0 {
		scripts = DefaultScripts
	}
	return &Analyzer{scripts: scripts}
}

var defaultAnalyzer = NewAnalyzer()

// Analyze scores text with the default scripts.
func Analyze(text string) Report {
	return defaultAnalyzer.Analyze(text)
}

// AnalyzeLine scores a single line against target syllables with the default scripts.
func AnalyzeLine(line string, target int) LineAnalysis {
	return defaultAnalyzer.AnalyzeLine(line, target)
}

// Analyze runs two passes: the first finds the average syllable count of all
// analyzable lines, the second scores every line against that average.
func (a *Analyzer) Analyze(text string) Report {
	report := Report{Lines: []LineAnalysis{}, OverallScore: 100}
	if strings.TrimSpace(text) == "" {
		return report
	}

	rawLines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var total, analyzable int
	for _, line := range rawLines {
		if isNeutral(line) {
			continue
		}
		total += len(a.syllabify(line))
		analyzable++
	}
	if analyzable == 0 {
		for _, line := range rawLines {
			report.Lines = append(report.Lines, neutral(line))
		}
		return report
	}

	report.AverageSyllables = float64(total) / float64(analyzable)
	target := int(math.Round(report.AverageSyllables))

	var scoreSum int
	for _, line := range rawLines {
		if isNeutral(line) {
			report.Lines = append(report.Lines, neutral(line))
			continue
		}
		la := a.AnalyzeLine(line, target)
		scoreSum += la.Score
		report.Lines = append(report.Lines, la)
	}
	report.OverallScore = int(math.Round(float64(scoreSum) / float64(analyzable)))
	return report
}

func (a *Analyzer) AnalyzeLine(line string, target int) LineAnalysis {
	if isNeutral(line) {
		return neutral(line)
	}

	words := a.syllabify(line)
	la := LineAnalysis{Text: line, Analyzed: true, Issues: []Issue{}}

	var pattern strings.Builder
	pos := 0
	for w, word := range groupWords(words) {
		if w > 0 {
			la.Syllables = append(la.Syllables, Syllable{Text: " ", Position: pos, Boundary: true})
			pattern.WriteByte(' ')
		}
		for _, text := range word {
			stressed := pos%2 == 0
			la.Syllables = append(la.Syllables, Syllable{Text: text, IsStressed: stressed, Position: pos})
			if stressed {
				pattern.WriteByte('S')
			} else {
				pattern.WriteByte('w')
			}
			pos++
		}
	}
	la.SyllableCount = pos
	la.StressPattern = pattern.String()

	penalty := 0
	deviation := la.SyllableCount - target
	switch abs := max(deviation, -deviation); {
	case abs > 2:
		la.Issues = append(la.Issues, Issue{
			Severity:   SeverityError,
			Message:    fmt.Sprintf("%d syllables, %s than the %d-syllable average", la.SyllableCount, moreOrFewer(deviation, abs), target),
			Suggestion: adjustHint(deviation),
		})
		penalty += errorPenalty
	case abs >= 1:
		la.Issues = append(la.Issues, Issue{
			Severity:   SeverityWarning,
			Message:    fmt.Sprintf("%d syllables, %s than the %d-syllable average", la.SyllableCount, moreOrFewer(deviation, abs), target),
			Suggestion: adjustHint(deviation),
		})
		penalty += warningPenalty
	}
	if la.SyllableCount < shortLine {
		la.Issues = append(la.Issues, Issue{
			Severity: SeverityInfo,
			Message:  "Very short line",
		})
	}
	if la.SyllableCount > longLine {
		la.Issues = append(la.Issues, Issue{
			Severity:   SeverityWarning,
			Message:    fmt.Sprintf("Long line with %d syllables", la.SyllableCount),
			Suggestion: "Split it into two lines",
		})
		penalty += longLinePenalty
	}
	la.Score = max(0, 100-penalty)
	return la
}

// syllabify returns the syllables of the line flattened, with a word index per
// syllable kept by groupWords. Words without a nucleus contribute nothing.
func (a *Analyzer) syllabify(line string) []wordSyllable {
	var out []wordSyllable
	word := 0
	for _, token := range strings.FieldsFunc(line, isSeparator) {
		runes := []rune(token)
		parts := split(runes, nuclei(runes, a.scripts))
		if len(parts) == 0 {
			continue
		}
		for _, p := range parts {
			out = append(out, wordSyllable{word: word, text: p})
		}
		word++
	}
	return out
}

type wordSyllable struct {
	word int
	text string
}

func groupWords(syllables []wordSyllable) [][]string {
	var out [][]string
	for _, s := range syllables {
		if s.word == len(out) {
			out = append(out, nil)
		}
		out[s.word] = append(out[s.word], s.text)
	}
	return out
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\'' && r != '’'
}

// isNeutral reports blank lines and section markers such as "[Chorus]".
func isNeutral(line string) bool {
	t := strings.TrimSpace(line)
	return t == "" || (strings.HasPrefix(t, "[") && strings.HasSuffix(t, "]"))
}

func neutral(line string) LineAnalysis {
	return LineAnalysis{Text: line, Syllables: []Syllable{}, Issues: []Issue{}, Score: 100}
}

func moreOrFewer(deviation, abs int) string {
	if deviation > 0 {
		return fmt.Sprintf("%d more", abs)
	}
	return fmt.Sprintf("%d fewer", abs)
}

func adjustHint(deviation int) string {
	if deviation > 0 {
		return "Cut a word or use shorter words"
	}
	return "Add a word or use longer words"
}
