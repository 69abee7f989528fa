package rhythm

import (
	"strings"
	"unicode"
)

// Script describes how vowels form syllable nuclei in one writing system.
type Script struct {
	Name   string
	Vowels string
	// MergeAdjacent joins neighbouring vowels into a single nucleus.
	MergeAdjacent bool
	// SilentFinalE drops a word-final "e" after a consonant when the word
	// has another nucleus, as in "time" or "stone".
	SilentFinalE bool
}

var (
	Cyrillic = Script{
		Name:   "cyrillic",
		Vowels: "аеёиоуыэюяіїє",
	}
	Latin = Script{
		Name:          "latin",
		Vowels:        "aeiouyàáâãäåèéêëìíîïòóôõöùúûüýÿæœ",
		MergeAdjacent: true,
		SilentFinalE:  true,
	}
)

// DefaultScripts covers Cyrillic and Latin lyrics.
var DefaultScripts = []Script{Cyrillic, Latin}

func (s Script) isVowel(r rune) bool {
	return strings.ContainsRune(s.Vowels, unicode.ToLower(r))
}

// nucleus is a run of runes [start, end) forming one syllable peak.
type nucleus struct {
	start, end int
}

// nuclei finds the syllable peaks of a single word.
func nuclei(word []rune, scripts []Script) []nucleus {
	var out []nucleus
	var prev *Script
	for i, r := range word {
		sc := scriptOf(r, scripts)
		if sc == nil {
			prev = nil
			continue
		}
		if prev != nil && prev.Name == sc.Name && sc.MergeAdjacent && len(out) > 0 && out[len(out)-1].end == i {
			out[len(out)-1].end = i + 1
			continue
		}
		out = append(out, nucleus{start: i, end: i + 1})
		prev = sc
	}

	if n := len(out); n > 1 {
		last := out[n-1]
		sc := scriptOf(word[last.start], scripts)
		if sc.SilentFinalE && silentE(word, last, scripts) {
			out = out[:n-1]
		}
	}
	return out
}

// silentE reports a lone word-final "e" after a consonant. "-le" after
// another consonant keeps its syllable ("little", "table").
func silentE(word []rune, last nucleus, scripts []Script) bool {
	if last.end != len(word) || last.end-last.start != 1 || unicode.ToLower(word[last.start]) != 'e' {
		return false
	}
	before := last.start - 1
	if scriptOf(word[before], scripts) != nil {
		return false
	}
	if unicode.ToLower(word[before]) == 'l' && before > 0 && scriptOf(word[before-1], scripts) == nil {
		return false
	}
	return true
}

func scriptOf(r rune, scripts []Script) *Script {
	for i := range scripts {
		if scripts[i].isVowel(r) {
			return &scripts[i]
		}
	}
	return nil
}

// split cuts a word into one chunk per nucleus. A single consonant between
// two nuclei opens the next syllable; longer clusters leave one consonant
// for the next syllable and keep the rest.
func split(word []rune, peaks []nucleus) []string {
	if len(peaks) == 0 {
		return nil
	}
	out := make([]string, 0, len(peaks))
	start := 0
	for k := 1; k < len(peaks); k++ {
		gap := peaks[k].start - peaks[k-1].end
		cut := peaks[k].start
		if gap > 0 {
			cut--
		}
		out = append(out, string(word[start:cut]))
		start = cut
	}
	return append(out, string(word[start:]))
}
