package tools

import (
	"strings"
	"unicode"
)

// Consistency verdict bands. The score is a Jaccard overlap of token sets:
// ASCII words as-is, CJK runs as character bigrams so Japanese legal text
// compares without a morphological analyzer.
const (
	verdictConsistent = "consistent"
	verdictReview     = "needs_review"
	verdictConflict   = "potential_conflict"
)

func verdict(score float64) string {
	switch {
	case score >= 0.75:
		return verdictConsistent
	case score >= 0.40:
		return verdictReview
	default:
		return verdictConflict
	}
}

// tokenize splits text into a comparison set. Latin letter/digit runs become
// lowercase word tokens; runs of other letters (CJK) become bigrams.
func tokenize(text string) map[string]struct{} {
	set := make(map[string]struct{})
	var latin []rune
	var cjk []rune

	flushLatin := func() {
		if len(latin) > 0 {
			set[strings.ToLower(string(latin))] = struct{}{}
			latin = latin[:0]
		}
	}
	flushCJK := func() {
		if len(cjk) == 1 {
			set[string(cjk)] = struct{}{}
		}
		for i := 0; i+1 < len(cjk); i++ {
			set[string(cjk[i:i+2])] = struct{}{}
		}
		cjk = cjk[:0]
	}

	for _, r := range text {
		switch {
		case r < 128 && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			flushCJK()
			latin = append(latin, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			flushLatin()
			cjk = append(cjk, r)
		default:
			flushLatin()
			flushCJK()
		}
	}
	flushLatin()
	flushCJK()
	return set
}

// similarity computes the Jaccard overlap of two texts' token sets.
func similarity(a, b string) float64 {
	sa, sb := tokenize(a), tokenize(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 1
	}
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	inter := 0
	for tok := range sa {
		if _, ok := sb[tok]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}
