// Package similarity scores how closely two short names match.
package similarity

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
)

// Similarity returns a score between 0.0 (nothing in common) and 1.0 (same name once
// normalized), based on Levenshtein distance.
//
// A query that is a whole-word prefix of the candidate ("disney" for "Disney Plus") scores at
// least 0.9 so that abbreviated input still finds its target.
func Similarity(query, candidate string) float64 {
	query = Normalize(query)
	candidate = Normalize(candidate)

	if query == candidate {
		return 1.0
	}
	if query == "" || candidate == "" {
		return 0.0
	}

	if score := prefixScore(query, candidate); score > 0 {
		return score
	}

	a, b := []rune(query), []rune(candidate)
	longest := max(len(a), len(b))
	return 1.0 - float64(levenshtein(a, b))/float64(longest)
}

// Closest returns the index of the candidate that best matches query and its score.
// The index is -1 when no candidate reaches threshold.
func Closest(query string, candidates []string, threshold float64) (int, float64) {
	best, bestScore := -1, 0.0
	for i, candidate := range candidates {
		score := Similarity(query, candidate)
		if score > bestScore {
			best, bestScore = i, score
		}
	}
	if bestScore < threshold {
		return -1, bestScore
	}
	return best, bestScore
}

func prefixScore(query, candidate string) float64 {
	if len(query) >= len(candidate) || !strings.HasPrefix(candidate, query) {
		return 0
	}
	if candidate[len(query)] != ' ' {
		return 0
	}
	ratio := float64(len(query)) / float64(len(candidate))
	return 0.90 + ratio*0.09
}

// Normalize transliterates to ASCII, lowercases, spells out "+" and "&" and collapses
// punctuation to single spaces.
func Normalize(s string) string {
	s = unidecode.Unidecode(s)
	s = strings.ReplaceAll(s, "+", " plus ")
	s = strings.ReplaceAll(s, "&", " and ")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '.' || r == '-' || r == '_':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// levenshtein keeps two rows of the edit-distance table.
func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
