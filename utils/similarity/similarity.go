// Package similarity scores how close two movie titles are and derives the
// accent-free key used for title lookups.
package similarity

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
)

// Similarity returns a score between 0.0 (completely different) and 1.0
// (identical) based on Levenshtein distance over the normalized titles.
//
// A title that is a word-aligned suffix of the other ("The Fantastic Four" vs
// "Fantastic Four") and covers at least 60% of it scores between 0.96 and 1.0.
func Similarity(s1, s2 string) float64 {
	s1 = Key(s1)
	s2 = Key(s2)

	if s1 == s2 {
		return 1.0
	}
	if s1 == "" || s2 == "" {
		return 0.0
	}

	if score := suffixContainmentScore(s1, s2); score > 0 {
		return score
	}

	distance := levenshteinDistance(s1, s2)
	maxLen := max(len([]rune(s1)), len([]rune(s2)))
	return 1.0 - float64(distance)/float64(maxLen)
}

func suffixContainmentScore(s1, s2 string) float64 {
	longer, shorter := s1, s2
	if len(s1) < len(s2) {
		longer, shorter = s2, s1
	}

	if !strings.HasSuffix(longer, shorter) {
		return 0
	}
	prefixLen := len(longer) - len(shorter)
	if prefixLen != 0 && longer[prefixLen-1] != ' ' {
		return 0
	}
	ratio := float64(len(shorter)) / float64(len(longer))
	if ratio < 0.6 {
		return 0
	}
	return 0.90 + ratio*0.10
}

// Key folds a title to lowercase ASCII words: accents are transliterated,
// "&" becomes "and", punctuation is dropped and separators collapse to one
// space. "Amélie" and "amelie" share a key.
func Key(s string) string {
	s = strings.ReplaceAll(s, "&", " and ")
	s = unidecode.Unidecode(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '.' || r == '-' || r == '_' || r == ':':
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func levenshteinDistance(s1, s2 string) int {
	r1 := []rune(s1)
	r2 := []rune(s2)

	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = min(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(r2)]
}
