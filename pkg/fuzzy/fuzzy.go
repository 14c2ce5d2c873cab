// Package fuzzy scores candidate symbol names against a user query using
// CamelCase-boundary and acronym heuristics, with go-edlib similarity as a
// tie-breaker between equally scored candidates.
package fuzzy

import (
	"strings"

	"github.com/hbollon/go-edlib"
)

const (
	consecutiveBonus  = 15
	camelBoundaryBonus = 25
	wordBoundaryBonus = 10
	earlyMatchBonus   = 5
	earlyMatchWindow  = 3
	prefixBonus       = 50
	nodeModulesPenalty = -50
)

// Match is one scored candidate.
type Match struct {
	Name       string
	Score      int
	Similarity float64
}

// Score implements the point schedule of the fuzzy ranker: 0 if no
// subsequence match exists, otherwise a sum of positional bonuses. Higher
// is better.
func Score(query, candidateName string) int {
	if query == "" {
		return 0
	}

	q := []rune(strings.ToLower(query))
	c := []rune(candidateName)
	cLower := []rune(strings.ToLower(candidateName))

	score := 0
	qi := 0
	lastMatched := -2
	firstMatchIdx := -1

	for ci := 0; ci < len(c) && qi < len(q); ci++ {
		if cLower[ci] != q[qi] {
			continue
		}

		if firstMatchIdx == -1 {
			firstMatchIdx = ci
		}

		if ci == lastMatched+1 {
			score += consecutiveBonus
		}

		if isCamelBoundary(c, ci) {
			score += camelBoundaryBonus
		} else if isWordBoundary(c, ci) {
			score += wordBoundaryBonus
		}

		lastMatched = ci
		qi++
	}

	if qi < len(q) {
		// Not every query character could be traversed in order.
		return 0
	}

	if firstMatchIdx >= 0 && firstMatchIdx < earlyMatchWindow {
		score += earlyMatchBonus
	}

	if strings.HasPrefix(strings.ToLower(candidateName), strings.ToLower(query)) {
		score += prefixBonus
	}

	return score
}

// ScoreURI applies Score plus the node_modules penalty, the only penalty
// the ranker itself owns (context boosts live at the query layer).
func ScoreURI(query, candidateName, uri string) int {
	score := Score(query, candidateName)
	if score == 0 {
		return 0
	}
	if strings.Contains(uri, "node_modules") {
		score += nodeModulesPenalty
	}
	return score
}

func isCamelBoundary(runes []rune, idx int) bool {
	if idx == 0 {
		return false
	}
	prev := runes[idx-1]
	cur := runes[idx]
	if !isUpper(cur) {
		return false
	}
	return isLower(prev) || !isLetter(prev)
}

func isWordBoundary(runes []rune, idx int) bool {
	if idx == 0 {
		return true
	}
	switch runes[idx-1] {
	case '_', '-', '.', '/', '\\':
		return true
	}
	return false
}

func isUpper(r rune) bool { return r >= 'A' && r <= 'Z' }
func isLower(r rune) bool { return r >= 'a' && r <= 'z' }
func isLetter(r rune) bool {
	return isUpper(r) || isLower(r)
}

// Rank scores every candidate, drops non-matches, and orders the result by
// score descending, breaking ties with go-edlib's Jaro-Winkler similarity
// so visually-closer names sort ahead when point totals tie exactly.
func Rank(query string, candidates []string, uriFor func(name string) string) []Match {
	matches := make([]Match, 0, len(candidates))
	for _, name := range candidates {
		uri := ""
		if uriFor != nil {
			uri = uriFor(name)
		}
		score := ScoreURI(query, name, uri)
		if score <= 0 && query != "" {
			continue
		}
		sim, _ := edlib.StringsSimilarity(query, name, edlib.JaroWinkler)
		matches = append(matches, Match{Name: name, Score: score, Similarity: float64(sim)})
	}

	sortMatches(matches)
	return matches
}

func sortMatches(matches []Match) {
	// Simple insertion sort, O(n^2) in the number of matching candidates.
	// The query layer passes every defined name, so n is bounded only by
	// how many names match the query.
	for i := 1; i < len(matches); i++ {
		j := i
		for j > 0 && less(matches[j], matches[j-1]) {
			matches[j], matches[j-1] = matches[j-1], matches[j]
			j--
		}
	}
}

func less(a, b Match) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Similarity > b.Similarity
}
