package app

import (
	"strings"

	"trivia-competition-service/internal/domain"
)

// similarityThreshold is the normalized edit distance above which an
// open-form answer is pre-sorted as a correct candidate.
const similarityThreshold = 0.8

// autoGrade scores one closed-form answer: correct iff the trimmed text is a
// member of the accepted-keys set. Empty answers are always incorrect.
func autoGrade(q domain.Question, a domain.Answer) (bool, int) {
	text := strings.TrimSpace(a.Text)
	if text == "" {
		return false, 0
	}
	for _, key := range q.AcceptedKeys {
		if text == key {
			return true, q.Points
		}
	}
	return false, 0
}

// GroupAnswers partitions open-form answers into empty, correct-candidate and
// incorrect groups. The grouping is advisory: the adjudicator's explicit
// grading always overrides it.
func GroupAnswers(q domain.Question, answers []domain.Answer) domain.AnswerGroups {
	groups := domain.AnswerGroups{
		Correct:   []domain.Answer{},
		Incorrect: []domain.Answer{},
		Empty:     []domain.Answer{},
	}

	for _, a := range answers {
		if strings.TrimSpace(a.Text) == "" {
			groups.Empty = append(groups.Empty, a)
			continue
		}

		normalized := normalizeAnswer(a.Text)
		match := false
		for _, key := range q.AcceptedKeys {
			k := normalizeAnswer(key)
			if normalized == k || similarity(normalized, k) >= similarityThreshold {
				match = true
				break
			}
		}

		if match {
			groups.Correct = append(groups.Correct, a)
		} else {
			groups.Incorrect = append(groups.Incorrect, a)
		}
	}

	return groups
}

// normalizeAnswer lower-cases and trims free-text answers before comparison.
// Lower-casing U+0130 (Turkish dotted capital I) leaves a combining dot above
// behind; that mark is stripped so "İstanbul" and "istanbul" compare equal.
func normalizeAnswer(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		if r == 0x0307 { // combining dot above
			return -1
		}
		return r
	}, s)
}

// similarity is the normalized edit distance between two strings:
// 1 - lev(a, b) / max(len(a), len(b)). Identical strings score 1.0.
func similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(ra, rb))/float64(maxLen)
}

// levenshtein computes edit distance over runes with a two-row matrix.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
