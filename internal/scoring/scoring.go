// Package scoring holds the pure comparison and momentum rules. Nothing
// here touches storage or the clock.
package scoring

import (
	"strings"

	"assessment-service/internal/domain"
)

// Outcome is the result of grading one submission.
type Outcome struct {
	Correct  bool
	Score    int
	MaxScore int
}

// Evaluate grades a submitted value against the question's answer key.
// A question with no answer key never grades correct.
func Evaluate(q domain.Question, v domain.ResponseValue) Outcome {
	out := Outcome{MaxScore: q.MaxPoints()}
	if v.Kind != q.Kind {
		return out
	}
	switch q.Kind {
	case domain.FreeText:
		out.Correct = matchText(v.Text, q.AcceptedTexts)
	case domain.SingleChoice:
		key := q.CorrectOptionIDs()
		out.Correct = len(key) == 1 && len(v.OptionIDs) == 1 && v.OptionIDs[0] == key[0]
	case domain.MultiChoice:
		out.Correct = sameIDSet(v.OptionIDs, q.CorrectOptionIDs())
	}
	if out.Correct {
		out.Score = out.MaxScore
	}
	return out
}

// matchText compares trimmed, case-insensitively against any accepted
// alternative. An empty key always fails.
func matchText(got string, accepted []string) bool {
	got = strings.TrimSpace(got)
	for _, want := range accepted {
		if strings.EqualFold(got, strings.TrimSpace(want)) {
			return true
		}
	}
	return false
}

// sameIDSet is order-insensitive set equality; duplicates on either side
// fail the comparison. Empty sets never match (no key means no credit).
func sameIDSet(got, want []string) bool {
	if len(got) == 0 || len(got) != len(want) {
		return false
	}
	seen := make(map[string]bool, len(want))
	for _, id := range want {
		seen[id] = true
	}
	if len(seen) != len(want) {
		return false
	}
	for _, id := range got {
		if !seen[id] {
			return false
		}
		delete(seen, id)
	}
	return true
}

// Momentum is the in-session streak/lives state threaded through submits.
type Momentum struct {
	CurrentStreak  int
	LongestStreak  int
	LivesEnabled   bool
	LivesRemaining int
	LivesUsed      int
}

// Advance applies one graded answer: streaks grow on correct and reset on
// incorrect; lives burn only on incorrect and only when enabled.
func Advance(m Momentum, correct bool) Momentum {
	if correct {
		m.CurrentStreak++
		if m.CurrentStreak > m.LongestStreak {
			m.LongestStreak = m.CurrentStreak
		}
		return m
	}
	m.CurrentStreak = 0
	if m.LivesEnabled && m.LivesRemaining > 0 {
		m.LivesRemaining--
		m.LivesUsed++
	}
	return m
}
