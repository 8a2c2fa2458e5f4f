package domain

import "time"

// Day normalizes a timestamp to midnight UTC; every per-date key in the
// challenge and streak subsystems goes through this.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DailyChallenge is the fixed question set shared by all learners on one
// calendar date. At most one challenge exists per (date, template).
type DailyChallenge struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"` // midnight UTC
	TemplateID  string    `json:"templateId"`
	QuestionIDs []string  `json:"questionIds"`

	// Rolling aggregates, recomputed on each completion. Advisory display
	// statistics, last-writer-wins under concurrent completions.
	TotalAttempts    int     `json:"totalAttempts"`
	TotalCompletions int     `json:"totalCompletions"`
	AverageScore     float64 `json:"averageScore"`
}

// ChallengeAttempt is one completed run of a daily challenge. A learner
// may retry; exactly one attempt per (learner, date) is their best under
// BetterAttempt ordering.
type ChallengeAttempt struct {
	ID               string    `json:"id"`
	LearnerID        string    `json:"learnerId"`
	ChallengeID      string    `json:"challengeId"`
	Date             time.Time `json:"date"`
	TemplateID       string    `json:"templateId"`
	SessionID        string    `json:"sessionId"`
	Score            int       `json:"score"`
	TimeMs           int64     `json:"timeMs"`
	QuestionsCorrect int       `json:"questionsCorrect"`
	CompletedAt      time.Time `json:"completedAt"`
	Rank             *int      `json:"rank,omitempty"`
}

// BetterAttempt reports whether a beats b: higher score wins, equal
// scores are broken by lower elapsed time.
func BetterAttempt(a, b ChallengeAttempt) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.TimeMs < b.TimeMs
}

// LeaderboardEntry is one ranked row of the daily challenge scoreboard.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	LearnerID   string `json:"learnerId"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
	Score       int    `json:"score"`
	TimeMs      int64  `json:"timeMs"`
}

// Leaderboard is the ordered scoreboard snapshot pushed to subscribers.
type Leaderboard struct {
	ChallengeID  string             `json:"challengeId"`
	Date         time.Time          `json:"date"`
	Entries      []LeaderboardEntry `json:"entries"`
	TotalPlayers int                `json:"totalPlayers"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// ChallengeData is the read-path view for one learner on one date.
// Absence of a challenge is represented, not an error.
type ChallengeData struct {
	Challenge    *DailyChallenge    `json:"challenge"`
	UserAttempts []ChallengeAttempt `json:"userAttempts"`
	BestAttempt  *ChallengeAttempt  `json:"bestAttempt"`
	Leaderboard  []LeaderboardEntry `json:"leaderboard"`
	UserRank     *int               `json:"userRank"`
	TotalPlayers int                `json:"totalPlayers"`
}

// CompletionResult is returned after recording a challenge attempt.
type CompletionResult struct {
	AttemptID string `json:"attemptId"`
	Rank      *int   `json:"rank"`
	Score     int    `json:"score"`
	IsNewBest bool   `json:"isNewBest"`
}
