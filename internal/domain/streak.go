package domain

import "time"

// GoalKind labels the daily goal a learner works toward.
type GoalKind string

const (
	GoalQuestions GoalKind = "questions"
	GoalMinutes   GoalKind = "minutes"
	GoalXP        GoalKind = "xp"
)

// LearnerStreak is the daily login streak row, one per learner. It is a
// calendar-day continuation machine, independent of in-session streaks.
type LearnerStreak struct {
	LearnerID      string     `json:"learnerId"`
	CurrentStreak  int        `json:"currentStreak"`
	LongestStreak  int        `json:"longestStreak"`
	LastActiveDate time.Time  `json:"lastActiveDate"` // midnight UTC, zero if never active
	FreezesLeft    int        `json:"freezesLeft"`
	GraceExpiresAt *time.Time `json:"graceExpiresAt,omitempty"`
	GoalKind       GoalKind   `json:"goalKind"`
	GoalTarget     int        `json:"goalTarget"`
	GoalProgress   int        `json:"goalProgress"`
	GoalMet        bool       `json:"goalMet"`
}

// LoginOutcome says how a login was absorbed into the streak.
type LoginOutcome string

const (
	LoginAlreadyCounted LoginOutcome = "already_counted"
	LoginExtended       LoginOutcome = "extended"
	LoginGraceHeld      LoginOutcome = "grace_held"
	LoginFreezeUsed     LoginOutcome = "freeze_used"
	LoginReset          LoginOutcome = "reset"
	LoginStarted        LoginOutcome = "started"
)

// LearnerProfile carries lifetime counters plus the display fields the
// leaderboard read path annotates entries with.
type LearnerProfile struct {
	LearnerID        string `json:"learnerId"`
	DisplayName      string `json:"displayName"`
	AvatarURL        string `json:"avatarUrl,omitempty"`
	TotalAttempted   int    `json:"totalAttempted"`
	TotalCorrect     int    `json:"totalCorrect"`
	TotalTimeSpentMs int64  `json:"totalTimeSpentMs"`
}
