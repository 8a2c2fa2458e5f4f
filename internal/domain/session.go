package domain

import "time"

// SessionStatus is the session state machine. Sessions are created already
// IN_PROGRESS and every termination path lands on COMPLETED with a
// differentiating reason string; the remaining values exist for storage
// compatibility and are never resurrected once terminal.
type SessionStatus string

const (
	StatusNotStarted SessionStatus = "NOT_STARTED"
	StatusInProgress SessionStatus = "IN_PROGRESS"
	StatusPaused     SessionStatus = "PAUSED"
	StatusCompleted  SessionStatus = "COMPLETED"
	StatusAbandoned  SessionStatus = "ABANDONED"
	StatusTimedOut   SessionStatus = "TIMED_OUT"
)

// Recognized termination reasons. The field is free-form; these are the
// values the engine itself writes.
const (
	ReasonUserCompleted = "USER_COMPLETED"
	ReasonUserQuit      = "USER_QUIT"
	ReasonOutOfLives    = "OUT_OF_LIVES"
	ReasonTimeLimit     = "TIME_LIMIT"
)

// AssessmentKind labels what flavor of session this is.
type AssessmentKind string

const (
	KindPractice       AssessmentKind = "practice"
	KindQuiz           AssessmentKind = "quiz"
	KindAdaptive       AssessmentKind = "adaptive"
	KindDailyChallenge AssessmentKind = "daily_challenge"
)

// SessionConfig is the effective policy snapshot taken at creation time,
// either copied from a template or assembled from caller defaults.
type SessionConfig struct {
	TemplateID        string         `json:"templateId,omitempty"`
	Kind              AssessmentKind `json:"kind"`
	SelectionStrategy string         `json:"selectionStrategy,omitempty"`
	QuestionLimit     int            `json:"questionLimit"`
	FeedbackAfterEach bool           `json:"feedbackAfterEach"`
	AllowSkip         bool           `json:"allowSkip"`
	AllowHints        bool           `json:"allowHints"`
	StartingLives     int            `json:"startingLives"` // 0 disables lives
	PerQuestionMs     int64          `json:"perQuestionMs,omitempty"`
	TotalLimitMs      int64          `json:"totalLimitMs,omitempty"`
	ChallengeID       string         `json:"challengeId,omitempty"`
	ChallengeDate     time.Time      `json:"challengeDate,omitempty"`
}

// LivesEnabled reports whether the session tracks a finite error budget.
func (c SessionConfig) LivesEnabled() bool { return c.StartingLives > 0 }

// AssessmentTemplate is a stored, named policy that sessions can be
// created from verbatim.
type AssessmentTemplate struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Kind              AssessmentKind `json:"kind"`
	SelectionStrategy string         `json:"selectionStrategy"`
	QuestionLimit     int            `json:"questionLimit"`
	FeedbackAfterEach bool           `json:"feedbackAfterEach"`
	AllowSkip         bool           `json:"allowSkip"`
	AllowHints        bool           `json:"allowHints"`
	StartingLives     int            `json:"startingLives"`
	PerQuestionMs     int64          `json:"perQuestionMs"`
	TotalLimitMs      int64          `json:"totalLimitMs"`
}

// Config snapshots the template policy for a new session.
func (t AssessmentTemplate) Config() SessionConfig {
	return SessionConfig{
		TemplateID:        t.ID,
		Kind:              t.Kind,
		SelectionStrategy: t.SelectionStrategy,
		QuestionLimit:     t.QuestionLimit,
		FeedbackAfterEach: t.FeedbackAfterEach,
		AllowSkip:         t.AllowSkip,
		AllowHints:        t.AllowHints,
		StartingLives:     t.StartingLives,
		PerQuestionMs:     t.PerQuestionMs,
		TotalLimitMs:      t.TotalLimitMs,
	}
}

// Session is one attempt at an assessment: the config snapshot plus the
// running counters mutated on every submit.
type Session struct {
	ID                 string        `json:"id"`
	LearnerID          string        `json:"learnerId"`
	Kind               AssessmentKind `json:"kind"`
	Status             SessionStatus `json:"status"`
	Config             SessionConfig `json:"config"`
	TopicIDs           []string      `json:"topicIds,omitempty"`
	CurrentIndex       int           `json:"currentIndex"`
	QuestionsAttempted int           `json:"questionsAttempted"`
	QuestionsCorrect   int           `json:"questionsCorrect"`
	QuestionsSkipped   int           `json:"questionsSkipped"`
	TotalScore         int           `json:"totalScore"`
	MaxPossibleScore   int           `json:"maxPossibleScore"`
	CurrentStreak      int           `json:"currentStreak"`
	LongestStreak      int           `json:"longestStreak"`
	LivesRemaining     int           `json:"livesRemaining"`
	LivesUsed          int           `json:"livesUsed"`
	StartedAt          time.Time     `json:"startedAt"`
	EndedAt            *time.Time    `json:"endedAt,omitempty"`
	PausedMs           int64         `json:"pausedMs"`
	TotalTimeMs        int64         `json:"totalTimeMs"`
	TerminationReason  string        `json:"terminationReason,omitempty"`
}

// Terminal reports whether the session reached a final status.
func (s *Session) Terminal() bool {
	switch s.Status {
	case StatusCompleted, StatusAbandoned, StatusTimedOut:
		return true
	}
	return false
}

// Finish moves the session into its terminal state. Idempotence and
// status checks are the caller's job.
func (s *Session) Finish(now time.Time, reason string) {
	s.Status = StatusCompleted
	s.EndedAt = &now
	s.TerminationReason = reason
	s.TotalTimeMs = now.Sub(s.StartedAt).Milliseconds() - s.PausedMs
	if s.TotalTimeMs < 0 {
		s.TotalTimeMs = 0
	}
}

// SessionQuestion assigns one question to one position of a session.
// Positions form a contiguous permutation of [0, count).
type SessionQuestion struct {
	SessionID   string     `json:"sessionId"`
	QuestionID  string     `json:"questionId"`
	Position    int        `json:"position"`
	Answered    bool       `json:"answered"`
	Skipped     bool       `json:"skipped"`
	Correct     bool       `json:"correct"`
	AnsweredAt  *time.Time `json:"answeredAt,omitempty"`
	TimeSpentMs int64      `json:"timeSpentMs"`
}
