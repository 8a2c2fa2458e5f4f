package app

import (
	"context"
	"time"

	"assessment-service/internal/domain"
)

// SessionStore persists sessions, their question ordering, and responses.
// RecordResponse and RecordSkip must apply the session row, the order row,
// the response append, and the learner profile counters as one atomic
// unit; partial application is prevented structurally, not compensated.
type SessionStore interface {
	CreateSession(ctx context.Context, s *domain.Session, order []domain.SessionQuestion) error
	GetSession(ctx context.Context, id string) (*domain.Session, error)
	GetSessionQuestion(ctx context.Context, sessionID, questionID string) (*domain.SessionQuestion, error)
	ListSessionQuestions(ctx context.Context, sessionID string) ([]domain.SessionQuestion, error)
	RecordResponse(ctx context.Context, s *domain.Session, sq *domain.SessionQuestion, r *domain.Response) error
	RecordSkip(ctx context.Context, s *domain.Session, sq *domain.SessionQuestion) error
	FinishSession(ctx context.Context, s *domain.Session) error
}

// QuestionPool is the external question provider. The order returned by
// Find is the presentation order; any selection-strategy shuffling happens
// inside the provider.
type QuestionPool interface {
	Find(ctx context.Context, filter domain.PoolFilter, limit int) ([]domain.Question, error)
	Get(ctx context.Context, questionID string) (domain.Question, error)
}

// TemplateStore resolves stored assessment policies.
type TemplateStore interface {
	GetTemplate(ctx context.Context, id string) (*domain.AssessmentTemplate, error)
	PutTemplate(ctx context.Context, t *domain.AssessmentTemplate) error
}

// ChallengeStore persists daily challenges and their attempts.
type ChallengeStore interface {
	GetChallenge(ctx context.Context, id string) (*domain.DailyChallenge, error)
	GetChallengeByDate(ctx context.Context, date time.Time) (*domain.DailyChallenge, error)
	PutChallenge(ctx context.Context, ch *domain.DailyChallenge) error
	UpdateAggregates(ctx context.Context, ch *domain.DailyChallenge) error
	CreateAttempt(ctx context.Context, a *domain.ChallengeAttempt) error
	ListAttempts(ctx context.Context, challengeID string) ([]domain.ChallengeAttempt, error)
	SetAttemptRank(ctx context.Context, attemptID string, rank int) error
}

// ProfileStore resolves learner display data for leaderboard annotation.
// Lifetime counter increments go through the SessionStore transaction, not
// through this interface.
type ProfileStore interface {
	GetProfile(ctx context.Context, learnerID string) (*domain.LearnerProfile, bool, error)
	PutProfile(ctx context.Context, p *domain.LearnerProfile) error
}

// StreakStore persists the per-learner login streak row.
type StreakStore interface {
	GetStreak(ctx context.Context, learnerID string) (*domain.LearnerStreak, bool, error)
	PutStreak(ctx context.Context, s *domain.LearnerStreak) error
}

// LeaderboardCache holds the fully ranked best-attempt list per challenge
// so the read path can skip recomputation. Misses are cheap; Drop is
// called on every completion.
type LeaderboardCache interface {
	Get(ctx context.Context, challengeID string) (*domain.Leaderboard, bool)
	Set(ctx context.Context, challengeID string, lb *domain.Leaderboard)
	Drop(ctx context.Context, challengeID string)
}
