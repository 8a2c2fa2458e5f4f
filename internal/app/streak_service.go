package app

import (
	"context"
	"fmt"
	"time"

	"assessment-service/internal/domain"
)

// Streak defaults for a learner's first login.
const (
	defaultStreakFreezes = 2
	defaultGoalTarget    = 10
	gracePeriod          = 24 * time.Hour
)

// StreakService is the daily login streak engine, a calendar-day
// continuation machine invoked at most meaningfully once per day.
type StreakService struct {
	store StreakStore
	now   func() time.Time
}

func NewStreakService(store StreakStore) *StreakService {
	return &StreakService{store: store, now: time.Now}
}

// NewStreakServiceWithClock is test-only for deterministic dates.
func NewStreakServiceWithClock(store StreakStore, now func() time.Time) *StreakService {
	return &StreakService{store: store, now: now}
}

// LoginResult reports how a login changed the streak.
type LoginResult struct {
	Outcome domain.LoginOutcome  `json:"outcome"`
	Streak  domain.LearnerStreak `json:"streak"`
}

// RecordLogin absorbs today's login into the streak. Same day is a no-op;
// a one-day gap extends; a longer gap is saved by an active grace period,
// then by a freeze, and otherwise resets the streak to 1.
func (s *StreakService) RecordLogin(ctx context.Context, learnerID string) (LoginResult, error) {
	now := s.now()
	today := domain.Day(now)

	row, ok, err := s.store.GetStreak(ctx, learnerID)
	if err != nil {
		return LoginResult{}, err
	}
	if !ok {
		row = &domain.LearnerStreak{
			LearnerID:   learnerID,
			FreezesLeft: defaultStreakFreezes,
			GoalKind:    domain.GoalQuestions,
			GoalTarget:  defaultGoalTarget,
		}
	}

	outcome := domain.LoginStarted
	switch {
	case row.LastActiveDate.Equal(today):
		return LoginResult{Outcome: domain.LoginAlreadyCounted, Streak: *row}, nil
	case row.LastActiveDate.IsZero():
		row.CurrentStreak = 1
	case today.Sub(row.LastActiveDate) == 24*time.Hour:
		row.CurrentStreak++
		outcome = domain.LoginExtended
	case row.GraceExpiresAt != nil && row.GraceExpiresAt.After(now):
		outcome = domain.LoginGraceHeld
	case row.FreezesLeft > 0:
		row.FreezesLeft--
		outcome = domain.LoginFreezeUsed
	default:
		row.CurrentStreak = 1
		outcome = domain.LoginReset
	}

	row.LastActiveDate = today
	if row.CurrentStreak > row.LongestStreak {
		row.LongestStreak = row.CurrentStreak
	}
	row.GraceExpiresAt = nil
	row.GoalProgress = 0
	row.GoalMet = false

	if err := s.store.PutStreak(ctx, row); err != nil {
		return LoginResult{}, fmt.Errorf("save streak: %w", err)
	}
	return LoginResult{Outcome: outcome, Streak: *row}, nil
}

// UseFreeze consumes one freeze to open a 24-hour grace period, distinct
// from the automatic freeze-on-gap during login.
func (s *StreakService) UseFreeze(ctx context.Context, learnerID string) (domain.LearnerStreak, error) {
	row, ok, err := s.store.GetStreak(ctx, learnerID)
	if err != nil {
		return domain.LearnerStreak{}, err
	}
	if !ok || row.FreezesLeft == 0 {
		return domain.LearnerStreak{}, domain.ErrNoFreezesAvailable
	}
	row.FreezesLeft--
	expires := s.now().Add(gracePeriod)
	row.GraceExpiresAt = &expires
	if err := s.store.PutStreak(ctx, row); err != nil {
		return domain.LearnerStreak{}, fmt.Errorf("save streak: %w", err)
	}
	return *row, nil
}

// AddGoalProgress advances today's goal counter and flips GoalMet when the
// target is reached.
func (s *StreakService) AddGoalProgress(ctx context.Context, learnerID string, amount int) (domain.LearnerStreak, error) {
	if amount <= 0 {
		row, _, err := s.store.GetStreak(ctx, learnerID)
		if err != nil {
			return domain.LearnerStreak{}, err
		}
		if row == nil {
			row = &domain.LearnerStreak{LearnerID: learnerID}
		}
		return *row, nil
	}

	row, ok, err := s.store.GetStreak(ctx, learnerID)
	if err != nil {
		return domain.LearnerStreak{}, err
	}
	if !ok {
		row = &domain.LearnerStreak{
			LearnerID:   learnerID,
			FreezesLeft: defaultStreakFreezes,
			GoalKind:    domain.GoalQuestions,
			GoalTarget:  defaultGoalTarget,
		}
	}
	row.GoalProgress += amount
	if row.GoalTarget > 0 && row.GoalProgress >= row.GoalTarget {
		row.GoalMet = true
	}
	if err := s.store.PutStreak(ctx, row); err != nil {
		return domain.LearnerStreak{}, fmt.Errorf("save streak: %w", err)
	}
	return *row, nil
}
