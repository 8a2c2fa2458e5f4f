package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"assessment-service/internal/app"
	"assessment-service/internal/domain"
	"assessment-service/internal/infra/memory"
)

func newStreakEnv(clock *fakeClock) (*app.StreakService, *memory.StreakStore) {
	store := memory.NewStreakStore()
	return app.NewStreakServiceWithClock(store, clock.Now), store
}

func TestFirstLoginStartsStreak(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	svc, _ := newStreakEnv(clock)

	res, err := svc.RecordLogin(ctx, "learner-1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Outcome != domain.LoginStarted || res.Streak.CurrentStreak != 1 || res.Streak.LongestStreak != 1 {
		t.Fatalf("unexpected first login: %+v", res)
	}
}

func TestSameDayLoginIsNoOp(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	svc, _ := newStreakEnv(clock)

	if _, err := svc.RecordLogin(ctx, "learner-1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	clock.Advance(6 * time.Hour)
	res, err := svc.RecordLogin(ctx, "learner-1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Outcome != domain.LoginAlreadyCounted || res.Streak.CurrentStreak != 1 {
		t.Fatalf("expected same-day no-op, got %+v", res)
	}
}

func TestConsecutiveDaysExtend(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	svc, _ := newStreakEnv(clock)

	for day := 0; day < 5; day++ {
		res, err := svc.RecordLogin(ctx, "learner-1")
		if err != nil {
			t.Fatalf("login day %d: %v", day, err)
		}
		if res.Streak.CurrentStreak != day+1 {
			t.Fatalf("day %d: expected streak %d, got %d", day, day+1, res.Streak.CurrentStreak)
		}
		clock.Advance(24 * time.Hour)
	}
}

func TestGapConsumesFreezeThenResets(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	svc, _ := newStreakEnv(clock)

	if _, err := svc.RecordLogin(ctx, "learner-1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	clock.Advance(24 * time.Hour)
	if _, err := svc.RecordLogin(ctx, "learner-1"); err != nil {
		t.Fatalf("login: %v", err)
	}

	// Two-day gap burns the first freeze, streak holds at 2.
	clock.Advance(48 * time.Hour)
	res, err := svc.RecordLogin(ctx, "learner-1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Outcome != domain.LoginFreezeUsed || res.Streak.CurrentStreak != 2 {
		t.Fatalf("expected freeze to hold streak at 2, got %+v", res)
	}
	if res.Streak.FreezesLeft != 1 {
		t.Fatalf("expected 1 freeze left, got %d", res.Streak.FreezesLeft)
	}

	// Next gap burns the second freeze, then the third gap resets.
	clock.Advance(48 * time.Hour)
	res, _ = svc.RecordLogin(ctx, "learner-1")
	if res.Outcome != domain.LoginFreezeUsed || res.Streak.FreezesLeft != 0 {
		t.Fatalf("expected last freeze used, got %+v", res)
	}
	clock.Advance(48 * time.Hour)
	res, _ = svc.RecordLogin(ctx, "learner-1")
	if res.Outcome != domain.LoginReset || res.Streak.CurrentStreak != 1 {
		t.Fatalf("expected reset to 1, got %+v", res)
	}
	if res.Streak.LongestStreak != 2 {
		t.Fatalf("longest streak must survive the reset, got %d", res.Streak.LongestStreak)
	}
}

func TestActiveGraceHoldsStreak(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	svc, _ := newStreakEnv(clock)

	if _, err := svc.RecordLogin(ctx, "learner-1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := svc.UseFreeze(ctx, "learner-1"); err != nil {
		t.Fatalf("freeze: %v", err)
	}

	// The 24h grace from UseFreeze has lapsed at +47h, so the remaining
	// automatic freeze must absorb the two-day gap instead.
	clock.Advance(47 * time.Hour)
	res, err := svc.RecordLogin(ctx, "learner-1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Outcome != domain.LoginFreezeUsed {
		t.Fatalf("expected remaining freeze to cover the gap, got %+v", res)
	}
}

func TestGraceWithinWindow(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	svc, store := newStreakEnv(clock)

	if _, err := svc.RecordLogin(ctx, "learner-1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	// Drain freezes so only the grace period can save the gap.
	if _, err := svc.UseFreeze(ctx, "learner-1"); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if _, err := svc.UseFreeze(ctx, "learner-1"); err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if _, err := svc.UseFreeze(ctx, "learner-1"); !errors.Is(err, domain.ErrNoFreezesAvailable) {
		t.Fatalf("expected ErrNoFreezesAvailable, got %v", err)
	}

	row, ok, err := store.GetStreak(ctx, "learner-1")
	if err != nil || !ok {
		t.Fatalf("get streak: ok=%v err=%v", ok, err)
	}
	if row.GraceExpiresAt == nil {
		t.Fatalf("expected grace window set")
	}

	// Two-day gap with no freezes left, but an active grace window.
	clock.Advance(48 * time.Hour)
	expires := clock.Now().Add(time.Hour)
	row.GraceExpiresAt = &expires
	if err := store.PutStreak(ctx, row); err != nil {
		t.Fatalf("put streak: %v", err)
	}

	res, err := svc.RecordLogin(ctx, "learner-1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Outcome != domain.LoginGraceHeld || res.Streak.CurrentStreak != 1 {
		t.Fatalf("expected grace to hold the streak, got %+v", res)
	}
	if res.Streak.GraceExpiresAt != nil {
		t.Fatalf("grace must be cleared after use")
	}
}

func TestLoginResetsGoalProgress(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)}
	svc, _ := newStreakEnv(clock)

	if _, err := svc.RecordLogin(ctx, "learner-1"); err != nil {
		t.Fatalf("login: %v", err)
	}
	row, err := svc.AddGoalProgress(ctx, "learner-1", 10)
	if err != nil {
		t.Fatalf("goal: %v", err)
	}
	if !row.GoalMet {
		t.Fatalf("expected goal met at target, got %+v", row)
	}

	clock.Advance(24 * time.Hour)
	res, err := svc.RecordLogin(ctx, "learner-1")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if res.Streak.GoalProgress != 0 || res.Streak.GoalMet {
		t.Fatalf("new day must reset goal progress, got %+v", res.Streak)
	}
}
