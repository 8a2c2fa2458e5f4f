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

type challengeEnv struct {
	svc        *app.SessionService
	challenges *app.ChallengeService
	store      *memory.ChallengeStore
	hub        *app.LeaderboardHub
	clock      *fakeClock
}

func newChallengeEnv(t *testing.T) *challengeEnv {
	t.Helper()
	ctx := context.Background()

	profiles := memory.NewProfileStore()
	sessionStore := memory.NewSessionStore(profiles)
	templates := memory.NewTemplateStore()
	challengeStore := memory.NewChallengeStore()
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}

	tmpl := &domain.AssessmentTemplate{ID: "tmpl-daily", Kind: domain.KindDailyChallenge, QuestionLimit: 2, FeedbackAfterEach: true}
	if err := templates.PutTemplate(ctx, tmpl); err != nil {
		t.Fatalf("put template: %v", err)
	}
	ch := &domain.DailyChallenge{
		ID:          "ch-1",
		Date:        domain.Day(clock.Now()),
		TemplateID:  tmpl.ID,
		QuestionIDs: []string{"q1", "q2"},
	}
	if err := challengeStore.PutChallenge(ctx, ch); err != nil {
		t.Fatalf("put challenge: %v", err)
	}

	pool := memory.NewQuestionPool(poolQuestions())
	hub := app.NewLeaderboardHub()
	sessionSvc := app.NewSessionServiceWithClock(sessionStore, pool, templates, clock.Now)
	challengeSvc := app.NewChallengeServiceWithClock(challengeStore, templates, profiles, sessionSvc, sessionStore,
		memory.NewLeaderboardCache(time.Minute), hub, clock.Now)
	return &challengeEnv{svc: sessionSvc, challenges: challengeSvc, store: challengeStore, hub: hub, clock: clock}
}

// runChallenge plays one full run: both answers either right or wrong,
// taking the given amount of clock time, then records the attempt.
func (e *challengeEnv) runChallenge(t *testing.T, learnerID string, correct int, d time.Duration) domain.CompletionResult {
	t.Helper()
	ctx := context.Background()

	sess, err := e.challenges.Start(ctx, learnerID, "ch-1", e.clock.Now())
	if err != nil {
		t.Fatalf("start challenge: %v", err)
	}
	answers := map[string]string{"q1": "Paris", "q2": "London"}
	i := 0
	for _, q := range []string{"q1", "q2"} {
		text := "wrong"
		if i < correct {
			text = answers[q]
		}
		i++
		if _, err := e.svc.Submit(ctx, learnerID, app.SubmitParams{SessionID: sess.ID, QuestionID: q, Value: answer(text)}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	e.clock.Advance(d)
	if _, err := e.svc.End(ctx, learnerID, sess.ID, domain.ReasonUserCompleted); err != nil {
		t.Fatalf("end: %v", err)
	}
	result, err := e.challenges.Complete(ctx, learnerID, sess.ID, "ch-1", e.clock.Now())
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	// Rewind so every learner's run starts from the same instant and
	// elapsed time is exactly d.
	e.clock.Advance(-d)
	return result
}

func TestNoChallengeTodayIsNotAnError(t *testing.T) {
	env := newChallengeEnv(t)

	data, err := env.challenges.Data(context.Background(), "learner-1", time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("data: %v", err)
	}
	if data.Challenge != nil || data.UserRank != nil || len(data.Leaderboard) != 0 {
		t.Fatalf("expected empty result, got %+v", data)
	}
}

func TestStartUsesFixedQuestionOrder(t *testing.T) {
	ctx := context.Background()
	env := newChallengeEnv(t)

	sess, err := env.challenges.Start(ctx, "learner-1", "ch-1", env.clock.Now())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if sess.Kind != domain.KindDailyChallenge || sess.Config.ChallengeID != "ch-1" {
		t.Fatalf("session not linked to challenge: %+v", sess.Config)
	}

	_, order, err := env.svc.Get(ctx, "learner-1", sess.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(order) != 2 || order[0].QuestionID != "q1" || order[1].QuestionID != "q2" {
		t.Fatalf("expected fixed order [q1 q2], got %+v", order)
	}

	if _, err := env.challenges.Start(ctx, "learner-1", "ch-1", env.clock.Now().AddDate(0, 0, 1)); !errors.Is(err, domain.ErrChallengeNotFound) {
		t.Fatalf("expected date mismatch to read as not found, got %v", err)
	}
}

func TestCompleteRequiresFinishedOwnedSession(t *testing.T) {
	ctx := context.Background()
	env := newChallengeEnv(t)

	sess, err := env.challenges.Start(ctx, "learner-1", "ch-1", env.clock.Now())
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := env.challenges.Complete(ctx, "learner-1", sess.ID, "ch-1", env.clock.Now()); !errors.Is(err, domain.ErrSessionNotCompleted) {
		t.Fatalf("expected ErrSessionNotCompleted, got %v", err)
	}
	if _, err := env.challenges.Complete(ctx, "learner-2", sess.ID, "ch-1", env.clock.Now()); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected foreign session to read as not found, got %v", err)
	}
}

func TestRankingTieBrokenByTime(t *testing.T) {
	env := newChallengeEnv(t)

	// Same score, slower first: the faster run must outrank it.
	slow := env.runChallenge(t, "alice", 2, 70*time.Second)
	fast := env.runChallenge(t, "bob", 2, 60*time.Second)

	if slow.Rank == nil || *slow.Rank != 1 {
		t.Fatalf("first finisher should start at rank 1, got %v", slow.Rank)
	}
	if fast.Rank == nil || *fast.Rank != 1 {
		t.Fatalf("faster equal score must take rank 1, got %v", fast.Rank)
	}

	data, err := env.challenges.Data(context.Background(), "alice", env.clock.Now())
	if err != nil {
		t.Fatalf("data: %v", err)
	}
	if len(data.Leaderboard) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(data.Leaderboard))
	}
	if data.Leaderboard[0].LearnerID != "bob" || data.Leaderboard[1].LearnerID != "alice" {
		t.Fatalf("expected [bob alice], got %+v", data.Leaderboard)
	}
	if data.UserRank == nil || *data.UserRank != 2 {
		t.Fatalf("alice should now rank 2, got %v", data.UserRank)
	}
}

func TestBestAttemptDedup(t *testing.T) {
	env := newChallengeEnv(t)

	// Three attempts by the same learner: (2 correct, 50s), (2 correct,
	// 40s), (1 correct, 10s). Best is the 40s run with the higher score.
	env.runChallenge(t, "alice", 2, 50*time.Second)
	second := env.runChallenge(t, "alice", 2, 40*time.Second)
	third := env.runChallenge(t, "alice", 1, 10*time.Second)

	if !second.IsNewBest {
		t.Fatalf("equal score with faster time must be a new best")
	}
	if third.IsNewBest {
		t.Fatalf("lower score must not be a new best")
	}

	data, err := env.challenges.Data(context.Background(), "alice", env.clock.Now())
	if err != nil {
		t.Fatalf("data: %v", err)
	}
	if data.BestAttempt == nil {
		t.Fatalf("expected a best attempt")
	}
	if data.BestAttempt.TimeMs != (40 * time.Second).Milliseconds() {
		t.Fatalf("expected the 40s attempt as best, got %dms", data.BestAttempt.TimeMs)
	}
	if len(data.UserAttempts) != 3 {
		t.Fatalf("expected all 3 attempts listed, got %d", len(data.UserAttempts))
	}
	if len(data.Leaderboard) != 1 {
		t.Fatalf("leaderboard must dedup to one entry per learner, got %d", len(data.Leaderboard))
	}
}

func TestAggregatesCountEveryAttempt(t *testing.T) {
	ctx := context.Background()
	env := newChallengeEnv(t)

	env.runChallenge(t, "alice", 2, 30*time.Second) // score 2
	env.runChallenge(t, "alice", 0, 30*time.Second) // score 0
	env.runChallenge(t, "bob", 1, 30*time.Second)   // score 1

	ch, err := env.store.GetChallenge(ctx, "ch-1")
	if err != nil {
		t.Fatalf("get challenge: %v", err)
	}
	if ch.TotalAttempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", ch.TotalAttempts)
	}
	if ch.TotalCompletions != 2 {
		t.Fatalf("expected 2 distinct learners, got %d", ch.TotalCompletions)
	}
	if ch.AverageScore != 1.0 {
		t.Fatalf("average must cover every attempt, got %v", ch.AverageScore)
	}
}

func TestRankRecomputationIsDeterministic(t *testing.T) {
	env := newChallengeEnv(t)

	env.runChallenge(t, "alice", 2, 60*time.Second)
	env.runChallenge(t, "bob", 1, 10*time.Second)
	env.runChallenge(t, "carol", 2, 45*time.Second)

	first, err := env.challenges.Leaderboard(context.Background(), "ch-1")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	second, err := env.challenges.Leaderboard(context.Background(), "ch-1")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(first.Entries) != len(second.Entries) {
		t.Fatalf("entry count changed between reads")
	}
	for i := range first.Entries {
		if first.Entries[i] != second.Entries[i] {
			t.Fatalf("rank order changed between reads: %+v vs %+v", first.Entries[i], second.Entries[i])
		}
	}
	want := []string{"carol", "alice", "bob"}
	for i, e := range first.Entries {
		if e.LearnerID != want[i] || e.Rank != i+1 {
			t.Fatalf("expected %s at rank %d, got %+v", want[i], i+1, e)
		}
	}
}

func TestCompletionBroadcastsLeaderboard(t *testing.T) {
	env := newChallengeEnv(t)

	updates, cancel := env.hub.Subscribe("ch-1")
	defer cancel()

	env.runChallenge(t, "alice", 2, 30*time.Second)

	select {
	case lb := <-updates:
		if len(lb.Entries) != 1 || lb.Entries[0].LearnerID != "alice" {
			t.Fatalf("unexpected broadcast: %+v", lb.Entries)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected a leaderboard broadcast after completion")
	}
}
