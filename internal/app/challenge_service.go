package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"assessment-service/internal/domain"
)

// DefaultLeaderboardSize is how many entries the read path returns.
const DefaultLeaderboardSize = 10

// ChallengeService coordinates the daily challenge: resolving the
// challenge for a date, starting sessions against its fixed question set,
// recording completed attempts, and ranking.
type ChallengeService struct {
	challenges ChallengeStore
	templates  TemplateStore
	profiles   ProfileStore
	sessions   *SessionService
	store      SessionStore
	cache      LeaderboardCache
	hub        *LeaderboardHub
	topN       int
	now        func() time.Time
	newID      func() string
}

func NewChallengeService(challenges ChallengeStore, templates TemplateStore, profiles ProfileStore, sessions *SessionService, store SessionStore, cache LeaderboardCache, hub *LeaderboardHub) *ChallengeService {
	return &ChallengeService{
		challenges: challenges,
		templates:  templates,
		profiles:   profiles,
		sessions:   sessions,
		store:      store,
		cache:      cache,
		hub:        hub,
		topN:       DefaultLeaderboardSize,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// NewChallengeServiceWithClock is test-only for deterministic timestamps.
func NewChallengeServiceWithClock(challenges ChallengeStore, templates TemplateStore, profiles ProfileStore, sessions *SessionService, store SessionStore, cache LeaderboardCache, hub *LeaderboardHub, now func() time.Time) *ChallengeService {
	c := NewChallengeService(challenges, templates, profiles, sessions, store, cache, hub)
	c.now = now
	return c
}

// Hub exposes the broadcast hub for the websocket transport.
func (c *ChallengeService) Hub() *LeaderboardHub { return c.hub }

// Resolve finds the challenge for a date; absence yields (nil, nil).
func (c *ChallengeService) Resolve(ctx context.Context, date time.Time) (*domain.DailyChallenge, error) {
	ch, err := c.challenges.GetChallengeByDate(ctx, domain.Day(date))
	if errors.Is(err, domain.ErrChallengeNotFound) {
		return nil, nil
	}
	return ch, err
}

// Data assembles the learner's view of one date: the challenge (or nil),
// their attempts, their best, the top-N leaderboard annotated with profile
// display data, and their rank even when it falls outside the top N.
func (c *ChallengeService) Data(ctx context.Context, learnerID string, date time.Time) (domain.ChallengeData, error) {
	ch, err := c.Resolve(ctx, date)
	if err != nil {
		return domain.ChallengeData{}, err
	}
	if ch == nil {
		// No challenge today: an explicit empty result, not an error.
		return domain.ChallengeData{}, nil
	}

	lb, attempts, err := c.rankedBoard(ctx, ch)
	if err != nil {
		return domain.ChallengeData{}, err
	}

	data := domain.ChallengeData{
		Challenge:    ch,
		TotalPlayers: lb.TotalPlayers,
	}
	for i := range attempts {
		if attempts[i].LearnerID == learnerID {
			data.UserAttempts = append(data.UserAttempts, attempts[i])
		}
	}
	for i := range data.UserAttempts {
		a := data.UserAttempts[i]
		if data.BestAttempt == nil || domain.BetterAttempt(a, *data.BestAttempt) {
			best := a
			data.BestAttempt = &best
		}
	}
	for _, e := range lb.Entries {
		if e.LearnerID == learnerID {
			rank := e.Rank
			data.UserRank = &rank
			break
		}
	}
	top := lb.Entries
	if len(top) > c.topN {
		top = top[:c.topN]
	}
	data.Leaderboard = top
	return data, nil
}

// Start creates a session whose question order is exactly the challenge's
// fixed list and whose policy comes from the linked template.
func (c *ChallengeService) Start(ctx context.Context, learnerID, challengeID string, date time.Time) (*domain.Session, error) {
	ch, err := c.challenges.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if !ch.Date.Equal(domain.Day(date)) {
		return nil, domain.ErrChallengeNotFound
	}
	tmpl, err := c.templates.GetTemplate(ctx, ch.TemplateID)
	if err != nil {
		return nil, err
	}

	cfg := tmpl.Config()
	cfg.Kind = domain.KindDailyChallenge
	cfg.ChallengeID = ch.ID
	cfg.ChallengeDate = ch.Date
	return c.sessions.CreateFixed(ctx, learnerID, cfg, ch.QuestionIDs)
}

// Complete records an attempt from a finished session, recomputes the
// challenge's rolling aggregates over all attempts, ranks the caller's
// best attempt, and pushes the fresh leaderboard to subscribers.
func (c *ChallengeService) Complete(ctx context.Context, learnerID, sessionID, challengeID string, date time.Time) (domain.CompletionResult, error) {
	ch, err := c.challenges.GetChallenge(ctx, challengeID)
	if err != nil {
		return domain.CompletionResult{}, err
	}

	sess, err := c.store.GetSession(ctx, sessionID)
	if err != nil {
		return domain.CompletionResult{}, err
	}
	if sess.LearnerID != learnerID {
		return domain.CompletionResult{}, domain.ErrSessionNotFound
	}
	if !sess.Terminal() {
		return domain.CompletionResult{}, domain.ErrSessionNotCompleted
	}
	if sess.Config.ChallengeID != ch.ID {
		return domain.CompletionResult{}, domain.ErrChallengeNotFound
	}

	prior, err := c.challenges.ListAttempts(ctx, ch.ID)
	if err != nil {
		return domain.CompletionResult{}, err
	}
	var prevBest *domain.ChallengeAttempt
	for i := range prior {
		if prior[i].LearnerID != learnerID {
			continue
		}
		if prevBest == nil || domain.BetterAttempt(prior[i], *prevBest) {
			prevBest = &prior[i]
		}
	}

	attempt := domain.ChallengeAttempt{
		ID:               c.newID(),
		LearnerID:        learnerID,
		ChallengeID:      ch.ID,
		Date:             ch.Date,
		TemplateID:       ch.TemplateID,
		SessionID:        sess.ID,
		Score:            sess.TotalScore,
		TimeMs:           sess.TotalTimeMs,
		QuestionsCorrect: sess.QuestionsCorrect,
		CompletedAt:      c.now(),
	}
	if err := c.challenges.CreateAttempt(ctx, &attempt); err != nil {
		return domain.CompletionResult{}, fmt.Errorf("record attempt: %w", err)
	}
	attempts := append(prior, attempt)

	// Rolling aggregates count every attempt, not just bests. They are
	// advisory display statistics; last writer wins under concurrency.
	ch.TotalAttempts = len(attempts)
	learners := make(map[string]struct{})
	scoreSum := 0
	for _, a := range attempts {
		learners[a.LearnerID] = struct{}{}
		scoreSum += a.Score
	}
	ch.TotalCompletions = len(learners)
	ch.AverageScore = float64(scoreSum) / float64(len(attempts))
	if err := c.challenges.UpdateAggregates(ctx, ch); err != nil {
		return domain.CompletionResult{}, fmt.Errorf("update aggregates: %w", err)
	}

	bests := bestPerLearner(attempts)
	result := domain.CompletionResult{AttemptID: attempt.ID, Score: attempt.Score}
	for i := range bests {
		if bests[i].LearnerID == learnerID {
			rank := i + 1
			result.Rank = &rank
			break
		}
	}
	if result.Rank != nil {
		// The rank lands on the attempt just created, never retroactively
		// on earlier attempts of the same learner.
		if err := c.challenges.SetAttemptRank(ctx, attempt.ID, *result.Rank); err != nil {
			return domain.CompletionResult{}, fmt.Errorf("set rank: %w", err)
		}
		attempt.Rank = result.Rank
	}
	result.IsNewBest = prevBest == nil || domain.BetterAttempt(attempt, *prevBest)

	if c.cache != nil {
		c.cache.Drop(ctx, ch.ID)
	}
	if c.hub != nil {
		c.hub.Broadcast(ch.ID, buildLeaderboard(ctx, c.profiles, ch, bests, c.now()))
	}
	return result, nil
}

// Leaderboard returns the fully ranked best-attempt list, cache-aside.
func (c *ChallengeService) Leaderboard(ctx context.Context, challengeID string) (domain.Leaderboard, error) {
	ch, err := c.challenges.GetChallenge(ctx, challengeID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	lb, _, err := c.rankedBoard(ctx, ch)
	return lb, err
}

func (c *ChallengeService) rankedBoard(ctx context.Context, ch *domain.DailyChallenge) (domain.Leaderboard, []domain.ChallengeAttempt, error) {
	attempts, err := c.challenges.ListAttempts(ctx, ch.ID)
	if err != nil {
		return domain.Leaderboard{}, nil, err
	}
	if c.cache != nil {
		if lb, ok := c.cache.Get(ctx, ch.ID); ok {
			return *lb, attempts, nil
		}
	}
	lb := buildLeaderboard(ctx, c.profiles, ch, bestPerLearner(attempts), c.now())
	if c.cache != nil {
		c.cache.Set(ctx, ch.ID, &lb)
	}
	return lb, attempts, nil
}

// bestPerLearner dedups to each learner's best attempt and sorts the
// result by score descending, elapsed time ascending.
func bestPerLearner(attempts []domain.ChallengeAttempt) []domain.ChallengeAttempt {
	best := make(map[string]domain.ChallengeAttempt)
	for _, a := range attempts {
		cur, ok := best[a.LearnerID]
		if !ok || domain.BetterAttempt(a, cur) {
			best[a.LearnerID] = a
		}
	}
	out := make([]domain.ChallengeAttempt, 0, len(best))
	for _, a := range best {
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return domain.BetterAttempt(out[i], out[j])
	})
	return out
}

func buildLeaderboard(ctx context.Context, profiles ProfileStore, ch *domain.DailyChallenge, bests []domain.ChallengeAttempt, now time.Time) domain.Leaderboard {
	entries := make([]domain.LeaderboardEntry, 0, len(bests))
	for i, a := range bests {
		entry := domain.LeaderboardEntry{
			Rank:      i + 1,
			LearnerID: a.LearnerID,
			Score:     a.Score,
			TimeMs:    a.TimeMs,
		}
		if profiles != nil {
			if p, ok, err := profiles.GetProfile(ctx, a.LearnerID); err == nil && ok {
				entry.DisplayName = p.DisplayName
				entry.AvatarURL = p.AvatarURL
			}
		}
		if entry.DisplayName == "" {
			entry.DisplayName = a.LearnerID
		}
		entries = append(entries, entry)
	}
	return domain.Leaderboard{
		ChallengeID:  ch.ID,
		Date:         ch.Date,
		Entries:      entries,
		TotalPlayers: len(entries),
		UpdatedAt:    now,
	}
}
