package memory

import (
	"context"
	"sync"
	"time"

	"assessment-service/internal/domain"
)

// ChallengeStore is an in-memory implementation of app.ChallengeStore.
type ChallengeStore struct {
	mu         sync.RWMutex
	challenges map[string]domain.DailyChallenge
	byDate     map[time.Time]string
	attempts   map[string][]domain.ChallengeAttempt
}

func NewChallengeStore() *ChallengeStore {
	return &ChallengeStore{
		challenges: make(map[string]domain.DailyChallenge),
		byDate:     make(map[time.Time]string),
		attempts:   make(map[string][]domain.ChallengeAttempt),
	}
}

func (s *ChallengeStore) GetChallenge(_ context.Context, id string) (*domain.DailyChallenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.challenges[id]
	if !ok {
		return nil, domain.ErrChallengeNotFound
	}
	out := ch
	return &out, nil
}

func (s *ChallengeStore) GetChallengeByDate(_ context.Context, date time.Time) (*domain.DailyChallenge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byDate[domain.Day(date)]
	if !ok {
		return nil, domain.ErrChallengeNotFound
	}
	ch := s.challenges[id]
	out := ch
	return &out, nil
}

func (s *ChallengeStore) PutChallenge(_ context.Context, ch *domain.DailyChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch.Date = domain.Day(ch.Date)
	s.challenges[ch.ID] = *ch
	s.byDate[ch.Date] = ch.ID
	return nil
}

func (s *ChallengeStore) UpdateAggregates(_ context.Context, ch *domain.DailyChallenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.challenges[ch.ID]
	if !ok {
		return domain.ErrChallengeNotFound
	}
	stored.TotalAttempts = ch.TotalAttempts
	stored.TotalCompletions = ch.TotalCompletions
	stored.AverageScore = ch.AverageScore
	s.challenges[ch.ID] = stored
	return nil
}

func (s *ChallengeStore) CreateAttempt(_ context.Context, a *domain.ChallengeAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[a.ChallengeID] = append(s.attempts[a.ChallengeID], *a)
	return nil
}

func (s *ChallengeStore) ListAttempts(_ context.Context, challengeID string) ([]domain.ChallengeAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ChallengeAttempt(nil), s.attempts[challengeID]...), nil
}

func (s *ChallengeStore) SetAttemptRank(_ context.Context, attemptID string, rank int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rows := range s.attempts {
		for i := range rows {
			if rows[i].ID == attemptID {
				r := rank
				rows[i].Rank = &r
				s.attempts[id] = rows
				return nil
			}
		}
	}
	return domain.ErrChallengeNotFound
}
