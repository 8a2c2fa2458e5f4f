package memory

import (
	"context"
	"sync"

	"assessment-service/internal/domain"
)

// ProfileStore is an in-memory implementation of app.ProfileStore.
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]domain.LearnerProfile
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[string]domain.LearnerProfile)}
}

func (s *ProfileStore) GetProfile(_ context.Context, learnerID string) (*domain.LearnerProfile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[learnerID]
	if !ok {
		return nil, false, nil
	}
	out := p
	return &out, true, nil
}

func (s *ProfileStore) PutProfile(_ context.Context, p *domain.LearnerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.LearnerID] = *p
	return nil
}

// bump applies the lifetime counter increments of one submit, creating the
// profile row if absent.
func (s *ProfileStore) bump(learnerID string, correct bool, durationMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[learnerID]
	if !ok {
		p = domain.LearnerProfile{LearnerID: learnerID, DisplayName: learnerID}
	}
	p.TotalAttempted++
	if correct {
		p.TotalCorrect++
	}
	p.TotalTimeSpentMs += durationMs
	s.profiles[learnerID] = p
}

// StreakStore is an in-memory implementation of app.StreakStore.
type StreakStore struct {
	mu      sync.RWMutex
	streaks map[string]domain.LearnerStreak
}

func NewStreakStore() *StreakStore {
	return &StreakStore{streaks: make(map[string]domain.LearnerStreak)}
}

func (s *StreakStore) GetStreak(_ context.Context, learnerID string) (*domain.LearnerStreak, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.streaks[learnerID]
	if !ok {
		return nil, false, nil
	}
	out := row
	return &out, true, nil
}

func (s *StreakStore) PutStreak(_ context.Context, row *domain.LearnerStreak) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streaks[row.LearnerID] = *row
	return nil
}

// TemplateStore is an in-memory implementation of app.TemplateStore.
type TemplateStore struct {
	mu        sync.RWMutex
	templates map[string]domain.AssessmentTemplate
}

func NewTemplateStore() *TemplateStore {
	return &TemplateStore{templates: make(map[string]domain.AssessmentTemplate)}
}

func (s *TemplateStore) GetTemplate(_ context.Context, id string) (*domain.AssessmentTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return nil, domain.ErrTemplateNotFound
	}
	out := t
	return &out, nil
}

func (s *TemplateStore) PutTemplate(_ context.Context, t *domain.AssessmentTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.ID] = *t
	return nil
}
