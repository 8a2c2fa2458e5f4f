package memory

import (
	"context"
	"sync"

	"assessment-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionStore, used by
// unit tests and the database-less dev mode. All methods copy on the way
// in and out so callers never alias stored state; the mutex makes each
// mutation an atomic unit.
type SessionStore struct {
	mu        sync.RWMutex
	sessions  map[string]domain.Session
	order     map[string][]domain.SessionQuestion
	responses map[string][]domain.Response
	profiles  *ProfileStore
}

// NewSessionStore builds a store that bumps lifetime counters on the given
// profile store inside each RecordResponse, mirroring the transactional
// coupling of the Postgres implementation.
func NewSessionStore(profiles *ProfileStore) *SessionStore {
	return &SessionStore{
		sessions:  make(map[string]domain.Session),
		order:     make(map[string][]domain.SessionQuestion),
		responses: make(map[string][]domain.Response),
		profiles:  profiles,
	}
}

func (s *SessionStore) CreateSession(_ context.Context, sess *domain.Session, order []domain.SessionQuestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = *sess
	s.order[sess.ID] = append([]domain.SessionQuestion(nil), order...)
	return nil
}

func (s *SessionStore) GetSession(_ context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	out := sess
	return &out, nil
}

func (s *SessionStore) GetSessionQuestion(_ context.Context, sessionID, questionID string) (*domain.SessionQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sq := range s.order[sessionID] {
		if sq.QuestionID == questionID {
			out := sq
			return &out, nil
		}
	}
	return nil, domain.ErrQuestionNotFound
}

func (s *SessionStore) ListSessionQuestions(_ context.Context, sessionID string) ([]domain.SessionQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.SessionQuestion(nil), s.order[sessionID]...), nil
}

func (s *SessionStore) RecordResponse(_ context.Context, sess *domain.Session, sq *domain.SessionQuestion, r *domain.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = *sess
	s.putQuestionLocked(sess.ID, *sq)
	s.responses[sess.ID] = append(s.responses[sess.ID], *r)
	if s.profiles != nil {
		s.profiles.bump(r.LearnerID, r.Correct, r.DurationMs)
	}
	return nil
}

func (s *SessionStore) RecordSkip(_ context.Context, sess *domain.Session, sq *domain.SessionQuestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = *sess
	s.putQuestionLocked(sess.ID, *sq)
	return nil
}

func (s *SessionStore) FinishSession(_ context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; !ok {
		return domain.ErrSessionNotFound
	}
	s.sessions[sess.ID] = *sess
	return nil
}

// ListResponses is a test helper for asserting append-only behavior.
func (s *SessionStore) ListResponses(sessionID string) []domain.Response {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Response(nil), s.responses[sessionID]...)
}

// Len reports how many sessions exist, for tests asserting that a failed
// create persists nothing.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *SessionStore) putQuestionLocked(sessionID string, sq domain.SessionQuestion) {
	rows := s.order[sessionID]
	for i := range rows {
		if rows[i].QuestionID == sq.QuestionID {
			rows[i] = sq
			return
		}
	}
	s.order[sessionID] = append(rows, sq)
}
