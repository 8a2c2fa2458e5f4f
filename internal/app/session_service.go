package app

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"assessment-service/internal/domain"
	"assessment-service/internal/scoring"
)

// SessionService owns the session lifecycle: creation from a template or
// caller defaults, answer submission, skipping, and termination.
type SessionService struct {
	store     SessionStore
	pool      QuestionPool
	templates TemplateStore
	now       func() time.Time
	newID     func() string
	locks     keyedLocks
}

func NewSessionService(store SessionStore, pool QuestionPool, templates TemplateStore) *SessionService {
	return &SessionService{
		store:     store,
		pool:      pool,
		templates: templates,
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// NewSessionServiceWithClock is test-only for deterministic timestamps.
func NewSessionServiceWithClock(store SessionStore, pool QuestionPool, templates TemplateStore, now func() time.Time) *SessionService {
	s := NewSessionService(store, pool, templates)
	s.now = now
	return s
}

// CreateParams are the caller-supplied knobs when no template is used.
type CreateParams struct {
	TemplateID    string
	Kind          domain.AssessmentKind
	QuestionLimit int
	TopicIDs      []string
}

const defaultQuestionLimit = 10

// Create resolves the effective config, pulls candidate questions from the
// pool, and persists the session with its ordered question list in one
// atomic unit. An empty pool result fails with ErrNoQuestionsAvailable
// carrying the topic filter.
func (s *SessionService) Create(ctx context.Context, learnerID string, p CreateParams) (*domain.Session, error) {
	cfg, err := s.resolveConfig(ctx, p)
	if err != nil {
		return nil, err
	}

	filter := domain.PoolFilter{Active: true, Reviewed: true, TopicIDs: p.TopicIDs}
	questions, err := s.pool.Find(ctx, filter, cfg.QuestionLimit)
	if err != nil {
		return nil, fmt.Errorf("question pool: %w", err)
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("%w (topics: [%s])", domain.ErrNoQuestionsAvailable, strings.Join(p.TopicIDs, ", "))
	}

	ids := make([]string, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}
	return s.createWithQuestions(ctx, learnerID, cfg, p.TopicIDs, ids)
}

// CreateFixed builds a session over an explicit question list, bypassing
// the pool. The daily challenge coordinator uses this so every learner
// sees the challenge's questions in the same fixed order.
func (s *SessionService) CreateFixed(ctx context.Context, learnerID string, cfg domain.SessionConfig, questionIDs []string) (*domain.Session, error) {
	if len(questionIDs) == 0 {
		return nil, domain.ErrNoQuestionsAvailable
	}
	return s.createWithQuestions(ctx, learnerID, cfg, nil, questionIDs)
}

func (s *SessionService) resolveConfig(ctx context.Context, p CreateParams) (domain.SessionConfig, error) {
	if p.TemplateID != "" {
		tmpl, err := s.templates.GetTemplate(ctx, p.TemplateID)
		if err != nil {
			return domain.SessionConfig{}, err
		}
		cfg := tmpl.Config()
		if cfg.QuestionLimit <= 0 {
			cfg.QuestionLimit = defaultQuestionLimit
		}
		return cfg, nil
	}

	kind := p.Kind
	if kind == "" {
		kind = domain.KindPractice
	}
	limit := p.QuestionLimit
	if limit <= 0 {
		limit = defaultQuestionLimit
	}
	return domain.SessionConfig{
		Kind:              kind,
		QuestionLimit:     limit,
		FeedbackAfterEach: true,
		AllowSkip:         true,
		AllowHints:        true,
	}, nil
}

func (s *SessionService) createWithQuestions(ctx context.Context, learnerID string, cfg domain.SessionConfig, topicIDs, questionIDs []string) (*domain.Session, error) {
	now := s.now()
	sess := &domain.Session{
		ID:             s.newID(),
		LearnerID:      learnerID,
		Kind:           cfg.Kind,
		Status:         domain.StatusInProgress,
		Config:         cfg,
		TopicIDs:       topicIDs,
		LivesRemaining: cfg.StartingLives,
		StartedAt:      now,
	}
	order := make([]domain.SessionQuestion, len(questionIDs))
	for i, qid := range questionIDs {
		order[i] = domain.SessionQuestion{SessionID: sess.ID, QuestionID: qid, Position: i}
	}
	if err := s.store.CreateSession(ctx, sess, order); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// Get returns a session with its question order, enforcing ownership.
func (s *SessionService) Get(ctx context.Context, learnerID, sessionID string) (*domain.Session, []domain.SessionQuestion, error) {
	sess, err := s.owned(ctx, learnerID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	order, err := s.store.ListSessionQuestions(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	return sess, order, nil
}

// SubmitParams carries one answer submission.
type SubmitParams struct {
	SessionID  string
	QuestionID string
	Value      domain.ResponseValue
	FreeText   string
	StartedAt  time.Time
	HintsUsed  int
	Confidence int
}

// Submit grades one answer and applies the full mutation as a single
// atomic unit: response append, session counters, order-row flags, and
// learner profile counters. When an incorrect answer burns the last life
// the session is finished in the same unit with reason OUT_OF_LIVES, so a
// dropped client request can never leave a zombie session.
func (s *SessionService) Submit(ctx context.Context, learnerID string, p SubmitParams) (domain.QuestionOutcome, error) {
	unlock := s.locks.lock(p.SessionID)
	defer unlock()

	sess, err := s.owned(ctx, learnerID, p.SessionID)
	if err != nil {
		return domain.QuestionOutcome{}, err
	}
	if sess.Status != domain.StatusInProgress {
		return domain.QuestionOutcome{}, domain.ErrSessionNotActive
	}

	sq, err := s.store.GetSessionQuestion(ctx, p.SessionID, p.QuestionID)
	if err != nil {
		return domain.QuestionOutcome{}, err
	}
	if sq.Answered || sq.Skipped {
		return domain.QuestionOutcome{}, domain.ErrAlreadyAnswered
	}

	question, err := s.pool.Get(ctx, p.QuestionID)
	if err != nil {
		return domain.QuestionOutcome{}, err
	}

	now := s.now()
	out := scoring.Evaluate(question, p.Value)
	m := scoring.Advance(scoring.Momentum{
		CurrentStreak:  sess.CurrentStreak,
		LongestStreak:  sess.LongestStreak,
		LivesEnabled:   sess.Config.LivesEnabled(),
		LivesRemaining: sess.LivesRemaining,
		LivesUsed:      sess.LivesUsed,
	}, out.Correct)

	duration := int64(0)
	if !p.StartedAt.IsZero() && now.After(p.StartedAt) {
		duration = now.Sub(p.StartedAt).Milliseconds()
	}

	resp := &domain.Response{
		ID:          s.newID(),
		SessionID:   sess.ID,
		QuestionID:  question.ID,
		LearnerID:   learnerID,
		Value:       p.Value,
		FreeText:    p.FreeText,
		Correct:     out.Correct,
		Score:       out.Score,
		MaxScore:    out.MaxScore,
		StartedAt:   p.StartedAt,
		SubmittedAt: now,
		DurationMs:  duration,
		HintsUsed:   p.HintsUsed,
		Confidence:  p.Confidence,
	}

	sess.QuestionsAttempted++
	if out.Correct {
		sess.QuestionsCorrect++
	}
	sess.TotalScore += out.Score
	sess.MaxPossibleScore += out.MaxScore
	sess.CurrentStreak = m.CurrentStreak
	sess.LongestStreak = m.LongestStreak
	sess.LivesRemaining = m.LivesRemaining
	sess.LivesUsed = m.LivesUsed
	sess.CurrentIndex++

	sq.Answered = true
	sq.Correct = out.Correct
	sq.AnsweredAt = &now
	sq.TimeSpentMs = duration

	ended := sess.Config.LivesEnabled() && !out.Correct && sess.LivesRemaining == 0
	if ended {
		sess.Finish(now, domain.ReasonOutOfLives)
	}

	if err := s.store.RecordResponse(ctx, sess, sq, resp); err != nil {
		return domain.QuestionOutcome{}, fmt.Errorf("record response: %w", err)
	}

	result := domain.QuestionOutcome{
		ResponseID:    resp.ID,
		Correct:       out.Correct,
		Score:         out.Score,
		MaxScore:      out.MaxScore,
		CurrentStreak: sess.CurrentStreak,
		LongestStreak: sess.LongestStreak,
		SessionEnded:  ended,
	}
	if ended {
		result.EndReason = domain.ReasonOutOfLives
	}
	if accepted, ok := question.AcceptedValue(); ok && sess.Config.FeedbackAfterEach {
		result.Accepted = &accepted
	}
	if sess.Config.LivesEnabled() {
		lives := sess.LivesRemaining
		result.LivesLeft = &lives
	}
	return result, nil
}

// Skip marks a question skipped without grading it.
func (s *SessionService) Skip(ctx context.Context, learnerID, sessionID, questionID string) error {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	sess, err := s.owned(ctx, learnerID, sessionID)
	if err != nil {
		return err
	}
	if sess.Status != domain.StatusInProgress {
		return domain.ErrSessionNotActive
	}
	if !sess.Config.AllowSkip {
		return domain.ErrSkipNotAllowed
	}
	sq, err := s.store.GetSessionQuestion(ctx, sessionID, questionID)
	if err != nil {
		return err
	}
	if sq.Answered || sq.Skipped {
		return domain.ErrAlreadyAnswered
	}

	sq.Skipped = true
	sess.QuestionsSkipped++
	sess.CurrentIndex++
	return s.store.RecordSkip(ctx, sess, sq)
}

// End closes the session. Every termination path lands on COMPLETED; the
// reason string is the differentiating signal (USER_COMPLETED, USER_QUIT,
// OUT_OF_LIVES, TIME_LIMIT).
func (s *SessionService) End(ctx context.Context, learnerID, sessionID, reason string) (*domain.Session, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	sess, err := s.owned(ctx, learnerID, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Terminal() {
		return nil, domain.ErrSessionNotActive
	}
	if reason == "" {
		reason = domain.ReasonUserCompleted
	}
	sess.Finish(s.now(), reason)
	if err := s.store.FinishSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("finish session: %w", err)
	}
	return sess, nil
}

func (s *SessionService) owned(ctx context.Context, learnerID, sessionID string) (*domain.Session, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	// Ownership mismatch is reported as not-found on purpose.
	if sess.LearnerID != learnerID {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

// keyedLocks serializes mutations per session so counter read-modify-write
// cycles cannot interleave, complementing the store transaction.
type keyedLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedLocks) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sessionLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &sessionLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
