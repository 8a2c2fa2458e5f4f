package memory

import (
	"context"
	"sync"

	"assessment-service/internal/domain"
)

// QuestionPool is a static in-memory question provider (useful for tests
// and demos). Find preserves insertion order; the pool owns presentation
// order per the provider contract.
type QuestionPool struct {
	mu        sync.RWMutex
	questions map[string]domain.Question
	order     []string
}

func NewQuestionPool(questions []domain.Question) *QuestionPool {
	p := &QuestionPool{questions: make(map[string]domain.Question, len(questions))}
	for _, q := range questions {
		if _, ok := p.questions[q.ID]; !ok {
			p.order = append(p.order, q.ID)
		}
		p.questions[q.ID] = q
	}
	return p
}

func (p *QuestionPool) Find(_ context.Context, filter domain.PoolFilter, limit int) ([]domain.Question, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	topics := make(map[string]bool, len(filter.TopicIDs))
	for _, t := range filter.TopicIDs {
		topics[t] = true
	}

	var out []domain.Question
	for _, id := range p.order {
		q := p.questions[id]
		if filter.Active && !q.Active {
			continue
		}
		if filter.Reviewed && !q.Reviewed {
			continue
		}
		if len(topics) > 0 && !topics[q.TopicID] {
			continue
		}
		out = append(out, q)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (p *QuestionPool) Get(_ context.Context, questionID string) (domain.Question, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if q, ok := p.questions[questionID]; ok {
		return q, nil
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}
