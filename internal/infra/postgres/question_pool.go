package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"assessment-service/internal/domain"
)

// QuestionPool loads question JSONB from Postgres. Filter flags live in
// their own columns so the pool query stays an index scan; the full
// question body is the data blob.
type QuestionPool struct {
	pool *pgxpool.Pool
}

func NewQuestionPool(pool *pgxpool.Pool) *QuestionPool {
	return &QuestionPool{pool: pool}
}

func (p *QuestionPool) Find(ctx context.Context, filter domain.PoolFilter, limit int) ([]domain.Question, error) {
	query := `SELECT data FROM questions WHERE ($1=false OR active) AND ($2=false OR reviewed)`
	args := []interface{}{filter.Active, filter.Reviewed}
	if len(filter.TopicIDs) > 0 {
		query += ` AND topic_id = ANY($3)`
		args = append(args, filter.TopicIDs)
	}
	query += ` ORDER BY id`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}

	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find questions: %w", err)
	}
	defer rows.Close()

	var out []domain.Question
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var q domain.Question
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("unmarshal question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

func (p *QuestionPool) Get(ctx context.Context, questionID string) (domain.Question, error) {
	var raw []byte
	err := p.pool.QueryRow(ctx, `SELECT data FROM questions WHERE id=$1`, questionID).Scan(&raw)
	if err != nil {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	var q domain.Question
	if err := json.Unmarshal(raw, &q); err != nil {
		return domain.Question{}, fmt.Errorf("unmarshal question: %w", err)
	}
	return q, nil
}

// SeedQuestion upserts one question row, used by migrations-adjacent
// seeding and the integration tests.
func (p *QuestionPool) SeedQuestion(ctx context.Context, q domain.Question) error {
	raw, err := json.Marshal(q)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, `
		INSERT INTO questions (id, topic_id, active, reviewed, data)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET topic_id=$2, active=$3, reviewed=$4, data=$5`,
		q.ID, q.TopicID, q.Active, q.Reviewed, raw)
	return err
}
