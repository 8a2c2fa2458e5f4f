package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"assessment-service/internal/domain"
)

// ChallengeStore persists daily challenges and attempts in Postgres.
type ChallengeStore struct {
	pool *pgxpool.Pool
}

func NewChallengeStore(pool *pgxpool.Pool) *ChallengeStore {
	return &ChallengeStore{pool: pool}
}

const challengeColumns = `id, date, template_id, question_ids, total_attempts, total_completions, average_score`

func (s *ChallengeStore) GetChallenge(ctx context.Context, id string) (*domain.DailyChallenge, error) {
	return scanChallenge(s.pool.QueryRow(ctx, `SELECT `+challengeColumns+` FROM daily_challenges WHERE id=$1`, id))
}

func (s *ChallengeStore) GetChallengeByDate(ctx context.Context, date time.Time) (*domain.DailyChallenge, error) {
	return scanChallenge(s.pool.QueryRow(ctx,
		`SELECT `+challengeColumns+` FROM daily_challenges WHERE date=$1`, domain.Day(date)))
}

func (s *ChallengeStore) PutChallenge(ctx context.Context, ch *domain.DailyChallenge) error {
	ids, err := json.Marshal(ch.QuestionIDs)
	if err != nil {
		return fmt.Errorf("marshal question ids: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO daily_challenges (`+challengeColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (date, template_id) DO UPDATE SET question_ids=$4`,
		ch.ID, domain.Day(ch.Date), ch.TemplateID, ids, ch.TotalAttempts, ch.TotalCompletions, ch.AverageScore)
	if err != nil {
		return fmt.Errorf("put challenge: %w", err)
	}
	return nil
}

func (s *ChallengeStore) UpdateAggregates(ctx context.Context, ch *domain.DailyChallenge) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE daily_challenges SET total_attempts=$2, total_completions=$3, average_score=$4
		WHERE id=$1`,
		ch.ID, ch.TotalAttempts, ch.TotalCompletions, ch.AverageScore)
	if err != nil {
		return fmt.Errorf("update aggregates: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrChallengeNotFound
	}
	return nil
}

func (s *ChallengeStore) CreateAttempt(ctx context.Context, a *domain.ChallengeAttempt) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO daily_challenge_attempts
			(id, learner_id, challenge_id, date, template_id, session_id, score, time_ms, questions_correct, completed_at, rank)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		a.ID, a.LearnerID, a.ChallengeID, a.Date, a.TemplateID, a.SessionID, a.Score, a.TimeMs, a.QuestionsCorrect, a.CompletedAt, a.Rank)
	if err != nil {
		return fmt.Errorf("create attempt: %w", err)
	}
	return nil
}

func (s *ChallengeStore) ListAttempts(ctx context.Context, challengeID string) ([]domain.ChallengeAttempt, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, learner_id, challenge_id, date, template_id, session_id, score, time_ms, questions_correct, completed_at, rank
		FROM daily_challenge_attempts WHERE challenge_id=$1 ORDER BY completed_at`, challengeID)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var out []domain.ChallengeAttempt
	for rows.Next() {
		var a domain.ChallengeAttempt
		if err := rows.Scan(&a.ID, &a.LearnerID, &a.ChallengeID, &a.Date, &a.TemplateID, &a.SessionID, &a.Score, &a.TimeMs, &a.QuestionsCorrect, &a.CompletedAt, &a.Rank); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *ChallengeStore) SetAttemptRank(ctx context.Context, attemptID string, rank int) error {
	tag, err := s.pool.Exec(ctx, `UPDATE daily_challenge_attempts SET rank=$2 WHERE id=$1`, attemptID, rank)
	if err != nil {
		return fmt.Errorf("set rank: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrChallengeNotFound
	}
	return nil
}

func scanChallenge(row pgx.Row) (*domain.DailyChallenge, error) {
	var (
		ch  domain.DailyChallenge
		ids []byte
	)
	err := row.Scan(&ch.ID, &ch.Date, &ch.TemplateID, &ids, &ch.TotalAttempts, &ch.TotalCompletions, &ch.AverageScore)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrChallengeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan challenge: %w", err)
	}
	if err := json.Unmarshal(ids, &ch.QuestionIDs); err != nil {
		return nil, fmt.Errorf("unmarshal question ids: %w", err)
	}
	return &ch, nil
}
