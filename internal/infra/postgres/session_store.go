package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"assessment-service/internal/domain"
)

// SessionStore persists sessions, question ordering, and responses in
// Postgres. Each mutating method runs inside one transaction so the
// counter updates, order-row flags, response append, and profile bump
// apply all-or-nothing.
type SessionStore struct {
	pool *pgxpool.Pool
}

func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

const sessionColumns = `id, learner_id, kind, status, config, topic_ids, current_index,
	questions_attempted, questions_correct, questions_skipped,
	total_score, max_possible_score, current_streak, longest_streak,
	lives_remaining, lives_used, started_at, ended_at, paused_ms,
	total_time_ms, termination_reason`

func (s *SessionStore) CreateSession(ctx context.Context, sess *domain.Session, order []domain.SessionQuestion) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := insertSession(ctx, tx, sess); err != nil {
			return err
		}
		for i := range order {
			sq := &order[i]
			_, err := tx.Exec(ctx, `
				INSERT INTO session_questions (session_id, question_id, position)
				VALUES ($1, $2, $3)`,
				sq.SessionID, sq.QuestionID, sq.Position)
			if err != nil {
				return fmt.Errorf("insert session question: %w", err)
			}
		}
		return nil
	})
}

func (s *SessionStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id=$1`, id)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	return sess, err
}

func (s *SessionStore) GetSessionQuestion(ctx context.Context, sessionID, questionID string) (*domain.SessionQuestion, error) {
	sq := domain.SessionQuestion{}
	err := s.pool.QueryRow(ctx, `
		SELECT session_id, question_id, position, answered, skipped, correct, answered_at, time_spent_ms
		FROM session_questions WHERE session_id=$1 AND question_id=$2`,
		sessionID, questionID).
		Scan(&sq.SessionID, &sq.QuestionID, &sq.Position, &sq.Answered, &sq.Skipped, &sq.Correct, &sq.AnsweredAt, &sq.TimeSpentMs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrQuestionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session question: %w", err)
	}
	return &sq, nil
}

func (s *SessionStore) ListSessionQuestions(ctx context.Context, sessionID string) ([]domain.SessionQuestion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT session_id, question_id, position, answered, skipped, correct, answered_at, time_spent_ms
		FROM session_questions WHERE session_id=$1 ORDER BY position`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session questions: %w", err)
	}
	defer rows.Close()

	var out []domain.SessionQuestion
	for rows.Next() {
		var sq domain.SessionQuestion
		if err := rows.Scan(&sq.SessionID, &sq.QuestionID, &sq.Position, &sq.Answered, &sq.Skipped, &sq.Correct, &sq.AnsweredAt, &sq.TimeSpentMs); err != nil {
			return nil, fmt.Errorf("scan session question: %w", err)
		}
		out = append(out, sq)
	}
	return out, rows.Err()
}

func (s *SessionStore) RecordResponse(ctx context.Context, sess *domain.Session, sq *domain.SessionQuestion, r *domain.Response) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := updateSession(ctx, tx, sess); err != nil {
			return err
		}
		if err := updateSessionQuestion(ctx, tx, sq); err != nil {
			return err
		}

		value, err := json.Marshal(r.Value)
		if err != nil {
			return fmt.Errorf("marshal response value: %w", err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO responses (id, session_id, question_id, learner_id, value, free_text,
				correct, score, max_score, started_at, submitted_at, duration_ms, hints_used, confidence)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
			r.ID, r.SessionID, r.QuestionID, r.LearnerID, value, r.FreeText,
			r.Correct, r.Score, r.MaxScore, r.StartedAt, r.SubmittedAt, r.DurationMs, r.HintsUsed, r.Confidence)
		if err != nil {
			return fmt.Errorf("insert response: %w", err)
		}

		correct := 0
		if r.Correct {
			correct = 1
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO learner_profiles (learner_id, display_name, total_attempted, total_correct, total_time_ms)
			VALUES ($1, $1, 1, $2, $3)
			ON CONFLICT (learner_id) DO UPDATE SET
				total_attempted = learner_profiles.total_attempted + 1,
				total_correct   = learner_profiles.total_correct + $2,
				total_time_ms   = learner_profiles.total_time_ms + $3`,
			r.LearnerID, correct, r.DurationMs)
		if err != nil {
			return fmt.Errorf("bump profile: %w", err)
		}
		return nil
	})
}

func (s *SessionStore) RecordSkip(ctx context.Context, sess *domain.Session, sq *domain.SessionQuestion) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if err := updateSession(ctx, tx, sess); err != nil {
			return err
		}
		return updateSessionQuestion(ctx, tx, sq)
	})
}

func (s *SessionStore) FinishSession(ctx context.Context, sess *domain.Session) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return updateSession(ctx, tx, sess)
	})
}

func (s *SessionStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertSession(ctx context.Context, tx pgx.Tx, sess *domain.Session) error {
	config, topics, err := marshalSessionBlobs(sess)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO sessions (`+sessionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)`,
		sess.ID, sess.LearnerID, sess.Kind, sess.Status, config, topics, sess.CurrentIndex,
		sess.QuestionsAttempted, sess.QuestionsCorrect, sess.QuestionsSkipped,
		sess.TotalScore, sess.MaxPossibleScore, sess.CurrentStreak, sess.LongestStreak,
		sess.LivesRemaining, sess.LivesUsed, sess.StartedAt, sess.EndedAt, sess.PausedMs,
		sess.TotalTimeMs, sess.TerminationReason)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func updateSession(ctx context.Context, tx pgx.Tx, sess *domain.Session) error {
	tag, err := tx.Exec(ctx, `
		UPDATE sessions SET
			status=$2, current_index=$3,
			questions_attempted=$4, questions_correct=$5, questions_skipped=$6,
			total_score=$7, max_possible_score=$8, current_streak=$9, longest_streak=$10,
			lives_remaining=$11, lives_used=$12, ended_at=$13, paused_ms=$14,
			total_time_ms=$15, termination_reason=$16
		WHERE id=$1`,
		sess.ID, sess.Status, sess.CurrentIndex,
		sess.QuestionsAttempted, sess.QuestionsCorrect, sess.QuestionsSkipped,
		sess.TotalScore, sess.MaxPossibleScore, sess.CurrentStreak, sess.LongestStreak,
		sess.LivesRemaining, sess.LivesUsed, sess.EndedAt, sess.PausedMs,
		sess.TotalTimeMs, sess.TerminationReason)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

func updateSessionQuestion(ctx context.Context, tx pgx.Tx, sq *domain.SessionQuestion) error {
	_, err := tx.Exec(ctx, `
		UPDATE session_questions SET answered=$3, skipped=$4, correct=$5, answered_at=$6, time_spent_ms=$7
		WHERE session_id=$1 AND question_id=$2`,
		sq.SessionID, sq.QuestionID, sq.Answered, sq.Skipped, sq.Correct, sq.AnsweredAt, sq.TimeSpentMs)
	if err != nil {
		return fmt.Errorf("update session question: %w", err)
	}
	return nil
}

func marshalSessionBlobs(sess *domain.Session) ([]byte, []byte, error) {
	config, err := json.Marshal(sess.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal config: %w", err)
	}
	topics, err := json.Marshal(sess.TopicIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal topics: %w", err)
	}
	return config, topics, nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var (
		sess   domain.Session
		config []byte
		topics []byte
	)
	err := row.Scan(&sess.ID, &sess.LearnerID, &sess.Kind, &sess.Status, &config, &topics, &sess.CurrentIndex,
		&sess.QuestionsAttempted, &sess.QuestionsCorrect, &sess.QuestionsSkipped,
		&sess.TotalScore, &sess.MaxPossibleScore, &sess.CurrentStreak, &sess.LongestStreak,
		&sess.LivesRemaining, &sess.LivesUsed, &sess.StartedAt, &sess.EndedAt, &sess.PausedMs,
		&sess.TotalTimeMs, &sess.TerminationReason)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(config, &sess.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if len(topics) > 0 {
		if err := json.Unmarshal(topics, &sess.TopicIDs); err != nil {
			return nil, fmt.Errorf("unmarshal topics: %w", err)
		}
	}
	return &sess, nil
}
