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

// ProfileStore reads and writes learner profile rows. The per-submit
// counter increments live in SessionStore.RecordResponse so they share the
// submit transaction.
type ProfileStore struct {
	pool *pgxpool.Pool
}

func NewProfileStore(pool *pgxpool.Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

func (s *ProfileStore) GetProfile(ctx context.Context, learnerID string) (*domain.LearnerProfile, bool, error) {
	var p domain.LearnerProfile
	err := s.pool.QueryRow(ctx, `
		SELECT learner_id, display_name, avatar_url, total_attempted, total_correct, total_time_ms
		FROM learner_profiles WHERE learner_id=$1`, learnerID).
		Scan(&p.LearnerID, &p.DisplayName, &p.AvatarURL, &p.TotalAttempted, &p.TotalCorrect, &p.TotalTimeSpentMs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get profile: %w", err)
	}
	return &p, true, nil
}

func (s *ProfileStore) PutProfile(ctx context.Context, p *domain.LearnerProfile) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO learner_profiles (learner_id, display_name, avatar_url, total_attempted, total_correct, total_time_ms)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (learner_id) DO UPDATE SET display_name=$2, avatar_url=$3`,
		p.LearnerID, p.DisplayName, p.AvatarURL, p.TotalAttempted, p.TotalCorrect, p.TotalTimeSpentMs)
	if err != nil {
		return fmt.Errorf("put profile: %w", err)
	}
	return nil
}

// StreakStore persists the login streak row per learner.
type StreakStore struct {
	pool *pgxpool.Pool
}

func NewStreakStore(pool *pgxpool.Pool) *StreakStore {
	return &StreakStore{pool: pool}
}

func (s *StreakStore) GetStreak(ctx context.Context, learnerID string) (*domain.LearnerStreak, bool, error) {
	var row domain.LearnerStreak
	err := s.pool.QueryRow(ctx, `
		SELECT learner_id, current_streak, longest_streak, last_active_date, freezes_left,
			grace_expires_at, goal_kind, goal_target, goal_progress, goal_met
		FROM learner_streaks WHERE learner_id=$1`, learnerID).
		Scan(&row.LearnerID, &row.CurrentStreak, &row.LongestStreak, &row.LastActiveDate, &row.FreezesLeft,
			&row.GraceExpiresAt, &row.GoalKind, &row.GoalTarget, &row.GoalProgress, &row.GoalMet)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get streak: %w", err)
	}
	return &row, true, nil
}

func (s *StreakStore) PutStreak(ctx context.Context, row *domain.LearnerStreak) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO learner_streaks
			(learner_id, current_streak, longest_streak, last_active_date, freezes_left,
			 grace_expires_at, goal_kind, goal_target, goal_progress, goal_met)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (learner_id) DO UPDATE SET
			current_streak=$2, longest_streak=$3, last_active_date=$4, freezes_left=$5,
			grace_expires_at=$6, goal_kind=$7, goal_target=$8, goal_progress=$9, goal_met=$10`,
		row.LearnerID, row.CurrentStreak, row.LongestStreak, row.LastActiveDate, row.FreezesLeft,
		row.GraceExpiresAt, row.GoalKind, row.GoalTarget, row.GoalProgress, row.GoalMet)
	if err != nil {
		return fmt.Errorf("put streak: %w", err)
	}
	return nil
}

// TemplateStore persists assessment templates as JSONB blobs.
type TemplateStore struct {
	pool *pgxpool.Pool
}

func NewTemplateStore(pool *pgxpool.Pool) *TemplateStore {
	return &TemplateStore{pool: pool}
}

func (s *TemplateStore) GetTemplate(ctx context.Context, id string) (*domain.AssessmentTemplate, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM assessment_templates WHERE id=$1`, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrTemplateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	var t domain.AssessmentTemplate
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("unmarshal template: %w", err)
	}
	return &t, nil
}

func (s *TemplateStore) PutTemplate(ctx context.Context, t *domain.AssessmentTemplate) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO assessment_templates (id, data) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET data=$2`, t.ID, raw)
	if err != nil {
		return fmt.Errorf("put template: %w", err)
	}
	return nil
}
