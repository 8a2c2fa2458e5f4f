package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

//go:embed 0001_create_core.sql
var createCoreSQL string

var Migrations = migrate.NewMigrations()

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(createCoreSQL)
			return err
		},
		func(ctx context.Context, db *bun.DB) error {
			_, err := db.Exec(`
				DROP TABLE IF EXISTS learner_streaks;
				DROP TABLE IF EXISTS daily_challenge_attempts;
				DROP TABLE IF EXISTS daily_challenges;
				DROP TABLE IF EXISTS learner_profiles;
				DROP TABLE IF EXISTS responses;
				DROP TABLE IF EXISTS session_questions;
				DROP TABLE IF EXISTS sessions;
				DROP TABLE IF EXISTS assessment_templates;
				DROP TABLE IF EXISTS questions;`)
			return err
		},
	)
}
