package migration

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v4/pgxpool"
)

// Migration represents a database migration
type Migration struct {
	Name string
	SQL  string
}

// Migrations lists the Postgres schema changes in the order they apply.
var Migrations = []Migration{
	{
		Name: "create_cv_jobs",
		SQL: `CREATE TABLE IF NOT EXISTS cv_jobs (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			status TEXT NOT NULL,
			selected_template TEXT NOT NULL DEFAULT '',
			selected_features JSONB,
			feature_tracking JSONB,
			current_step TEXT NOT NULL DEFAULT '',
			estimated_time INTEGER NOT NULL DEFAULT 0,
			estimated_completion_time TIMESTAMPTZ,
			generated_files JSONB,
			warnings JSONB,
			recovery_info JSONB,
			error JSONB,
			retry_count INTEGER NOT NULL DEFAULT 0,
			started_at TIMESTAMPTZ,
			completed_at TIMESTAMPTZ,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	},
	{
		Name: "index_cv_jobs_status_updated",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_cv_jobs_status_updated ON cv_jobs (status, updated_at)`,
	},
	{
		Name: "index_cv_jobs_user",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_cv_jobs_user ON cv_jobs (user_id)`,
	},
	{
		Name: "create_parsed_cvs",
		SQL: `CREATE TABLE IF NOT EXISTS parsed_cvs (
			job_id TEXT PRIMARY KEY,
			data JSONB NOT NULL DEFAULT '{}'::jsonb,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	},
	{
		Name: "add_cv_jobs_options",
		SQL:  `ALTER TABLE cv_jobs ADD COLUMN IF NOT EXISTS options JSONB`,
	},
	{
		Name: "create_schema_migrations",
		SQL: `CREATE TABLE IF NOT EXISTS schema_migrations (
			name TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	},
}

// RunMigrations executes all pending migrations. Every statement is
// idempotent, so a partially applied run can simply be repeated.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("starting database migrations", "count", len(Migrations))

	for _, m := range Migrations {
		if _, err := pool.Exec(ctx, m.SQL); err != nil {
			logger.Error("migration failed", "name", m.Name, "error", err)
			return fmt.Errorf("migration %s: %w", m.Name, err)
		}
		logger.Debug("migration applied", "name", m.Name)
	}
	for _, m := range Migrations {
		if _, err := pool.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, m.Name); err != nil {
			return fmt.Errorf("record migration %s: %w", m.Name, err)
		}
	}

	logger.Info("all migrations completed")
	return nil
}
