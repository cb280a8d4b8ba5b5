package database

import (
	"context"
	"fmt"
)

type migration struct {
	name  string
	query string
}

var migrations = []migration{
	{"research_jobs table", `
		CREATE TABLE IF NOT EXISTS research_jobs (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			topic TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			config JSONB,
			report TEXT,
			state JSONB,
			error TEXT,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`},
	// Older databases predate the error column.
	{"research_jobs.error column", `ALTER TABLE research_jobs ADD COLUMN IF NOT EXISTS error TEXT`},
	{"research_events table", `
		CREATE TABLE IF NOT EXISTS research_events (
			id SERIAL PRIMARY KEY,
			job_id UUID NOT NULL REFERENCES research_jobs(id) ON DELETE CASCADE,
			timestamp TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			type TEXT NOT NULL,
			payload JSONB
		)
	`},
	{"research_logs table", `
		CREATE TABLE IF NOT EXISTS research_logs (
			id SERIAL PRIMARY KEY,
			job_id UUID NOT NULL REFERENCES research_jobs(id) ON DELETE CASCADE,
			timestamp TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			metadata JSONB
		)
	`},
	{"research_jobs index", "CREATE INDEX IF NOT EXISTS idx_research_jobs_created_at ON research_jobs(created_at DESC)"},
	{"research_events index", "CREATE INDEX IF NOT EXISTS idx_research_events_job_id ON research_events(job_id)"},
	{"research_logs index", "CREATE INDEX IF NOT EXISTS idx_research_logs_job_id ON research_logs(job_id)"},
}

// InitSchema creates the research tables and indexes if they are missing.
func (db *PostgresDB) InitSchema(ctx context.Context) error {
	for _, m := range migrations {
		if _, err := db.Pool.Exec(ctx, m.query); err != nil {
			return fmt.Errorf("failed to create %s: %w", m.name, err)
		}
	}
	return nil
}
