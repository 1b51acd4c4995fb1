package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schema creates the timetable tables. Times are stored as minutes since midnight.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS teachers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		department TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS subjects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		code TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		teacher_id TEXT NOT NULL REFERENCES teachers(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		grade INT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS availabilities (
		id TEXT PRIMARY KEY,
		teacher_id TEXT NOT NULL REFERENCES teachers(id) ON DELETE CASCADE,
		day_of_week SMALLINT NOT NULL CHECK (day_of_week BETWEEN 1 AND 7),
		start_minute INT NOT NULL CHECK (start_minute >= 0),
		end_minute INT NOT NULL CHECK (end_minute <= 1440),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (start_minute < end_minute)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_availabilities_teacher_day ON availabilities (teacher_id, day_of_week)`,
	`CREATE TABLE IF NOT EXISTS timetable_entries (
		id TEXT PRIMARY KEY,
		subject_id TEXT NOT NULL REFERENCES subjects(id),
		teacher_id TEXT NOT NULL REFERENCES teachers(id),
		student_id TEXT NOT NULL REFERENCES students(id),
		day_of_week SMALLINT NOT NULL CHECK (day_of_week BETWEEN 1 AND 7),
		start_minute INT NOT NULL CHECK (start_minute >= 0),
		end_minute INT NOT NULL CHECK (end_minute <= 1440),
		room TEXT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CHECK (start_minute < end_minute)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_timetable_student_day ON timetable_entries (student_id, day_of_week)`,
	`CREATE INDEX IF NOT EXISTS idx_timetable_teacher_day ON timetable_entries (teacher_id, day_of_week)`,
}

// Migrate applies the schema idempotently inside one transaction.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migrate: %w", err)
	}
	for i, stmt := range schema {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migrate: %w", err)
	}
	return nil
}
