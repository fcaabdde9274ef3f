package tracker

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns all tracker migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create container tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS workspaces (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS projects (
					id BIGSERIAL PRIMARY KEY,
					workspace_id BIGINT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS milestones (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					due_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS tasks (
					id BIGSERIAL PRIMARY KEY,
					title VARCHAR(255) NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS boards (
					id BIGSERIAL PRIMARY KEY,
					workspace_id BIGINT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
					name VARCHAR(255) NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);

				CREATE TABLE IF NOT EXISTS cards (
					id BIGSERIAL PRIMARY KEY,
					title VARCHAR(255) NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			Version:     2,
			Description: "Create membership tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS workspace_members (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					workspace_id BIGINT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
					role VARCHAR(20) NOT NULL,
					comment TEXT,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(user_id, workspace_id)
				);

				CREATE TABLE IF NOT EXISTS project_members (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
					role VARCHAR(20) NOT NULL,
					comment TEXT,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(user_id, project_id)
				);

				CREATE TABLE IF NOT EXISTS board_members (
					id BIGSERIAL PRIMARY KEY,
					user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
					board_id BIGINT NOT NULL REFERENCES boards(id) ON DELETE CASCADE,
					role VARCHAR(20) NOT NULL,
					comment TEXT,
					created_at TIMESTAMP NOT NULL DEFAULT NOW(),
					UNIQUE(user_id, board_id)
				);

				CREATE INDEX idx_workspace_members_user_id ON workspace_members(user_id);
				CREATE INDEX idx_project_members_user_id ON project_members(user_id);
				CREATE INDEX idx_board_members_user_id ON board_members(user_id);
			`,
		},
		{
			Version:     3,
			Description: "Create association link tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS milestone_projects (
					id BIGSERIAL PRIMARY KEY,
					milestone_id BIGINT NOT NULL REFERENCES milestones(id) ON DELETE CASCADE,
					project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
					UNIQUE(milestone_id, project_id)
				);

				CREATE TABLE IF NOT EXISTS task_milestones (
					id BIGSERIAL PRIMARY KEY,
					task_id BIGINT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
					milestone_id BIGINT NOT NULL REFERENCES milestones(id) ON DELETE CASCADE,
					UNIQUE(task_id, milestone_id)
				);

				-- Legacy direct task -> project links, kept for rows that
				-- predate milestones. New writes go through task_milestones.
				CREATE TABLE IF NOT EXISTS task_projects (
					id BIGSERIAL PRIMARY KEY,
					task_id BIGINT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
					project_id BIGINT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
					UNIQUE(task_id, project_id)
				);

				CREATE TABLE IF NOT EXISTS card_boards (
					id BIGSERIAL PRIMARY KEY,
					card_id BIGINT NOT NULL REFERENCES cards(id) ON DELETE CASCADE,
					board_id BIGINT NOT NULL REFERENCES boards(id) ON DELETE CASCADE,
					UNIQUE(card_id, board_id)
				);

				CREATE INDEX idx_milestone_projects_milestone_id ON milestone_projects(milestone_id);
				CREATE INDEX idx_task_milestones_task_id ON task_milestones(task_id);
				CREATE INDEX idx_task_projects_task_id ON task_projects(task_id);
				CREATE INDEX idx_card_boards_card_id ON card_boards(card_id);
			`,
		},
	}
}

// RunMigrations executes all pending tracker migrations
func RunMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tracker_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM tracker_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}
	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return fmt.Errorf("failed to read migration versions: %w", err)
	}

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to start transaction: %w", err)
		}
		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO tracker_migrations (version, description) VALUES ($1, $2)",
			migration.Version, migration.Description); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}
	return nil
}
