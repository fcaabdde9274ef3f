package identity

import (
	"context"
	"database/sql"
	"fmt"
)

// RunMigrations creates the identity tables. Runs before the tracker
// migrations since membership tables reference users.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			username VARCHAR(255) NOT NULL UNIQUE,
			email VARCHAR(255),
			full_name VARCHAR(255),
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS platform_admins (
			user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			global_role VARCHAR(50) NOT NULL,
			granted_at TIMESTAMP NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create identity tables: %w", err)
		}
	}
	return nil
}
