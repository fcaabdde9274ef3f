package tracker

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for testing
)

// setupTrackerDB creates an in-memory SQLite database with the full
// membership and link schema. The stores' positional placeholders work
// against both drivers, so the behavioral tests run without postgres.
func setupTrackerDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`
		CREATE TABLE workspace_members (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			workspace_id INTEGER NOT NULL,
			role TEXT NOT NULL,
			comment TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, workspace_id)
		);

		CREATE TABLE project_members (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			project_id INTEGER NOT NULL,
			role TEXT NOT NULL,
			comment TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, project_id)
		);

		CREATE TABLE board_members (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			board_id INTEGER NOT NULL,
			role TEXT NOT NULL,
			comment TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(user_id, board_id)
		);

		CREATE TABLE milestone_projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			milestone_id INTEGER NOT NULL,
			project_id INTEGER NOT NULL,
			UNIQUE(milestone_id, project_id)
		);

		CREATE TABLE task_milestones (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id INTEGER NOT NULL,
			milestone_id INTEGER NOT NULL,
			UNIQUE(task_id, milestone_id)
		);

		CREATE TABLE task_projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id INTEGER NOT NULL,
			project_id INTEGER NOT NULL,
			UNIQUE(task_id, project_id)
		);

		CREATE TABLE card_boards (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			card_id INTEGER NOT NULL,
			board_id INTEGER NOT NULL,
			UNIQUE(card_id, board_id)
		);

		CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			email TEXT,
			full_name TEXT
		);
	`)
	require.NoError(t, err)
	return db
}

func insertMember(t *testing.T, db *sql.DB, table, entityCol string, userID, entityID int64, role string) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO `+table+` (user_id, `+entityCol+`, role, created_at) VALUES ($1, $2, $3, $4)`,
		userID, entityID, role, time.Now().UTC(),
	)
	require.NoError(t, err)
}

func insertLink(t *testing.T, db *sql.DB, table, childCol, parentCol string, childID, parentID int64) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO `+table+` (`+childCol+`, `+parentCol+`) VALUES ($1, $2)`,
		childID, parentID,
	)
	require.NoError(t, err)
}

func insertUser(t *testing.T, db *sql.DB, id int64, username, email, fullName string) {
	t.Helper()
	_, err := db.Exec(
		`INSERT INTO users (id, username, email, full_name) VALUES ($1, $2, $3, $4)`,
		id, username, email, fullName,
	)
	require.NoError(t, err)
}
