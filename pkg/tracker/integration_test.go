//go:build integration
// +build integration

package tracker

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/lib/pq"

	"github.com/cairnhq/cairn/pkg/access"
	"github.com/cairnhq/cairn/pkg/identity"
)

// setupPostgres starts a disposable PostgreSQL container and applies the
// identity and tracker migrations.
func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()

	provider, err := testcontainers.ProviderDocker.GetProvider()
	if err != nil {
		t.Skip("Docker not available, skipping integration tests")
	}
	defer provider.Close()

	container, err := postgres.Run(ctx, "postgres:15-alpine",
		postgres.WithDatabase("cairn_test"),
		postgres.WithUsername("cairn"),
		postgres.WithPassword("cairn_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Errorf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Ping())
	require.NoError(t, identity.RunMigrations(ctx, db))
	require.NoError(t, RunMigrations(ctx, db))

	return db
}

func seedUser(t *testing.T, db *sql.DB, username string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(
		`INSERT INTO users (username) VALUES ($1) RETURNING id`, username,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func seedWorkspace(t *testing.T, db *sql.DB, name string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(`INSERT INTO workspaces (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	require.NoError(t, err)
	return id
}

func seedProject(t *testing.T, db *sql.DB, workspaceID int64, name string) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(
		`INSERT INTO projects (workspace_id, name) VALUES ($1, $2) RETURNING id`, workspaceID, name,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

func seedMilestone(t *testing.T, db *sql.DB, name string, projectIDs ...int64) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(`INSERT INTO milestones (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	require.NoError(t, err)
	for _, projectID := range projectIDs {
		_, err := db.Exec(`INSERT INTO milestone_projects (milestone_id, project_id) VALUES ($1, $2)`, id, projectID)
		require.NoError(t, err)
	}
	return id
}

func seedTask(t *testing.T, db *sql.DB, title string, milestoneIDs ...int64) int64 {
	t.Helper()
	var id int64
	err := db.QueryRow(`INSERT INTO tasks (title) VALUES ($1) RETURNING id`, title).Scan(&id)
	require.NoError(t, err)
	for _, milestoneID := range milestoneIDs {
		_, err := db.Exec(`INSERT INTO task_milestones (task_id, milestone_id) VALUES ($1, $2)`, id, milestoneID)
		require.NoError(t, err)
	}
	return id
}

func TestGuardsAgainstPostgres(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()

	guards := NewGuards(db, nil, nil, nil)
	directory, err := identity.NewSQLDirectory(db, 64)
	require.NoError(t, err)
	members := NewMemberService(db, guards, directory)

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	carol := seedUser(t, db, "carol")

	workspace := seedWorkspace(t, db, "atlas")
	project := seedProject(t, db, workspace, "atlas-api")
	milestone := seedMilestone(t, db, "v1 launch", project)
	task := seedTask(t, db, "wire auth", milestone)

	require.NoError(t, members.BootstrapCreator(ctx, KindProject, project, alice))

	t.Run("creator is owner", func(t *testing.T) {
		actx, err := guards.EnsureProjectAccess(ctx, alice, project, access.CapManageEntity)
		require.NoError(t, err)
		assert.Equal(t, access.RoleOwner, actx.Membership.Role)
	})

	t.Run("owner invites and the role takes effect transitively", func(t *testing.T) {
		require.NoError(t, members.AddMember(ctx, alice, KindProject, project, bob, access.RoleEditor, "contractor"))

		_, err := guards.EnsureMilestoneAccess(ctx, bob, milestone, access.CapEditContent)
		require.NoError(t, err)

		_, err = guards.EnsureTaskAccess(ctx, bob, task, access.CapEditContent)
		require.NoError(t, err)

		_, err = guards.EnsureTaskAccess(ctx, bob, task, access.CapDeleteContent)
		require.Error(t, err)
		assert.True(t, access.IsAccessDenied(err))
	})

	t.Run("stranger sees nothing", func(t *testing.T) {
		_, err := guards.EnsureProjectAccess(ctx, carol, project, access.CapNone)
		require.Error(t, err)
		assert.True(t, access.IsAccessDenied(err))
	})

	t.Run("duplicate invite is rejected", func(t *testing.T) {
		err := members.AddMember(ctx, alice, KindProject, project, bob, access.RoleMember, "")
		require.Error(t, err)
	})

	t.Run("owner row cannot be removed", func(t *testing.T) {
		// bob was granted manage_members via admin below; use alice as
		// actor and target alice herself.
		err := members.RemoveMember(ctx, alice, KindProject, project, alice)
		require.Error(t, err)
		assert.True(t, access.IsInvalidOperation(err))
	})

	t.Run("member listing carries directory details", func(t *testing.T) {
		list, err := members.ListMembers(ctx, alice, KindProject, project)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "alice", list[0].Username)
	})

	t.Run("platform bypass grants without membership", func(t *testing.T) {
		ops := seedUser(t, db, "ops")
		_, err := db.Exec(`INSERT INTO platform_admins (user_id, global_role) VALUES ($1, $2)`, ops, "platform_operator")
		require.NoError(t, err)

		bypassGuards := NewGuards(db, identity.NewPlatformBypass(db), nil, nil)
		actx, err := bypassGuards.EnsureProjectAccess(ctx, ops, project, access.CapManageEntity)
		require.NoError(t, err)
		assert.True(t, actx.Membership.Synthetic)
	})
}
