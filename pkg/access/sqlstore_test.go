package access

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cairnhq/cairn/pkg/observability"
)

func setupStoreDB(t *testing.T) *sql.DB {
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
			created_at TIMESTAMP NOT NULL,
			UNIQUE(user_id, workspace_id)
		);

		CREATE TABLE card_boards (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			card_id INTEGER NOT NULL,
			board_id INTEGER NOT NULL,
			UNIQUE(card_id, board_id)
		);
	`)
	require.NoError(t, err)
	return db
}

func TestSQLMembershipsFindMembership(t *testing.T) {
	db := setupStoreDB(t)
	store := NewSQLMemberships(db, "workspace_members", "workspace_id")
	ctx := context.Background()

	_, err := db.Exec(
		`INSERT INTO workspace_members (user_id, workspace_id, role, comment, created_at) VALUES ($1, $2, $3, $4, $5)`,
		10, 1, "admin", "founding team", time.Now().UTC(),
	)
	require.NoError(t, err)
	_, err = db.Exec(
		`INSERT INTO workspace_members (user_id, workspace_id, role, comment, created_at) VALUES ($1, $2, $3, NULL, $4)`,
		11, 1, "member", time.Now().UTC(),
	)
	require.NoError(t, err)

	t.Run("returns the row", func(t *testing.T) {
		m, err := store.FindMembership(ctx, 10, 1)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, RoleAdmin, m.Role)
		assert.Equal(t, "founding team", m.Comment)
		assert.Equal(t, int64(1), m.EntityID)
	})

	t.Run("null comment reads as empty", func(t *testing.T) {
		m, err := store.FindMembership(ctx, 11, 1)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, "", m.Comment)
	})

	t.Run("absence is nil nil", func(t *testing.T) {
		m, err := store.FindMembership(ctx, 99, 1)
		require.NoError(t, err)
		assert.Nil(t, m)
	})
}

func TestSQLMembershipsFindMemberships(t *testing.T) {
	db := setupStoreDB(t)
	store := NewSQLMemberships(db, "workspace_members", "workspace_id")
	ctx := context.Background()

	now := time.Now().UTC()
	for _, workspaceID := range []int64{3, 1, 7} {
		_, err := db.Exec(
			`INSERT INTO workspace_members (user_id, workspace_id, role, created_at) VALUES ($1, $2, $3, $4)`,
			10, workspaceID, "editor", now,
		)
		require.NoError(t, err)
	}

	t.Run("returns rows ordered by entity id", func(t *testing.T) {
		memberships, err := store.FindMemberships(ctx, 10, []int64{7, 1, 3, 5})
		require.NoError(t, err)
		require.Len(t, memberships, 3)
		assert.Equal(t, int64(1), memberships[0].EntityID)
		assert.Equal(t, int64(3), memberships[1].EntityID)
		assert.Equal(t, int64(7), memberships[2].EntityID)
	})

	t.Run("empty id list short-circuits", func(t *testing.T) {
		memberships, err := store.FindMemberships(ctx, 10, nil)
		require.NoError(t, err)
		assert.Nil(t, memberships)
	})

	t.Run("other users stay invisible", func(t *testing.T) {
		memberships, err := store.FindMemberships(ctx, 99, []int64{1, 3, 7})
		require.NoError(t, err)
		assert.Empty(t, memberships)
	})
}

func TestSQLMembershipsListForEntity(t *testing.T) {
	db := setupStoreDB(t)
	store := NewSQLMemberships(db, "workspace_members", "workspace_id")
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := db.Exec(
		`INSERT INTO workspace_members (user_id, workspace_id, role, created_at) VALUES ($1, $2, $3, $4)`,
		20, 1, "member", base.Add(time.Hour),
	)
	require.NoError(t, err)
	_, err = db.Exec(
		`INSERT INTO workspace_members (user_id, workspace_id, role, created_at) VALUES ($1, $2, $3, $4)`,
		10, 1, "owner", base,
	)
	require.NoError(t, err)

	memberships, err := store.ListForEntity(ctx, 1)
	require.NoError(t, err)
	require.Len(t, memberships, 2)

	// Oldest membership first.
	assert.Equal(t, int64(10), memberships[0].UserID)
	assert.Equal(t, int64(20), memberships[1].UserID)
}

func TestSQLLinks(t *testing.T) {
	db := setupStoreDB(t)
	links := NewSQLLinks(db, "card_boards", "card_id", "board_id")
	ctx := context.Background()

	for _, pair := range [][2]int64{{1, 5}, {1, 2}, {2, 5}, {3, 9}} {
		_, err := db.Exec(`INSERT INTO card_boards (card_id, board_id) VALUES ($1, $2)`, pair[0], pair[1])
		require.NoError(t, err)
	}

	t.Run("parent ids sorted ascending", func(t *testing.T) {
		ids, err := links.ParentIDs(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 5}, ids)
	})

	t.Run("no links yields empty", func(t *testing.T) {
		ids, err := links.ParentIDs(ctx, 42)
		require.NoError(t, err)
		assert.Empty(t, ids)
	})

	t.Run("batch is distinct and sorted", func(t *testing.T) {
		ids, err := links.BatchParentIDs(ctx, []int64{1, 2, 3})
		require.NoError(t, err)
		assert.Equal(t, []int64{2, 5, 9}, ids)
	})

	t.Run("batch with no children short-circuits", func(t *testing.T) {
		ids, err := links.BatchParentIDs(ctx, nil)
		require.NoError(t, err)
		assert.Nil(t, ids)
	})
}

func TestPlaceholderList(t *testing.T) {
	placeholders, args := placeholderList([]int64{7, 8, 9}, 2)
	assert.Equal(t, "$2, $3, $4", placeholders)
	require.Len(t, args, 3)
	assert.Equal(t, int64(7), args[0])
}

func TestStoreQueryMetrics(t *testing.T) {
	db := setupStoreDB(t)
	ctx := context.Background()
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	store := NewSQLMemberships(db, "workspace_members", "workspace_id").WithMetrics(metrics)
	links := NewSQLLinks(db, "card_boards", "card_id", "board_id").WithMetrics(metrics)

	t.Run("durations observed per query", func(t *testing.T) {
		_, err := store.FindMembership(ctx, 1, 1)
		require.NoError(t, err)
		_, err = store.FindMemberships(ctx, 1, []int64{1, 2})
		require.NoError(t, err)
		_, err = store.ListForEntity(ctx, 1)
		require.NoError(t, err)
		_, err = links.ParentIDs(ctx, 1)
		require.NoError(t, err)
		_, err = links.BatchParentIDs(ctx, []int64{1, 2})
		require.NoError(t, err)

		// One labelled series per distinct query shape.
		assert.Equal(t, 5, testutil.CollectAndCount(metrics.StoreQueryDuration))
		assert.Equal(t, 0, testutil.CollectAndCount(metrics.StoreErrorsTotal))
	})

	t.Run("absence is not a failure", func(t *testing.T) {
		m, err := store.FindMembership(ctx, 999, 999)
		require.NoError(t, err)
		assert.Nil(t, m)
		assert.Equal(t, 0, testutil.CollectAndCount(metrics.StoreErrorsTotal))
	})

	t.Run("failures counted", func(t *testing.T) {
		broken := NewSQLMemberships(db, "missing_members", "workspace_id").WithMetrics(metrics)
		_, err := broken.FindMembership(ctx, 1, 1)
		require.Error(t, err)

		counter := metrics.StoreErrorsTotal.WithLabelValues("missing_members.find_membership")
		assert.Equal(t, float64(1), testutil.ToFloat64(counter))
	})

	t.Run("nil metrics is a no-op", func(t *testing.T) {
		plain := NewSQLMemberships(db, "workspace_members", "workspace_id")
		_, err := plain.FindMembership(ctx, 1, 1)
		assert.NoError(t, err)
	})
}
