package tracker

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cairnhq/cairn/pkg/access"
	"github.com/cairnhq/cairn/pkg/identity"
)

func newMemberService(t *testing.T) (*MemberService, *Guards, *sql.DB) {
	t.Helper()
	db := setupTrackerDB(t)
	guards := NewGuards(db, nil, nil, nil)
	directory, err := identity.NewSQLDirectory(db, 64)
	require.NoError(t, err)
	service := NewMemberService(db, guards, directory)
	return service, guards, db
}

func TestListMembers(t *testing.T) {
	service, _, db := newMemberService(t)
	ctx := context.Background()

	insertUser(t, db, 10, "alice", "alice@example.com", "Alice Doe")
	insertUser(t, db, 11, "bob", "", "")
	insertMember(t, db, "project_members", "project_id", 10, 1, "owner")
	insertMember(t, db, "project_members", "project_id", 11, 1, "editor")

	t.Run("any member may list, enriched with directory fields", func(t *testing.T) {
		members, err := service.ListMembers(ctx, 11, KindProject, 1)
		require.NoError(t, err)
		require.Len(t, members, 2)

		assert.Equal(t, "alice", members[0].Username)
		assert.Equal(t, "alice@example.com", members[0].Email)
		assert.Equal(t, access.RoleOwner, members[0].Role)
		assert.Equal(t, "bob", members[1].Username)
		assert.Equal(t, "", members[1].Email)
	})

	t.Run("stranger cannot list", func(t *testing.T) {
		_, err := service.ListMembers(ctx, 99, KindProject, 1)
		require.Error(t, err)
		assert.True(t, access.IsAccessDenied(err))
	})

	t.Run("unknown kind is rejected", func(t *testing.T) {
		_, err := service.ListMembers(ctx, 10, ContainerKind("galaxy"), 1)
		require.Error(t, err)
	})
}

func TestAddMember(t *testing.T) {
	service, guards, db := newMemberService(t)
	ctx := context.Background()

	insertMember(t, db, "project_members", "project_id", 10, 1, "admin")
	insertMember(t, db, "project_members", "project_id", 11, 1, "editor")

	t.Run("admin invites", func(t *testing.T) {
		require.NoError(t, service.AddMember(ctx, 10, KindProject, 1, 20, access.RoleMember, "design team"))

		m, err := guards.ProjectMembership(ctx, 20, 1)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, access.RoleMember, m.Role)
		assert.Equal(t, "design team", m.Comment)
	})

	t.Run("editor cannot invite", func(t *testing.T) {
		err := service.AddMember(ctx, 11, KindProject, 1, 21, access.RoleMember, "")
		require.Error(t, err)
		assert.True(t, access.IsAccessDenied(err))
	})

	t.Run("duplicate invite is rejected", func(t *testing.T) {
		err := service.AddMember(ctx, 10, KindProject, 1, 20, access.RoleEditor, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already exists")

		// The original row is untouched.
		m, err := guards.ProjectMembership(ctx, 20, 1)
		require.NoError(t, err)
		assert.Equal(t, access.RoleMember, m.Role)
	})

	t.Run("role outside the family set is rejected", func(t *testing.T) {
		err := service.AddMember(ctx, 10, KindProject, 1, 22, access.Role("superuser"), "")
		require.Error(t, err)
	})

	t.Run("boards reject the owner role", func(t *testing.T) {
		insertMember(t, db, "board_members", "board_id", 10, 5, "admin")
		err := service.AddMember(ctx, 10, KindBoard, 5, 23, access.RoleOwner, "")
		require.Error(t, err)
	})
}

func TestUpdateMemberRole(t *testing.T) {
	service, guards, db := newMemberService(t)
	ctx := context.Background()

	insertMember(t, db, "workspace_members", "workspace_id", 10, 1, "owner")
	insertMember(t, db, "workspace_members", "workspace_id", 11, 1, "member")

	t.Run("owner promotes a member", func(t *testing.T) {
		require.NoError(t, service.UpdateMemberRole(ctx, 10, KindWorkspace, 1, 11, access.RoleEditor))

		m, err := guards.WorkspaceMembership(ctx, 11, 1)
		require.NoError(t, err)
		assert.Equal(t, access.RoleEditor, m.Role)
	})

	t.Run("owner role cannot be granted after creation", func(t *testing.T) {
		err := service.UpdateMemberRole(ctx, 10, KindWorkspace, 1, 11, access.RoleOwner)
		require.Error(t, err)
		assert.True(t, access.IsInvalidOperation(err))
	})

	t.Run("owner membership cannot be demoted", func(t *testing.T) {
		err := service.UpdateMemberRole(ctx, 10, KindWorkspace, 1, 10, access.RoleAdmin)
		require.Error(t, err)
		assert.True(t, access.IsInvalidOperation(err))
	})

	t.Run("missing target", func(t *testing.T) {
		err := service.UpdateMemberRole(ctx, 10, KindWorkspace, 1, 99, access.RoleEditor)
		require.Error(t, err)
		assert.True(t, access.IsNotFound(err))
		assert.Contains(t, err.Error(), "member not found")
	})
}

func TestUpdateMemberComment(t *testing.T) {
	service, guards, db := newMemberService(t)
	ctx := context.Background()

	insertMember(t, db, "workspace_members", "workspace_id", 10, 1, "admin")
	insertMember(t, db, "workspace_members", "workspace_id", 11, 1, "member")
	insertMember(t, db, "workspace_members", "workspace_id", 12, 1, "owner")

	t.Run("comment is set", func(t *testing.T) {
		require.NoError(t, service.UpdateMemberComment(ctx, 10, KindWorkspace, 1, 11, "on loan from platform"))

		m, err := guards.WorkspaceMembership(ctx, 11, 1)
		require.NoError(t, err)
		assert.Equal(t, "on loan from platform", m.Comment)
	})

	t.Run("empty comment clears the field", func(t *testing.T) {
		require.NoError(t, service.UpdateMemberComment(ctx, 10, KindWorkspace, 1, 11, ""))

		m, err := guards.WorkspaceMembership(ctx, 11, 1)
		require.NoError(t, err)
		assert.Equal(t, "", m.Comment)
	})

	t.Run("owner membership stays untouched", func(t *testing.T) {
		err := service.UpdateMemberComment(ctx, 10, KindWorkspace, 1, 12, "note")
		require.Error(t, err)
		assert.True(t, access.IsInvalidOperation(err))
	})
}

func TestRemoveMember(t *testing.T) {
	service, guards, db := newMemberService(t)
	ctx := context.Background()

	insertMember(t, db, "project_members", "project_id", 10, 1, "owner")
	insertMember(t, db, "project_members", "project_id", 11, 1, "member")

	t.Run("owner removes a member", func(t *testing.T) {
		require.NoError(t, service.RemoveMember(ctx, 10, KindProject, 1, 11))

		m, err := guards.ProjectMembership(ctx, 11, 1)
		require.NoError(t, err)
		assert.Nil(t, m)
	})

	t.Run("owner row survives all removal attempts", func(t *testing.T) {
		err := service.RemoveMember(ctx, 10, KindProject, 1, 10)
		require.Error(t, err)
		assert.True(t, access.IsInvalidOperation(err))

		m, err := guards.ProjectMembership(ctx, 10, 1)
		require.NoError(t, err)
		require.NotNil(t, m)
	})

	t.Run("bypass actor is still bound by the owner invariant", func(t *testing.T) {
		bypassGuards := NewGuards(db, staticBypass("ops"), nil, nil)
		directory, err := identity.NewSQLDirectory(db, 64)
		require.NoError(t, err)
		bypassService := NewMemberService(db, bypassGuards, directory)

		err = bypassService.RemoveMember(ctx, 77, KindProject, 1, 10)
		require.Error(t, err)
		assert.True(t, access.IsInvalidOperation(err))
	})

	t.Run("missing target", func(t *testing.T) {
		err := service.RemoveMember(ctx, 10, KindProject, 1, 99)
		require.Error(t, err)
		assert.True(t, access.IsNotFound(err))
	})
}

func TestBootstrapCreator(t *testing.T) {
	service, guards, _ := newMemberService(t)
	ctx := context.Background()

	t.Run("project creator becomes owner", func(t *testing.T) {
		require.NoError(t, service.BootstrapCreator(ctx, KindProject, 1, 10))

		m, err := guards.ProjectMembership(ctx, 10, 1)
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.Equal(t, access.RoleOwner, m.Role)
	})

	t.Run("board creator tops out at admin", func(t *testing.T) {
		require.NoError(t, service.BootstrapCreator(ctx, KindBoard, 5, 10))

		actx, err := guards.EnsureBoardAccess(ctx, 10, 5, access.CapManageEntity)
		require.NoError(t, err)
		assert.Equal(t, access.RoleAdmin, actx.Membership.Role)
	})
}
