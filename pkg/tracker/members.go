package tracker

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cairnhq/cairn/pkg/access"
	"github.com/cairnhq/cairn/pkg/audit"
	"github.com/cairnhq/cairn/pkg/identity"
)

// Member is a membership row enriched with directory display fields.
type Member struct {
	access.Membership
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

// MemberService manages membership rows for every container kind. Every
// mutation runs the capability check and, for role changes and
// removals, the owner invariant, before touching the row.
type MemberService struct {
	db        *sql.DB
	guards    *Guards
	directory identity.Directory
}

// NewMemberService creates the membership management service.
func NewMemberService(db *sql.DB, guards *Guards, directory identity.Directory) *MemberService {
	return &MemberService{db: db, guards: guards, directory: directory}
}

// ListMembers returns the container's members with display fields
// resolved. Any membership on the container is sufficient to list; no
// capability is required beyond that.
//
// Enrichment is two-step: collect the user ids, then one batched
// directory fetch. No cross-boundary join.
func (s *MemberService) ListMembers(ctx context.Context, actorID int64, kind ContainerKind, containerID int64) ([]*Member, error) {
	spec, err := s.guards.container(kind)
	if err != nil {
		return nil, err
	}
	if _, err := s.guards.resolver.Ensure(ctx, spec.desc, actorID, containerID, access.CapNone); err != nil {
		return nil, err
	}

	source := spec.desc.Memberships.(*access.SQLMemberships)
	rows, err := source.ListForEntity(ctx, containerID)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(rows))
	for _, m := range rows {
		ids = append(ids, m.UserID)
	}
	users, err := s.directory.UsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	members := make([]*Member, 0, len(rows))
	for _, m := range rows {
		member := &Member{Membership: *m}
		if u, ok := users[m.UserID]; ok {
			member.Username = u.Username
			member.Email = u.Email
			member.FullName = u.FullName
		}
		members = append(members, member)
	}
	return members, nil
}

// AddMember invites a user into a container with the given role.
// Requires manage_members on the container.
func (s *MemberService) AddMember(ctx context.Context, actorID int64, kind ContainerKind, containerID, userID int64, role access.Role, comment string) error {
	spec, err := s.guards.container(kind)
	if err != nil {
		return err
	}
	if _, err := s.guards.resolver.Ensure(ctx, spec.desc, actorID, containerID, access.CapManageMembers); err != nil {
		return err
	}
	if err := s.validateRole(spec, role); err != nil {
		return err
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (user_id, %s, role, comment) VALUES ($1, $2, $3, $4) ON CONFLICT (user_id, %s) DO NOTHING`,
		spec.table, spec.entityCol, spec.entityCol,
	)
	result, err := s.db.ExecContext(ctx, query, userID, containerID, string(role), nullableComment(comment))
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("member already exists")
	}

	_ = audit.FromContext(ctx).LogMembershipChange(ctx, audit.EventMemberAdded, actorID, userID,
		spec.desc.Family, containerID, fmt.Sprintf("added with role %s", role))
	return nil
}

// UpdateMemberRole changes a member's role. The owner invariant applies:
// an owner membership can never be demoted, and ownership is assigned at
// container creation only, never through this path.
func (s *MemberService) UpdateMemberRole(ctx context.Context, actorID int64, kind ContainerKind, containerID, userID int64, role access.Role) error {
	spec, err := s.guards.container(kind)
	if err != nil {
		return err
	}
	if _, err := s.guards.resolver.Ensure(ctx, spec.desc, actorID, containerID, access.CapManageMembers); err != nil {
		return err
	}
	if role == access.RoleOwner {
		return access.OwnerImmutableError(access.OpModify)
	}
	if err := s.validateRole(spec, role); err != nil {
		return err
	}

	target, err := spec.desc.Memberships.FindMembership(ctx, userID, containerID)
	if err != nil {
		return err
	}
	if target == nil {
		return access.MemberNotFoundError(spec.desc.Family, containerID)
	}
	if err := access.AssertNotOwner(target, access.OpModify); err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET role = $1 WHERE user_id = $2 AND %s = $3`, spec.table, spec.entityCol)
	if _, err := s.db.ExecContext(ctx, query, string(role), userID, containerID); err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}

	_ = audit.FromContext(ctx).LogMembershipChange(ctx, audit.EventMemberRoleChanged, actorID, userID,
		spec.desc.Family, containerID, fmt.Sprintf("role changed from %s to %s", target.Role, role))
	return nil
}

// UpdateMemberComment sets the free-form comment on a membership. The
// owner invariant applies.
func (s *MemberService) UpdateMemberComment(ctx context.Context, actorID int64, kind ContainerKind, containerID, userID int64, comment string) error {
	spec, err := s.guards.container(kind)
	if err != nil {
		return err
	}
	if _, err := s.guards.resolver.Ensure(ctx, spec.desc, actorID, containerID, access.CapManageMembers); err != nil {
		return err
	}

	target, err := spec.desc.Memberships.FindMembership(ctx, userID, containerID)
	if err != nil {
		return err
	}
	if target == nil {
		return access.MemberNotFoundError(spec.desc.Family, containerID)
	}
	if err := access.AssertNotOwner(target, access.OpModify); err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET comment = $1 WHERE user_id = $2 AND %s = $3`, spec.table, spec.entityCol)
	if _, err := s.db.ExecContext(ctx, query, nullableComment(comment), userID, containerID); err != nil {
		return fmt.Errorf("failed to update member comment: %w", err)
	}

	_ = audit.FromContext(ctx).LogMembershipChange(ctx, audit.EventMemberCommentSet, actorID, userID,
		spec.desc.Family, containerID, "comment updated")
	return nil
}

// RemoveMember deletes a membership row. The owner invariant applies:
// the owner row can never be removed, regardless of the actor's own
// privileges, including a global bypass.
func (s *MemberService) RemoveMember(ctx context.Context, actorID int64, kind ContainerKind, containerID, userID int64) error {
	spec, err := s.guards.container(kind)
	if err != nil {
		return err
	}
	if _, err := s.guards.resolver.Ensure(ctx, spec.desc, actorID, containerID, access.CapManageMembers); err != nil {
		return err
	}

	target, err := spec.desc.Memberships.FindMembership(ctx, userID, containerID)
	if err != nil {
		return err
	}
	if target == nil {
		return access.MemberNotFoundError(spec.desc.Family, containerID)
	}
	if err := access.AssertNotOwner(target, access.OpRemove); err != nil {
		return err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1 AND %s = $2`, spec.table, spec.entityCol)
	if _, err := s.db.ExecContext(ctx, query, userID, containerID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	_ = audit.FromContext(ctx).LogMembershipChange(ctx, audit.EventMemberRemoved, actorID, userID,
		spec.desc.Family, containerID, "member removed")
	return nil
}

// BootstrapCreator inserts the creator's initial membership when a
// container is first created: the family's top rank, owner where the
// role set has one. No capability check; the container cannot have
// members yet.
func (s *MemberService) BootstrapCreator(ctx context.Context, kind ContainerKind, containerID, userID int64) error {
	spec, err := s.guards.container(kind)
	if err != nil {
		return err
	}
	top := spec.desc.Roles.Top()

	query := fmt.Sprintf(
		`INSERT INTO %s (user_id, %s, role) VALUES ($1, $2, $3)`,
		spec.table, spec.entityCol,
	)
	if _, err := s.db.ExecContext(ctx, query, userID, containerID, string(top)); err != nil {
		return fmt.Errorf("failed to bootstrap creator membership: %w", err)
	}
	return nil
}

func (s *MemberService) validateRole(spec containerSpec, role access.Role) error {
	if !spec.desc.Roles.Contains(role) {
		return fmt.Errorf("role %q is not valid for %s memberships", role, spec.desc.Family)
	}
	return nil
}

func nullableComment(comment string) interface{} {
	if comment == "" {
		return nil
	}
	return comment
}
