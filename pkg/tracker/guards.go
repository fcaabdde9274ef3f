// Package tracker wires Cairn's entity families to the shared access
// resolver and exposes the per-family guard entry points route handlers
// call.
//
// Two family chains share the engine: workspaces and projects are
// directly governed; milestones resolve through their project links;
// tasks resolve through the task -> milestone -> project chain with a
// legacy direct task -> project fallback. Boards and cards form the
// parallel content chain, with a collaborator role set that has no
// owner rank.
package tracker

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/cairnhq/cairn/pkg/access"
	"github.com/cairnhq/cairn/pkg/observability"
)

// ContainerKind names a directly-governed entity family.
type ContainerKind string

const (
	KindWorkspace ContainerKind = "workspace"
	KindProject   ContainerKind = "project"
	KindBoard     ContainerKind = "board"
)

// containerSpec pairs a family descriptor with the table its
// memberships are written to.
type containerSpec struct {
	desc      access.Descriptor
	table     string
	entityCol string
}

// Guards holds the wired descriptors for every entity family and the
// resolver they share.
type Guards struct {
	resolver *access.Resolver
	db       *sql.DB

	workspace containerSpec
	project   containerSpec
	board     containerSpec

	milestone access.LinkedDescriptor
	task      access.ChainDescriptor
	card      access.LinkedDescriptor
}

// NewGuards wires the entity family descriptors over the given store.
// bypass is the platform-admin strategy; nil disables the bypass.
func NewGuards(db *sql.DB, bypass access.Bypass, logger *observability.Logger, metrics *observability.Metrics) *Guards {
	workspace := containerSpec{
		desc: access.Descriptor{
			Family:      string(KindWorkspace),
			Roles:       access.RolesAll,
			Matrix:      access.ContainerMatrix(),
			Memberships: access.NewSQLMemberships(db, "workspace_members", "workspace_id").WithMetrics(metrics),
		},
		table:     "workspace_members",
		entityCol: "workspace_id",
	}
	project := containerSpec{
		desc: access.Descriptor{
			Family:      string(KindProject),
			Roles:       access.RolesAll,
			Matrix:      access.ContainerMatrix(),
			Memberships: access.NewSQLMemberships(db, "project_members", "project_id").WithMetrics(metrics),
		},
		table:     "project_members",
		entityCol: "project_id",
	}
	board := containerSpec{
		desc: access.Descriptor{
			Family:      string(KindBoard),
			Roles:       access.RolesCollaborator,
			Matrix:      access.BoardMatrix(),
			Memberships: access.NewSQLMemberships(db, "board_members", "board_id").WithMetrics(metrics),
		},
		table:     "board_members",
		entityCol: "board_id",
	}

	milestoneProjects := access.NewSQLLinks(db, "milestone_projects", "milestone_id", "project_id").WithMetrics(metrics)

	return &Guards{
		resolver:  access.NewResolver(bypass, logger, metrics),
		db:        db,
		workspace: workspace,
		project:   project,
		board:     board,
		milestone: access.LinkedDescriptor{
			Family: "milestone",
			Parent: project.desc,
			Links:  milestoneProjects,
		},
		task: access.ChainDescriptor{
			Family:      "task",
			Top:         project.desc,
			MidLinks:    access.NewSQLLinks(db, "task_milestones", "task_id", "milestone_id").WithMetrics(metrics),
			TopLinks:    milestoneProjects,
			LegacyLinks: access.NewSQLLinks(db, "task_projects", "task_id", "project_id").WithMetrics(metrics),
		},
		card: access.LinkedDescriptor{
			Family: "card",
			Parent: board.desc,
			Links:  access.NewSQLLinks(db, "card_boards", "card_id", "board_id").WithMetrics(metrics),
		},
	}
}

// EnsureWorkspaceAccess resolves access to a workspace.
func (g *Guards) EnsureWorkspaceAccess(ctx context.Context, userID, workspaceID int64, capability access.Capability) (*access.Context, error) {
	return g.resolver.Ensure(ctx, g.workspace.desc, userID, workspaceID, capability)
}

// EnsureProjectAccess resolves access to a project.
func (g *Guards) EnsureProjectAccess(ctx context.Context, userID, projectID int64, capability access.Capability) (*access.Context, error) {
	return g.resolver.Ensure(ctx, g.project.desc, userID, projectID, capability)
}

// EnsureMilestoneAccess resolves access to a milestone through any of
// its linked projects.
func (g *Guards) EnsureMilestoneAccess(ctx context.Context, userID, milestoneID int64, capability access.Capability) (*access.Context, error) {
	return g.resolver.EnsureLinked(ctx, g.milestone, userID, milestoneID, capability)
}

// EnsureTaskAccess resolves access to a task through the
// task -> milestone -> project chain, or the legacy direct
// task -> project link when the chain is absent.
func (g *Guards) EnsureTaskAccess(ctx context.Context, userID, taskID int64, capability access.Capability) (*access.ChainContext, error) {
	return g.resolver.EnsureChained(ctx, g.task, userID, taskID, capability)
}

// EnsureBoardAccess resolves access to a board.
func (g *Guards) EnsureBoardAccess(ctx context.Context, userID, boardID int64, capability access.Capability) (*access.Context, error) {
	return g.resolver.Ensure(ctx, g.board.desc, userID, boardID, capability)
}

// EnsureCardAccess resolves access to a card through any of its linked
// boards.
func (g *Guards) EnsureCardAccess(ctx context.Context, userID, cardID int64, capability access.Capability) (*access.Context, error) {
	return g.resolver.EnsureLinked(ctx, g.card, userID, cardID, capability)
}

// WorkspaceMembership is the non-throwing membership lookup; (nil, nil)
// when the user has no membership.
func (g *Guards) WorkspaceMembership(ctx context.Context, userID, workspaceID int64) (*access.Membership, error) {
	return g.resolver.MembershipSafe(ctx, g.workspace.desc, userID, workspaceID)
}

// ProjectMembership is the non-throwing membership lookup; (nil, nil)
// when the user has no membership.
func (g *Guards) ProjectMembership(ctx context.Context, userID, projectID int64) (*access.Membership, error) {
	return g.resolver.MembershipSafe(ctx, g.project.desc, userID, projectID)
}

// container maps a kind to its wired spec.
func (g *Guards) container(kind ContainerKind) (containerSpec, error) {
	switch kind {
	case KindWorkspace:
		return g.workspace, nil
	case KindProject:
		return g.project, nil
	case KindBoard:
		return g.board, nil
	default:
		return containerSpec{}, fmt.Errorf("unknown container kind %q", kind)
	}
}
