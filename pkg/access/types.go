package access

import (
	"context"
	"time"
)

// Membership binds one user to one container with an assigned role.
// Unique on (UserID, EntityID).
type Membership struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	EntityID  int64     `json:"entity_id"`
	Role      Role      `json:"role"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	// Synthetic is set when the membership was minted by the global
	// bypass and has no backing row. GlobalRole carries the operator's
	// actual platform role name for display and audit only; the
	// effective role is always the family's top rank.
	Synthetic  bool   `json:"synthetic,omitempty"`
	GlobalRole string `json:"global_role,omitempty"`
}

// Context is the ephemeral result of a successful direct or linked
// resolution. It is never persisted.
type Context struct {
	Membership *Membership `json:"membership"`
	// ContainerIDs holds the directly-governed container id(s) the
	// decision was resolved through.
	ContainerIDs []int64 `json:"container_ids"`
}

// ChainContext is the result of a successful multi-hop resolution.
type ChainContext struct {
	Membership *Membership `json:"membership"`
	// TopID is the top container the granting membership belongs to.
	TopID int64 `json:"top_id"`
	// ViaTopIDs lists every structurally reachable top container that
	// was considered, deduplicated and sorted.
	ViaTopIDs []int64 `json:"via_top_ids"`
}

// Bypass answers whether a user holds platform-wide access. It is
// injected at wiring time so this package carries no compile-time
// dependency on the identity subsystem. Implementations must not cache:
// revocation of platform access takes effect on the next request.
type Bypass interface {
	// HasGlobalAccess reports whether the user may bypass local
	// membership entirely.
	HasGlobalAccess(ctx context.Context, userID int64) (bool, error)

	// GlobalRoleName returns the user's platform role name for audit
	// display, or "" when the user has none.
	GlobalRoleName(ctx context.Context, userID int64) (string, error)
}

// SynthesizeMembership mints the virtual membership a global bypass
// grants: always the family's top rank, whatever the platform role name
// says. The name is carried for display only.
func SynthesizeMembership(userID, entityID int64, top Role, globalRole string) *Membership {
	return &Membership{
		UserID:     userID,
		EntityID:   entityID,
		Role:       top,
		CreatedAt:  time.Now().UTC(),
		Synthetic:  true,
		GlobalRole: globalRole,
	}
}

// MembershipSource reads membership rows for one entity family.
type MembershipSource interface {
	// FindMembership returns the (user, entity) membership, or
	// (nil, nil) when no row exists; absence is a normal outcome.
	FindMembership(ctx context.Context, userID, entityID int64) (*Membership, error)

	// FindMemberships fetches the user's memberships across all the
	// given entity ids in a single query, ordered by entity id.
	FindMemberships(ctx context.Context, userID int64, entityIDs []int64) ([]*Membership, error)
}

// LinkSource reads one many-to-many association table. Links carry no
// ownership semantics of their own; they are purely membership paths.
type LinkSource interface {
	// ParentIDs returns the ids linked to the child, sorted ascending.
	ParentIDs(ctx context.Context, childID int64) ([]int64, error)

	// BatchParentIDs returns the distinct ids linked to any of the
	// children in one query, sorted ascending.
	BatchParentIDs(ctx context.Context, childIDs []int64) ([]int64, error)
}

// Descriptor describes one directly-governed entity family: its
// membership table handle, its permission matrix and its declared roles.
// The same resolver serves every family; only descriptors differ.
type Descriptor struct {
	Family      string
	Roles       RoleSet
	Matrix      Matrix
	Memberships MembershipSource
}

// LinkedDescriptor describes a family resolved through one hop of
// many-to-many links to a directly-governed parent family.
type LinkedDescriptor struct {
	Family string
	Parent Descriptor
	// Links maps a child entity to its parent container ids.
	Links LinkSource
}

// ChainDescriptor describes a leaf family resolved through a two-level
// chain, with an optional legacy direct leaf -> top link table used when
// the chain is absent.
type ChainDescriptor struct {
	Family string
	Top    Descriptor
	// MidLinks maps a leaf to its mid-level container ids.
	MidLinks LinkSource
	// TopLinks maps mid-level containers to top container ids.
	TopLinks LinkSource
	// LegacyLinks maps a leaf straight to top container ids; may be nil
	// for families without the legacy table.
	LegacyLinks LinkSource
}

// Operation names a membership mutation for the owner invariant check.
type Operation string

const (
	OpModify Operation = "modify"
	OpRemove Operation = "remove"
)

// AssertNotOwner rejects mutation or removal of an owner membership.
// This is an absolute structural invariant: it applies regardless of the
// actor's own role or capability level, including bypass-synthesized
// owners. Callers invoke it in addition to, never instead of, the
// capability check.
func AssertNotOwner(m *Membership, op Operation) error {
	if m != nil && m.Role == RoleOwner {
		return OwnerImmutableError(op)
	}
	return nil
}
